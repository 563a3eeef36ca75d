package utils

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/cpu"
)

// CPUSampler reports host CPU usage in percent.
type CPUSampler func(ctx context.Context) (float64, error)

func SampleCPU(ctx context.Context) (float64, error) {
	usage, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(usage) == 0 {
		return 0, nil
	}
	return usage[0], nil
}

// WaitForCPU blocks while usage is above maxCPUUsage. A non-positive limit disables the gate.
// onBusy is called with the observed usage every time the gate decides to wait.
func WaitForCPU(ctx context.Context, sample CPUSampler, maxCPUUsage float64, interval time.Duration, onBusy func(float64)) error {
	if maxCPUUsage <= 0 {
		return nil
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	for {
		usage, err := sample(ctx)
		if err != nil || usage <= maxCPUUsage {
			return nil
		}
		if onBusy != nil {
			onBusy(usage)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
