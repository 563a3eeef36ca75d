package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/ademnea/beehive-pipeline/internal/config"
	"github.com/ademnea/beehive-pipeline/internal/detection"
	"github.com/ademnea/beehive-pipeline/pkg/logger"
	"github.com/ademnea/beehive-pipeline/pkg/utils"
)

const (
	maxFrameLineSize = 4 * 1024 * 1024
	stderrTailSize   = 2048
)

// frame is one line of tracker output.
type frame struct {
	Frame int    `json:"frame"`
	IDs   []*int `json:"ids"`
}

// ProcessTracker runs the detection/tracking engine as a subprocess and collects the
// distinct track ids it reports.
type ProcessTracker struct {
	command       []string
	modelPath     string
	maxCPUUsage   float64
	checkInterval time.Duration
	sampleCPU     utils.CPUSampler
	logger        logger.Logger
}

// NewProcessTracker loads the model once by running the engine in check mode.
// Any failure here is ErrModelLoad.
func NewProcessTracker(ctx context.Context, cfg *config.Config, log logger.Logger) (*ProcessTracker, error) {
	command := strings.Fields(cfg.Inference.Command)
	if len(command) == 0 {
		return nil, detection.Wrap(detection.ErrModelLoad, nil, "tracker command is empty")
	}
	t := &ProcessTracker{
		command:       command,
		modelPath:     cfg.Inference.ModelPath,
		maxCPUUsage:   cfg.Worker.MaxCPUUsage,
		checkInterval: cfg.Worker.CheckInterval,
		sampleCPU:     utils.SampleCPU,
		logger:        log,
	}
	if err := t.loadModel(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *ProcessTracker) loadModel(ctx context.Context) error {
	if _, err := os.Stat(t.modelPath); err != nil {
		return detection.Wrap(detection.ErrModelLoad, err, "model %s", t.modelPath)
	}
	cmd := t.cmd(ctx, "--model", t.modelPath, "--check")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return detection.Wrap(detection.ErrModelLoad, err, "load model %s: %s", t.modelPath, tail(output))
	}
	t.logger.Infof("Model loaded from %s", t.modelPath)
	return nil
}

func (t *ProcessTracker) cmd(ctx context.Context, args ...string) *exec.Cmd {
	argv := append(append([]string{}, t.command[1:]...), args...)
	return exec.CommandContext(ctx, t.command[0], argv...)
}

func (t *ProcessTracker) TrackObjects(ctx context.Context, localVideoPath string) (map[int]struct{}, error) {
	if _, err := os.Stat(localVideoPath); err != nil {
		return nil, detection.Wrap(detection.ErrInference, err, "video %s", localVideoPath)
	}

	err := utils.WaitForCPU(ctx, t.sampleCPU, t.maxCPUUsage, t.checkInterval, func(usage float64) {
		t.logger.Infof("CPU usage is high: %.1f%%, waiting before inference", usage)
	})
	if err != nil {
		return nil, detection.Wrap(detection.ErrInference, err, "wait for cpu")
	}

	start := time.Now()
	cmd := t.cmd(ctx, "--model", t.modelPath, "--source", localVideoPath)
	stderr := &tailBuffer{limit: stderrTailSize}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, detection.Wrap(detection.ErrInference, err, "tracker stdout")
	}
	if err := cmd.Start(); err != nil {
		return nil, detection.Wrap(detection.ErrInference, err, "start tracker")
	}

	ids, frames, scanErr := collectIDs(stdout)
	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, detection.Wrap(detection.ErrInference, scanErr, "read tracker output for %s", localVideoPath)
	}
	if err := cmd.Wait(); err != nil {
		return nil, detection.Wrap(detection.ErrInference, err, "tracker failed on %s: %s", localVideoPath, stderr.String())
	}

	t.logger.Debugf("Tracked %d frames of %s in %s", frames, localVideoPath, time.Since(start))
	return ids, nil
}

// collectIDs reads one JSON frame per line and returns the set of non-null ids.
func collectIDs(r io.Reader) (map[int]struct{}, int, error) {
	ids := make(map[int]struct{})
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxFrameLineSize)

	frames := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var f frame
		if err := json.Unmarshal([]byte(line), &f); err != nil {
			return nil, frames, fmt.Errorf("frame %d: %w", frames, err)
		}
		for _, id := range f.IDs {
			if id != nil {
				ids[*id] = struct{}{}
			}
		}
		frames++
	}
	if err := scanner.Err(); err != nil {
		return nil, frames, err
	}
	return ids, frames, nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.limit {
		b.buf = b.buf[len(b.buf)-b.limit:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}

func tail(output []byte) string {
	if len(output) > stderrTailSize {
		output = output[len(output)-stderrTailSize:]
	}
	return strings.TrimSpace(string(output))
}
