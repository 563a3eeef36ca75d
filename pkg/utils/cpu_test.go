package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForCPUDisabled(t *testing.T) {
	called := false
	err := WaitForCPU(context.Background(), func(context.Context) (float64, error) {
		called = true
		return 100, nil
	}, 0, time.Millisecond, nil)
	require.NoError(t, err)
	assert.False(t, called)
}

func TestWaitForCPUPassesOnSampleError(t *testing.T) {
	err := WaitForCPU(context.Background(), func(context.Context) (float64, error) {
		return 0, errors.New("no /proc")
	}, 50, time.Millisecond, nil)
	assert.NoError(t, err)
}

func TestWaitForCPUHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	busy := 0
	err := WaitForCPU(ctx, func(context.Context) (float64, error) {
		return 99, nil
	}, 50, time.Hour, func(float64) {
		busy++
		cancel()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, busy)
}
