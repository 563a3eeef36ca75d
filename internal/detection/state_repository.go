package detection

import (
	"context"
	"time"
)

// StateRepository owns the processed-items log and the last-run marker.
type StateRepository interface {
	Init(ctx context.Context) error
	MarkProcessed(ctx context.Context, remotePath string) error
	UpdateLastRun(ctx context.Context, at time.Time) error
	LastRun(ctx context.Context) (time.Time, error)
}
