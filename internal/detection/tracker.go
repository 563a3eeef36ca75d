package detection

import "context"

// Tracker wraps the external detection and tracking engine.
type Tracker interface {
	// TrackObjects returns the distinct persistent track ids seen across all frames.
	TrackObjects(ctx context.Context, localVideoPath string) (map[int]struct{}, error)
}
