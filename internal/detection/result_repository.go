package detection

import (
	"context"

	"github.com/ademnea/beehive-pipeline/internal/models"
)

// ResultRepository is the durable local results table.
type ResultRepository interface {
	Append(ctx context.Context, result *models.DetectionResult) error
}

// ResultMirror is a best-effort secondary sink for results (pub/sub, object storage).
type ResultMirror interface {
	Name() string
	Mirror(ctx context.Context, result *models.DetectionResult, document []byte) error
}
