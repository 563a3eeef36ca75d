package detection

import (
	"context"

	"github.com/ademnea/beehive-pipeline/internal/models"
)

type UseCase interface {
	ProcessBatch(ctx context.Context, videos []string) *models.BatchReport
	ProcessVideo(ctx context.Context, video string) (*models.DetectionResult, error)
}
