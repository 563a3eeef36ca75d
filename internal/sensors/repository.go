package sensors

import (
	"context"

	"github.com/ademnea/beehive-pipeline/internal/models"
)

type Repository interface {
	GetReadings(ctx context.Context, query *models.SensorQuery) ([]*models.SensorReading, error)
}
