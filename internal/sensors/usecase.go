package sensors

import (
	"context"
	"io"

	"github.com/ademnea/beehive-pipeline/internal/models"
)

type UseCase interface {
	// Export writes the readings as CSV and returns the number of data rows.
	Export(ctx context.Context, query *models.SensorQuery, w io.Writer) (int, error)
}
