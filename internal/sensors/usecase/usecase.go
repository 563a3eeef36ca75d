package usecase

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/ademnea/beehive-pipeline/internal/models"
	"github.com/ademnea/beehive-pipeline/internal/sensors"
	"github.com/ademnea/beehive-pipeline/pkg/logger"
	"github.com/ademnea/beehive-pipeline/pkg/utils"
)

var csvHeader = []string{"record", "created_at"}

type sensorUC struct {
	repo   sensors.Repository
	logger logger.Logger
}

func NewSensorUseCase(repo sensors.Repository, log logger.Logger) sensors.UseCase {
	return &sensorUC{
		repo:   repo,
		logger: log,
	}
}

func (s *sensorUC) Export(ctx context.Context, query *models.SensorQuery, w io.Writer) (int, error) {
	if err := utils.ValidateStruct(ctx, query); err != nil {
		s.logger.Errorf("Export - ValidateStruct error: %v", err)
		return 0, fmt.Errorf("invalid query: %w", err)
	}

	readings, err := s.repo.GetReadings(ctx, query)
	if err != nil {
		return 0, err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range readings {
		if err := writer.Write([]string{r.Record.String, r.CreatedAt.Format(time.RFC3339)}); err != nil {
			return 0, fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush csv: %w", err)
	}

	s.logger.Infof("Exported %d readings from %s for hive %d", len(readings), query.Table, query.HiveID)
	return len(readings), nil
}
