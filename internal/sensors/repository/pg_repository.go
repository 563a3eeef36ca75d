package repository

import (
	"context"
	"fmt"
	"regexp"

	"github.com/ademnea/beehive-pipeline/internal/models"
	"github.com/ademnea/beehive-pipeline/internal/sensors"
	"github.com/jmoiron/sqlx"
)

var sensorTablePattern = regexp.MustCompile(`^hive_[a-z_]+$`)

type sensorRepo struct {
	db *sqlx.DB
}

func NewSensorRepo(db *sqlx.DB) sensors.Repository {
	return &sensorRepo{
		db: db,
	}
}

func ReadingsQuery(table string) (string, error) {
	if !sensorTablePattern.MatchString(table) {
		return "", fmt.Errorf("invalid sensor table %q: must match %s", table, sensorTablePattern)
	}
	return fmt.Sprintf(getReadingsQueryTemplate, table), nil
}

func (s *sensorRepo) GetReadings(ctx context.Context, query *models.SensorQuery) ([]*models.SensorReading, error) {
	stmt, err := ReadingsQuery(query.Table)
	if err != nil {
		return nil, err
	}
	readings := make([]*models.SensorReading, 0)
	if err := s.db.SelectContext(
		ctx,
		&readings,
		stmt,
		query.From,
		query.To,
		query.HiveID,
	); err != nil {
		return nil, fmt.Errorf("failed to get readings from %s: %w", query.Table, err)
	}
	return readings, nil
}
