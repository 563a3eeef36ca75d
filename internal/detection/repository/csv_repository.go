package repository

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"

	"github.com/ademnea/beehive-pipeline/internal/detection"
	"github.com/ademnea/beehive-pipeline/internal/models"
)

const resultsFileName = "results.csv"

type csvRepository struct {
	mu   sync.Mutex
	dir  string
	path string
}

func NewCSVRepository(outputDir string) detection.ResultRepository {
	return &csvRepository{
		dir:  outputDir,
		path: filepath.Join(outputDir, resultsFileName),
	}
}

// Append writes one row per call; the table has no header and is never rewritten.
func (c *csvRepository) Append(ctx context.Context, result *models.DetectionResult) error {
	if err := ctx.Err(); err != nil {
		return detection.Wrap(detection.ErrPersistence, err, "append result for %s", result.Video)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return detection.Wrap(detection.ErrPersistence, err, "create output directory %s", c.dir)
	}
	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return detection.Wrap(detection.ErrPersistence, err, "open %s", c.path)
	}

	w := csv.NewWriter(f)
	if err := w.Write(result.Row()); err != nil {
		f.Close()
		return detection.Wrap(detection.ErrPersistence, err, "write row for %s", result.Video)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return detection.Wrap(detection.ErrPersistence, err, "flush row for %s", result.Video)
	}
	if err := f.Close(); err != nil {
		return detection.Wrap(detection.ErrPersistence, err, "close %s", c.path)
	}
	return nil
}
