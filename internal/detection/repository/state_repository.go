package repository

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ademnea/beehive-pipeline/internal/detection"
)

type stateRepository struct {
	mu           sync.Mutex
	processedLog string
	lastRunFile  string
}

func NewStateRepository(processedLog, lastRunFile string) detection.StateRepository {
	return &stateRepository{
		processedLog: processedLog,
		lastRunFile:  lastRunFile,
	}
}

// Init creates both state files when missing. Existing content is left alone.
func (s *stateRepository) Init(ctx context.Context) error {
	for _, path := range []string{s.processedLog, s.lastRunFile} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return detection.Wrap(detection.ErrPersistence, err, "create directory for %s", path)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return detection.Wrap(detection.ErrPersistence, err, "initialise %s", path)
		}
		if err := f.Close(); err != nil {
			return detection.Wrap(detection.ErrPersistence, err, "close %s", path)
		}
	}
	return nil
}

func (s *stateRepository) MarkProcessed(ctx context.Context, remotePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.processedLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return detection.Wrap(detection.ErrPersistence, err, "open %s", s.processedLog)
	}
	if _, err := f.WriteString(remotePath + "\n"); err != nil {
		f.Close()
		return detection.Wrap(detection.ErrPersistence, err, "append to %s", s.processedLog)
	}
	if err := f.Close(); err != nil {
		return detection.Wrap(detection.ErrPersistence, err, "close %s", s.processedLog)
	}
	return nil
}

// UpdateLastRun overwrites the marker with a single timestamp.
func (s *stateRepository) UpdateLastRun(ctx context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.lastRunFile, []byte(at.Format(time.RFC3339Nano)), 0o644); err != nil {
		return detection.Wrap(detection.ErrPersistence, err, "write %s", s.lastRunFile)
	}
	return nil
}

// LastRun returns the zero time when the marker is empty.
func (s *stateRepository) LastRun(ctx context.Context) (time.Time, error) {
	data, err := os.ReadFile(s.lastRunFile)
	if err != nil {
		return time.Time{}, detection.Wrap(detection.ErrPersistence, err, "read %s", s.lastRunFile)
	}
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return time.Time{}, nil
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, detection.Wrap(detection.ErrPersistence, err, "parse %s", s.lastRunFile)
	}
	return at, nil
}
