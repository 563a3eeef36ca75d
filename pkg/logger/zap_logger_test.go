package logger

import (
	"testing"

	"github.com/ademnea/beehive-pipeline/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerLevelFallsBackToInfo(t *testing.T) {
	l := NewApiLogger(&config.Config{Logger: config.Logger{Level: "verbose"}})
	assert.Equal(t, zapcore.InfoLevel, l.getLoggerLevel())

	l = NewApiLogger(&config.Config{Logger: config.Logger{Level: "debug"}})
	assert.Equal(t, zapcore.DebugLevel, l.getLoggerLevel())
}

func TestFromZapForwardsFormattedMessages(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))

	l.Warnf("Error processing %s: %v", "a.mp4", "boom")
	l.Debug("done")

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "Error processing a.mp4: boom", entries[0].Message)
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	}
}
