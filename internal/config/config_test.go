package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("REMOTE_HOST", "hive-gateway.local")
	t.Setenv("REMOTE_USER", "beekeeper")
	t.Setenv("REMOTE_VIDEO_PATH", "/srv/videos/")
	t.Setenv("REMOTE_OUTPUT_PATH", "/srv/results")
}

func TestParseConfigFromEnvironment(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REMOTE_PORT", "2222")
	t.Setenv("TRANSPORT_COMMAND_TIMEOUT", "45s")
	t.Setenv("REMOTE_RESULT_PER_VIDEO", "true")

	v, err := LoadConfig("")
	require.NoError(t, err)
	cfg, err := ParseConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "hive-gateway.local", cfg.Remote.Host)
	assert.Equal(t, 2222, cfg.Remote.Port)
	assert.Equal(t, "/srv/videos", cfg.Remote.VideoPath)
	assert.Equal(t, 45*time.Second, cfg.Remote.CommandTimeout)
	assert.Equal(t, 10*time.Second, cfg.Remote.ConnectTimeout)
	assert.True(t, cfg.Remote.ResultPerVideo)
	assert.Equal(t, "/app/best.pt", cfg.Inference.ModelPath)
	assert.Equal(t, "/tmp/videos", cfg.Paths.LocalVideoDir)
	assert.NoError(t, cfg.ValidateDetection(context.Background()))
	assert.False(t, cfg.RedisEnabled())
	assert.False(t, cfg.S3Enabled())
}

func TestParseConfigKeepsRemoteRoot(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REMOTE_VIDEO_PATH", "/")
	t.Setenv("REMOTE_OUTPUT_PATH", "//")

	v, err := LoadConfig("")
	require.NoError(t, err)
	cfg, err := ParseConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "/", cfg.Remote.VideoPath)
	assert.Equal(t, "/", cfg.Remote.OutputPath)
	assert.NoError(t, cfg.ValidateDetection(context.Background()))
}

func TestValidateDetectionListsMissingVariables(t *testing.T) {
	for _, env := range []string{"REMOTE_HOST", "REMOTE_USER", "REMOTE_VIDEO_PATH", "REMOTE_OUTPUT_PATH"} {
		t.Setenv(env, "")
	}
	t.Setenv("REMOTE_USER", "beekeeper")

	v, err := LoadConfig("")
	require.NoError(t, err)
	cfg, err := ParseConfig(v)
	require.NoError(t, err)

	err = cfg.ValidateDetection(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REMOTE_HOST")
	assert.Contains(t, err.Error(), "REMOTE_VIDEO_PATH")
	assert.NotContains(t, err.Error(), "REMOTE_USER")
}

func TestEnvironmentOverridesFile(t *testing.T) {
	setRequiredEnv(t)
	path := filepath.Join(t.TempDir(), "beedetect.yml")
	require.NoError(t, os.WriteFile(path, []byte("remote:\n  host: from-file\n  port: 2200\nredis:\n  redisaddr: localhost:6379\n"), 0o644))

	v, err := LoadConfig(path)
	require.NoError(t, err)
	cfg, err := ParseConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "hive-gateway.local", cfg.Remote.Host)
	assert.Equal(t, 2200, cfg.Remote.Port)
	assert.True(t, cfg.RedisEnabled())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yml"))
	assert.EqualError(t, err, "config file not found")
}
