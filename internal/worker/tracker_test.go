package worker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ademnea/beehive-pipeline/internal/config"
	"github.com/ademnea/beehive-pipeline/internal/detection"
	"github.com/ademnea/beehive-pipeline/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeEngine = `#!/bin/sh
case "$*" in
  *--check*) exit 0 ;;
esac
echo '{"frame":0,"ids":[3,7]}'
echo ''
echo '{"frame":1,"ids":[3,null,9]}'
echo '{"frame":2,"ids":[]}'
`

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func testConfig(t *testing.T, script string) *config.Config {
	t.Helper()
	model := filepath.Join(t.TempDir(), "best.pt")
	require.NoError(t, os.WriteFile(model, []byte("weights"), 0o644))
	cfg := &config.Config{}
	cfg.Inference.ModelPath = model
	cfg.Inference.Command = "sh " + script
	return cfg
}

func testVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "a.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0o644))
	return path
}

func TestCollectIDsDeduplicatesAndSkipsNull(t *testing.T) {
	input := strings.Join([]string{
		`{"frame":0,"ids":[3,7]}`,
		`{"frame":1,"ids":[3,null,9]}`,
		`{"frame":2,"ids":null}`,
		``,
	}, "\n")

	ids, frames, err := collectIDs(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 3, frames)
	assert.Equal(t, map[int]struct{}{3: {}, 7: {}, 9: {}}, ids)
}

func TestCollectIDsRejectsGarbage(t *testing.T) {
	_, _, err := collectIDs(strings.NewReader("{\"frame\":0,\"ids\":[1]}\nnot json\n"))
	require.Error(t, err)
}

func TestProcessTrackerTracksDistinctIDs(t *testing.T) {
	cfg := testConfig(t, writeScript(t, fakeEngine))
	tracker, err := NewProcessTracker(context.Background(), cfg, logger.NewNopLogger())
	require.NoError(t, err)

	ids, err := tracker.TrackObjects(context.Background(), testVideo(t))
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.Contains(t, ids, 9)
}

func TestProcessTrackerNoDetections(t *testing.T) {
	script := writeScript(t, "#!/bin/sh\nexit 0\n")
	tracker, err := NewProcessTracker(context.Background(), testConfig(t, script), logger.NewNopLogger())
	require.NoError(t, err)

	ids, err := tracker.TrackObjects(context.Background(), testVideo(t))
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestNewProcessTrackerModelMissing(t *testing.T) {
	cfg := testConfig(t, writeScript(t, fakeEngine))
	cfg.Inference.ModelPath = filepath.Join(t.TempDir(), "missing.pt")

	_, err := NewProcessTracker(context.Background(), cfg, logger.NewNopLogger())
	assert.ErrorIs(t, err, detection.ErrModelLoad)
}

func TestNewProcessTrackerCheckFails(t *testing.T) {
	script := writeScript(t, "#!/bin/sh\necho 'cannot fuse model' >&2\nexit 3\n")

	_, err := NewProcessTracker(context.Background(), testConfig(t, script), logger.NewNopLogger())
	require.ErrorIs(t, err, detection.ErrModelLoad)
	assert.Contains(t, err.Error(), "cannot fuse model")
}

func TestTrackObjectsEngineFailure(t *testing.T) {
	script := writeScript(t, "#!/bin/sh\ncase \"$*\" in *--check*) exit 0 ;; esac\necho 'cuda error' >&2\nexit 2\n")
	tracker, err := NewProcessTracker(context.Background(), testConfig(t, script), logger.NewNopLogger())
	require.NoError(t, err)

	_, err = tracker.TrackObjects(context.Background(), testVideo(t))
	require.ErrorIs(t, err, detection.ErrInference)
	assert.Contains(t, err.Error(), "cuda error")
}

func TestTrackObjectsMissingVideo(t *testing.T) {
	tracker, err := NewProcessTracker(context.Background(), testConfig(t, writeScript(t, fakeEngine)), logger.NewNopLogger())
	require.NoError(t, err)

	_, err = tracker.TrackObjects(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"))
	assert.ErrorIs(t, err, detection.ErrInference)
}

func TestTrackObjectsWaitsForCPU(t *testing.T) {
	tracker, err := NewProcessTracker(context.Background(), testConfig(t, writeScript(t, fakeEngine)), logger.NewNopLogger())
	require.NoError(t, err)

	samples := []float64{95, 20}
	calls := 0
	tracker.maxCPUUsage = 80
	tracker.checkInterval = 1
	tracker.sampleCPU = func(ctx context.Context) (float64, error) {
		v := samples[calls]
		calls++
		return v, nil
	}

	_, err = tracker.TrackObjects(context.Background(), testVideo(t))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
