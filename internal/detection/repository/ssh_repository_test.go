package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ademnea/beehive-pipeline/internal/config"
	"github.com/ademnea/beehive-pipeline/internal/detection"
	"github.com/ademnea/beehive-pipeline/pkg/logger"
	"github.com/ademnea/beehive-pipeline/pkg/sshclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func newTestSSHRepo(t *testing.T, password string, dialErr error) (*sshRepository, *int) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Remote.Host = "hive.local"
	cfg.Remote.User = "pi"
	cfg.Remote.Password = password
	cfg.Remote.KeyPath = filepath.Join(t.TempDir(), "missing_key")
	cfg.Remote.ConnectTimeout = time.Second
	cfg.Paths.TempDir = t.TempDir()

	repo := NewSSHRepository(cfg, logger.NewNopLogger()).(*sshRepository)
	calls := 0
	repo.dial = func(ctx context.Context, opts sshclient.Options, auth []ssh.AuthMethod) (*ssh.Client, error) {
		calls++
		return nil, dialErr
	}
	return repo, &calls
}

func TestSSHRepositoryFailsFastWithoutCredentials(t *testing.T) {
	repo, calls := newTestSSHRepo(t, "", errors.New("unreachable"))

	_, err := repo.RunCommand(context.Background(), "true")
	require.Error(t, err)
	assert.ErrorIs(t, err, detection.ErrAuthentication)
	assert.Equal(t, 0, *calls)
}

func TestSSHRepositoryClassifiesDialErrors(t *testing.T) {
	repo, calls := newTestSSHRepo(t, "secret", errors.New("dial tcp 10.0.0.1:22: connect: connection refused"))

	_, err := repo.RunCommand(context.Background(), "true")
	assert.ErrorIs(t, err, detection.ErrConnection)
	assert.Equal(t, 1, *calls)

	repo, _ = newTestSSHRepo(t, "secret", errors.New("ssh: handshake failed: ssh: unable to authenticate, attempted methods [none password]"))
	_, err = repo.RunCommand(context.Background(), "true")
	assert.ErrorIs(t, err, detection.ErrAuthentication)
}

func TestSSHRepositoryUploadRemovesTempFileOnFailure(t *testing.T) {
	repo, calls := newTestSSHRepo(t, "secret", errors.New("connection refused"))

	err := repo.Upload(context.Background(), []byte(`{"video":"a.mp4"}`), "/remote/out/results.json")
	require.Error(t, err)
	assert.Equal(t, 1, *calls)

	entries, err := os.ReadDir(repo.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSSHRepositoryUploadTempNamesAreUnique(t *testing.T) {
	repo, _ := newTestSSHRepo(t, "secret", nil)

	first, err := repo.writeTemp([]byte("a"))
	require.NoError(t, err)
	second, err := repo.writeTemp([]byte("b"))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestSSHRepositoryDownloadNeedsCredentials(t *testing.T) {
	repo, calls := newTestSSHRepo(t, "", nil)
	local := filepath.Join(t.TempDir(), "videos", "a.mp4")

	err := repo.Download(context.Background(), "/remote/videos/a.mp4", local)
	assert.ErrorIs(t, err, detection.ErrAuthentication)
	assert.Equal(t, 0, *calls)
	assert.NoFileExists(t, local)
}

func TestRunUntilDoneAbortsOnDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	release := make(chan struct{})
	closer := closerFunc(func() error { close(release); return nil })

	err := runUntilDone(ctx, closer, detection.ErrTransfer, func() error {
		<-release
		return errors.New("use of closed connection")
	})
	assert.ErrorIs(t, err, detection.ErrTransfer)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
