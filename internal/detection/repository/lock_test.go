package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLockOwner(t *testing.T, stateDir string, owner LockOwner) string {
	t.Helper()
	dir := filepath.Join(stateDir, lockDirName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data, err := json.Marshal(owner)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, lockOwnerName), data, 0o644))
	return dir
}

func TestAcquireRunLockBlocksConcurrentAcquire(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	lock, err := AcquireRunLock(ctx, dir, "run-1")
	require.NoError(t, err)
	assert.Nil(t, lock.Recovered)

	_, err = AcquireRunLock(ctx, dir, "run-2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run-1")

	require.NoError(t, lock.Release())

	lock2, err := AcquireRunLock(ctx, dir, "run-3")
	require.NoError(t, err)
	require.NoError(t, lock2.Release())
}

func TestAcquireRunLockReclaimsDeadOwner(t *testing.T) {
	dir := t.TempDir()
	// Above the Linux pid ceiling, so never a live process.
	writeLockOwner(t, dir, LockOwner{PID: 999999999, RunID: "crashed", Host: localHost(), Acquired: time.Now().Add(-time.Hour)})

	lock, err := AcquireRunLock(context.Background(), dir, "run-2")
	require.NoError(t, err)
	defer lock.Release()

	require.NotNil(t, lock.Recovered)
	assert.Equal(t, "crashed", lock.Recovered.RunID)

	data, err := os.ReadFile(filepath.Join(dir, lockDirName, lockOwnerName))
	require.NoError(t, err)
	var owner LockOwner
	require.NoError(t, json.Unmarshal(data, &owner))
	assert.Equal(t, "run-2", owner.RunID)
	assert.Equal(t, os.Getpid(), owner.PID)
}

func TestAcquireRunLockKeepsLiveOwner(t *testing.T) {
	orig := pidAlive
	t.Cleanup(func() { pidAlive = orig })
	pidAlive = func(ctx context.Context, pid int32) (bool, error) { return pid == 4242, nil }

	dir := t.TempDir()
	writeLockOwner(t, dir, LockOwner{PID: 4242, RunID: "busy", Host: localHost(), Acquired: time.Now()})

	_, err := AcquireRunLock(context.Background(), dir, "run-2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "busy")
}

func TestAcquireRunLockKeepsOwnerOnOtherHost(t *testing.T) {
	orig := pidAlive
	t.Cleanup(func() { pidAlive = orig })
	pidAlive = func(ctx context.Context, pid int32) (bool, error) { return false, nil }

	dir := t.TempDir()
	writeLockOwner(t, dir, LockOwner{PID: 17, RunID: "remote-run", Host: localHost() + "-elsewhere", Acquired: time.Now()})

	_, err := AcquireRunLock(context.Background(), dir, "run-2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote-run")
}

func TestAcquireRunLockOwnerlessDirectory(t *testing.T) {
	dir := t.TempDir()
	lockDir := filepath.Join(dir, lockDirName)
	require.NoError(t, os.Mkdir(lockDir, 0o755))

	_, err := AcquireRunLock(context.Background(), dir, "run-2")
	require.Error(t, err, "a fresh ownerless lock may still be mid-acquire")

	old := time.Now().Add(-2 * ownerlessGrace)
	require.NoError(t, os.Chtimes(lockDir, old, old))

	lock, err := AcquireRunLock(context.Background(), dir, "run-3")
	require.NoError(t, err)
	assert.NotNil(t, lock.Recovered)
	require.NoError(t, lock.Release())
	assert.NoDirExists(t, lockDir)
}

func TestAcquireRunLockRequiresStateDir(t *testing.T) {
	_, err := AcquireRunLock(context.Background(), "  ", "run-1")
	assert.Error(t, err)
}
