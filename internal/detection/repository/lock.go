package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/process"
)

const (
	lockDirName   = ".beedetect.lock"
	lockOwnerName = "owner.json"

	// An ownerless lock younger than this may still be mid-acquire by another run.
	ownerlessGrace = time.Minute
)

// pidAlive reports whether a local process with the given pid is still running.
var pidAlive = func(ctx context.Context, pid int32) (bool, error) {
	return process.PidExistsWithContext(ctx, pid)
}

// LockOwner is written into the lock directory by the run holding it.
type LockOwner struct {
	PID      int       `json:"pid"`
	RunID    string    `json:"run_id"`
	Host     string    `json:"hostname"`
	Acquired time.Time `json:"created_at"`
}

func (o LockOwner) String() string {
	if o.PID == 0 {
		return "an unidentified run"
	}
	return fmt.Sprintf("run %s (pid %d on %s since %s)", o.RunID, o.PID, o.Host, o.Acquired.Format(time.RFC3339))
}

// RunLock keeps two invocations from sharing the state files.
type RunLock struct {
	dir string
	// Recovered is the owner of a dead run whose lock was taken over, nil otherwise.
	Recovered *LockOwner
}

// AcquireRunLock takes the lock directory under stateDir. A lock left behind by a process
// that no longer exists on this host is reclaimed once.
func AcquireRunLock(ctx context.Context, stateDir, runID string) (*RunLock, error) {
	stateDir = strings.TrimSpace(stateDir)
	if stateDir == "" {
		return nil, fmt.Errorf("run lock: state directory is required")
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("run lock: create %s: %w", stateDir, err)
	}

	lock := &RunLock{dir: filepath.Join(stateDir, lockDirName)}
	err := lock.claim(runID)
	if !os.IsExist(err) {
		if err != nil {
			return nil, err
		}
		return lock, nil
	}

	owner, stale := lock.inspect(ctx)
	if !stale {
		if owner != nil {
			return nil, fmt.Errorf("run lock %s is held by %s", lock.dir, owner)
		}
		return nil, fmt.Errorf("run lock %s is held by another run", lock.dir)
	}
	if err := os.RemoveAll(lock.dir); err != nil {
		return nil, fmt.Errorf("run lock: remove stale %s: %w", lock.dir, err)
	}
	if err := lock.claim(runID); err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("run lock %s was retaken by another run", lock.dir)
		}
		return nil, err
	}
	if owner == nil {
		owner = &LockOwner{}
	}
	lock.Recovered = owner
	return lock, nil
}

// claim creates the lock directory and records this process as its owner. The raw
// os.Mkdir error is returned when the directory already exists.
func (l *RunLock) claim(runID string) error {
	if err := os.Mkdir(l.dir, 0o755); err != nil {
		if os.IsExist(err) {
			return err
		}
		return fmt.Errorf("run lock: create %s: %w", l.dir, err)
	}
	data, err := json.Marshal(LockOwner{
		PID:      os.Getpid(),
		RunID:    runID,
		Host:     localHost(),
		Acquired: time.Now().UTC().Truncate(time.Second),
	})
	if err == nil {
		err = os.WriteFile(filepath.Join(l.dir, lockOwnerName), data, 0o644)
	}
	if err != nil {
		_ = os.RemoveAll(l.dir)
		return fmt.Errorf("run lock: record owner in %s: %w", l.dir, err)
	}
	return nil
}

// inspect reads the current owner and decides whether the lock can be reclaimed. Owners on
// other hosts are never considered stale since their pids mean nothing here.
func (l *RunLock) inspect(ctx context.Context) (*LockOwner, bool) {
	data, err := os.ReadFile(filepath.Join(l.dir, lockOwnerName))
	if err != nil {
		return nil, l.ownerlessExpired()
	}
	var owner LockOwner
	if err := json.Unmarshal(data, &owner); err != nil || owner.PID <= 0 {
		return nil, l.ownerlessExpired()
	}
	if owner.Host != localHost() {
		return &owner, false
	}
	alive, err := pidAlive(ctx, int32(owner.PID))
	if err != nil {
		return &owner, false
	}
	return &owner, !alive
}

func (l *RunLock) ownerlessExpired() bool {
	info, err := os.Stat(l.dir)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) > ownerlessGrace
}

func (l *RunLock) Release() error {
	if l == nil || l.dir == "" {
		return nil
	}
	if err := os.RemoveAll(l.dir); err != nil {
		return fmt.Errorf("run lock: release %s: %w", l.dir, err)
	}
	return nil
}

func localHost() string {
	host, err := os.Hostname()
	if host = strings.TrimSpace(host); err != nil || host == "" {
		return "unknown"
	}
	return host
}
