// Package pipelinelock is an advisory, process-wide lock over a task root:
// at most one pipeline run may hold it at a time. Grounded on the teacher's
// internal/runner/lock.go for the hard-link atomic create, stale-PID
// reclaim, and wait-and-retry shape, repointed from a repo lock to a
// task-root lock. Release is not a rename-only copy of the teacher's: it
// checks that the calling run still owns the lock before removing it (see
// Release), which the teacher's repo lock never needed to because a
// repo-build lock is never reclaimed as stale out from under a caller that
// still intends to defer-release it the way a long-running pipeline run
// does.
package pipelinelock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

const pollInterval = 2 * time.Second

const lockFileName = ".benchkeep.lock"

// Info describes the owner of a task-root lock.
type Info struct {
	PID       int       `json:"pid"`
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
}

// Acquire creates a lock file in taskRoot. Returns nil on success. If the
// lock exists and the owning PID is dead, the stale lock is reclaimed.
func Acquire(taskRoot, runID string) error {
	lockPath := filepath.Join(taskRoot, lockFileName)

	info := Info{
		PID:       os.Getpid(),
		RunID:     runID,
		StartedAt: time.Now(),
	}

	err := writeLock(lockPath, &info)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("create lock %s: %w", lockPath, err)
	}

	existing, readErr := ReadLock(taskRoot)
	if readErr != nil {
		slog.Warn("removing corrupt lock file", "task_root", taskRoot, "error", readErr)
		if rmErr := os.Remove(lockPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return fmt.Errorf("remove corrupt lock: %w", rmErr)
		}
		if err := writeLock(lockPath, &info); err != nil {
			return fmt.Errorf("acquire after corrupt removal: %w", err)
		}
		return nil
	}

	if isProcessAlive(existing.PID) {
		return fmt.Errorf("task root locked by PID %d since %s (run %s)",
			existing.PID, existing.StartedAt.Format(time.RFC3339), existing.RunID)
	}

	slog.Warn("reclaiming stale lock", "task_root", taskRoot, "stale_pid", existing.PID, "run", existing.RunID)
	if err := os.Remove(lockPath); err != nil {
		return fmt.Errorf("remove stale lock: %w", err)
	}
	if err := writeLock(lockPath, &info); err != nil {
		return fmt.Errorf("acquire after stale removal: %w", err)
	}
	return nil
}

// WaitAndAcquire retries Acquire until the lock is obtained or ctx is done.
func WaitAndAcquire(ctx context.Context, taskRoot, runID string) error {
	for {
		err := Acquire(taskRoot, runID)
		if err == nil {
			return nil
		}
		slog.Debug("waiting for task root lock", "task_root", taskRoot, "run", runID, "holder", err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("lock wait cancelled: %w", ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// Release removes the lock file from taskRoot, but only if it is still
// owned by runID. A pipeline run defers Release unconditionally once it
// has acquired the lock; if that lock was later reclaimed out from under
// it as stale (Acquire's dead-PID path) and a second run is now using the
// task root, an unconditional remove here would delete the second run's
// live lock instead of a no-op. Checking ownership first makes Release
// safe to defer blindly. It is idempotent: a missing or already-foreign
// lock is not an error.
func Release(taskRoot, runID string) {
	lockPath := filepath.Join(taskRoot, lockFileName)

	existing, err := ReadLock(taskRoot)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to read lock before release", "path", lockPath, "error", err)
		}
		return
	}
	if existing.RunID != runID {
		slog.Warn("not releasing lock owned by a different run", "path", lockPath, "owner_run", existing.RunID, "requested_by_run", runID)
		return
	}

	if err := os.Remove(lockPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to release lock", "path", lockPath, "error", err)
	}
}

// ReadLock reads the lock file from taskRoot.
func ReadLock(taskRoot string) (*Info, error) {
	lockPath := filepath.Join(taskRoot, lockFileName)
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return nil, err
	}

	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse lock: %w", err)
	}
	return &info, nil
}

// writeLock atomically creates the lock file: write to a temp file, then
// hard-link it into place so readers never see partial content. Link fails
// with ErrExist when the lock is already held.
func writeLock(path string, info *Info) error {
	tmp := fmt.Sprintf("%s.tmp.%d.%d", path, os.Getpid(), time.Now().UnixNano())
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	encErr := json.NewEncoder(f).Encode(info)
	closeErr := f.Close()
	if encErr != nil {
		_ = os.Remove(tmp)
		return encErr
	}
	if closeErr != nil {
		_ = os.Remove(tmp)
		return closeErr
	}

	if err := os.Link(tmp, path); err != nil {
		_ = os.Remove(tmp)
		if errors.Is(err, os.ErrExist) {
			return os.ErrExist
		}
		return err
	}
	_ = os.Remove(tmp)
	return nil
}

// isProcessAlive checks if a process with the given PID exists and is running.
func isProcessAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
