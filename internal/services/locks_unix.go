//go:build unix

package services

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/trellishq/trellis/internal/lib"
)

// AcquireRunLock attempts to acquire an exclusive lock for a run (Unix implementation)
// Returns a RunLock if successful, error if lock is already held by another process
// The lock is automatically released when the RunLock is closed or the process exits
func AcquireRunLock(runsDir string, runID string, logger *lib.Logger) (*RunLock, error) {
	runDir := GetRunDir(runsDir, runID)
	lockPath := filepath.Join(runDir, ".lock")

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	// flock() is advisory - cooperating processes must check the lock
	err = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		_ = lockFile.Close()
		if err == syscall.EWOULDBLOCK {
			return nil, fmt.Errorf("run %s is locked by another process", runID)
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	lock := &RunLock{
		runID:    runID,
		lockFile: lockFile,
		lockPath: lockPath,
		logger:   logger,
	}

	if err := lock.writeLockInfo(); err != nil {
		logger.Warn("Failed to write lock info", "run_id", runID, "error", err)
	}

	logger.Debug("Acquired run lock", "run_id", runID, "pid", os.Getpid())

	return lock, nil
}

// Release releases the run lock (Unix implementation)
// Should be called when run operations are complete
func (rl *RunLock) Release() error {
	if rl.lockFile == nil {
		return nil
	}

	err := syscall.Flock(int(rl.lockFile.Fd()), syscall.LOCK_UN)
	if err != nil {
		rl.logger.Warn("Failed to release flock", "run_id", rl.runID, "error", err)
	}

	if err := rl.lockFile.Close(); err != nil {
		rl.logger.Warn("Failed to close lock file", "run_id", rl.runID, "error", err)
		return err
	}

	rl.logger.Debug("Released run lock", "run_id", rl.runID, "pid", os.Getpid())
	rl.lockFile = nil

	return nil
}

// IsRunLocked checks if a run is currently locked by any process (Unix implementation)
// This is a non-destructive check that doesn't acquire the lock
func IsRunLocked(runsDir string, runID string) bool {
	runDir := GetRunDir(runsDir, runID)
	lockPath := filepath.Join(runDir, ".lock")

	if _, err := os.Stat(lockPath); os.IsNotExist(err) {
		return false
	}

	lockFile, err := os.Open(lockPath)
	if err != nil {
		return false
	}
	defer func() {
		_ = lockFile.Close()
	}()

	err = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		return err == syscall.EWOULDBLOCK
	}

	_ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN)
	return false
}
