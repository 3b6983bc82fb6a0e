//go:build windows

package services

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"unsafe"

	"github.com/trellishq/trellis/internal/lib"
)

var (
	kernel32         = syscall.NewLazyDLL("kernel32.dll")
	procLockFileEx   = kernel32.NewProc("LockFileEx")
	procUnlockFileEx = kernel32.NewProc("UnlockFileEx")
)

const (
	LOCKFILE_FAIL_IMMEDIATELY = 0x00000001
	LOCKFILE_EXCLUSIVE_LOCK   = 0x00000002
	ERROR_LOCK_VIOLATION      = syscall.Errno(33) // File is locked by another process
)

// AcquireRunLock attempts to acquire an exclusive lock for a run (Windows implementation)
// Returns a RunLock if successful, error if lock is already held by another process
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

	handle := syscall.Handle(lockFile.Fd())
	overlapped := syscall.Overlapped{}

	// LockFileEx with FAIL_IMMEDIATELY flag for non-blocking behavior
	r1, _, err := procLockFileEx.Call(
		uintptr(handle),
		uintptr(LOCKFILE_EXCLUSIVE_LOCK|LOCKFILE_FAIL_IMMEDIATELY),
		0,
		uintptr(1),
		0,
		uintptr(unsafe.Pointer(&overlapped)),
	)

	if r1 == 0 {
		_ = lockFile.Close()
		if err == ERROR_LOCK_VIOLATION {
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

// Release releases the run lock (Windows implementation)
// Should be called when run operations are complete
func (rl *RunLock) Release() error {
	if rl.lockFile == nil {
		return nil
	}

	handle := syscall.Handle(rl.lockFile.Fd())
	overlapped := syscall.Overlapped{}

	_, _, err := procUnlockFileEx.Call(
		uintptr(handle),
		0,
		uintptr(1),
		0,
		uintptr(unsafe.Pointer(&overlapped)),
	)

	if err != syscall.Errno(0) {
		rl.logger.Warn("Failed to release lock", "run_id", rl.runID, "error", err)
	}

	if err := rl.lockFile.Close(); err != nil {
		rl.logger.Warn("Failed to close lock file", "run_id", rl.runID, "error", err)
		return err
	}

	rl.logger.Debug("Released run lock", "run_id", rl.runID, "pid", os.Getpid())
	rl.lockFile = nil

	return nil
}

// IsRunLocked checks if a run is currently locked by any process (Windows implementation)
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

	handle := syscall.Handle(lockFile.Fd())
	overlapped := syscall.Overlapped{}

	r1, _, err := procLockFileEx.Call(
		uintptr(handle),
		uintptr(LOCKFILE_EXCLUSIVE_LOCK|LOCKFILE_FAIL_IMMEDIATELY),
		0,
		uintptr(1),
		0,
		uintptr(unsafe.Pointer(&overlapped)),
	)

	if r1 == 0 {
		if err == ERROR_LOCK_VIOLATION {
			return true
		}
		return false
	}

	procUnlockFileEx.Call(
		uintptr(handle),
		0,
		uintptr(1),
		0,
		uintptr(unsafe.Pointer(&overlapped)),
	)
	return false
}
