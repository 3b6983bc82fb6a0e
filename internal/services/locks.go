package services

import (
	"fmt"
	"os"
	"time"

	"github.com/trellishq/trellis/internal/lib"
)

// RunLock represents a file lock for a specific run
// Prevents concurrent modification of run state by multiple processes
type RunLock struct {
	runID    string
	lockFile *os.File
	lockPath string
	logger   *lib.Logger
}

// WithRunLock executes a function while holding a run lock
// Automatically acquires the lock, executes the function, and releases the lock
// Returns error if lock cannot be acquired or if the function returns an error
func WithRunLock(runsDir string, runID string, logger *lib.Logger, fn func() error) error {
	lock, err := AcquireRunLock(runsDir, runID, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Error("Failed to release run lock", "error", err)
		}
	}()

	return fn()
}

// writeLockInfo writes debug information to the lock file
func (rl *RunLock) writeLockInfo() error {
	lockInfo := fmt.Sprintf("pid=%d\ntime=%s\n", os.Getpid(), time.Now().Format(time.RFC3339))
	_ = rl.lockFile.Truncate(0)
	_, _ = rl.lockFile.Seek(0, 0)
	_, _ = rl.lockFile.WriteString(lockInfo)
	return rl.lockFile.Sync()
}
