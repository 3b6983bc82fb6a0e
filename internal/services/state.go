package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/trellishq/trellis/internal/lib"
	"github.com/trellishq/trellis/internal/models"
)

const (
	StateFileName      = "state.json"
	CheckpointFileName = "checkpoint.json"
)

// GetRunDir returns the directory path for a specific run
func GetRunDir(runsBaseDir string, runID string) string {
	return filepath.Join(runsBaseDir, runID)
}

// GetStateFilePath returns the full path to a run's state file
func GetStateFilePath(runsBaseDir string, runID string) string {
	return filepath.Join(GetRunDir(runsBaseDir, runID), StateFileName)
}

// GetCheckpointFilePath returns the full path to a run's checkpoint file
func GetCheckpointFilePath(runsBaseDir string, runID string) string {
	return filepath.Join(GetRunDir(runsBaseDir, runID), CheckpointFileName)
}

// LoadRunState reads a run's state from disk
func LoadRunState(runsBaseDir string, runID string) (*models.PipelineRun, error) {
	statePath := GetStateFilePath(runsBaseDir, runID)

	data, err := os.ReadFile(statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, lib.ErrRunNotFound(runID)
		}
		return nil, fmt.Errorf("failed to read run state: %w", err)
	}

	var run models.PipelineRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, lib.ErrCorruptedRunState(runID, err)
	}

	if err := run.Validate(); err != nil {
		return nil, lib.ErrCorruptedRunState(runID, err)
	}

	return &run, nil
}

// SaveRunState writes a run's state to disk with atomic write.
// Uses temp file + rename so a crash mid-write never corrupts state.json.
func SaveRunState(runsBaseDir string, run *models.PipelineRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("cannot save invalid run: %w", err)
	}

	runDir := GetRunDir(runsBaseDir, run.RunID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}

	return atomicWrite(runDir, GetStateFilePath(runsBaseDir, run.RunID), ".state.tmp", data)
}

// LoadCheckpoint reads a run's checkpoint. A missing checkpoint file means
// the run never completed a batch; callers get a zero checkpoint, not an
// error.
func LoadCheckpoint(runsBaseDir string, runID string) (models.PipelineCheckpoint, error) {
	var cp models.PipelineCheckpoint

	data, err := os.ReadFile(GetCheckpointFilePath(runsBaseDir, runID))
	if err != nil {
		if os.IsNotExist(err) {
			return cp, nil
		}
		return cp, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	if err := json.Unmarshal(data, &cp); err != nil {
		return models.PipelineCheckpoint{}, lib.ErrCorruptedRunState(runID, err)
	}
	if cp.LastRow < 0 {
		return models.PipelineCheckpoint{}, lib.ErrCorruptedRunState(runID, fmt.Errorf("negative last_row %d", cp.LastRow))
	}

	return cp, nil
}

// SaveCheckpoint writes a run's checkpoint to disk with atomic write
func SaveCheckpoint(runsBaseDir string, runID string, cp models.PipelineCheckpoint) error {
	runDir := GetRunDir(runsBaseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	return atomicWrite(runDir, GetCheckpointFilePath(runsBaseDir, runID), ".checkpoint.tmp", data)
}

// atomicWrite writes data to a uniquely named temp file in dir and renames it
// over the destination
func atomicWrite(dir, dest, prefix string, data []byte) error {
	tempFile := filepath.Join(dir, fmt.Sprintf("%s.%s", prefix, uuid.New().String()))
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempFile, dest); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to save %s: %w", filepath.Base(dest), err)
	}

	return nil
}

// ListAllRuns scans the runs directory and returns all run IDs
func ListAllRuns(runsBaseDir string) ([]string, error) {
	entries, err := os.ReadDir(runsBaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	var runIDs []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		runID := entry.Name()

		// Only directories carrying a state file count as runs.
		if _, err := os.Stat(GetStateFilePath(runsBaseDir, runID)); err == nil {
			runIDs = append(runIDs, runID)
		}
	}

	return runIDs, nil
}

// DeleteRun removes a run's directory and all its data
// WARNING: This is destructive and cannot be undone
func DeleteRun(runsBaseDir string, runID string) error {
	runDir := GetRunDir(runsBaseDir, runID)

	if _, err := os.Stat(runDir); os.IsNotExist(err) {
		return lib.ErrRunNotFound(runID)
	}

	if err := os.RemoveAll(runDir); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	return nil
}
