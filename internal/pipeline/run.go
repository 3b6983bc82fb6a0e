package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/trellishq/trellis/internal/models"
	"github.com/trellishq/trellis/internal/services"
)

// CreateRun initializes a new pipeline run
// Returns the created run with generated UUID and persisted initial state
func CreateRun(source string, config models.RunConfig) (*models.PipelineRun, error) {
	run := &models.PipelineRun{
		RunID:     uuid.New().String(),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Source:    source,
		Status:    models.RunStatusPending,
		Config:    config,
	}

	if err := run.Validate(); err != nil {
		return nil, fmt.Errorf("failed to create valid run: %w", err)
	}

	if err := services.SaveRunState(config.RunsDir, run); err != nil {
		return nil, fmt.Errorf("failed to save initial run state: %w", err)
	}

	return run, nil
}

// LoadRun loads an existing run from disk
func LoadRun(runsDir string, runID string) (*models.PipelineRun, error) {
	return services.LoadRunState(runsDir, runID)
}

// UpdateRun updates run state on disk
// Uses pure functions to create new run instance before saving
func UpdateRun(runsDir string, run *models.PipelineRun) error {
	run.UpdatedAt = time.Now()
	return services.SaveRunState(runsDir, run)
}

// StartRun transitions a run to in_progress. Resuming a failed run is the
// same transition; completed runs cannot restart.
func StartRun(run *models.PipelineRun) (*models.PipelineRun, error) {
	if !run.Status.CanTransitionTo(models.RunStatusInProgress) {
		return nil, fmt.Errorf("run %s cannot start from status %q", run.RunID, run.Status)
	}
	updated := models.UpdateRunStatus(*run, models.RunStatusInProgress)
	return &updated, nil
}

// CompleteRun marks a run as completed with its final summary
func CompleteRun(run *models.PipelineRun, summary models.RunSummary) *models.PipelineRun {
	updated := models.UpdateRunSummary(*run, summary)
	updated = models.UpdateRunStatus(updated, models.RunStatusCompleted)
	updated.ErrorMessage = ""
	return &updated
}

// FailRun marks a run as failed with error message
func FailRun(run *models.PipelineRun, errorMsg string) *models.PipelineRun {
	updated := models.AddError(*run, errorMsg)
	return &updated
}
