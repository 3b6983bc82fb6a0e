package models

import "time"

// RunStatus is the lifecycle state of a pipeline run
type RunStatus string

const (
	RunStatusPending    RunStatus = "pending"
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

// IsValidRunStatus reports whether s is a known run status
func IsValidRunStatus(s RunStatus) bool {
	switch s {
	case RunStatusPending, RunStatusInProgress, RunStatusCompleted, RunStatusFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle permits moving from s to
// target. Completed is terminal; failed runs may be resumed.
func (s RunStatus) CanTransitionTo(target RunStatus) bool {
	switch s {
	case RunStatusPending:
		return target == RunStatusInProgress
	case RunStatusInProgress:
		return target == RunStatusCompleted || target == RunStatusFailed
	case RunStatusFailed:
		return target == RunStatusInProgress
	default:
		return false
	}
}

// PipelineRun is the persisted state of one pipeline run
type PipelineRun struct {
	RunID        string     `json:"run_id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Source       string     `json:"source"` // Path to the tabular source file
	Status       RunStatus  `json:"status"`
	Config       RunConfig  `json:"config"`
	Summary      RunSummary `json:"summary"`
	ErrorMessage string     `json:"error_message,omitempty"`
}
