package models

import "time"

// UpdateRunStatus creates a new PipelineRun with updated status
// Pure function - returns new instance, does not mutate original
func UpdateRunStatus(run PipelineRun, status RunStatus) PipelineRun {
	run.Status = status
	run.UpdatedAt = time.Now()
	return run
}

// AddError creates a new PipelineRun marked failed with an error message
// Pure function - returns new instance
func AddError(run PipelineRun, errorMsg string) PipelineRun {
	run.ErrorMessage = errorMsg
	run.Status = RunStatusFailed
	run.UpdatedAt = time.Now()
	return run
}

// UpdateRunSummary creates a new PipelineRun with updated summary counts
// Pure function - returns new instance
func UpdateRunSummary(run PipelineRun, summary RunSummary) PipelineRun {
	run.Summary = summary
	run.UpdatedAt = time.Now()
	return run
}

// MergeSummary adds the counts of b onto a
// Pure function - returns new instance
func MergeSummary(a, b RunSummary) RunSummary {
	a.RowsRead += b.RowsRead
	a.Accepted += b.Accepted
	a.Rejected += b.Rejected
	a.Abandoned += b.Abandoned
	a.Skipped += b.Skipped
	a.SchemaViolations += b.SchemaViolations
	return a
}
