package models

import "time"

// RunSummary accumulates per-run counters. All counts are monotonically
// increasing over the life of a run.
type RunSummary struct {
	RowsRead         int64 `json:"rows_read"`
	Accepted         int64 `json:"accepted"`
	Rejected         int64 `json:"rejected"`
	Abandoned        int64 `json:"abandoned"`
	Skipped          int64 `json:"skipped"`           // Rows failing row validation
	SchemaViolations int64 `json:"schema_violations"` // Resources dropped for unresolved mandatory fields
}

// Total returns the number of rows that reached a terminal outcome
func (s RunSummary) Total() int64 {
	return s.Accepted + s.Rejected + s.Abandoned + s.Skipped + s.SchemaViolations
}

// PipelineCheckpoint records durable progress through the source. LastRow is
// the highest row for which this row and every row before it reached a
// terminal outcome; resume restarts at LastRow+1.
type PipelineCheckpoint struct {
	LastRow   int64      `json:"last_row"`
	Summary   RunSummary `json:"summary"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// AdvanceCheckpoint returns a checkpoint moved forward to lastRow with the
// given summary. Regressions are ignored so a stale write can never move
// progress backwards.
// Pure function - returns new instance
func AdvanceCheckpoint(cp PipelineCheckpoint, lastRow int64, summary RunSummary) PipelineCheckpoint {
	if lastRow <= cp.LastRow {
		return cp
	}
	cp.LastRow = lastRow
	cp.Summary = summary
	cp.UpdatedAt = time.Now()
	return cp
}
