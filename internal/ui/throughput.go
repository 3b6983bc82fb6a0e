package ui

import (
	"fmt"
	"time"
)

// ThroughputTracker tracks row processing rates for the pipeline summary
type ThroughputTracker struct {
	startTime       time.Time
	totalRows       int64
	lastUpdateTime  time.Time
	lastUpdateRows  int64
	instantRowsRate float64
}

// NewThroughputTracker creates a new throughput tracker
func NewThroughputTracker() *ThroughputTracker {
	now := time.Now()
	return &ThroughputTracker{
		startTime:      now,
		lastUpdateTime: now,
	}
}

// Update records progress and recalculates the instantaneous rate
func (t *ThroughputTracker) Update(rows int64) {
	now := time.Now()

	sinceLast := now.Sub(t.lastUpdateTime).Seconds()
	if sinceLast > 0 {
		t.instantRowsRate = float64(rows-t.lastUpdateRows) / sinceLast
	}

	t.totalRows = rows
	t.lastUpdateTime = now
	t.lastUpdateRows = rows
}

// AverageRowsPerSecond returns the overall average rate since start
func (t *ThroughputTracker) AverageRowsPerSecond() float64 {
	elapsed := time.Since(t.startTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(t.totalRows) / elapsed
}

// InstantRowsPerSecond returns the rate since the last update
func (t *ThroughputTracker) InstantRowsPerSecond() float64 {
	return t.instantRowsRate
}

// GetElapsedTime returns time since the tracker was created or reset
func (t *ThroughputTracker) GetElapsedTime() time.Duration {
	return time.Since(t.startTime)
}

// Reset resets the tracker
func (t *ThroughputTracker) Reset() {
	now := time.Now()
	t.startTime = now
	t.totalRows = 0
	t.lastUpdateTime = now
	t.lastUpdateRows = 0
	t.instantRowsRate = 0
}

// Summary returns a formatted summary of throughput metrics
func (t *ThroughputTracker) Summary() string {
	return fmt.Sprintf(
		"%d rows in %s | Avg: %s",
		t.totalRows,
		FormatDuration(t.GetElapsedTime()),
		FormatRowsPerSecond(t.AverageRowsPerSecond()),
	)
}

// FormatRowsPerSecond formats a rows/sec rate as a human-readable string
func FormatRowsPerSecond(rowsPerSec float64) string {
	if rowsPerSec < 0.01 {
		return "< 0.01 rows/sec"
	}
	return fmt.Sprintf("%.2f rows/sec", rowsPerSec)
}

// FormatDuration formats a duration as a compact human-readable string
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) - m*60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) - h*60
	return fmt.Sprintf("%dh%dm", h, m)
}
