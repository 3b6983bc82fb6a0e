package ui_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/trellishq/trellis/internal/ui"
)

func TestFormatRowsPerSecond(t *testing.T) {
	assert.Equal(t, "< 0.01 rows/sec", ui.FormatRowsPerSecond(0.001))
	assert.Equal(t, "0.50 rows/sec", ui.FormatRowsPerSecond(0.5))
	assert.Equal(t, "1234.57 rows/sec", ui.FormatRowsPerSecond(1234.567))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", ui.FormatDuration(250*time.Millisecond))
	assert.Equal(t, "2.5s", ui.FormatDuration(2500*time.Millisecond))
	assert.Equal(t, "1m30s", ui.FormatDuration(90*time.Second))
	assert.Equal(t, "2h5m", ui.FormatDuration(2*time.Hour+5*time.Minute))
}

func TestThroughputTracker(t *testing.T) {
	tracker := ui.NewThroughputTracker()

	time.Sleep(10 * time.Millisecond)
	tracker.Update(100)

	assert.Greater(t, tracker.AverageRowsPerSecond(), 0.0)
	assert.Greater(t, tracker.InstantRowsPerSecond(), 0.0)
	assert.Greater(t, tracker.GetElapsedTime(), time.Duration(0))
	assert.Contains(t, tracker.Summary(), "100 rows")
}

func TestThroughputTrackerReset(t *testing.T) {
	tracker := ui.NewThroughputTracker()
	tracker.Update(50)

	tracker.Reset()

	assert.Equal(t, 0.0, tracker.InstantRowsPerSecond())
	assert.Contains(t, tracker.Summary(), "0 rows")
}
