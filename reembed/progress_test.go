package reembed

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Basic(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "bot", 100, 10)

	tracker.Start(0)
	assert.True(t, tracker.started, "should be started")

	tracker.Increment(25)
	tracker.Increment(25)
	tracker.Increment(50)

	assert.Greater(t, tracker.Elapsed(), time.Duration(0), "elapsed time should be positive")

	output := buf.String()
	assert.Contains(t, output, "[bot] 100/100 records", "should show completion")
	assert.Contains(t, output, "100.0%", "should show 100%")
	assert.Equal(t, 100, tracker.Current())
}

func TestProgressTracker_StartFromCheckpoint(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "bot", 100, 10)

	tracker.Start(40)
	assert.Empty(t, buf.String(), "start does not report")

	tracker.Increment(5)
	assert.Empty(t, buf.String(), "interval counts from the resumed position")

	tracker.Increment(5)
	assert.Contains(t, buf.String(), "50/100")
}

func TestProgressTracker_Finish(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "bot", 100, 10)

	tracker.Start(0)
	tracker.Increment(75)
	tracker.Finish()

	output := buf.String()
	assert.Contains(t, output, "75/100", "finish reports the real count")
	assert.True(t, strings.HasSuffix(output, "\n"), "finish should print newline")
}

func TestProgressTracker_ZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "bot", 0, 10)

	tracker.Start(0)
	tracker.Finish()

	output := buf.String()
	assert.Contains(t, output, "0/0", "should handle zero total")
	assert.Contains(t, output, "100.0%")
}

func TestProgressTracker_IncrementBeyondTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "bot", 100, 10)

	tracker.Start(0)
	tracker.Increment(150)

	assert.Contains(t, buf.String(), "100/100", "should not exceed total")
}

func TestProgressTracker_Rate(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "bot", 1000, 100)

	tracker.Start(0)
	time.Sleep(20 * time.Millisecond)
	tracker.Increment(100)
	tracker.Finish()

	assert.Contains(t, buf.String(), "records/s", "should show rate")
}

func TestProgressTracker_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "bot", 100, 10)

	tracker.Increment(10)
	tracker.Finish()

	assert.Equal(t, "", buf.String(), "should have no output when not started")
	assert.Zero(t, tracker.Elapsed())
}

func TestProgressTracker_ReportInterval(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "bot", 1000, 100)

	tracker.Start(0)

	tracker.Increment(50)
	assert.Equal(t, "", buf.String(), "should not print under interval")

	tracker.Increment(50)
	assert.NotEmpty(t, buf.String(), "should print at interval")

	buf.Reset()
	tracker.Increment(150)
	assert.NotEmpty(t, buf.String(), "should print beyond interval")
}

func TestProgressTracker_IntervalFloor(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "bot", 3, 0)

	tracker.Start(0)
	tracker.Increment(1)
	assert.Contains(t, buf.String(), "1/3")
}
