// Package progress defines the event stream emitted while polled backend
// tasks run, and the hub that fans those events out to sinks.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the lifecycle milestone an Event represents.
type Stage string

// Supported task stages.
const (
	StageJobStart    Stage = "JOB_START"
	StageJobProgress Stage = "JOB_PROGRESS"
	StageJobDone     Stage = "JOB_DONE"
	StageJobError    Stage = "JOB_ERROR"
)

// Indeterminate marks events whose task never supplied a total, so views
// should render an animated bar instead of a percentage.
const Indeterminate = -1

// Event captures a single observed milestone of an asynchronous backend task.
// Counter fields mirror the partial-progress payload the backend attaches to
// running tasks; they are zero when the payload is absent.
type Event struct {
	// TaskID is the opaque backend task identifier being polled.
	TaskID string
	// Op labels the operation kind (crawl, csv_process, match, ...).
	Op string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage
	// Processed / FailedItems / Total are item counters from the task meta.
	Processed   int64
	FailedItems int64
	Total       int64
	// Matched and Opportunities are reported by matching tasks only.
	Matched       int64
	Opportunities int64
	// Percent is the rendered completion percentage, already clamped to be
	// non-decreasing per task, or Indeterminate.
	Percent int
	// Dur is the elapsed wall time since polling began, set on terminal events.
	Dur time.Duration
	// Note carries low-volume context such as the backend error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TaskID == "" {
		return errors.New("task id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageJobStart, StageJobProgress, StageJobDone, StageJobError:
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Percent > 100 || e.Percent < Indeterminate {
		return fmt.Errorf("percent out of range: %d", e.Percent)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// Terminal reports whether the event ends the task's event stream.
func (e Event) Terminal() bool {
	return e.Stage == StageJobDone || e.Stage == StageJobError
}
