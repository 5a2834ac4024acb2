// Package jobs normalizes backend task status payloads into one canonical
// form and implements the polling loop used by every long-running operation.
package jobs

import (
	"encoding/json"
	"fmt"
	"strings"
)

// State is the canonical lifecycle state of a backend task.
type State string

// Canonical states. The backend exposes two wire conventions for the same
// conceptual /jobs/{id} resource; both are adapted into these four values at
// the decode boundary so nothing downstream branches on payload shape.
const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Terminal reports whether no further status changes can occur.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Progress carries the partial-progress payload a running task reports.
// Fields beyond the generic counters are populated only by the tasks that
// emit them (matching reports matched/opportunities, crawls report URLs).
type Progress struct {
	Processed     int64  `json:"processed"`
	Failed        int64  `json:"failed"`
	Total         int64  `json:"total"`
	Matched       int64  `json:"matched"`
	Opportunities int64  `json:"opportunities"`
	Percent       int    `json:"progress_percent"`
	Current       string `json:"current"`

	// Crawl tasks use url-flavored counter names.
	CrawledURLs int64 `json:"crawled"`
	TotalURLs   int64 `json:"total_urls"`
}

// Determinate reports whether a total is known, i.e. a percentage can be
// rendered instead of an indeterminate bar.
func (p Progress) Determinate() bool {
	return p.Total > 0
}

// normalize folds the crawl-flavored counters into the generic ones and
// computes a percentage when the backend did not send one.
func (p *Progress) normalize() {
	if p.Processed == 0 && p.CrawledURLs > 0 {
		p.Processed = p.CrawledURLs
	}
	if p.Total == 0 && p.TotalURLs > 0 {
		p.Total = p.TotalURLs
	}
	if p.Percent == 0 && p.Total > 0 {
		p.Percent = int(p.Processed * 100 / p.Total)
	}
	if p.Percent > 100 {
		p.Percent = 100
	}
}

// Status is the canonical task status.
type Status struct {
	TaskID   string
	State    State
	Progress *Progress
	Result   json.RawMessage
	Error    string
}

// envelope accepts both observed wire shapes of GET /api/jobs/{id}:
//
//	{ "job_id": ..., "status": "PROGRESS", "ready": false, "progress": {...}, "result": ..., "error": ... }
//	{ "state": "PROGRESS", "meta": {...}, "result": ... }
type envelope struct {
	JobID    string          `json:"job_id"`
	Status   string          `json:"status"`
	Ready    *bool           `json:"ready"`
	Progress *Progress       `json:"progress"`
	State    string          `json:"state"`
	Meta     *Progress       `json:"meta"`
	Result   json.RawMessage `json:"result"`
	Error    string          `json:"error"`
}

// Decode adapts a raw status payload into the canonical Status. taskID is
// used when the payload does not echo the job id back.
func Decode(taskID string, data []byte) (Status, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Status{}, fmt.Errorf("decode job status: %w", err)
	}
	st := Status{
		TaskID: taskID,
		Result: env.Result,
		Error:  env.Error,
	}
	if env.JobID != "" {
		st.TaskID = env.JobID
	}

	switch {
	case env.State != "": // Celery-style {state, meta, result}
		st.State = mapWireState(env.State)
		st.Progress = env.Meta
	case env.Ready != nil: // {status, ready, progress, result}
		if *env.Ready {
			if strings.EqualFold(env.Status, "FAILURE") || env.Error != "" {
				st.State = StateFailed
			} else {
				st.State = StateSucceeded
			}
		} else {
			st.State = mapWireState(env.Status)
			if st.State.Terminal() {
				// ready is authoritative for this convention
				st.State = StateRunning
			}
		}
		st.Progress = env.Progress
	case env.Status != "":
		st.State = mapWireState(env.Status)
		st.Progress = env.Progress
	default:
		return Status{}, fmt.Errorf("job status payload has no state marker: %s", data)
	}

	if st.State == StateFailed && st.Error == "" {
		st.Error = "task failed"
	}
	if st.Progress != nil {
		st.Progress.normalize()
	}
	return st, nil
}

// mapWireState translates a Celery state name into the canonical State.
func mapWireState(s string) State {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PENDING", "RECEIVED":
		return StatePending
	case "STARTED", "PROGRESS", "RETRY":
		return StateRunning
	case "SUCCESS":
		return StateSucceeded
	case "FAILURE", "REVOKED":
		return StateFailed
	default:
		// Unknown non-terminal markers keep the poller alive.
		return StateRunning
	}
}
