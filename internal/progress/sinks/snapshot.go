package sinks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/progress"
)

// TaskState is the coarse lifecycle state kept per snapshot.
type TaskState string

// Snapshot states.
const (
	TaskRunning TaskState = "running"
	TaskSuccess TaskState = "success"
	TaskError   TaskState = "error"
)

// Snapshot is the latest known view of one polled task, served by the
// monitor endpoints.
type Snapshot struct {
	TaskID        string     `json:"task_id"`
	Op            string     `json:"op"`
	State         TaskState  `json:"state"`
	Processed     int64      `json:"processed"`
	FailedItems   int64      `json:"failed_items"`
	Total         int64      `json:"total"`
	Matched       int64      `json:"matched,omitempty"`
	Opportunities int64      `json:"opportunities,omitempty"`
	Percent       int        `json:"percent"`
	StartedAt     time.Time  `json:"started_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	Note          string     `json:"note,omitempty"`
}

// SnapshotSink folds the event stream into per-task snapshots held in memory.
// Nothing is persisted; the monitor is a window onto the current process only.
type SnapshotSink struct {
	mu    sync.RWMutex
	byID  map[string]*Snapshot
	limit int
}

const defaultSnapshotLimit = 1024

// NewSnapshotSink constructs an empty sink. At most limit tasks are retained;
// the oldest finished snapshots are evicted first.
func NewSnapshotSink(limit int) *SnapshotSink {
	if limit <= 0 {
		limit = defaultSnapshotLimit
	}
	return &SnapshotSink{
		byID:  make(map[string]*Snapshot),
		limit: limit,
	}
}

// Consume applies each event to its task snapshot.
func (s *SnapshotSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		s.apply(evt)
	}
	return nil
}

func (s *SnapshotSink) apply(evt progress.Event) {
	snap, ok := s.byID[evt.TaskID]
	if !ok {
		if len(s.byID) >= s.limit {
			s.evictOldestFinished()
		}
		snap = &Snapshot{
			TaskID:    evt.TaskID,
			Op:        evt.Op,
			State:     TaskRunning,
			Percent:   progress.Indeterminate,
			StartedAt: evt.TS,
		}
		s.byID[evt.TaskID] = snap
	}
	snap.UpdatedAt = evt.TS
	if evt.Processed > snap.Processed {
		snap.Processed = evt.Processed
	}
	if evt.FailedItems > snap.FailedItems {
		snap.FailedItems = evt.FailedItems
	}
	if evt.Total > 0 {
		snap.Total = evt.Total
	}
	if evt.Matched > snap.Matched {
		snap.Matched = evt.Matched
	}
	if evt.Opportunities > snap.Opportunities {
		snap.Opportunities = evt.Opportunities
	}
	if evt.Percent > snap.Percent {
		snap.Percent = evt.Percent
	}
	if evt.Note != "" {
		snap.Note = evt.Note
	}
	switch evt.Stage {
	case progress.StageJobDone:
		snap.State = TaskSuccess
		ts := evt.TS
		snap.FinishedAt = &ts
	case progress.StageJobError:
		snap.State = TaskError
		ts := evt.TS
		snap.FinishedAt = &ts
	}
}

func (s *SnapshotSink) evictOldestFinished() {
	var oldest *Snapshot
	for _, snap := range s.byID {
		if snap.FinishedAt == nil {
			continue
		}
		if oldest == nil || snap.UpdatedAt.Before(oldest.UpdatedAt) {
			oldest = snap
		}
	}
	if oldest != nil {
		delete(s.byID, oldest.TaskID)
	}
}

// Get returns the snapshot for a task id, if known.
func (s *SnapshotSink) Get(taskID string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.byID[taskID]
	if !ok {
		return Snapshot{}, false
	}
	return *snap, true
}

// List returns snapshots ordered by most recent update, optionally filtered
// by state, with limit/offset paging.
func (s *SnapshotSink) List(state TaskState, limit, offset int) []Snapshot {
	s.mu.RLock()
	out := make([]Snapshot, 0, len(s.byID))
	for _, snap := range s.byID {
		if state != "" && snap.State != state {
			continue
		}
		out = append(out, *snap)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if offset >= len(out) {
		return []Snapshot{}
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// Close implements the Sink interface; it performs no action.
func (s *SnapshotSink) Close(context.Context) error {
	return nil
}
