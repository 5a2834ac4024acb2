package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/progress"
)

// PrometheusSink exports task progress metrics. It owns all collectors for
// tasks started/completed/running and per-operation item counters.
type PrometheusSink struct {
	tasksStarted   *prometheus.CounterVec
	tasksCompleted *prometheus.CounterVec
	tasksRunning   prometheus.Gauge
	taskRuntime    *prometheus.HistogramVec
	itemsProcessed *prometheus.CounterVec
	itemsFailed    *prometheus.CounterVec

	tracker *taskTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		tasksStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llmo_tasks_started_total",
			Help: "Total backend tasks started, partitioned by operation.",
		}, []string{"op"}),
		tasksCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llmo_tasks_completed_total",
			Help: "Total backend tasks completed, partitioned by operation and result.",
		}, []string{"op", "result"}),
		tasksRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "llmo_tasks_running",
			Help: "Current number of tasks being polled.",
		}),
		taskRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "llmo_task_runtime_seconds",
			Help:    "Wall time per completed task.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"op", "result"}),
		itemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llmo_task_items_processed_total",
			Help: "Items the backend reported processed, partitioned by operation.",
		}, []string{"op"}),
		itemsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llmo_task_items_failed_total",
			Help: "Items the backend reported failed, partitioned by operation.",
		}, []string{"op"}),
		tracker: newTaskTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.tasksStarted,
		s.tasksCompleted,
		s.tasksRunning,
		s.taskRuntime,
		s.itemsProcessed,
		s.itemsFailed,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the provided batch. It is safe for
// concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageJobStart:
		s.tasksStarted.WithLabelValues(evt.Op).Inc()
		if s.tracker.start(evt.TaskID) {
			s.tasksRunning.Inc()
		}
	case progress.StageJobProgress:
		s.observeItems(evt)
	case progress.StageJobDone:
		s.complete(evt, "success")
	case progress.StageJobError:
		s.complete(evt, "error")
	}
}

func (s *PrometheusSink) complete(evt progress.Event, result string) {
	s.tasksCompleted.WithLabelValues(evt.Op, result).Inc()
	if evt.Dur > 0 {
		s.taskRuntime.WithLabelValues(evt.Op, result).Observe(evt.Dur.Seconds())
	}
	s.observeItems(evt)
	if s.tracker.complete(evt.TaskID) {
		s.tasksRunning.Dec()
	}
}

// observeItems records only the delta above the last seen counters, so
// cumulative backend payloads don't inflate the totals.
func (s *PrometheusSink) observeItems(evt progress.Event) {
	dp, df := s.tracker.delta(evt.TaskID, evt.Processed, evt.FailedItems)
	if dp > 0 {
		s.itemsProcessed.WithLabelValues(evt.Op).Add(float64(dp))
	}
	if df > 0 {
		s.itemsFailed.WithLabelValues(evt.Op).Add(float64(df))
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type taskCounters struct {
	processed int64
	failed    int64
}

type taskTracker struct {
	mu      sync.Mutex
	running map[string]taskCounters
}

func newTaskTracker() *taskTracker {
	return &taskTracker{running: make(map[string]taskCounters)}
}

func (t *taskTracker) start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = taskCounters{}
	return true
}

func (t *taskTracker) delta(id string, processed, failed int64) (int64, int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.running[id]
	dp := processed - prev.processed
	df := failed - prev.failed
	if dp < 0 {
		dp = 0
	}
	if df < 0 {
		df = 0
	}
	prev.processed += dp
	prev.failed += df
	t.running[id] = prev
	return dp, df
}

func (t *taskTracker) complete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
