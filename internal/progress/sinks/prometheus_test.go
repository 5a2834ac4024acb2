package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/progress"
)

func TestPrometheusSinkTaskLifecycle(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(registry)
	require.NoError(t, err)

	now := time.Now()
	batch := []progress.Event{
		{TaskID: "t1", Op: "match", TS: now, Stage: progress.StageJobStart, Percent: progress.Indeterminate},
		{TaskID: "t1", Op: "match", TS: now, Stage: progress.StageJobProgress, Processed: 30, FailedItems: 2, Total: 100, Percent: 30},
		{TaskID: "t1", Op: "match", TS: now, Stage: progress.StageJobProgress, Processed: 100, FailedItems: 2, Total: 100, Percent: 100},
		{TaskID: "t1", Op: "match", TS: now, Stage: progress.StageJobDone, Processed: 100, FailedItems: 2, Percent: 100, Dur: 12 * time.Second},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, float64(1), testutil.ToFloat64(sink.tasksStarted.WithLabelValues("match")))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.tasksCompleted.WithLabelValues("match", "success")))
	require.Equal(t, float64(0), testutil.ToFloat64(sink.tasksRunning))
	// Cumulative payloads count once: 30 then +70, not 30+100.
	require.Equal(t, float64(100), testutil.ToFloat64(sink.itemsProcessed.WithLabelValues("match")))
	require.Equal(t, float64(2), testutil.ToFloat64(sink.itemsFailed.WithLabelValues("match")))
}

func TestPrometheusSinkRunningGauge(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(registry)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{TaskID: "a", Op: "crawl", TS: now, Stage: progress.StageJobStart, Percent: progress.Indeterminate},
		{TaskID: "b", Op: "match", TS: now, Stage: progress.StageJobStart, Percent: progress.Indeterminate},
	}))
	require.Equal(t, float64(2), testutil.ToFloat64(sink.tasksRunning))

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{TaskID: "a", Op: "crawl", TS: now, Stage: progress.StageJobError, Percent: progress.Indeterminate, Note: "boom"},
	}))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.tasksRunning))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.tasksCompleted.WithLabelValues("crawl", "error")))

	// Duplicate start for a known task must not double the gauge.
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{TaskID: "b", Op: "match", TS: now, Stage: progress.StageJobStart, Percent: progress.Indeterminate},
	}))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.tasksRunning))
}
