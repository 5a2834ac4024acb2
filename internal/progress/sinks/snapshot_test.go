package sinks

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/progress"
)

func TestSnapshotFoldsEvents(t *testing.T) {
	t.Parallel()

	sink := NewSnapshotSink(0)
	now := time.Now()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{TaskID: "t1", Op: "match", TS: now, Stage: progress.StageJobStart, Percent: progress.Indeterminate},
		{TaskID: "t1", Op: "match", TS: now.Add(time.Second), Stage: progress.StageJobProgress, Processed: 30, Total: 100, Matched: 20, Opportunities: 2, Percent: 30},
		{TaskID: "t1", Op: "match", TS: now.Add(2 * time.Second), Stage: progress.StageJobProgress, Processed: 100, Total: 100, Matched: 83, Opportunities: 9, Percent: 100},
	}))

	snap, ok := sink.Get("t1")
	require.True(t, ok)
	require.Equal(t, TaskRunning, snap.State)
	require.EqualValues(t, 100, snap.Processed)
	require.EqualValues(t, 83, snap.Matched)
	require.EqualValues(t, 9, snap.Opportunities)
	require.Equal(t, 100, snap.Percent)
	require.Nil(t, snap.FinishedAt)

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{TaskID: "t1", Op: "match", TS: now.Add(3 * time.Second), Stage: progress.StageJobDone, Percent: 100, Dur: 3 * time.Second},
	}))
	snap, ok = sink.Get("t1")
	require.True(t, ok)
	require.Equal(t, TaskSuccess, snap.State)
	require.NotNil(t, snap.FinishedAt)
}

func TestSnapshotCountersNeverRegress(t *testing.T) {
	t.Parallel()

	sink := NewSnapshotSink(0)
	now := time.Now()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{TaskID: "t1", Op: "csv_process", TS: now, Stage: progress.StageJobProgress, Processed: 50, Percent: 50, Total: 100},
		{TaskID: "t1", Op: "csv_process", TS: now.Add(time.Second), Stage: progress.StageJobProgress, Processed: 20, Percent: 20, Total: 100},
	}))

	snap, ok := sink.Get("t1")
	require.True(t, ok)
	require.EqualValues(t, 50, snap.Processed)
	require.Equal(t, 50, snap.Percent)
}

func TestSnapshotListFilterAndOrder(t *testing.T) {
	t.Parallel()

	sink := NewSnapshotSink(0)
	now := time.Now()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{TaskID: "old", Op: "crawl", TS: now, Stage: progress.StageJobStart, Percent: progress.Indeterminate},
		{TaskID: "new", Op: "match", TS: now.Add(time.Minute), Stage: progress.StageJobStart, Percent: progress.Indeterminate},
		{TaskID: "done", Op: "match", TS: now.Add(2 * time.Minute), Stage: progress.StageJobDone, Percent: 100},
	}))

	all := sink.List("", 0, 0)
	require.Len(t, all, 3)
	require.Equal(t, "done", all[0].TaskID)
	require.Equal(t, "new", all[1].TaskID)

	running := sink.List(TaskRunning, 0, 0)
	require.Len(t, running, 2)

	paged := sink.List("", 1, 1)
	require.Len(t, paged, 1)
	require.Equal(t, "new", paged[0].TaskID)

	require.Empty(t, sink.List("", 10, 99))
}

func TestSnapshotEvictsOldestFinished(t *testing.T) {
	t.Parallel()

	sink := NewSnapshotSink(2)
	now := time.Now()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{TaskID: "a", Op: "match", TS: now, Stage: progress.StageJobDone, Percent: 100},
		{TaskID: "b", Op: "match", TS: now.Add(time.Second), Stage: progress.StageJobStart, Percent: progress.Indeterminate},
		{TaskID: "c", Op: "match", TS: now.Add(2 * time.Second), Stage: progress.StageJobStart, Percent: progress.Indeterminate},
	}))

	_, ok := sink.Get("a")
	require.False(t, ok, "the finished snapshot should be evicted first")
	for _, id := range []string{"b", "c"} {
		_, ok := sink.Get(id)
		require.True(t, ok, fmt.Sprintf("task %s should survive", id))
	}
}
