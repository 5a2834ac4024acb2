package jobs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDecodeJobsAPIConvention covers the {status, ready, progress, result}
// payload shape.
func TestDecodeJobsAPIConvention(t *testing.T) {
	t.Parallel()

	t.Run("running with progress", func(t *testing.T) {
		t.Parallel()
		raw := []byte(`{
			"job_id": "abc-123",
			"status": "PROGRESS",
			"ready": false,
			"progress": {"processed": 30, "total": 100, "matched": 20, "opportunities": 2}
		}`)
		st, err := Decode("fallback", raw)
		require.NoError(t, err)
		require.Equal(t, "abc-123", st.TaskID)
		require.Equal(t, StateRunning, st.State)
		require.NotNil(t, st.Progress)
		require.EqualValues(t, 30, st.Progress.Processed)
		require.EqualValues(t, 100, st.Progress.Total)
		require.EqualValues(t, 20, st.Progress.Matched)
		require.EqualValues(t, 2, st.Progress.Opportunities)
		require.Equal(t, 30, st.Progress.Percent)
	})

	t.Run("ready success", func(t *testing.T) {
		t.Parallel()
		raw := []byte(`{"status": "SUCCESS", "ready": true, "result": {"opportunities": 9}}`)
		st, err := Decode("task-1", raw)
		require.NoError(t, err)
		require.Equal(t, "task-1", st.TaskID)
		require.Equal(t, StateSucceeded, st.State)
		require.JSONEq(t, `{"opportunities": 9}`, string(st.Result))
	})

	t.Run("ready failure", func(t *testing.T) {
		t.Parallel()
		raw := []byte(`{"status": "FAILURE", "ready": true, "error": "matcher crashed"}`)
		st, err := Decode("task-1", raw)
		require.NoError(t, err)
		require.Equal(t, StateFailed, st.State)
		require.Equal(t, "matcher crashed", st.Error)
	})

	t.Run("ready false is authoritative over terminal status", func(t *testing.T) {
		t.Parallel()
		raw := []byte(`{"status": "SUCCESS", "ready": false}`)
		st, err := Decode("task-1", raw)
		require.NoError(t, err)
		require.Equal(t, StateRunning, st.State)
	})

	t.Run("pending", func(t *testing.T) {
		t.Parallel()
		raw := []byte(`{"status": "PENDING", "ready": false}`)
		st, err := Decode("task-1", raw)
		require.NoError(t, err)
		require.Equal(t, StatePending, st.State)
		require.False(t, st.State.Terminal())
	})
}

// TestDecodeCeleryConvention covers the {state, meta, result} payload shape.
func TestDecodeCeleryConvention(t *testing.T) {
	t.Parallel()

	t.Run("progress with meta", func(t *testing.T) {
		t.Parallel()
		raw := []byte(`{"state": "PROGRESS", "meta": {"processed": 50, "failed": 3, "total": 200}}`)
		st, err := Decode("task-2", raw)
		require.NoError(t, err)
		require.Equal(t, StateRunning, st.State)
		require.NotNil(t, st.Progress)
		require.EqualValues(t, 50, st.Progress.Processed)
		require.EqualValues(t, 3, st.Progress.Failed)
		require.Equal(t, 25, st.Progress.Percent)
	})

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		raw := []byte(`{"state": "SUCCESS", "result": {"processed": 200}}`)
		st, err := Decode("task-2", raw)
		require.NoError(t, err)
		require.Equal(t, StateSucceeded, st.State)
		require.True(t, st.State.Terminal())
	})

	t.Run("failure fills a default error", func(t *testing.T) {
		t.Parallel()
		raw := []byte(`{"state": "FAILURE"}`)
		st, err := Decode("task-2", raw)
		require.NoError(t, err)
		require.Equal(t, StateFailed, st.State)
		require.NotEmpty(t, st.Error)
	})

	t.Run("revoked maps to failed", func(t *testing.T) {
		t.Parallel()
		st, err := Decode("task-2", []byte(`{"state": "REVOKED"}`))
		require.NoError(t, err)
		require.Equal(t, StateFailed, st.State)
	})

	t.Run("unknown state keeps polling", func(t *testing.T) {
		t.Parallel()
		st, err := Decode("task-2", []byte(`{"state": "WAITING_FOR_GPU"}`))
		require.NoError(t, err)
		require.Equal(t, StateRunning, st.State)
	})
}

// TestDecodeConventionsAgree feeds the same conceptual status through both
// wire shapes and requires identical canonical output.
func TestDecodeConventionsAgree(t *testing.T) {
	t.Parallel()

	jobsAPI := []byte(`{"status": "PROGRESS", "ready": false, "progress": {"processed": 10, "total": 40}}`)
	celery := []byte(`{"state": "PROGRESS", "meta": {"processed": 10, "total": 40}}`)

	a, err := Decode("same", jobsAPI)
	require.NoError(t, err)
	b, err := Decode("same", celery)
	require.NoError(t, err)

	require.Equal(t, a.State, b.State)
	require.Equal(t, *a.Progress, *b.Progress)
}

func TestDecodeCrawlCounters(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"state": "PROGRESS", "meta": {"crawled": 12, "total_urls": 48}}`)
	st, err := Decode("crawl-1", raw)
	require.NoError(t, err)
	require.EqualValues(t, 12, st.Progress.Processed)
	require.EqualValues(t, 48, st.Progress.Total)
	require.Equal(t, 25, st.Progress.Percent)
}

func TestDecodeRejectsUnmarkedPayload(t *testing.T) {
	t.Parallel()

	_, err := Decode("task-3", []byte(`{"foo": "bar"}`))
	require.Error(t, err)

	_, err = Decode("task-3", []byte(`not json`))
	require.Error(t, err)
}
