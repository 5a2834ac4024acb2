package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/progress"
	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/progress/sinks"
)

func seedSnapshots(t *testing.T) *sinks.SnapshotSink {
	t.Helper()
	sink := sinks.NewSnapshotSink(0)
	now := time.Now()
	batch := []progress.Event{
		{TaskID: "t1", Op: "match", TS: now, Stage: progress.StageJobStart, Percent: progress.Indeterminate},
		{TaskID: "t1", Op: "match", TS: now.Add(time.Second), Stage: progress.StageJobProgress, Processed: 30, Total: 100, Percent: 30},
		{TaskID: "t2", Op: "crawl", TS: now.Add(2 * time.Second), Stage: progress.StageJobStart, Percent: progress.Indeterminate},
		{TaskID: "t2", Op: "crawl", TS: now.Add(3 * time.Second), Stage: progress.StageJobError, Percent: progress.Indeterminate, Note: "fetch failed"},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))
	return sink
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := NewServer(seedSnapshots(t), nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestListJobs(t *testing.T) {
	t.Parallel()

	srv := NewServer(seedSnapshots(t), nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Jobs []sinks.Snapshot `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Jobs, 2)
	// Most recently updated first.
	require.Equal(t, "t2", body.Jobs[0].TaskID)
}

func TestListJobsFilterAndPaging(t *testing.T) {
	t.Parallel()

	srv := NewServer(seedSnapshots(t), nil, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs?state=running", nil))
	var body struct {
		Jobs []sinks.Snapshot `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Jobs, 1)
	require.Equal(t, "t1", body.Jobs[0].TaskID)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs?limit=0", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs?state=sideways", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJob(t *testing.T) {
	t.Parallel()

	srv := NewServer(seedSnapshots(t), nil, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/t1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Job sinks.Snapshot `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "match", body.Job.Op)
	require.EqualValues(t, 30, body.Job.Processed)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/missing", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsServedFromRegistry(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "llmo_test_gauge"})
	registry.MustRegister(gauge)
	gauge.Set(3)

	srv := NewServer(seedSnapshots(t), registry, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "llmo_test_gauge 3")
}
