package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/api"
	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/cache"
	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/config"
	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/jobs"
	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/notify"
)

// installTestApp replaces the application factory with one wired to the given
// backend URL, with millisecond polling so tests finish fast.
func installTestApp(t *testing.T, baseURL string, notifier notify.Notifier) {
	t.Helper()
	prev := newAppContext
	t.Cleanup(func() { newAppContext = prev })

	newAppContext = func(context.Context) (*appContext, error) {
		// Poll seconds stay zero so every operation falls through to the
		// poller's millisecond default interval below.
		cfg := config.Config{
			API: config.APIConfig{BaseURL: baseURL, TimeoutSeconds: 2},
		}
		responseCache, err := cache.New(16, time.Minute)
		if err != nil {
			return nil, err
		}
		client := api.New(baseURL, api.WithTimeout(2*time.Second))
		poller := jobs.NewPoller(jobs.Config{
			Interval: 5 * time.Millisecond,
			Backoff: jobs.BackoffConfig{
				Initial: time.Millisecond, Max: 5 * time.Millisecond,
				Multiplier: 2, MaxElapsed: 100 * time.Millisecond,
			},
		}, nil, responseCache, notifier, zap.NewNop())
		return &appContext{
			cfg:      cfg,
			logger:   zap.NewNop(),
			client:   client,
			cache:    responseCache,
			notifier: notifier,
			poller:   poller,
		}, nil
	}
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

type recordingNotifier struct {
	mu   sync.Mutex
	succ []string
	errs []string
}

func (r *recordingNotifier) Success(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.succ = append(r.succ, msg)
}

func (r *recordingNotifier) Error(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, msg)
}

func (r *recordingNotifier) Info(string) {}

func (r *recordingNotifier) successes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.succ...)
}

// TestMatchRunCommand drives `llmo match run` against a scripted backend:
// start, two progress polls, then a terminal success carrying the
// opportunity count used in the final notification.
func TestMatchRunCommand(t *testing.T) {
	projectID := uuid.New()
	var mu sync.Mutex
	polls := 0

	r := chi.NewRouter()
	r.Post("/api/projects/{id}/match", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"task_id": "match-1", "status": "PENDING"})
	})
	r.Get("/api/jobs/{task_id}", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		polls++
		n := polls
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		var payload map[string]any
		switch n {
		case 1:
			payload = map[string]any{
				"job_id": "match-1", "status": "PROGRESS", "ready": false,
				"progress": map[string]int{"processed": 30, "total": 100, "matched": 20, "opportunities": 2},
			}
		case 2:
			payload = map[string]any{
				"job_id": "match-1", "status": "PROGRESS", "ready": false,
				"progress": map[string]int{"processed": 100, "total": 100, "matched": 83, "opportunities": 9},
			}
		default:
			payload = map[string]any{
				"job_id": "match-1", "status": "SUCCESS", "ready": true,
				"result": map[string]int{"opportunities": 9},
			}
		}
		_ = json.NewEncoder(w).Encode(payload)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	notifier := &recordingNotifier{}
	installTestApp(t, srv.URL, notifier)

	_, err := runCommand(t, "match", "run", "--project", projectID.String())
	require.NoError(t, err)
	require.Equal(t, []string{"Found 9 content opportunities"}, notifier.successes())

	mu.Lock()
	require.Equal(t, 3, polls)
	mu.Unlock()
}

// TestJobsStatusCommand covers the one-shot status fetch.
func TestJobsStatusCommand(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/jobs/{task_id}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"job_id": "t-1", "status": "PROGRESS", "ready": false,
			"progress": map[string]int{"processed": 12, "total": 48},
		})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	installTestApp(t, srv.URL, &recordingNotifier{})

	out, err := runCommand(t, "jobs", "status", "t-1")
	require.NoError(t, err)
	require.Contains(t, out, "state: running")
	require.Contains(t, out, "12/48 processed")
	require.Contains(t, out, "(25%)")
}

// TestProjectsListUsesCache asserts the list view reads through the cache on
// a repeated invocation within one process.
func TestProjectsListUsesCache(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	r := chi.NewRouter()
	r.Get("/api/projects/", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"projects": []map[string]any{
				{"id": uuid.NewString(), "name": "docs",
					"target_domains": []string{"docs.example.com"},
					"crawl_config":   map[string]any{},
					"created_at":     "2026-08-01T10:00:00Z",
					"updated_at":     "2026-08-01T10:00:00Z"},
			},
			"total": 1, "page": 1, "page_size": 20,
		})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	notifier := &recordingNotifier{}
	prev := newAppContext
	t.Cleanup(func() { newAppContext = prev })

	// One shared app across both invocations so the cache survives.
	installTestApp(t, srv.URL, notifier)
	shared, err := newAppContext(context.Background())
	require.NoError(t, err)
	newAppContext = func(context.Context) (*appContext, error) { return shared, nil }

	out, err := runCommand(t, "projects", "list")
	require.NoError(t, err)
	require.Contains(t, out, "docs.example.com")

	_, err = runCommand(t, "projects", "list")
	require.NoError(t, err)

	mu.Lock()
	require.Equal(t, 1, hits)
	mu.Unlock()
}

// TestPromptsReclassifyAllCommand drives `llmo prompts reclassify --all`
// against a backend that answers inline. No jobs route is registered, so any
// poll attempt would fail the command.
func TestPromptsReclassifyAllCommand(t *testing.T) {
	projectID := uuid.New()
	r := chi.NewRouter()
	r.Post("/api/prompts/reclassify-all", func(w http.ResponseWriter, req *http.Request) {
		require.Equal(t, projectID.String(), req.URL.Query().Get("project_id"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message":       "Reclassified all prompts",
			"updated_count": 37,
		})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	notifier := &recordingNotifier{}
	installTestApp(t, srv.URL, notifier)

	_, err := runCommand(t, "prompts", "reclassify", "--all", "--project", projectID.String())
	require.NoError(t, err)
	require.Equal(t, []string{"Reclassified 37 prompts"}, notifier.successes())
}

// TestPagesOrphansSuggestCommand drives `llmo pages orphans suggest` against
// a backend that generates the suggestions inline. No jobs route is
// registered, so the command must complete without polling.
func TestPagesOrphansSuggestCommand(t *testing.T) {
	projectID := uuid.New()
	pageID := uuid.New()
	r := chi.NewRouter()
	r.Post("/api/pages/orphan-pages/{id}/generate-suggestions", func(w http.ResponseWriter, req *http.Request) {
		require.Equal(t, pageID.String(), chi.URLParam(req, "id"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"page_id": pageID.String(),
			"url":     "https://docs.example.com/pricing",
			"title":   "Pricing",
			"suggestion": map[string]any{
				"suggested_prompts": []string{"how much does example crm cost"},
			},
		})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	notifier := &recordingNotifier{}
	installTestApp(t, srv.URL, notifier)

	out, err := runCommand(t, "pages", "orphans", "suggest", pageID.String(),
		"--project", projectID.String())
	require.NoError(t, err)
	require.Equal(t, []string{"Generated prompt suggestions for https://docs.example.com/pricing"},
		notifier.successes())
	require.Contains(t, out, "suggested_prompts")
}

// TestUseCommandRejectsUnknownProject verifies the selection is validated
// against the backend before being persisted.
func TestUseCommandRejectsUnknownProject(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/projects/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Project not found"})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	installTestApp(t, srv.URL, &recordingNotifier{})

	_, err := runCommand(t, "use", uuid.NewString())
	require.ErrorIs(t, err, api.ErrNotFound)
}
