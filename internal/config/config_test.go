package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	require.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	require.Equal(t, 30*time.Second, cfg.API.Timeout())
	require.Equal(t, 10*time.Second, cfg.Poll.Interval("crawl"))
	require.Equal(t, time.Second, cfg.Poll.Interval("reclassify"))
	require.Equal(t, 3*time.Second, cfg.Poll.Interval("unknown-kind"))
	require.Equal(t, 2.0, cfg.Backoff.Multiplier)
	require.Empty(t, cfg.Project)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "llmo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: https://gap.example.com
poll:
  match_seconds: 7
project: 6f1e7e64-54f5-4b3f-9c53-000000000001
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://gap.example.com", cfg.API.BaseURL)
	require.Equal(t, 7*time.Second, cfg.Poll.Interval("match"))
	require.Equal(t, "6f1e7e64-54f5-4b3f-9c53-000000000001", cfg.Project)
	// Unset keys keep their defaults.
	require.Equal(t, 10*time.Second, cfg.Poll.Interval("crawl"))
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LLMO_API_BASE_URL", "http://envhost:9000")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, "http://envhost:9000", cfg.API.BaseURL)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	bad := cfg
	bad.API.BaseURL = ""
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Backoff.Multiplier = 1
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Poll.DefaultSeconds = 0
	require.Error(t, bad.Validate())
}

func TestSaveProjectRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "llmo.yaml")
	require.NoError(t, SaveProject(path, "proj-1"))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "proj-1", cfg.Project)

	// A second save keeps other keys intact.
	require.NoError(t, os.WriteFile(path, []byte("api:\n  base_url: https://kept.example.com\nproject: old\n"), 0o600))
	require.NoError(t, SaveProject(path, "proj-2"))
	cfg, err = Load(path)
	require.NoError(t, err)
	require.Equal(t, "proj-2", cfg.Project)
	require.Equal(t, "https://kept.example.com", cfg.API.BaseURL)
}
