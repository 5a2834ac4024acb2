// Package config loads runtime configuration from a YAML file, environment
// variables, and flag overrides through Viper. The file lives at
// $HOME/.llmo.yaml unless overridden; every key can also be set via the LLMO_
// environment prefix, e.g. LLMO_API_BASE_URL.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// APIConfig addresses the backend.
type APIConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Timeout returns the request timeout as a duration.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// PollConfig sets the status-poll cadence per operation kind. Crawls move
// slowly and poll rarely; reclassification finishes in seconds and polls fast.
type PollConfig struct {
	DefaultSeconds    int `mapstructure:"default_seconds"`
	CrawlSeconds      int `mapstructure:"crawl_seconds"`
	CSVProcessSeconds int `mapstructure:"csv_process_seconds"`
	MatchSeconds      int `mapstructure:"match_seconds"`
	ReclassifySeconds int `mapstructure:"reclassify_seconds"`
	SuggestSeconds    int `mapstructure:"suggest_seconds"`
}

// Interval returns the poll cadence for an operation kind.
func (p PollConfig) Interval(kind string) time.Duration {
	seconds := p.DefaultSeconds
	switch kind {
	case "crawl":
		seconds = p.CrawlSeconds
	case "csv_process":
		seconds = p.CSVProcessSeconds
	case "match":
		seconds = p.MatchSeconds
	case "reclassify":
		seconds = p.ReclassifySeconds
	case "suggest":
		seconds = p.SuggestSeconds
	}
	if seconds <= 0 {
		seconds = p.DefaultSeconds
	}
	return time.Duration(seconds) * time.Second
}

// BackoffConfig bounds retries of failed status polls.
type BackoffConfig struct {
	InitialMs         int     `mapstructure:"initial_ms"`
	MaxMs             int     `mapstructure:"max_ms"`
	Multiplier        float64 `mapstructure:"multiplier"`
	MaxElapsedSeconds int     `mapstructure:"max_elapsed_seconds"`
}

// MonitorConfig controls the optional local status server.
type MonitorConfig struct {
	Listen string `mapstructure:"listen"`
}

// LoggingConfig selects the logger profile.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// CacheConfig bounds the response cache.
type CacheConfig struct {
	Size       int `mapstructure:"size"`
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

// TTL returns the cache entry lifetime as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// Config is the full runtime configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Poll    PollConfig    `mapstructure:"poll"`
	Backoff BackoffConfig `mapstructure:"backoff"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Logging LoggingConfig `mapstructure:"logging"`
	Cache   CacheConfig   `mapstructure:"cache"`
	// Project is the selected project id, the session default for commands
	// that need one. Set by `llmo use` or the --project flag.
	Project string `mapstructure:"project"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.timeout_seconds", 30)

	v.SetDefault("poll.default_seconds", 3)
	v.SetDefault("poll.crawl_seconds", 10)
	v.SetDefault("poll.csv_process_seconds", 3)
	v.SetDefault("poll.match_seconds", 5)
	v.SetDefault("poll.reclassify_seconds", 1)
	v.SetDefault("poll.suggest_seconds", 2)

	v.SetDefault("backoff.initial_ms", 500)
	v.SetDefault("backoff.max_ms", 30000)
	v.SetDefault("backoff.multiplier", 2.0)
	v.SetDefault("backoff.max_elapsed_seconds", 300)

	v.SetDefault("monitor.listen", "")
	v.SetDefault("logging.development", false)

	v.SetDefault("cache.size", 512)
	v.SetDefault("cache.ttl_seconds", 300)
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".llmo.yaml"
	}
	return filepath.Join(home, ".llmo.yaml")
}

// Load reads configuration from path (DefaultPath when empty), layered with
// LLMO_* environment variables over the built-in defaults. A missing file is
// not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = DefaultPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("LLMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the rest of the program cannot run with.
func (c Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("config: api.base_url must be set")
	}
	if c.API.TimeoutSeconds <= 0 {
		return fmt.Errorf("config: api.timeout_seconds must be positive")
	}
	if c.Poll.DefaultSeconds <= 0 {
		return fmt.Errorf("config: poll.default_seconds must be positive")
	}
	if c.Backoff.InitialMs <= 0 || c.Backoff.MaxMs <= 0 {
		return fmt.Errorf("config: backoff intervals must be positive")
	}
	if c.Backoff.Multiplier <= 1 {
		return fmt.Errorf("config: backoff.multiplier must be greater than 1")
	}
	if c.Backoff.MaxElapsedSeconds <= 0 {
		return fmt.Errorf("config: backoff.max_elapsed_seconds must be positive")
	}
	return nil
}

// SaveProject persists the selected project id into the config file, creating
// the file when it does not exist. Other keys are preserved.
func SaveProject(path, projectID string) error {
	if path == "" {
		path = DefaultPath()
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}
	v.Set("project", projectID)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
