// Package cmd implements the llmo command tree. The root command builds the
// shared application context (config, logger, API client, progress hub,
// cache, notifier, poller) and injects it into the command context; every
// subcommand pulls it back out with fromContext.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/api"
	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/cache"
	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/config"
	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/jobs"
	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/logging"
	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/monitor"
	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/notify"
	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/progress"
	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/progress/sinks"
)

var (
	cfgFile     string
	projectFlag string
	listenFlag  string
	verboseFlag bool
	noBarFlag   bool
)

type appKeyType struct{}

var appKey appKeyType

// appContext holds everything a subcommand needs.
type appContext struct {
	cfg       config.Config
	cfgPath   string
	logger    *zap.Logger
	client    *api.Client
	hub       *progress.Hub
	cache     *cache.Cache
	notifier  notify.Notifier
	poller    *jobs.Poller
	snapshots *sinks.SnapshotSink
	monitor   *monitor.Server
}

// fromContext extracts the appContext injected by the root command.
func fromContext(ctx context.Context) (*appContext, error) {
	app, ok := ctx.Value(appKey).(*appContext)
	if !ok || app == nil {
		return nil, errors.New("application context not initialized")
	}
	return app, nil
}

// projectID resolves the session's project: the --project flag wins, then the
// configured default. Commands that need a project fail fast without one.
func (a *appContext) projectID() (uuid.UUID, error) {
	raw := projectFlag
	if raw == "" {
		raw = a.cfg.Project
	}
	if raw == "" {
		return uuid.Nil, errors.New("no project selected; pass --project or run `llmo use <project-id>`")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid project id %q: %w", raw, err)
	}
	return id, nil
}

// operation builds a poll operation for kind against the client, with the
// configured cadence and the cache keys to invalidate on success.
func (a *appContext) operation(kind string, start jobs.StartFunc, invalidates ...string) jobs.Operation {
	return jobs.Operation{
		Kind:        kind,
		Start:       start,
		Status:      a.client.JobStatus,
		Interval:    a.cfg.Poll.Interval(kind),
		Invalidates: invalidates,
	}
}

func (a *appContext) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.monitor != nil {
		if err := a.monitor.Shutdown(ctx); err != nil {
			a.logger.Warn("monitor shutdown failed", zap.Error(err))
		}
	}
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// newAppContext is a variable so tests can inject a fake application.
var newAppContext = buildAppContext

func buildAppContext(_ context.Context) (*appContext, error) {
	cfgPath := cfgFile
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if listenFlag != "" {
		cfg.Monitor.Listen = listenFlag
	}

	logger, err := logging.New(cfg.Logging.Development, verboseFlag)
	if err != nil {
		return nil, err
	}

	client := api.New(cfg.API.BaseURL,
		api.WithTimeout(cfg.API.Timeout()),
		api.WithLogger(logger.Named("api")))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		return nil, err
	}
	snapshots := sinks.NewSnapshotSink(0)

	sinkList := []progress.Sink{
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
		snapshots,
	}
	if !noBarFlag {
		sinkList = append(sinkList, sinks.NewBarSink(os.Stderr))
	}
	hub := progress.NewHub(progress.Config{Logger: logger.Named("hub")}, sinkList...)

	responseCache, err := cache.New(cfg.Cache.Size, cfg.Cache.TTL())
	if err != nil {
		return nil, err
	}

	notifier := notify.Multi{
		notify.NewTerminal(os.Stderr),
		notify.NewLog(logger),
	}

	poller := jobs.NewPoller(jobs.Config{
		Interval: cfg.Poll.Interval(""),
		Backoff: jobs.BackoffConfig{
			Initial:    time.Duration(cfg.Backoff.InitialMs) * time.Millisecond,
			Max:        time.Duration(cfg.Backoff.MaxMs) * time.Millisecond,
			Multiplier: cfg.Backoff.Multiplier,
			MaxElapsed: time.Duration(cfg.Backoff.MaxElapsedSeconds) * time.Second,
		},
	}, hub, responseCache, notifier, logger.Named("poller"))

	app := &appContext{
		cfg:       cfg,
		cfgPath:   cfgPath,
		logger:    logger,
		client:    client,
		hub:       hub,
		cache:     responseCache,
		notifier:  notifier,
		poller:    poller,
		snapshots: snapshots,
	}

	if cfg.Monitor.Listen != "" {
		app.monitor = monitor.NewServer(snapshots, registry, logger.Named("monitor"))
		app.monitor.Start(cfg.Monitor.Listen)
	}
	return app, nil
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "llmo",
		Short: "Content gap analysis from imported LLM prompts.",
		Long: `llmo imports the prompts users ask language models, crawls your site,
matches prompts against existing content, and surfaces the gaps worth
filling. It drives the analysis backend over its REST API and polls
long-running jobs to completion.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newAppContext(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize application: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, app))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if app, ok := cmd.Context().Value(appKey).(*appContext); ok && app != nil {
				app.close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.llmo.yaml)")
	cmd.PersistentFlags().StringVarP(&projectFlag, "project", "p", "", "project id for this invocation")
	cmd.PersistentFlags().StringVar(&listenFlag, "listen", "", "serve local status endpoints on this address")
	cmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().BoolVar(&noBarFlag, "no-progress", false, "disable terminal progress bars")

	cmd.AddCommand(
		newUseCmd(),
		newProjectsCmd(),
		newImportsCmd(),
		newPromptsCmd(),
		newPagesCmd(),
		newCrawlCmd(),
		newMatchCmd(),
		newOpportunitiesCmd(),
		newJobsCmd(),
	)
	return cmd
}

// Execute runs the command tree.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
