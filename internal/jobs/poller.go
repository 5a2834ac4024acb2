package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/progress"
)

// StartFunc begins a backend operation and returns its task identifier.
type StartFunc func(ctx context.Context) (string, error)

// StatusFunc fetches the current status of a task.
type StatusFunc func(ctx context.Context, taskID string) (Status, error)

// Invalidator marks dependent cached views stale after a successful task.
type Invalidator interface {
	Invalidate(key string)
}

// Notifier surfaces terminal outcomes to the user.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Operation describes one pollable backend task.
type Operation struct {
	// Kind labels the operation (crawl, csv_process, match, ...).
	Kind string
	// Start submits the operation and returns a task id. Optional when the
	// task was started elsewhere and only needs watching.
	Start StartFunc
	// Status fetches the task status; required.
	Status StatusFunc
	// Interval overrides the poller's default cadence for this operation.
	Interval time.Duration
	// Invalidates lists the cache keys marked stale exactly once on success.
	// Failures invalidate nothing.
	Invalidates []string
	// Message optionally builds the success notification from the terminal
	// status; a generic message is used when nil.
	Message func(Status) string
}

// BackoffConfig bounds the retry schedule applied when a single status poll
// fails. The original UI retried such failures forever on a fixed timer;
// here retries grow exponentially and give up after MaxElapsed, surfacing a
// timeout to the caller.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	MaxElapsed time.Duration
}

// Config controls Poller defaults.
type Config struct {
	// Interval is the default cadence between successful status polls.
	Interval time.Duration
	// Backoff bounds retries of failed polls.
	Backoff BackoffConfig
}

const defaultInterval = 3 * time.Second

// Poller drives start/status operations to a terminal state, emitting
// progress events and applying completion side effects. A Poller is safe for
// concurrent use; each Run or Wait call owns its own task id and state.
type Poller struct {
	cfg    Config
	hub    progress.Emitter
	cache  Invalidator
	notify Notifier
	logger *zap.Logger
}

// NewPoller wires the poller's collaborators. hub, cache, and notify may be
// nil; the corresponding side effects are skipped.
func NewPoller(cfg Config, hub progress.Emitter, cache Invalidator, notify Notifier, logger *zap.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Backoff.Initial <= 0 {
		cfg.Backoff.Initial = 500 * time.Millisecond
	}
	if cfg.Backoff.Max <= 0 {
		cfg.Backoff.Max = 30 * time.Second
	}
	if cfg.Backoff.Multiplier <= 1 {
		cfg.Backoff.Multiplier = 2
	}
	if cfg.Backoff.MaxElapsed <= 0 {
		cfg.Backoff.MaxElapsed = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		cfg:    cfg,
		hub:    hub,
		cache:  cache,
		notify: notify,
		logger: logger,
	}
}

// Run starts the operation and polls it to completion. A start failure is
// surfaced immediately and polling never begins. Some backend endpoints
// complete the work inline and return no task id; an empty id is treated as
// an already-successful operation and its completion side effects are
// applied without polling. The terminal Status is returned for succeeded and
// failed tasks alike; err is non-nil only when the operation could not be
// started or observed (start failure, context cancellation, poll retries
// exhausted).
func (p *Poller) Run(ctx context.Context, op Operation) (Status, error) {
	taskID, err := op.Start(ctx)
	if err != nil {
		p.notifyError(fmt.Sprintf("%s failed to start: %v", op.Kind, err))
		return Status{}, fmt.Errorf("start %s: %w", op.Kind, err)
	}
	if taskID == "" {
		p.logger.Debug("operation completed synchronously", zap.String("op", op.Kind))
		st := Status{State: StateSucceeded}
		p.completeSuccess(op, st)
		return st, nil
	}
	p.logger.Debug("task started", zap.String("op", op.Kind), zap.String("task_id", taskID))
	return p.Wait(ctx, op, taskID)
}

// Wait polls an already-started task until it reaches a terminal state, then
// applies completion side effects. Cancelling ctx stops the polling loop but
// never the backend task; cancellation must be requested explicitly through
// the API.
func (p *Poller) Wait(ctx context.Context, op Operation, taskID string) (Status, error) {
	interval := op.Interval
	if interval <= 0 {
		interval = p.cfg.Interval
	}
	started := time.Now()
	p.emit(progress.Event{
		TaskID:  taskID,
		Op:      op.Kind,
		TS:      started,
		Stage:   progress.StageJobStart,
		Percent: progress.Indeterminate,
	})

	lastPercent := progress.Indeterminate
	for {
		st, err := p.fetch(ctx, op, taskID)
		if err != nil {
			p.emit(terminalEvent(taskID, op.Kind, progress.StageJobError, nil, time.Since(started), err.Error()))
			p.notifyError(fmt.Sprintf("%s: lost contact with task %s: %v", op.Kind, taskID, err))
			return Status{TaskID: taskID, State: StateFailed, Error: err.Error()}, err
		}

		if st.State.Terminal() {
			p.finish(op, st, time.Since(started))
			return st, nil
		}

		lastPercent = p.emitProgress(op, st, lastPercent)

		select {
		case <-ctx.Done():
			p.logger.Debug("polling stopped, backend task continues",
				zap.String("op", op.Kind), zap.String("task_id", taskID))
			return st, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// fetch retrieves one status, retrying transient failures with bounded
// exponential backoff.
func (p *Poller) fetch(ctx context.Context, op Operation, taskID string) (Status, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.Backoff.Initial
	bo.MaxInterval = p.cfg.Backoff.Max
	bo.Multiplier = p.cfg.Backoff.Multiplier
	bo.MaxElapsedTime = p.cfg.Backoff.MaxElapsed

	var st Status
	attempt := func() error {
		var err error
		st, err = op.Status(ctx, taskID)
		if err != nil {
			p.logger.Warn("status poll failed, backing off",
				zap.String("op", op.Kind), zap.String("task_id", taskID), zap.Error(err))
		}
		return err
	}
	if err := backoff.Retry(attempt, backoff.WithContext(bo, ctx)); err != nil {
		return Status{}, fmt.Errorf("poll task %s: %w", taskID, err)
	}
	return st, nil
}

// emitProgress surfaces a running status. The rendered percentage never
// decreases even if the backend reports counters out of order.
func (p *Poller) emitProgress(op Operation, st Status, lastPercent int) int {
	evt := progress.Event{
		TaskID:  st.TaskID,
		Op:      op.Kind,
		TS:      time.Now(),
		Stage:   progress.StageJobProgress,
		Percent: progress.Indeterminate,
	}
	if st.Progress != nil {
		evt.Processed = st.Progress.Processed
		evt.FailedItems = st.Progress.Failed
		evt.Total = st.Progress.Total
		evt.Matched = st.Progress.Matched
		evt.Opportunities = st.Progress.Opportunities
		evt.Note = st.Progress.Current
		if st.Progress.Determinate() {
			evt.Percent = st.Progress.Percent
		}
	}
	if evt.Percent < lastPercent {
		evt.Percent = lastPercent
	}
	p.emit(evt)
	return evt.Percent
}

// finish applies terminal side effects: notifications for both outcomes,
// cache invalidation only on success, each key exactly once.
func (p *Poller) finish(op Operation, st Status, elapsed time.Duration) {
	switch st.State {
	case StateSucceeded:
		p.emit(terminalEvent(st.TaskID, op.Kind, progress.StageJobDone, st.Progress, elapsed, ""))
		p.completeSuccess(op, st)
	case StateFailed:
		p.emit(terminalEvent(st.TaskID, op.Kind, progress.StageJobError, st.Progress, elapsed, st.Error))
		p.notifyError(fmt.Sprintf("%s failed: %s", op.Kind, st.Error))
	}
}

// completeSuccess invalidates each dependent key exactly once and emits the
// success notification.
func (p *Poller) completeSuccess(op Operation, st Status) {
	seen := make(map[string]struct{}, len(op.Invalidates))
	for _, key := range op.Invalidates {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if p.cache != nil {
			p.cache.Invalidate(key)
		}
	}
	msg := fmt.Sprintf("%s completed", op.Kind)
	if op.Message != nil {
		msg = op.Message(st)
	}
	p.notifySuccess(msg)
}

func terminalEvent(taskID, kind string, stage progress.Stage, pr *Progress, elapsed time.Duration, note string) progress.Event {
	evt := progress.Event{
		TaskID:  taskID,
		Op:      kind,
		TS:      time.Now(),
		Stage:   stage,
		Percent: progress.Indeterminate,
		Dur:     elapsed,
		Note:    note,
	}
	if pr != nil {
		evt.Processed = pr.Processed
		evt.FailedItems = pr.Failed
		evt.Total = pr.Total
		evt.Matched = pr.Matched
		evt.Opportunities = pr.Opportunities
	}
	if stage == progress.StageJobDone {
		evt.Percent = 100
	}
	return evt
}

func (p *Poller) emit(evt progress.Event) {
	if p.hub != nil {
		p.hub.Emit(evt)
	}
}

func (p *Poller) notifySuccess(msg string) {
	if p.notify != nil {
		p.notify.Success(msg)
	}
}

func (p *Poller) notifyError(msg string) {
	if p.notify != nil {
		p.notify.Error(msg)
	}
}
