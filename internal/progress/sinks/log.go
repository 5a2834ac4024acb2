// Package sinks provides the progress.Sink implementations used by the CLI:
// structured logs, Prometheus collectors, terminal bars, and the in-memory
// snapshot store behind the monitor endpoints.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/progress"
)

// LogSink emits structured logs for debugging task progress streams.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.logger.Info("task progress",
			zap.String("task_id", evt.TaskID),
			zap.String("op", evt.Op),
			zap.String("stage", string(evt.Stage)),
			zap.Int64("processed", evt.Processed),
			zap.Int64("failed", evt.FailedItems),
			zap.Int64("total", evt.Total),
			zap.Int("percent", evt.Percent),
			zap.Duration("dur", evt.Dur),
			zap.String("note", evt.Note),
		)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
