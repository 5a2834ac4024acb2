// Package notify is the user-facing notification boundary. Backend errors
// and job outcomes converge here instead of crashing commands; it plays the
// role the toast layer played in the original UI.
package notify

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

// Notifier surfaces outcomes to the user.
type Notifier interface {
	Success(msg string)
	Error(msg string)
	Info(msg string)
}

// Terminal writes plain notifications to a writer, normally stderr so they
// interleave cleanly with piped stdout output.
type Terminal struct {
	mu  sync.Mutex
	out io.Writer
}

// NewTerminal constructs a Terminal notifier.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

// Success prints a success line.
func (t *Terminal) Success(msg string) { t.print("OK", msg) }

// Error prints an error line.
func (t *Terminal) Error(msg string) { t.print("ERROR", msg) }

// Info prints an informational line.
func (t *Terminal) Info(msg string) { t.print("INFO", msg) }

func (t *Terminal) print(level, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "%s  %s\n", level, msg)
}

// Log mirrors notifications into structured logs.
type Log struct {
	logger *zap.Logger
}

// NewLog constructs a Log notifier.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

// Success logs at info level.
func (l *Log) Success(msg string) {
	l.logger.Info("notification", zap.String("kind", "success"), zap.String("msg", msg))
}

// Error logs at error level.
func (l *Log) Error(msg string) {
	l.logger.Error("notification", zap.String("kind", "error"), zap.String("msg", msg))
}

// Info logs at info level.
func (l *Log) Info(msg string) {
	l.logger.Info("notification", zap.String("kind", "info"), zap.String("msg", msg))
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

// Success notifies all children.
func (m Multi) Success(msg string) {
	for _, n := range m {
		n.Success(msg)
	}
}

// Error notifies all children.
func (m Multi) Error(msg string) {
	for _, n := range m {
		n.Error(msg)
	}
}

// Info notifies all children.
func (m Multi) Info(msg string) {
	for _, n := range m {
		n.Info(msg)
	}
}
