package sinks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/progress"
)

// BarSink renders one terminal progress bar per task: determinate when the
// backend reports a total, a spinner otherwise. Intended for interactive use;
// attach it only when stderr is a terminal.
type BarSink struct {
	out io.Writer

	mu   sync.Mutex
	bars map[string]*progressbar.ProgressBar
}

// NewBarSink writes bars to out (normally os.Stderr).
func NewBarSink(out io.Writer) *BarSink {
	return &BarSink{
		out:  out,
		bars: make(map[string]*progressbar.ProgressBar),
	}
}

// Consume advances the bar belonging to each event's task.
func (s *BarSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		s.apply(evt)
	}
	return nil
}

func (s *BarSink) apply(evt progress.Event) {
	bar, ok := s.bars[evt.TaskID]
	if !ok {
		bar = s.newBar(evt)
		s.bars[evt.TaskID] = bar
	}
	if evt.Total > 0 && bar.GetMax64() != evt.Total {
		bar.ChangeMax64(evt.Total)
	}
	switch evt.Stage {
	case progress.StageJobProgress:
		if evt.Total <= 0 {
			_ = bar.Add64(1)
		} else {
			_ = bar.Set64(evt.Processed)
		}
	case progress.StageJobDone:
		_ = bar.Finish()
		fmt.Fprintln(s.out)
		delete(s.bars, evt.TaskID)
	case progress.StageJobError:
		_ = bar.Exit()
		fmt.Fprintln(s.out)
		delete(s.bars, evt.TaskID)
	}
}

func (s *BarSink) newBar(evt progress.Event) *progressbar.ProgressBar {
	max := evt.Total
	if max <= 0 {
		max = -1 // spinner
	}
	return progressbar.NewOptions64(max,
		progressbar.OptionSetWriter(s.out),
		progressbar.OptionSetDescription(evt.Op),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSpinnerType(14),
	)
}

// Close finishes any bars still rendering.
func (s *BarSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, bar := range s.bars {
		_ = bar.Exit()
		delete(s.bars, id)
	}
	return nil
}
