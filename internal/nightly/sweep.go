package nightly

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Lifecycle turns one template into one outcome.
type Lifecycle interface {
	Run(ctx context.Context, t Template) Outcome
}

// Result pairs a template with the outcome of its lifecycle.
type Result struct {
	Template Template
	Outcome  Outcome
}

// Sweeper runs one lifecycle per template in parallel and joins them with a single barrier.
type Sweeper struct {
	lifecycle Lifecycle
	logger    *slog.Logger
}

// NewSweeper constructs a Sweeper around the given lifecycle.
func NewSweeper(lifecycle Lifecycle, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sweeper{lifecycle: lifecycle, logger: logger}
}

// Run executes every lifecycle concurrently and returns the results in template order.
// A failing or panicking lifecycle only affects its own result.
func (s *Sweeper) Run(ctx context.Context, templates []Template) []Result {
	results := make([]Result, len(templates))

	var g errgroup.Group
	for i, t := range templates {
		g.Go(func() error {
			// Each worker owns results[i] exclusively.
			results[i] = Result{Template: t, Outcome: s.runOne(ctx, t)}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *Sweeper) runOne(ctx context.Context, t Template) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("lifecycle panicked", "template", t.Name, "error", fmt.Errorf("panic: %v", r))
			out = Failed()
		}
	}()
	return s.lifecycle.Run(ctx, t)
}
