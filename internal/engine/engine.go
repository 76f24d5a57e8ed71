// Package engine orchestrates one nightly run: purge, sweep, history and report.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codex-k8s/nightly/internal/ghoutput"
	"github.com/codex-k8s/nightly/internal/history"
	"github.com/codex-k8s/nightly/internal/nightly"
	"github.com/codex-k8s/nightly/internal/report"
)

// Options wires the collaborators of an Engine.
type Options struct {
	// Platform is purged before and after the sweep.
	Platform nightly.Platform
	// Lifecycle runs one template; usually a *nightly.Controller.
	Lifecycle nightly.Lifecycle
	// Store persists the history ledger.
	Store history.Store
	// Renderer renders the markdown report.
	Renderer *report.Renderer
	// ReportPath is where the report is written.
	ReportPath string
	// GitHubOutput is the Actions output file; empty disables outputs.
	GitHubOutput string
	// Window is the number of days kept in the ledger.
	Window int
	// Now returns the current time; defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Engine coordinates a run.
type Engine struct {
	opts   Options
	logger *slog.Logger
}

// New constructs an Engine.
func New(opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Window <= 0 {
		opts.Window = history.DefaultWindow
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{opts: opts, logger: logger}
}

// Run performs the full sweep over templates and returns today's summary.
//
// The trailing purge runs on every exit path, including failures and panics, with a
// context detached from cancellation. Lifecycle failures never abort the run; they are
// recorded as outcomes.
func (e *Engine) Run(ctx context.Context, templates []nightly.Template) (summary report.Summary, err error) {
	if e.opts.Store == nil {
		return report.Summary{}, errors.New("run: no history store configured")
	}
	labels := make([]string, 0, len(templates))
	for _, t := range templates {
		labels = append(labels, t.Label())
	}

	postPurge := sync.OnceValue(func() error {
		return e.purge(context.WithoutCancel(ctx), "after sweep")
	})
	defer func() {
		if perr := postPurge(); perr != nil && err == nil {
			err = perr
		}
	}()

	if err := e.purge(ctx, "before sweep"); err != nil {
		return report.Summary{}, err
	}

	ledger := history.Restore(ctx, e.opts.Store, e.opts.Now(), e.opts.Window, labels, e.logger)

	e.logger.Info("sweep started", "templates", len(templates), "date", ledger.Today)
	start := time.Now()
	results := nightly.NewSweeper(e.opts.Lifecycle, e.logger).Run(ctx, templates)
	e.logger.Info("sweep finished", "duration", time.Since(start).Round(time.Second))

	purgeErr := postPurge()

	if err := ledger.RecordResults(results); err != nil {
		return report.Summary{}, fmt.Errorf("record results: %w", err)
	}
	for _, r := range results {
		e.logger.Info("template result", "template", r.Template.Name, "outcome", r.Outcome.String())
	}
	if err := ledger.Persist(context.WithoutCancel(ctx), e.opts.Store); err != nil {
		return report.Summary{}, err
	}

	summary, err = e.publish(ledger)
	if err != nil {
		return summary, err
	}
	return summary, purgeErr
}

// Report re-renders the report from the persisted history without touching the platform.
func (e *Engine) Report(ctx context.Context, labels []string) (report.Summary, error) {
	ledger := history.Restore(ctx, e.opts.Store, e.opts.Now(), e.opts.Window, labels, e.logger)
	return e.publish(ledger)
}

// Purge deletes every live deployment of the account.
func (e *Engine) Purge(ctx context.Context) error {
	return e.purge(ctx, "on demand")
}

func (e *Engine) purge(ctx context.Context, stage string) error {
	if e.opts.Platform == nil {
		return errors.New("purge: no platform configured")
	}
	if err := nightly.Purge(ctx, e.opts.Platform, e.logger); err != nil {
		e.logger.Warn("purge incomplete", "stage", stage, "error", err)
		return fmt.Errorf("purge %s: %w", stage, err)
	}
	e.logger.Debug("purge complete", "stage", stage)
	return nil
}

// publish renders the report and writes today's summary to the Actions outputs.
func (e *Engine) publish(ledger *history.Ledger) (report.Summary, error) {
	grid := report.Project(ledger)
	summary := report.Summarize(grid, ledger.Today)

	if e.opts.Renderer != nil && e.opts.ReportPath != "" {
		if err := e.opts.Renderer.RenderFile(e.opts.ReportPath, grid); err != nil {
			return summary, fmt.Errorf("render report: %w", err)
		}
		e.logger.Info("report written", "path", e.opts.ReportPath)
	}
	if err := ghoutput.Write(e.opts.GitHubOutput, summary.Outputs()); err != nil {
		return summary, fmt.Errorf("write github outputs: %w", err)
	}
	e.logger.Info("run summary",
		"date", summary.Date,
		"ok", summary.OK,
		"failed", summary.Failed,
		"timed_out", summary.TimedOut,
		"no_endpoint", summary.NoEndpoint,
		"unknown", summary.Unknown,
	)
	return summary, nil
}
