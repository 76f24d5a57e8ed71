// Package history keeps the rolling per-day, per-template outcome window
// and persists it between runs.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/codex-k8s/nightly/internal/nightly"
)

// DateLayout is the ISO calendar-day form used for ledger keys.
const DateLayout = "2006-01-02"

// DefaultWindow is the number of days kept in the ledger.
const DefaultWindow = 5

// DayRecord maps a template label to its outcome for one day.
// A missing label reads as unknown.
type DayRecord map[string]nightly.Outcome

// Outcome returns the outcome recorded for label.
func (r DayRecord) Outcome(label string) nightly.Outcome {
	return r[label]
}

// Ledger is the W-day outcome window ending today.
type Ledger struct {
	// Today is the newest day of the window.
	Today string
	// Dates lists the window days, newest first.
	Dates []string
	// Cases maps every window day to its record.
	Cases map[string]DayRecord
	// Templates holds the sorted template labels.
	Templates []string
}

// Day formats t as a ledger date.
func Day(t time.Time) string {
	return t.Format(DateLayout)
}

// WindowDates returns w consecutive dates ending at today, newest first.
func WindowDates(today time.Time, w int) []string {
	dates := make([]string, 0, w)
	for i := 0; i < w; i++ {
		dates = append(dates, Day(today.AddDate(0, 0, -i)))
	}
	return dates
}

// EmptyWindow builds a ledger where every template is unknown on every day.
func EmptyWindow(today time.Time, w int, labels []string) *Ledger {
	if w <= 0 {
		w = DefaultWindow
	}
	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)

	dates := WindowDates(today, w)
	cases := make(map[string]DayRecord, len(dates))
	for _, d := range dates {
		rec := make(DayRecord, len(sorted))
		for _, label := range sorted {
			rec[label] = nightly.Unknown()
		}
		cases[d] = rec
	}
	return &Ledger{
		Today:     dates[0],
		Dates:     dates,
		Cases:     cases,
		Templates: sorted,
	}
}

// Restore builds the empty window and backfills it from the persisted snapshot.
// Window days found in the snapshot take the persisted record verbatim. Missing,
// unreadable or corrupt history is logged and leaves the empty window in place.
func Restore(ctx context.Context, store Store, today time.Time, w int, labels []string, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ledger := EmptyWindow(today, w, labels)
	if store == nil {
		return ledger
	}

	snap, err := store.Load(ctx)
	switch {
	case errors.Is(err, ErrNoHistory):
		logger.Info("no history found, starting with an empty window")
		return ledger
	case err != nil:
		logger.Warn("history unreadable, starting with an empty window", "error", err)
		return ledger
	}

	restored := 0
	for _, d := range ledger.Dates {
		rec, ok := snap.Cases[d]
		if !ok {
			continue
		}
		ledger.Cases[d] = cloneRecord(rec)
		restored++
	}
	logger.Debug("history restored", "days", restored, "window", len(ledger.Dates))
	return ledger
}

// Record overwrites the outcome of one template on one window day.
func (l *Ledger) Record(date, label string, out nightly.Outcome) error {
	rec, ok := l.Cases[date]
	if !ok {
		return fmt.Errorf("date %s is outside the window %s..%s", date, l.Dates[len(l.Dates)-1], l.Today)
	}
	if rec == nil {
		rec = make(DayRecord)
		l.Cases[date] = rec
	}
	rec[label] = out
	return nil
}

// RecordResults writes sweep results into today's record.
func (l *Ledger) RecordResults(results []nightly.Result) error {
	for _, r := range results {
		if err := l.Record(l.Today, r.Template.Label(), r.Outcome); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot returns the persistable form of the ledger.
func (l *Ledger) Snapshot() *Snapshot {
	cases := make(map[string]DayRecord, len(l.Cases))
	for d, rec := range l.Cases {
		cases[d] = cloneRecord(rec)
	}
	return &Snapshot{
		Cases:     cases,
		Templates: append([]string(nil), l.Templates...),
	}
}

// Persist saves the full ledger, replacing any prior snapshot.
func (l *Ledger) Persist(ctx context.Context, store Store) error {
	if err := store.Save(ctx, l.Snapshot()); err != nil {
		return fmt.Errorf("persist history: %w", err)
	}
	return nil
}

func cloneRecord(rec DayRecord) DayRecord {
	out := make(DayRecord, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
