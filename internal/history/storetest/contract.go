// Package storetest provides contract tests for [history.Store] implementations.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codex-k8s/nightly/internal/history"
	"github.com/codex-k8s/nightly/internal/nightly"
)

// Factory creates a fresh, empty [history.Store] for each test.
type Factory func(t *testing.T) history.Store

// Run exercises the [history.Store] contract.
func Run(t *testing.T, factory Factory) {
	sample := func() *history.Snapshot {
		return &history.Snapshot{
			Cases: map[string]history.DayRecord{
				"2026-10-14": {
					"[A](a)": nightly.OK(0),
					"[B](b)": nightly.OK(15 * time.Second),
					"[C](c)": nightly.TimedOut(),
					"[D](d)": nightly.OK(1500 * time.Millisecond),
				},
				"2026-10-13": {
					"[A](a)": nightly.Failed(),
					"[B](b)": nightly.NoEndpoint(),
					"[C](c)": nightly.Unknown(),
				},
				"2026-10-12": {},
			},
			Templates: []string{"[A](a)", "[B](b)", "[C](c)", "[D](d)"},
		}
	}

	t.Run("LoadEmpty", func(t *testing.T) {
		store := factory(t)
		_, err := store.Load(context.Background())
		if !errors.Is(err, history.ErrNoHistory) {
			t.Fatalf("Load on empty store: got %v, want ErrNoHistory", err)
		}
	})

	t.Run("RoundTrip", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		want := sample()

		if err := store.Save(ctx, want); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		assertSnapshotEqual(t, want, got)
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()

		if err := store.Save(ctx, sample()); err != nil {
			t.Fatalf("Save: %v", err)
		}
		next := &history.Snapshot{
			Cases: map[string]history.DayRecord{
				"2026-10-15": {"[A](a)": nightly.OK(7 * time.Second)},
			},
			Templates: []string{"[A](a)"},
		}
		if err := store.Save(ctx, next); err != nil {
			t.Fatalf("Save replacement: %v", err)
		}
		got, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		assertSnapshotEqual(t, next, got)
	})
}

func assertSnapshotEqual(t *testing.T, want, got *history.Snapshot) {
	t.Helper()
	if len(got.Templates) != len(want.Templates) {
		t.Fatalf("Templates = %v, want %v", got.Templates, want.Templates)
	}
	for i := range want.Templates {
		if got.Templates[i] != want.Templates[i] {
			t.Errorf("Templates[%d] = %q, want %q", i, got.Templates[i], want.Templates[i])
		}
	}
	if len(got.Cases) != len(want.Cases) {
		t.Fatalf("Cases has %d days, want %d", len(got.Cases), len(want.Cases))
	}
	for day, wantRec := range want.Cases {
		gotRec, ok := got.Cases[day]
		if !ok {
			t.Errorf("day %s missing", day)
			continue
		}
		if len(gotRec) != len(wantRec) {
			t.Errorf("day %s has %d cells, want %d", day, len(gotRec), len(wantRec))
		}
		for label, wantOut := range wantRec {
			if gotOut := gotRec[label]; gotOut != wantOut {
				t.Errorf("cell (%s, %s) = %v, want %v", day, label, gotOut, wantOut)
			}
		}
	}
}
