package history_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/nightly/internal/history"
	"github.com/codex-k8s/nightly/internal/history/storetest"
	"github.com/codex-k8s/nightly/internal/nightly"
)

func openTestDB(t *testing.T) *history.SQLiteStore {
	t.Helper()
	db, err := history.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &history.SQLiteStore{DB: db}
}

func TestFileStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) history.Store {
		return history.NewFileStore(filepath.Join(t.TempDir(), "data", "result.json"))
	})
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) history.Store {
		return openTestDB(t)
	})
}

func TestFileStoreCorrupt(t *testing.T) {
	tests := map[string]string{
		"not json":          `{"cases": `,
		"unknown status":    `{"cases": {"2026-10-14": {"[A](a)": {"status": "tle"}}}, "templates": ["[A](a)"]}`,
		"ok without time":   `{"cases": {"2026-10-14": {"[A](a)": {"status": "ok"}}}, "templates": ["[A](a)"]}`,
		"negative elapsed":  `{"cases": {"2026-10-14": {"[A](a)": {"status": "ok", "elapsed": -4}}}, "templates": []}`,
		"negative millis":   `{"cases": {"2026-10-14": {"[A](a)": {"status": "ok", "elapsed_ms": -4}}}, "templates": []}`,
		"both elapsed":      `{"cases": {"2026-10-14": {"[A](a)": {"status": "ok", "elapsed": 1, "elapsed_ms": 1000}}}, "templates": []}`,
		"bad date":          `{"cases": {"yesterday": {}}, "templates": []}`,
		"missing cases key": `{"templates": []}`,
		"missing status":    `{"cases": {"2026-10-14": {"[A](a)": {}}}, "templates": []}`,
		"elapsed on failed": `{"cases": {"2026-10-14": {"[A](a)": {"status": "failed", "elapsed_ms": 3000}}}, "templates": []}`,
		"unknown field":     `{"cases": {"2026-10-14": {"[A](a)": {"status": "failed", "note": "x"}}}, "templates": []}`,
		"unknown top field": `{"cases": {}, "templates": [], "version": 2}`,
		"mixed badge day":   `{"cases": {"2026-10-14": {"[Whisper](w)": {}, "badge": {"x": "y"}}}, "templates": []}`,
		"bad badge":         `{"cases": {"2026-10-14": {"badge": {"[A](a)": "![img](https://example.com/a.png)"}}}, "templates": []}`,
		"bad badge seconds": `{"cases": {"2026-10-14": {"badge": {"[A](a)": "![img](https://img.shields.io/badge/status-xs-green)"}}}, "templates": []}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "result.json")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

			_, err := history.NewFileStore(path).Load(context.Background())
			require.Error(t, err)
			assert.True(t, history.IsCorruptError(err), "got %v", err)
		})
	}
}

func TestFileStoreReadsBadgeLayout(t *testing.T) {
	body := `{
    "cases": {
        "2026-10-14": {
            "badge": {
                "[Stable Diffusion](sd)": "![img](https://img.shields.io/badge/status-15s-green)",
                "[ImageBind](ib)": "![img](https://img.shields.io/badge/status->600s-red)",
                "[Whisper](w)": "![img](https://img.shields.io/badge/status-failed-red)"
            }
        },
        "2026-10-13": {
            "badge": {
                "[Whisper](w)": "![img](https://img.shields.io/badge/status-unknown-yellow)"
            }
        }
    },
    "templates": ["[ImageBind](ib)", "[Stable Diffusion](sd)", "[Whisper](w)"]
}`
	path := filepath.Join(t.TempDir(), "result.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	snap, err := history.NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]history.DayRecord{
		"2026-10-14": {
			"[Stable Diffusion](sd)": nightly.OK(15 * time.Second),
			"[ImageBind](ib)":        nightly.TimedOut(),
			"[Whisper](w)":           nightly.Failed(),
		},
		"2026-10-13": {"[Whisper](w)": nightly.Unknown()},
	}, snap.Cases)
	assert.Equal(t, []string{"[ImageBind](ib)", "[Stable Diffusion](sd)", "[Whisper](w)"}, snap.Templates)
}

func TestFileStoreReadsWholeSecondElapsed(t *testing.T) {
	body := `{"cases": {"2026-10-14": {"[A](a)": {"status": "ok", "elapsed": 12}}}, "templates": ["[A](a)"]}`
	path := filepath.Join(t.TempDir(), "result.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	snap, err := history.NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, nightly.OK(12*time.Second), snap.Cases["2026-10-14"]["[A](a)"])
}

func TestFileStoreWritesMilliseconds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	snap := &history.Snapshot{
		Cases: map[string]history.DayRecord{"2026-10-14": {
			"[A](a)": nightly.OK(1500 * time.Millisecond),
			"[B](b)": nightly.Failed(),
		}},
		Templates: []string{"[A](a)", "[B](b)"},
	}
	require.NoError(t, history.NewFileStore(path).Save(context.Background(), snap))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		Cases map[string]map[string]map[string]any `json:"cases"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, map[string]any{"status": "ok", "elapsed_ms": float64(1500)}, doc.Cases["2026-10-14"]["[A](a)"])
	assert.Equal(t, map[string]any{"status": "failed"}, doc.Cases["2026-10-14"]["[B](b)"])
}

func TestStoresRejectSubMillisecondElapsed(t *testing.T) {
	snap := &history.Snapshot{
		Cases:     map[string]history.DayRecord{"2026-10-14": {"[A](a)": nightly.OK(1500 * time.Microsecond)}},
		Templates: []string{"[A](a)"},
	}
	stores := map[string]history.Store{
		"file":   history.NewFileStore(filepath.Join(t.TempDir(), "result.json")),
		"sqlite": openTestDB(t),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, store.Save(context.Background(), snap))
		})
	}
}

func TestFileStoreWritesIndentedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	store := history.NewFileStore(path)
	snap := &history.Snapshot{
		Cases:     map[string]history.DayRecord{"2026-10-14": {}},
		Templates: []string{"[A](a)"},
	}
	require.NoError(t, store.Save(context.Background(), snap))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n    \"cases\"")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestSQLiteStoreCorruptStatus(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()
	_, err := store.DB.ExecContext(ctx, `INSERT INTO snapshot (id, saved_at) VALUES (1, 'now')`)
	require.NoError(t, err)
	_, err = store.DB.ExecContext(ctx, `INSERT INTO days (day) VALUES ('2026-10-14')`)
	require.NoError(t, err)
	_, err = store.DB.ExecContext(ctx,
		`INSERT INTO outcomes (day, label, status) VALUES ('2026-10-14', '[A](a)', 'exploded')`)
	require.NoError(t, err)

	_, err = store.Load(ctx)
	assert.True(t, history.IsCorruptError(err), "got %v", err)
}

func TestSQLiteStoreEnforcesForeignKeys(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()

	_, err := store.DB.ExecContext(ctx,
		`INSERT INTO outcomes (day, label, status) VALUES ('2026-10-14', '[A](a)', 'failed')`)
	assert.Error(t, err, "outcome without a day row must be rejected")
}

func TestSQLiteStoreOrphanOutcome(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()
	for _, stmt := range []string{
		`PRAGMA foreign_keys=OFF`,
		`INSERT INTO snapshot (id, saved_at) VALUES (1, 'now')`,
		`INSERT INTO outcomes (day, label, status) VALUES ('2026-10-14', '[A](a)', 'failed')`,
	} {
		_, err := store.DB.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	_, err := store.Load(ctx)
	require.Error(t, err)
	assert.True(t, history.IsCorruptError(err), "got %v", err)
}
