package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/codex-k8s/nightly/internal/nightly"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore keeps the snapshot in a SQLite database.
type SQLiteStore struct {
	DB *sql.DB
}

// OpenSQLite opens the database at dsn and applies pending migrations.
// Use ":memory:" for an in-memory database. Foreign keys are enabled on every
// connection the pool opens.
func OpenSQLite(dsn string, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("sqlite", withForeignKeys(dsn))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across queries.
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{logger: logger})
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

func withForeignKeys(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

// Load reads the stored snapshot.
func (s *SQLiteStore) Load(ctx context.Context) (*Snapshot, error) {
	var savedAt string
	err := s.DB.QueryRowContext(ctx, `SELECT saved_at FROM snapshot WHERE id = 1`).Scan(&savedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoHistory
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	snap := &Snapshot{Cases: map[string]DayRecord{}, Templates: []string{}}

	labels, err := s.DB.QueryContext(ctx, `SELECT label FROM templates ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer labels.Close()
	for labels.Next() {
		var label string
		if err := labels.Scan(&label); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		snap.Templates = append(snap.Templates, label)
	}
	if err := labels.Err(); err != nil {
		return nil, err
	}

	days, err := s.DB.QueryContext(ctx, `SELECT day FROM days`)
	if err != nil {
		return nil, fmt.Errorf("list days: %w", err)
	}
	defer days.Close()
	for days.Next() {
		var day string
		if err := days.Scan(&day); err != nil {
			return nil, fmt.Errorf("scan day: %w", err)
		}
		if err := validateDate(day); err != nil {
			return nil, &CorruptError{Source: "sqlite", Err: err}
		}
		snap.Cases[day] = DayRecord{}
	}
	if err := days.Err(); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT day, label, status, elapsed_ms FROM outcomes`)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var day, label, statusText string
		var elapsedMS sql.NullInt64
		if err := rows.Scan(&day, &label, &statusText, &elapsedMS); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		status, err := nightly.ParseStatus(statusText)
		if err != nil {
			return nil, &CorruptError{Source: "sqlite", Err: err}
		}
		var elapsed *time.Duration
		if elapsedMS.Valid {
			v := time.Duration(elapsedMS.Int64) * time.Millisecond
			elapsed = &v
		}
		out, err := decodeOutcome(status, elapsed)
		if err != nil {
			return nil, &CorruptError{Source: "sqlite", Err: fmt.Errorf("%s %s: %w", day, label, err)}
		}
		rec, ok := snap.Cases[day]
		if !ok {
			return nil, &CorruptError{Source: "sqlite", Err: fmt.Errorf("outcome %s for unknown day %s", label, day)}
		}
		rec[label] = out
	}
	return snap, rows.Err()
}

// Save replaces the stored snapshot in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, snap *Snapshot) (err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range []string{
		`DELETE FROM outcomes`,
		`DELETE FROM days`,
		`DELETE FROM templates`,
		`DELETE FROM snapshot`,
	} {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear snapshot: %w", err)
		}
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO snapshot (id, saved_at) VALUES (1, ?)`,
		time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	for i, label := range snap.Templates {
		if _, err = tx.ExecContext(ctx, `INSERT INTO templates (position, label) VALUES (?, ?)`, i, label); err != nil {
			return fmt.Errorf("insert template %q: %w", label, err)
		}
	}
	for day, rec := range snap.Cases {
		if _, err = tx.ExecContext(ctx, `INSERT INTO days (day) VALUES (?)`, day); err != nil {
			return fmt.Errorf("insert day %s: %w", day, err)
		}
		for label, out := range rec {
			var w wireOutcome
			if w, err = encodeOutcome(out); err != nil {
				return fmt.Errorf("encode outcome %s %s: %w", day, label, err)
			}
			var elapsed sql.NullInt64
			if w.ElapsedMS != nil {
				elapsed = sql.NullInt64{Int64: *w.ElapsedMS, Valid: true}
			}
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO outcomes (day, label, status, elapsed_ms) VALUES (?, ?, ?, ?)`,
				day, label, out.Status.String(), elapsed,
			); err != nil {
				return fmt.Errorf("insert outcome %s %s: %w", day, label, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// gooseLogger routes migration output into slog at debug level.
type gooseLogger struct {
	logger *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	if l.logger != nil {
		l.logger.Debug(fmt.Sprintf(format, v...), "component", "goose")
	}
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	if l.logger != nil {
		l.logger.Error(fmt.Sprintf(format, v...), "component", "goose")
	}
	panic(fmt.Sprintf(format, v...))
}
