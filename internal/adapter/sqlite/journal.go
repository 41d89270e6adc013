// Package sqlite persists the reconciler's event stream so an operator can
// inspect what was replaced, rolled back, or left in a degraded state.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"drift"

	_ "modernc.org/sqlite"
)

// Journal is a drift.Reporter that appends events to a SQLite database.
// Routine per-pass events are not journaled, only state changes and failures.
type Journal struct {
	db *sql.DB
}

var _ drift.Reporter = (*Journal)(nil)

// Open creates or opens the journal at path, creating directories as needed.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal db journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal db busy timeout: %w", err)
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	time TEXT NOT NULL,
	kind TEXT NOT NULL,
	container TEXT NOT NULL DEFAULT '',
	image TEXT NOT NULL DEFAULT '',
	detail TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT ''
)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize events schema: %w", err)
	}

	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Report appends ev. Journal failures are logged, never propagated: the
// reconciler must keep running even if its own bookkeeping store is broken.
func (j *Journal) Report(ctx context.Context, ev drift.Event) {
	if strings.HasPrefix(string(ev.Kind), "pass.") {
		return
	}

	errText := ""
	if ev.Err != nil {
		errText = ev.Err.Error()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (time, kind, container, image, detail, error) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.Time.UTC().Format(time.RFC3339Nano),
		string(ev.Kind),
		ev.Container,
		ev.Image,
		ev.Detail,
		errText,
	)
	if err != nil {
		slog.Warn("journal event write failed", "kind", string(ev.Kind), "err", err)
	}
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]drift.Event, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT time, kind, container, image, detail, error FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []drift.Event
	for rows.Next() {
		var ev drift.Event
		var ts, kind, errText string
		if err := rows.Scan(&ts, &kind, &ev.Container, &ev.Image, &ev.Detail, &errText); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		if ev.Time, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse event time %q: %w", ts, err)
		}
		ev.Kind = drift.EventKind(kind)
		if errText != "" {
			ev.Err = errors.New(errText)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return out, nil
}
