// Package history records dispatched workspace activations in a local
// SQLite database so `worksetctl history` can answer "what fired, when,
// and did it work".
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"workset/internal/engine"
)

const schema = `
CREATE TABLE IF NOT EXISTS activations (
	id             TEXT PRIMARY KEY,
	workspace_uid  TEXT NOT NULL,
	workspace_name TEXT NOT NULL,
	binding        TEXT NOT NULL,
	destination    TEXT NOT NULL,
	moved          INTEGER NOT NULL,
	skipped        INTEGER NOT NULL,
	failed         INTEGER NOT NULL,
	report         TEXT NOT NULL,
	at             TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_activations_at ON activations(at DESC);
`

// Entry is one recorded activation.
type Entry struct {
	ID            string    `json:"id"`
	WorkspaceUID  string    `json:"workspace_uid"`
	WorkspaceName string    `json:"workspace_name"`
	Binding       string    `json:"binding"`
	Destination   string    `json:"destination"`
	Moved         int       `json:"moved"`
	Skipped       int       `json:"skipped"`
	Failed        int       `json:"failed"`
	At            time.Time `json:"at"`
}

// Store is the activation history database. Safe for concurrent use; the
// underlying *sql.DB serializes access.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	// A single writer keeps modernc.org/sqlite away from SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	slog.Info("[history] database opened", "path", path)
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record persists one toggle report. The full per-window report is stored as
// JSON alongside the summary columns.
func (s *Store) Record(ctx context.Context, binding string, report engine.ToggleReport) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("history: marshal report: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO activations (id, workspace_uid, workspace_name, binding, destination, moved, skipped, failed, report, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		report.WorkspaceUID,
		report.WorkspaceName,
		binding,
		report.Destination,
		report.Moved(),
		report.Skipped(),
		report.Failed(),
		string(raw),
		report.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("history: record activation: %w", err)
	}
	return nil
}

// Recent returns the most recent n activations, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workspace_uid, workspace_name, binding, destination, moved, skipped, failed, at
		 FROM activations ORDER BY at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("history: query recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var at string
		if err := rows.Scan(&e.ID, &e.WorkspaceUID, &e.WorkspaceName, &e.Binding, &e.Destination,
			&e.Moved, &e.Skipped, &e.Failed, &at); err != nil {
			return nil, fmt.Errorf("history: scan row: %w", err)
		}
		parsed, parseErr := time.Parse(time.RFC3339Nano, at)
		if parseErr != nil {
			slog.Warn("[history] unparsable timestamp in row", "id", e.ID, "at", at)
		}
		e.At = parsed
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate rows: %w", err)
	}
	return out, nil
}

// Prune deletes entries older than keep, returning the number removed.
func (s *Store) Prune(ctx context.Context, keep time.Duration) (int64, error) {
	cutoff := time.Now().Add(-keep).UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `DELETE FROM activations WHERE at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
