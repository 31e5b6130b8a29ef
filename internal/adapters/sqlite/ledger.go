// Package sqlite keeps the alert ledger in a local file for single-node runs.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS alert_ledger (
	source_id  TEXT    PRIMARY KEY,
	alerted_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alert_ledger_expires_at ON alert_ledger (expires_at);
`

// Ledger implements ports.AlertLedger on a SQLite file.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the ledger at path. Use ":memory:" for tests.
func Open(ctx context.Context, path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection: SQLite serialises writers anyway, and ":memory:" is per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA busy_timeout=5000;"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil && !strings.Contains(path, ":memory:") {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	return &Ledger{db: db, now: time.Now}, nil
}

// Seen returns the ids that have an unexpired entry.
func (l *Ledger) Seen(ctx context.Context, ids []string) (map[string]bool, error) {
	seen := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return seen, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, l.now().Unix())
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	rows, err := l.db.QueryContext(ctx,
		`SELECT source_id FROM alert_ledger WHERE expires_at > ? AND source_id IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		seen[id] = true
	}
	return seen, rows.Err()
}

// Mark records ids as alerted until ttl from now.
func (l *Ledger) Mark(ctx context.Context, ids []string, ttl time.Duration) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO alert_ledger (source_id, alerted_at, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (source_id) DO UPDATE SET alerted_at = excluded.alerted_at, expires_at = excluded.expires_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := l.now()
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id, now.Unix(), now.Add(ttl).Unix()); err != nil {
			return fmt.Errorf("mark %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
