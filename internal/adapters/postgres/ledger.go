package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Ledger implements ports.AlertLedger on the alert_ledger table.
type Ledger struct {
	db *DB
}

// NewLedger creates a new Ledger.
func NewLedger(db *DB) *Ledger {
	return &Ledger{db: db}
}

// Seen returns the ids that have an unexpired ledger entry.
func (l *Ledger) Seen(ctx context.Context, ids []string) (map[string]bool, error) {
	seen := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return seen, nil
	}
	rows, err := l.db.Pool.Query(ctx, `
		SELECT source_id FROM alert_ledger
		WHERE source_id = ANY($1) AND expires_at > now()
	`, ids)
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
	expires := time.Now().Add(ttl)
	batch := &pgx.Batch{}
	for _, id := range ids {
		batch.Queue(`
			INSERT INTO alert_ledger (source_id, alerted_at, expires_at)
			VALUES ($1, now(), $2)
			ON CONFLICT (source_id) DO UPDATE
			SET alerted_at = EXCLUDED.alerted_at, expires_at = EXCLUDED.expires_at
		`, id, expires)
	}
	br := l.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range ids {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}
