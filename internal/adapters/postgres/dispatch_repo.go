package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pyrovision/pyrovision/internal/core/domain"
)

// DispatchRepo implements ports.DispatchRepository. Outcomes are stored as JSONB.
type DispatchRepo struct {
	db *DB
}

// NewDispatchRepo creates a new DispatchRepo.
func NewDispatchRepo(db *DB) *DispatchRepo {
	return &DispatchRepo{db: db}
}

// Save stores a dispatch report.
func (r *DispatchRepo) Save(ctx context.Context, rep *domain.DispatchReport) error {
	outcomes, err := json.Marshal(rep.Outcomes)
	if err != nil {
		return fmt.Errorf("marshal outcomes: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO dispatch_reports (id, fires, source_ids, outcomes, any_succeeded, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, rep.ID, rep.Fires, rep.SourceIDs, outcomes, rep.AnySucceeded(), rep.StartedAt, rep.CompletedAt)
	return err
}

// Recent returns the newest reports first.
func (r *DispatchRepo) Recent(ctx context.Context, limit int) ([]domain.DispatchReport, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, fires, source_ids, outcomes, started_at, completed_at
		FROM dispatch_reports
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.DispatchReport, 0, limit)
	for rows.Next() {
		var rep domain.DispatchReport
		var outcomes []byte
		if err := rows.Scan(&rep.ID, &rep.Fires, &rep.SourceIDs, &outcomes, &rep.StartedAt, &rep.CompletedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(outcomes, &rep.Outcomes); err != nil {
			return nil, fmt.Errorf("decode outcomes for %s: %w", rep.ID, err)
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}
