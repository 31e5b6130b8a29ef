package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pyrovision/pyrovision/internal/core/domain"
)

// DetectionRepo implements ports.DetectionRepository with pgx.
type DetectionRepo struct {
	db *DB
}

// NewDetectionRepo creates a new DetectionRepo.
func NewDetectionRepo(db *DB) *DetectionRepo {
	return &DetectionRepo{db: db}
}

const insertDetection = `
	INSERT INTO detections (source_id, lat, lon, label, confidence, detected_at)
	VALUES ($1, $2, $3, $4, $5, $6)
`

// Insert stores a single detection.
func (r *DetectionRepo) Insert(ctx context.Context, d *domain.DetectionRecord) error {
	_, err := r.db.Pool.Exec(ctx, insertDetection,
		d.SourceID, d.Coordinate.Lat, d.Coordinate.Lon, string(d.Label), d.Confidence, d.Timestamp)
	return err
}

// InsertBatch stores many detections using pgx.Batch.
func (r *DetectionRepo) InsertBatch(ctx context.Context, recs []domain.DetectionRecord) error {
	if len(recs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, d := range recs {
		batch.Queue(insertDetection,
			d.SourceID, d.Coordinate.Lat, d.Coordinate.Lon, string(d.Label), d.Confidence, d.Timestamp)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range recs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// Recent returns the newest detections first.
func (r *DetectionRepo) Recent(ctx context.Context, limit int) ([]domain.DetectionRecord, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT source_id, lat, lon, label, confidence, detected_at
		FROM detections
		ORDER BY detected_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.DetectionRecord, 0, limit)
	for rows.Next() {
		var d domain.DetectionRecord
		var label string
		if err := rows.Scan(&d.SourceID, &d.Coordinate.Lat, &d.Coordinate.Lon, &label, &d.Confidence, &d.Timestamp); err != nil {
			return nil, err
		}
		d.Label = domain.Label(label)
		out = append(out, d)
	}
	return out, rows.Err()
}
