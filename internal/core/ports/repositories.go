package ports

import (
	"context"
	"time"

	"github.com/pyrovision/pyrovision/internal/core/domain"
)

// DetectionRepository persists scored detections.
type DetectionRepository interface {
	Insert(ctx context.Context, rec *domain.DetectionRecord) error
	InsertBatch(ctx context.Context, recs []domain.DetectionRecord) error
	Recent(ctx context.Context, limit int) ([]domain.DetectionRecord, error)
}

// DispatchRepository persists dispatch reports.
type DispatchRepository interface {
	Save(ctx context.Context, report *domain.DispatchReport) error
	Recent(ctx context.Context, limit int) ([]domain.DispatchReport, error)
}

// AlertLedger remembers which source IDs have already been alerted.
type AlertLedger interface {
	// Seen returns the subset of ids already recorded.
	Seen(ctx context.Context, ids []string) (map[string]bool, error)
	Mark(ctx context.Context, ids []string, ttl time.Duration) error
}

// SessionStore keeps interactive sessions between requests.
type SessionStore interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	Put(ctx context.Context, s *domain.Session, ttl time.Duration) error
}
