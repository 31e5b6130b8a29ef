package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/pyrovision/pyrovision/internal/adapters/postgres"
	"github.com/pyrovision/pyrovision/internal/core/domain"
	"github.com/pyrovision/pyrovision/internal/core/usecases"
)

// Pinger is a dependency that can report its own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TilingDefaults fill in a tile plan request that omits them. MaxTiles
// is a server-side cap that requests cannot raise.
type TilingDefaults struct {
	ResolutionM float64
	MaxPixels   int
	MaxTiles    int
}

// Dependencies holds all services needed by HTTP handlers. Batch, History,
// NATS, DB, Cache and Model may be nil.
type Dependencies struct {
	Interactive *usecases.InteractiveService
	Batch       *usecases.BatchService
	History     *usecases.HistoryService
	Channels    []domain.Channel
	Tiling      TilingDefaults
	NATS        *nats.Conn
	DB          *postgres.DB
	Cache       Pinger
	Model       Pinger
}
