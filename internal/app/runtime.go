// Package app wires configuration, backends and services for the binaries
// under cmd/.
package app

import (
	"context"
	"fmt"
	"log/slog"

	natsadapter "github.com/pyrovision/pyrovision/internal/adapters/nats"
	"github.com/pyrovision/pyrovision/internal/adapters/postgres"
	"github.com/pyrovision/pyrovision/internal/adapters/valkey"
	"github.com/pyrovision/pyrovision/internal/core/ports"
	"github.com/pyrovision/pyrovision/internal/pkg/config"
	"github.com/pyrovision/pyrovision/internal/pkg/logging"
	"github.com/pyrovision/pyrovision/internal/pkg/telemetry"
)

// Runtime holds the configuration and whichever optional backends a binary
// opened. Backends that fail to open are logged and left nil.
type Runtime struct {
	Cfg       *config.Config
	DB        *postgres.DB
	Cache     *valkey.Cache
	Publisher *natsadapter.Publisher

	closers []func()
}

// Start loads configuration and sets up logging and tracing.
func Start(ctx context.Context, service string) (*Runtime, error) {
	cfg, err := config.Load(service)
	if err != nil {
		return nil, err
	}
	logging.Setup(service, cfg.Log.Level, cfg.Log.Format)

	rt := &Runtime{Cfg: cfg}
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			rt.closers = append(rt.closers, shutdown)
		}
	}
	return rt, nil
}

// OpenDB connects to Postgres. A failure is returned only when required.
func (r *Runtime) OpenDB(ctx context.Context, required bool) error {
	db, err := postgres.New(ctx, r.Cfg.Database.DSN())
	if err != nil {
		if required {
			return fmt.Errorf("database: %w", err)
		}
		slog.Warn("database unavailable, history disabled", "error", err)
		return nil
	}
	r.DB = db
	r.closers = append(r.closers, db.Close)
	return nil
}

// OpenCache connects to Valkey.
func (r *Runtime) OpenCache() {
	cache, err := valkey.New(r.Cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
		return
	}
	r.Cache = cache
	r.closers = append(r.closers, cache.Close)
}

// OpenNATS connects the event publisher.
func (r *Runtime) OpenNATS() {
	pub, err := natsadapter.NewPublisher(r.Cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, events disabled", "error", err)
		return
	}
	r.Publisher = pub
	r.closers = append(r.closers, pub.Close)
}

// Close releases everything in reverse order of opening.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// Detections returns the detection repository, or nil without a database.
func (r *Runtime) Detections() ports.DetectionRepository {
	if r.DB == nil {
		return nil
	}
	return postgres.NewDetectionRepo(r.DB)
}

// Dispatches returns the dispatch repository, or nil without a database.
func (r *Runtime) Dispatches() ports.DispatchRepository {
	if r.DB == nil {
		return nil
	}
	return postgres.NewDispatchRepo(r.DB)
}

// Events returns the publisher, or nil without NATS.
func (r *Runtime) Events() ports.EventPublisher {
	if r.Publisher == nil {
		return nil
	}
	return r.Publisher
}

// CacheService returns the Valkey cache, or nil without it.
func (r *Runtime) CacheService() ports.CacheService {
	if r.Cache == nil {
		return nil
	}
	return r.Cache
}
