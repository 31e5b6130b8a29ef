package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pyrovision/pyrovision/internal/adapters/channels"
	"github.com/pyrovision/pyrovision/internal/adapters/feed"
	"github.com/pyrovision/pyrovision/internal/adapters/postgres"
	"github.com/pyrovision/pyrovision/internal/adapters/sqlite"
	"github.com/pyrovision/pyrovision/internal/adapters/valkey"
	"github.com/pyrovision/pyrovision/internal/core/domain"
	"github.com/pyrovision/pyrovision/internal/core/ports"
	"github.com/pyrovision/pyrovision/internal/core/usecases"
	"github.com/pyrovision/pyrovision/internal/pkg/config"
)

// Dispatcher builds every channel that has credentials and the requested
// channel list.
func (r *Runtime) Dispatcher(ctx context.Context) (*usecases.AlertDispatcher, []domain.Channel, error) {
	adapters, err := channels.FromConfig(ctx, r.Cfg)
	if err != nil {
		return nil, nil, err
	}
	requested, err := r.Cfg.Alerts.ParsedChannels()
	if err != nil {
		return nil, nil, err
	}
	d := usecases.NewAlertDispatcher(adapters, r.Cfg.Alerts.ChannelTimeout, r.Cfg.Alerts.Deadline)
	slog.Info("alert channels", "requested", requested, "configured", d.Configured())
	return d, requested, nil
}

// Ledger opens the alert ledger when deduplication is on, otherwise nil.
func (r *Runtime) Ledger(ctx context.Context) (ports.AlertLedger, error) {
	if r.Cfg.Alerts.Dedup != config.DedupLedger {
		return nil, nil
	}
	switch r.Cfg.Alerts.LedgerBackend {
	case "postgres":
		if r.DB == nil {
			return nil, fmt.Errorf("%w: postgres alert ledger needs a database", domain.ErrConfiguration)
		}
		return postgres.NewLedger(r.DB), nil
	case "valkey":
		if r.Cache == nil {
			return nil, fmt.Errorf("%w: valkey alert ledger needs valkey", domain.ErrConfiguration)
		}
		return valkey.NewLedger(r.Cache), nil
	case "sqlite":
		l, err := sqlite.Open(ctx, r.Cfg.Alerts.SQLitePath)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, func() { _ = l.Close() })
		return l, nil
	}
	return nil, fmt.Errorf("%w: unknown ledger backend %q", domain.ErrConfiguration, r.Cfg.Alerts.LedgerBackend)
}

// FeedSource builds the pull feed for batch runs. The nats source is
// push-driven and has no pull form.
func (r *Runtime) FeedSource() (ports.FeedSource, error) {
	switch r.Cfg.Feed.Source {
	case config.FeedFile:
		return feed.NewFileSource(r.Cfg.Feed.Path), nil
	case config.FeedFIRMS:
		region, err := r.Cfg.Region.GeoRegion()
		if err != nil {
			return nil, err
		}
		src, err := feed.NewFIRMSSource(r.Cfg.Feed, region, r.Cfg.Imagery.Timeout)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	return nil, fmt.Errorf("%w: feed.source %q cannot be polled", domain.ErrConfiguration, r.Cfg.Feed.Source)
}

// BatchService wires the batch pipeline over src. src may be nil for the
// streaming path, which only calls HandleRecord.
func (r *Runtime) BatchService(ctx context.Context, src ports.FeedSource) (*usecases.BatchService, error) {
	region, err := r.Cfg.Region.GeoRegion()
	if err != nil {
		return nil, err
	}
	dispatcher, requested, err := r.Dispatcher(ctx)
	if err != nil {
		return nil, err
	}
	ledger, err := r.Ledger(ctx)
	if err != nil {
		return nil, err
	}
	return usecases.NewBatchService(usecases.BatchDeps{
		Feed:       src,
		Region:     region,
		Dispatcher: dispatcher,
		Channels:   requested,
		Detections: r.Detections(),
		Dispatches: r.Dispatches(),
		Publisher:  r.Events(),
		Ledger:     ledger,
		LedgerTTL:  r.Cfg.Alerts.LedgerTTL,
	}), nil
}
