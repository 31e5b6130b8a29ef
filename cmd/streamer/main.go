package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	natsadapter "github.com/pyrovision/pyrovision/internal/adapters/nats"
	"github.com/pyrovision/pyrovision/internal/app"
	"github.com/pyrovision/pyrovision/internal/core/domain"
	"github.com/pyrovision/pyrovision/internal/core/ports"
	"github.com/pyrovision/pyrovision/internal/core/usecases"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := app.Start(ctx, "pyrovision-streamer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	defer rt.Close()

	if err := rt.OpenDB(ctx, false); err != nil {
		log.Fatalf("%v", err)
	}
	rt.OpenCache()
	rt.OpenNATS()

	batch, err := rt.BatchService(ctx, nil)
	if err != nil {
		log.Fatalf("batch: %v", err)
	}

	sub, err := natsadapter.NewSubscriber(rt.Cfg.NATS.URL, rt.Cfg.Feed.Durable)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer sub.Close()

	if err := consume(ctx, sub, batch); err != nil {
		log.Fatalf("subscribe: %v", err)
	}
	slog.Info("streamer listening", "subject", natsadapter.SubjectFeed, "durable", rt.Cfg.Feed.Durable)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())
}

// consume runs every inbound record through the batch pipeline. Only storage
// failures come back as errors; those are worth a redelivery.
func consume(ctx context.Context, sub ports.EventSubscriber, batch *usecases.BatchService) error {
	return sub.SubscribeFeed(ctx, func(ctx context.Context, rec domain.FeedRecord) error {
		res, err := batch.HandleRecord(ctx, rec)
		if err != nil {
			return err
		}
		if len(res.Qualifying) > 0 {
			slog.Info("streamed detection alerted", "image_path", rec.ImagePath, "run_id", res.RunID, "state", res.State)
		}
		return nil
	})
}
