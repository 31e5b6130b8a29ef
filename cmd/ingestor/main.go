package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsadapter "github.com/pyrovision/pyrovision/internal/adapters/nats"
	"github.com/pyrovision/pyrovision/internal/app"
	"github.com/pyrovision/pyrovision/internal/core/ports"
)

// The ingestor polls the configured feed and relays every record onto
// wildfire.feed.<source> for the streamer.
func main() {
	interval := flag.Duration("interval", 0, "poll repeatedly at this interval; 0 publishes one snapshot and exits")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := app.Start(ctx, "pyrovision-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	defer rt.Close()

	src, err := rt.FeedSource()
	if err != nil {
		log.Fatalf("feed: %v", err)
	}
	pub, err := natsadapter.NewPublisher(rt.Cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	if *interval <= 0 {
		if err := relay(ctx, src, pub); err != nil {
			pub.Close()
			log.Fatalf("relay: %v", err)
		}
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	slog.Info("ingestor polling", "feed", src.Name(), "interval", interval.String())
	for {
		if err := relay(ctx, src, pub); err != nil {
			slog.Error("relay failed", "feed", src.Name(), "error", err)
		}
		select {
		case <-ticker.C:
		case sig := <-quit:
			slog.Info("shutting down ingestor", "signal", sig.String())
			return
		}
	}
}

func relay(ctx context.Context, src ports.FeedSource, pub *natsadapter.Publisher) error {
	snap, err := src.Load(ctx)
	if err != nil {
		return err
	}
	published := 0
	for _, rec := range snap.Records {
		if err := pub.PublishFeedRecord(ctx, src.Name(), rec); err != nil {
			slog.Warn("publish feed record", "image_path", rec.ImagePath, "error", err)
			continue
		}
		published++
	}
	for _, rej := range snap.Rejected {
		slog.Warn("feed record rejected", "index", rej.Index, "reason", rej.Reason)
	}
	slog.Info("feed relayed", "feed", src.Name(), "published", published, "rejected", len(snap.Rejected))
	return nil
}
