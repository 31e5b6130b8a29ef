package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pyrovision/pyrovision/internal/adapters/imagery"
	"github.com/pyrovision/pyrovision/internal/app"
	"github.com/pyrovision/pyrovision/internal/core/usecases"
)

func main() {
	planOnly := flag.Bool("plan-only", false, "print the tile plan without downloading")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Start(ctx, "pyrovision-acquire")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	defer rt.Close()
	cfg := rt.Cfg.Imagery

	aoi, err := cfg.AOI()
	if err != nil {
		log.Fatalf("aoi: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if *planOnly {
		plans, err := usecases.PlanTiles(aoi, cfg.ResolutionM, cfg.MaxPixels, cfg.MaxTiles)
		if err != nil {
			log.Fatalf("plan: %v", err)
		}
		_ = enc.Encode(plans)
		return
	}

	provider, err := imagery.NewSentinelHub(ctx, cfg)
	if err != nil {
		log.Fatalf("sentinel hub: %v", err)
	}
	sink, err := imagery.NewFileSink(cfg.OutputDir)
	if err != nil {
		log.Fatalf("output dir: %v", err)
	}

	svc := usecases.NewAcquisitionService(provider, sink, cfg.ResolutionM, cfg.MaxPixels, cfg.MaxTiles, cfg.Concurrency)
	report, err := svc.Acquire(ctx, aoi)
	if err != nil {
		log.Fatalf("acquire: %v", err)
	}
	slog.Info("acquisition finished", "tiles", report.Tiles, "stored", len(report.Stored), "failed", len(report.Failed), "dir", cfg.OutputDir)
	_ = enc.Encode(report)
}
