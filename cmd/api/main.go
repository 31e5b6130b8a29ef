package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/pyrovision/pyrovision/internal/adapters/http"
	"github.com/pyrovision/pyrovision/internal/adapters/inference"
	"github.com/pyrovision/pyrovision/internal/adapters/memory"
	"github.com/pyrovision/pyrovision/internal/adapters/valkey"
	"github.com/pyrovision/pyrovision/internal/app"
	"github.com/pyrovision/pyrovision/internal/core/ports"
	"github.com/pyrovision/pyrovision/internal/core/usecases"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := app.Start(ctx, "pyrovision-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	defer rt.Close()
	cfg := rt.Cfg

	if err := rt.OpenDB(ctx, false); err != nil {
		log.Fatalf("%v", err)
	}
	rt.OpenCache()
	rt.OpenNATS()

	// Sessions live in Valkey when it is reachable, otherwise in process.
	var sessionCache ports.CacheService = memory.New()
	if rt.Cache != nil {
		sessionCache = rt.Cache
	}

	region, err := cfg.Region.GeoRegion()
	if err != nil {
		log.Fatalf("region: %v", err)
	}
	dispatcher, requested, err := rt.Dispatcher(ctx)
	if err != nil {
		log.Fatalf("channels: %v", err)
	}

	model := inference.NewTFServingModel(cfg.Model.URL, cfg.Model.Timeout)
	detector := usecases.NewDetectorService(model, cfg.Model.InputWidth, cfg.Model.InputHeight, cfg.Model.MaxImagePixels)

	interactive := usecases.NewInteractiveService(usecases.InteractiveDeps{
		Classifier: detector,
		Sessions:   valkey.NewSessionStore(sessionCache),
		Dispatcher: dispatcher,
		Region:     region,
		Channels:   requested,
		SessionTTL: cfg.Session.TTL,
		Detections: rt.Detections(),
		Dispatches: rt.Dispatches(),
		Publisher:  rt.Events(),
	})

	deps := &http.Dependencies{
		Interactive: interactive,
		History:     usecases.NewHistoryService(rt.Detections(), rt.Dispatches(), rt.CacheService()),
		Channels:    requested,
		Tiling:      http.TilingDefaults{
			ResolutionM: cfg.Imagery.ResolutionM,
			MaxPixels:   cfg.Imagery.MaxPixels,
			MaxTiles:    cfg.Imagery.MaxTiles,
		},
		DB:          rt.DB,
		Model:       model,
	}
	if rt.Cache != nil {
		deps.Cache = rt.Cache
	}
	if rt.Publisher != nil {
		deps.NATS = rt.Publisher.Conn()
	}

	// Batch trigger is only offered when the feed can be polled.
	if src, err := rt.FeedSource(); err != nil {
		slog.Warn("batch trigger disabled", "error", err)
	} else if batch, err := rt.BatchService(ctx, src); err != nil {
		log.Fatalf("batch: %v", err)
	} else {
		deps.Batch = batch
	}

	fiberApp := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimitMB << 20,
		AppName:      "PyroVision API",
	})
	fiberApp.Use(recover.New())
	fiberApp.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		MaxAge:       3600,
	}))

	http.SetupRoutes(fiberApp, deps)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "region", region)
		if err := fiberApp.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// In-flight confirms may be mid-dispatch; allow them the alert deadline.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Alerts.Deadline+5*time.Second)
	defer shutdownCancel()

	if err := fiberApp.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
