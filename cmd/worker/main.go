package main

import (
	"context"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/pyrovision/pyrovision/internal/app"
	"github.com/pyrovision/pyrovision/internal/workflows"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := app.Start(ctx, "pyrovision-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	defer rt.Close()

	if err := rt.OpenDB(ctx, false); err != nil {
		log.Fatalf("%v", err)
	}
	rt.OpenCache()
	rt.OpenNATS()

	src, err := rt.FeedSource()
	if err != nil {
		log.Fatalf("feed: %v", err)
	}
	batch, err := rt.BatchService(ctx, src)
	if err != nil {
		log.Fatalf("batch: %v", err)
	}

	c, err := client.Dial(client.Options{
		HostPort:  rt.Cfg.Temporal.HostPort,
		Namespace: rt.Cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, rt.Cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.BatchRunWorkflow)
	w.RegisterActivity(&workflows.BatchActivities{Batch: batch})

	slog.Info("batch worker started", "task_queue", rt.Cfg.Temporal.TaskQueue, "feed", src.Name())
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
