package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"

	"github.com/pyrovision/pyrovision/internal/app"
	"github.com/pyrovision/pyrovision/internal/core/usecases"
	"github.com/pyrovision/pyrovision/internal/workflows"
)

// Exit status is non-zero only when configuration or the feed cannot be
// loaded. Channel failures are reported in the printed result.
func main() {
	viaTemporal := flag.Bool("temporal", false, "run the pass as a Temporal workflow instead of inline")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := app.Start(ctx, "pyrovision-batch")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	defer rt.Close()

	var res *usecases.BatchRunResult
	if *viaTemporal {
		res, err = runWorkflow(ctx, rt)
	} else {
		res, err = runInline(ctx, rt)
	}
	if err != nil {
		rt.Close()
		log.Fatalf("batch: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		slog.Error("write report", "error", err)
	}
	if res.Report != nil && !res.Report.AnySucceeded() {
		slog.Warn("no channel delivered the alert", "run_id", res.RunID)
	}
}

func runInline(ctx context.Context, rt *app.Runtime) (*usecases.BatchRunResult, error) {
	if err := rt.OpenDB(ctx, false); err != nil {
		return nil, err
	}
	rt.OpenCache()
	rt.OpenNATS()

	src, err := rt.FeedSource()
	if err != nil {
		return nil, err
	}
	svc, err := rt.BatchService(ctx, src)
	if err != nil {
		return nil, err
	}
	return svc.Run(ctx)
}

func runWorkflow(ctx context.Context, rt *app.Runtime) (*usecases.BatchRunResult, error) {
	c, err := client.Dial(client.Options{
		HostPort:  rt.Cfg.Temporal.HostPort,
		Namespace: rt.Cfg.Temporal.Namespace,
	})
	if err != nil {
		return nil, err
	}
	defer c.Close()

	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                       "batch-" + uuid.NewString(),
		TaskQueue:                rt.Cfg.Temporal.TaskQueue,
		WorkflowExecutionTimeout: 10 * time.Minute,
	}, workflows.BatchRunWorkflow, workflows.BatchRunInput{Trigger: "cli"})
	if err != nil {
		return nil, err
	}
	slog.Info("batch workflow started", "workflow_id", run.GetID(), "run_id", run.GetRunID())

	var res usecases.BatchRunResult
	if err := run.Get(ctx, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
