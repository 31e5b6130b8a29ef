package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/pyrovision/pyrovision/internal/core/domain"
	"github.com/pyrovision/pyrovision/internal/core/usecases"
)

// BatchRunInput starts one durable batch run.
type BatchRunInput struct {
	Trigger string `json:"trigger"`
}

// BatchRunWorkflow collects qualifying detections and, when there are any,
// delivers them. Deliveries are never retried automatically: a retry would
// re-send on channels that already succeeded.
func BatchRunWorkflow(ctx workflow.Context, input BatchRunInput) (*usecases.BatchRunResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting batch run", "trigger", input.Trigger)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	var res usecases.BatchRunResult
	if err := workflow.ExecuteActivity(ctx, ActivityCollectQualifying).Get(ctx, &res); err != nil {
		return nil, err
	}

	if len(res.Qualifying) == 0 {
		res.State = usecases.BatchSkipped
		res.CompletedAt = workflow.Now(ctx).UTC()
		logger.Info("No in-region wildfires, nothing to alert", "runID", res.RunID)
		return &res, nil
	}

	var report domain.DispatchReport
	err := workflow.ExecuteActivity(ctx, ActivityDeliverAlerts, DeliverInput{
		RunID:      res.RunID,
		Qualifying: res.Qualifying,
	}).Get(ctx, &report)
	if err != nil {
		return nil, err
	}

	res.Report = &report
	res.State = usecases.BatchDispatched
	res.CompletedAt = workflow.Now(ctx).UTC()
	logger.Info("Batch run dispatched", "runID", res.RunID, "fires", report.Fires, "anySucceeded", report.AnySucceeded())
	return &res, nil
}
