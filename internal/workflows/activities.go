package workflows

import (
	"context"
	"fmt"

	"github.com/pyrovision/pyrovision/internal/core/domain"
	"github.com/pyrovision/pyrovision/internal/core/usecases"
)

// Activity names as registered on the worker.
const (
	ActivityCollectQualifying = "CollectQualifying"
	ActivityDeliverAlerts     = "DeliverAlerts"
)

// DeliverInput is what the delivery activity needs from collection.
type DeliverInput struct {
	RunID      string                   `json:"run_id"`
	Qualifying []domain.DetectionRecord `json:"qualifying"`
}

// BatchActivities exposes the two halves of a batch run to Temporal.
type BatchActivities struct {
	Batch *usecases.BatchService
}

// CollectQualifying loads the feed and returns the in-region detections
// that should be alerted.
func (a *BatchActivities) CollectQualifying(ctx context.Context) (*usecases.BatchRunResult, error) {
	res, err := a.Batch.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}
	return res, nil
}

// DeliverAlerts fans the qualifying detections out over every channel.
// Channel failures are part of the report, not an activity error.
func (a *BatchActivities) DeliverAlerts(ctx context.Context, in DeliverInput) (*domain.DispatchReport, error) {
	report, err := a.Batch.Deliver(ctx, in.RunID, in.Qualifying)
	if err != nil {
		return nil, fmt.Errorf("deliver run %s: %w", in.RunID, err)
	}
	return report, nil
}
