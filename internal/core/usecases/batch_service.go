package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pyrovision/pyrovision/internal/core/domain"
	"github.com/pyrovision/pyrovision/internal/core/ports"
	"github.com/pyrovision/pyrovision/internal/pkg/metrics"
	"github.com/pyrovision/pyrovision/internal/pkg/telemetry"
)

// BatchState is a step of one batch run.
type BatchState string

const (
	BatchIdle       BatchState = "idle"
	BatchLoaded     BatchState = "loaded"
	BatchFiltered   BatchState = "filtered"
	BatchDispatched BatchState = "dispatched"
	BatchSkipped    BatchState = "skipped"
)

// BatchRunResult summarises one pass over a feed snapshot.
type BatchRunResult struct {
	RunID       string                   `json:"run_id"`
	Feed        string                   `json:"feed"`
	State       BatchState               `json:"state"`
	Loaded      int                      `json:"loaded"`
	Rejected    []domain.RecordError     `json:"rejected,omitempty"`
	Qualifying  []domain.DetectionRecord `json:"qualifying"`
	Suppressed  int                      `json:"suppressed"`
	Report      *domain.DispatchReport   `json:"report,omitempty"`
	StartedAt   time.Time                `json:"started_at"`
	CompletedAt time.Time                `json:"completed_at"`
}

// BatchDeps wires a BatchService. Detections, Dispatches, Ledger and
// Publisher are optional.
type BatchDeps struct {
	Feed       ports.FeedSource
	Region     domain.GeoRegion
	Dispatcher *AlertDispatcher
	Channels   []domain.Channel
	Detections ports.DetectionRepository
	Dispatches ports.DispatchRepository
	Publisher  ports.EventPublisher
	Ledger     ports.AlertLedger
	LedgerTTL  time.Duration
}

// BatchService runs the load → filter → dispatch pipeline over a scored feed.
// Runs on one service are serialised.
type BatchService struct {
	mu   sync.Mutex
	deps BatchDeps
	now  func() time.Time
}

// NewBatchService creates a new BatchService.
func NewBatchService(deps BatchDeps) *BatchService {
	return &BatchService{deps: deps, now: time.Now}
}

// Run performs one full pass: load the feed, filter to in-region wildfires,
// and dispatch them over the configured channels when there are any.
// Only a feed load failure is returned as an error; delivery failures are
// in the report.
func (s *BatchService) Run(ctx context.Context) (*BatchRunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanBatchRun)
	defer span.End()

	res, err := s.collect(ctx)
	if err != nil {
		metrics.BatchRuns.WithLabelValues("failed").Inc()
		return nil, err
	}
	span.SetAttributes(attribute.String(telemetry.AttrRunID, res.RunID))

	if err := s.finish(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Collect loads the feed and returns the filtered result without dispatching.
// It is the first half of Run, exposed for durable workflows.
func (s *BatchService) Collect(ctx context.Context) (*BatchRunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collect(ctx)
}

// Deliver dispatches qualifying detections collected by run runID and records
// the outcome. It is the second half of Run.
func (s *BatchService) Deliver(ctx context.Context, runID string, qualifying []domain.DetectionRecord) (*domain.DispatchReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deliver(ctx, runID, qualifying)
}

// HandleRecord runs a single streamed record through the same parse, filter
// and dispatch path as a one-record batch.
func (s *BatchService) HandleRecord(ctx context.Context, rec domain.FeedRecord) (*BatchRunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanStreamRecord)
	defer span.End()

	res := s.process(ctx, uuid.NewString(), "stream", domain.FeedSnapshot{Records: []domain.FeedRecord{rec}})
	if err := s.finish(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *BatchService) collect(ctx context.Context) (*BatchRunResult, error) {
	name := s.deps.Feed.Name()
	snap, err := s.deps.Feed.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load feed %s: %w", name, err)
	}
	return s.process(ctx, uuid.NewString(), name, snap), nil
}

// process validates, stores and filters one snapshot, ending in BatchFiltered.
func (s *BatchService) process(ctx context.Context, runID, feed string, snap domain.FeedSnapshot) *BatchRunResult {
	now := s.now().UTC()
	res := &BatchRunResult{
		RunID:     runID,
		Feed:      feed,
		State:     BatchLoaded,
		Loaded:    len(snap.Records),
		Rejected:  append([]domain.RecordError(nil), snap.Rejected...),
		StartedAt: now,
	}

	records := make([]domain.DetectionRecord, 0, len(snap.Records))
	for i, fr := range snap.Records {
		rec, err := fr.ToDetection(now)
		if err != nil {
			res.Rejected = append(res.Rejected, domain.RecordError{Index: i, Source: fr.ImagePath, Reason: err.Error()})
			continue
		}
		records = append(records, rec)
	}
	if n := len(res.Rejected); n > 0 {
		metrics.FeedRecordsRejected.WithLabelValues(feed).Add(float64(n))
		for _, r := range res.Rejected {
			slog.WarnContext(ctx, "feed record rejected", "run_id", runID, "index", r.Index, "source", r.Source, "reason", r.Reason)
		}
	}

	s.record(ctx, records)

	inRegion := FilterInRegion(records, s.deps.Region)
	metrics.InRegionDetections.Add(float64(len(inRegion)))

	res.Qualifying, res.Suppressed = s.dedup(ctx, inRegion)
	res.State = BatchFiltered

	slog.InfoContext(ctx, "feed filtered",
		"run_id", runID,
		"feed", feed,
		"loaded", res.Loaded,
		"rejected", len(res.Rejected),
		"in_region", len(inRegion),
		"suppressed", res.Suppressed,
	)
	return res
}

// finish dispatches a filtered result or marks it skipped.
func (s *BatchService) finish(ctx context.Context, res *BatchRunResult) error {
	if len(res.Qualifying) == 0 {
		res.State = BatchSkipped
		res.CompletedAt = s.now().UTC()
		metrics.BatchRuns.WithLabelValues(string(BatchSkipped)).Inc()
		slog.InfoContext(ctx, "no in-region wildfires, nothing to alert", "run_id", res.RunID)
		return nil
	}

	report, err := s.deliver(ctx, res.RunID, res.Qualifying)
	if err != nil {
		metrics.BatchRuns.WithLabelValues("failed").Inc()
		return err
	}
	res.Report = report
	res.State = BatchDispatched
	res.CompletedAt = s.now().UTC()
	metrics.BatchRuns.WithLabelValues(string(BatchDispatched)).Inc()
	return nil
}

func (s *BatchService) deliver(ctx context.Context, runID string, qualifying []domain.DetectionRecord) (*domain.DispatchReport, error) {
	report, err := s.deps.Dispatcher.Dispatch(ctx, domain.AlertBatch{Fires: qualifying}, s.deps.Channels)
	if err != nil {
		return nil, fmt.Errorf("dispatch run %s: %w", runID, err)
	}

	if s.deps.Dispatches != nil {
		if err := s.deps.Dispatches.Save(ctx, report); err != nil {
			slog.ErrorContext(ctx, "save dispatch report", "run_id", runID, "dispatch_id", report.ID, "error", err)
		}
	}
	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.PublishDispatch(ctx, report); err != nil {
			slog.WarnContext(ctx, "publish dispatch report", "dispatch_id", report.ID, "error", err)
		}
	}
	if s.deps.Ledger != nil && report.AnySucceeded() {
		if err := s.deps.Ledger.Mark(ctx, report.SourceIDs, s.deps.LedgerTTL); err != nil {
			slog.ErrorContext(ctx, "mark alert ledger", "run_id", runID, "error", err)
		}
	}
	return report, nil
}

// record persists and publishes every valid detection. Failures are logged;
// history is not allowed to block alerting.
func (s *BatchService) record(ctx context.Context, records []domain.DetectionRecord) {
	if len(records) == 0 {
		return
	}
	if s.deps.Detections != nil {
		if err := s.deps.Detections.InsertBatch(ctx, records); err != nil {
			slog.ErrorContext(ctx, "store detections", "count", len(records), "error", err)
		}
	}
	if s.deps.Publisher != nil {
		for i := range records {
			if err := s.deps.Publisher.PublishDetection(ctx, &records[i]); err != nil {
				slog.WarnContext(ctx, "publish detection", "source_id", records[i].SourceID, "error", err)
			}
		}
	}
}

// dedup drops records the ledger has already alerted. A ledger failure
// lets everything through so that alerts are not lost.
func (s *BatchService) dedup(ctx context.Context, recs []domain.DetectionRecord) ([]domain.DetectionRecord, int) {
	if s.deps.Ledger == nil || len(recs) == 0 {
		return recs, 0
	}
	seen, err := s.deps.Ledger.Seen(ctx, sourceIDs(recs))
	if err != nil {
		slog.ErrorContext(ctx, "alert ledger lookup failed, not deduplicating", "error", err)
		return recs, 0
	}

	out := make([]domain.DetectionRecord, 0, len(recs))
	for _, r := range recs {
		if seen[r.SourceID] {
			continue
		}
		out = append(out, r)
	}
	suppressed := len(recs) - len(out)
	metrics.DedupSuppressed.Add(float64(suppressed))
	return out, suppressed
}
