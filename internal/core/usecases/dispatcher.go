package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pyrovision/pyrovision/internal/core/domain"
	"github.com/pyrovision/pyrovision/internal/core/ports"
	"github.com/pyrovision/pyrovision/internal/pkg/metrics"
	"github.com/pyrovision/pyrovision/internal/pkg/telemetry"
)

// AlertDispatcher fans an alert batch out to every requested channel.
// Each channel gets exactly one attempt and one outcome slot; a failure on
// one channel never affects the others.
type AlertDispatcher struct {
	channels       map[domain.Channel]ports.NotificationChannel
	channelTimeout time.Duration
	deadline       time.Duration
	now            func() time.Time
}

// NewAlertDispatcher creates a dispatcher over the configured channel adapters.
// A zero timeout or deadline disables that bound.
func NewAlertDispatcher(channels []ports.NotificationChannel, channelTimeout, deadline time.Duration) *AlertDispatcher {
	m := make(map[domain.Channel]ports.NotificationChannel, len(channels))
	for _, ch := range channels {
		if ch != nil {
			m[ch.Channel()] = ch
		}
	}
	return &AlertDispatcher{
		channels:       m,
		channelTimeout: channelTimeout,
		deadline:       deadline,
		now:            time.Now,
	}
}

// Configured lists the channels that have an adapter, in dispatch order.
func (d *AlertDispatcher) Configured() []domain.Channel {
	var out []domain.Channel
	for _, c := range domain.AllChannels {
		if _, ok := d.channels[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Dispatch sends batch over the requested channels (all channels when none
// are given) and returns a report with one outcome per distinct channel in
// request order. Delivery failures are recorded in the report, not returned.
func (d *AlertDispatcher) Dispatch(ctx context.Context, batch domain.AlertBatch, requested []domain.Channel) (*domain.DispatchReport, error) {
	if len(batch.Fires) == 0 {
		return nil, domain.ErrEmptyBatch
	}
	if len(requested) == 0 {
		requested = domain.AllChannels
	}
	requested = uniqueChannels(requested)

	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanDispatch)
	defer span.End()
	span.SetAttributes(attribute.Int(telemetry.AttrFires, len(batch.Fires)))

	dctx := ctx
	if d.deadline > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, d.deadline)
		defer cancel()
	}

	msg := domain.AlertMessage{
		Lines:       batch.Lines(),
		Fires:       batch.Fires,
		GeneratedAt: d.now().UTC(),
	}
	report := &domain.DispatchReport{
		ID:        uuid.NewString(),
		Fires:     len(batch.Fires),
		SourceIDs: sourceIDs(batch.Fires),
		Outcomes:  make([]domain.ChannelOutcome, len(requested)),
		StartedAt: d.now().UTC(),
	}

	var wg sync.WaitGroup
	for i, c := range requested {
		adapter, ok := d.channels[c]
		if !ok {
			report.Outcomes[i] = domain.ChannelOutcome{
				Channel: c,
				Error:   domain.ErrChannelNotConfigured.Error(),
			}
			metrics.AlertsSent.WithLabelValues(string(c), "not_configured").Inc()
			slog.WarnContext(ctx, "alert channel not configured", "channel", c)
			continue
		}

		wg.Add(1)
		go func(slot *domain.ChannelOutcome, adapter ports.NotificationChannel) {
			defer wg.Done()
			*slot = d.send(dctx, adapter, msg)
		}(&report.Outcomes[i], adapter)
	}
	wg.Wait()

	report.CompletedAt = d.now().UTC()
	span.SetAttributes(attribute.Bool(telemetry.AttrSucceeded, report.AnySucceeded()))
	slog.InfoContext(ctx, "alert dispatch complete",
		"dispatch_id", report.ID,
		"fires", report.Fires,
		"channels", len(report.Outcomes),
		"any_succeeded", report.AnySucceeded(),
	)
	return report, nil
}

type sendResult struct {
	providerID string
	err        error
}

func (d *AlertDispatcher) send(ctx context.Context, adapter ports.NotificationChannel, msg domain.AlertMessage) domain.ChannelOutcome {
	c := adapter.Channel()
	out := domain.ChannelOutcome{Channel: c}

	if err := ctx.Err(); err != nil {
		out.Error = fmt.Sprintf("not started: %v", err)
		metrics.AlertsSent.WithLabelValues(string(c), "skipped").Inc()
		slog.WarnContext(ctx, "alert channel skipped, dispatch deadline passed", "channel", c)
		return out
	}

	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanChannelSend)
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.AttrChannel, string(c)))

	sctx := ctx
	if d.channelTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, d.channelTimeout)
		defer cancel()
	}

	out.Attempted = true
	start := time.Now()

	// Some provider SDKs ignore the context, so the call runs on its own
	// goroutine and a late result is dropped into the buffered channel.
	done := make(chan sendResult, 1)
	go func() {
		id, err := adapter.Send(sctx, msg)
		done <- sendResult{providerID: id, err: err}
	}()

	var res sendResult
	select {
	case res = <-done:
	case <-sctx.Done():
		res.err = sctx.Err()
		if errors.Is(res.err, context.DeadlineExceeded) {
			res.err = fmt.Errorf("timed out after %s", time.Since(start).Round(time.Millisecond))
		}
	}

	out.Duration = time.Since(start)
	metrics.ChannelSendDuration.WithLabelValues(string(c)).Observe(out.Duration.Seconds())

	if res.err != nil {
		err := res.err
		if !errors.Is(err, domain.ErrDelivery) {
			err = fmt.Errorf("%w: %s: %v", domain.ErrDelivery, c, err)
		}
		out.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.AlertsSent.WithLabelValues(string(c), "failure").Inc()
		slog.WarnContext(ctx, "alert delivery failed", "channel", c, "error", res.err)
		return out
	}

	out.Succeeded = true
	out.ProviderID = res.providerID
	metrics.AlertsSent.WithLabelValues(string(c), "success").Inc()
	slog.InfoContext(ctx, "alert delivered", "channel", c, "provider_id", res.providerID)
	return out
}

func uniqueChannels(in []domain.Channel) []domain.Channel {
	seen := make(map[domain.Channel]bool, len(in))
	out := make([]domain.Channel, 0, len(in))
	for _, c := range in {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

func sourceIDs(recs []domain.DetectionRecord) []string {
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.SourceID)
	}
	return ids
}
