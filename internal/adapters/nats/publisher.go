package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/pyrovision/pyrovision/internal/core/domain"
)

// Subjects.
const (
	SubjectDetectionPrefix = "wildfire.detections."
	SubjectDetections      = "wildfire.detections.>"
	SubjectDispatched      = "wildfire.alerts.dispatched"
	SubjectAlerts          = "wildfire.alerts.>"
	SubjectFeed            = "wildfire.feed.>"
)

// Streams backs every subject with JetStream.
var Streams = []nats.StreamConfig{
	{
		Name:      "WILDFIRE_DETECTIONS",
		Subjects:  []string{SubjectDetections},
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   nats.FileStorage,
	},
	{
		Name:      "WILDFIRE_ALERTS",
		Subjects:  []string{SubjectAlerts},
		Retention: nats.InterestPolicy,
		MaxAge:    30 * 24 * time.Hour,
		Storage:   nats.FileStorage,
	},
	{
		Name:      "WILDFIRE_FEED",
		Subjects:  []string{SubjectFeed},
		Retention: nats.WorkQueuePolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	},
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if err := ensureStreams(js); err != nil {
		return nil, err
	}

	return &Publisher{conn: conn, js: js}, nil
}

func ensureStreams(js nats.JetStreamContext) error {
	for _, cfg := range Streams {
		cfg := cfg
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}
	return nil
}

// DetectionSubject is the subject a detection is published on.
func DetectionSubject(rec *domain.DetectionRecord) string {
	return SubjectDetectionPrefix + rec.Label.Slug()
}

func (p *Publisher) PublishDetection(ctx context.Context, rec *domain.DetectionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(DetectionSubject(rec), data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishDispatch(ctx context.Context, report *domain.DispatchReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectDispatched, data, nats.Context(ctx), nats.MsgId(report.ID))
	return err
}

// PublishFeedRecord pushes a scored record for the streaming orchestrator.
func (p *Publisher) PublishFeedRecord(ctx context.Context, source string, rec domain.FeedRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = p.js.Publish("wildfire.feed."+source, data, nats.Context(ctx))
	return err
}

// Ping reports whether the connection is up.
func (p *Publisher) Ping() error {
	if !p.conn.IsConnected() {
		return fmt.Errorf("nats not connected: %s", p.conn.Status())
	}
	return nil
}

// Conn exposes the underlying connection for core subscriptions.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn dials NATS with reconnects; shared by the publisher and the feed subscriber.
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("pyrovision"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
