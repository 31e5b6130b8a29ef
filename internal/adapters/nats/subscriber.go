package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/pyrovision/pyrovision/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	durable string
	subs    []*nats.Subscription
}

// NewSubscriber connects and consumes under the given durable name.
func NewSubscriber(url, durable string) (*Subscriber, error) {
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
	return &Subscriber{conn: conn, js: js, durable: durable}, nil
}

// SubscribeFeed delivers every inbound feed record to handler. Records that
// do not decode are terminated, since redelivery cannot fix them; handler
// errors are nak'd for another attempt.
func (s *Subscriber) SubscribeFeed(ctx context.Context, handler func(ctx context.Context, rec domain.FeedRecord) error) error {
	sub, err := s.js.Subscribe(SubjectFeed, func(msg *nats.Msg) {
		var rec domain.FeedRecord
		if err := json.Unmarshal(msg.Data, &rec); err != nil {
			slog.Warn("undecodable feed message", "subject", msg.Subject, "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, rec); err != nil {
			slog.Warn("feed record handler failed", "subject", msg.Subject, "image_path", rec.ImagePath, "error", err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(s.durable),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
