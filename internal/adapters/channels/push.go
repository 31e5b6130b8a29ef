package channels

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/pyrovision/pyrovision/internal/core/domain"
	"github.com/pyrovision/pyrovision/internal/pkg/config"
)

type pushSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushChannel publishes alerts to an FCM topic.
type PushChannel struct {
	topic  string
	client pushSender
}

func NewPushChannel(ctx context.Context, cfg config.PushConfig) (*PushChannel, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("%w: push", domain.ErrChannelNotConfigured)
	}
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("%w: firebase app: %v", domain.ErrConfiguration, err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: firebase messaging: %v", domain.ErrConfiguration, err)
	}
	return &PushChannel{topic: cfg.Topic, client: client}, nil
}

func (c *PushChannel) Channel() domain.Channel { return domain.ChannelPush }

// Send returns the FCM message name.
func (c *PushChannel) Send(ctx context.Context, msg domain.AlertMessage) (string, error) {
	id, err := c.client.Send(ctx, c.message(msg))
	if err != nil {
		return "", fmt.Errorf("%w: push: %v", domain.ErrDelivery, err)
	}
	return id, nil
}

func (c *PushChannel) message(msg domain.AlertMessage) *messaging.Message {
	return &messaging.Message{
		Notification: &messaging.Notification{
			Title: alertTitle,
			Body:  PushBody(msg),
		},
		Data:  map[string]string{pushDataKey: sourceIDs(msg)},
		Topic: c.topic,
	}
}
