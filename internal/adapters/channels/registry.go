package channels

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pyrovision/pyrovision/internal/core/domain"
	"github.com/pyrovision/pyrovision/internal/core/ports"
	"github.com/pyrovision/pyrovision/internal/pkg/config"
)

// FromConfig builds every channel that has credentials. Channels without
// credentials are left out and the dispatcher reports them as not
// configured. Any other construction error is returned.
func FromConfig(ctx context.Context, cfg *config.Config) ([]ports.NotificationChannel, error) {
	var out []ports.NotificationChannel

	email, err := NewEmailChannel(cfg.Email, cfg.Alerts.ChannelTimeout)
	if err = keep(&out, email, err, domain.ChannelEmail); err != nil {
		return nil, err
	}
	sms, err := NewSMSChannel(cfg.SMS)
	if err = keep(&out, sms, err, domain.ChannelSMS); err != nil {
		return nil, err
	}
	push, err := NewPushChannel(ctx, cfg.Push)
	if err = keep(&out, push, err, domain.ChannelPush); err != nil {
		return nil, err
	}
	return out, nil
}

func keep[C ports.NotificationChannel](out *[]ports.NotificationChannel, c C, err error, name domain.Channel) error {
	if errors.Is(err, domain.ErrChannelNotConfigured) {
		slog.Warn("alert channel not configured", "channel", name)
		return nil
	}
	if err != nil {
		return err
	}
	*out = append(*out, c)
	return nil
}
