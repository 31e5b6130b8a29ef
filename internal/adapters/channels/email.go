package channels

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/pyrovision/pyrovision/internal/core/domain"
	"github.com/pyrovision/pyrovision/internal/pkg/config"
)

// mailSender is the part of *mail.Client the email channel needs.
type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// EmailChannel sends alerts as a plain-text SMTP message to every recipient
// in a single submission.
type EmailChannel struct {
	from   string
	to     []string
	client mailSender
}

// NewEmailChannel builds an SMTP client from config. Port 465 uses implicit
// TLS, any other port requires STARTTLS.
func NewEmailChannel(cfg config.EmailConfig, timeout time.Duration) (*EmailChannel, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("%w: email", domain.ErrChannelNotConfigured)
	}

	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTimeout(timeout),
	}
	if cfg.SMTPPort == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: email: %v", domain.ErrConfiguration, err)
	}
	return &EmailChannel{from: cfg.From, to: cfg.To, client: client}, nil
}

func (c *EmailChannel) Channel() domain.Channel { return domain.ChannelEmail }

// Send returns the generated Message-ID on success.
func (c *EmailChannel) Send(ctx context.Context, msg domain.AlertMessage) (string, error) {
	m, err := c.compose(msg)
	if err != nil {
		return "", err
	}
	if err := c.client.DialAndSendWithContext(ctx, m); err != nil {
		return "", fmt.Errorf("%w: email: %v", domain.ErrDelivery, err)
	}
	var id string
	if h := m.GetGenHeader(mail.HeaderMessageID); len(h) > 0 {
		id = h[0]
	}
	return id, nil
}

func (c *EmailChannel) compose(msg domain.AlertMessage) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(c.from); err != nil {
		return nil, fmt.Errorf("%w: email sender %q: %v", domain.ErrConfiguration, c.from, err)
	}
	if err := m.To(c.to...); err != nil {
		return nil, fmt.Errorf("%w: email recipients: %v", domain.ErrConfiguration, err)
	}
	m.Subject(alertTitle)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, EmailBody(msg))
	return m, nil
}
