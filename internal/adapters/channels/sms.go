package channels

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/pyrovision/pyrovision/internal/core/domain"
	"github.com/pyrovision/pyrovision/internal/pkg/config"
)

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// SMSChannel sends alerts as a single Twilio message.
type SMSChannel struct {
	from string
	to   string
	api  messageCreator
}

func NewSMSChannel(cfg config.SMSConfig) (*SMSChannel, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("%w: sms", domain.ErrChannelNotConfigured)
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &SMSChannel{from: cfg.From, to: cfg.To, api: client.Api}, nil
}

func (c *SMSChannel) Channel() domain.Channel { return domain.ChannelSMS }

// Send returns the Twilio message SID. The Twilio client does not take a
// context; the dispatcher enforces the timeout around this call.
func (c *SMSChannel) Send(_ context.Context, msg domain.AlertMessage) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(c.to)
	params.SetFrom(c.from)
	params.SetBody(SMSBody(msg))

	resp, err := c.api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("%w: sms: %v", domain.ErrDelivery, err)
	}
	if resp == nil || resp.Sid == nil {
		return "", nil
	}
	return *resp.Sid, nil
}
