package channels

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/wneessen/go-mail"

	"github.com/pyrovision/pyrovision/internal/core/domain"
	"github.com/pyrovision/pyrovision/internal/pkg/config"
)

func alertMessage() domain.AlertMessage {
	batch := domain.AlertBatch{Fires: []domain.DetectionRecord{
		{SourceID: "tiles/mumbai_001.png", Coordinate: domain.Coordinate{Lat: 19, Lon: 72.5}, Label: domain.LabelWildfire},
		{SourceID: "tiles/mumbai_002.png", Coordinate: domain.Coordinate{Lat: 19.25, Lon: 73}, Label: domain.LabelWildfire},
	}}
	return domain.AlertMessage{Lines: batch.Lines(), Fires: batch.Fires}
}

func TestBodies(t *testing.T) {
	msg := alertMessage()

	wantEmail := "Wildfires detected in the following locations:\ntiles/mumbai_001.png (19.0,72.5)\ntiles/mumbai_002.png (19.25,73.0)"
	if got := EmailBody(msg); got != wantEmail {
		t.Errorf("email body = %q", got)
	}
	wantSMS := "🔥 Wildfires detected:\ntiles/mumbai_001.png (19.0,72.5)\ntiles/mumbai_002.png (19.25,73.0)"
	if got := SMSBody(msg); got != wantSMS {
		t.Errorf("sms body = %q", got)
	}
	wantPush := "Wildfires detected: tiles/mumbai_001.png (19.0,72.5), tiles/mumbai_002.png (19.25,73.0)"
	if got := PushBody(msg); got != wantPush {
		t.Errorf("push body = %q", got)
	}
}

type fakeMailer struct {
	sent []*mail.Msg
	err  error
}

func (f *fakeMailer) DialAndSendWithContext(_ context.Context, msgs ...*mail.Msg) error {
	f.sent = append(f.sent, msgs...)
	return f.err
}

func TestEmailChannel_Send(t *testing.T) {
	fake := &fakeMailer{}
	c := &EmailChannel{from: "alerts@example.org", to: []string{"a@example.org", "b@example.org"}, client: fake}

	id, err := c.Send(context.Background(), alertMessage())
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Error("expected a message id")
	}
	if len(fake.sent) != 1 {
		t.Fatalf("expected one submission, got %d", len(fake.sent))
	}
	rcpts, err := fake.sent[0].GetRecipients()
	if err != nil || len(rcpts) != 2 {
		t.Errorf("recipients %v, err %v", rcpts, err)
	}
	if subj := fake.sent[0].GetGenHeader(mail.HeaderSubject); len(subj) != 1 || subj[0] != alertTitle {
		t.Errorf("subject = %v", subj)
	}
}

func TestEmailChannel_DeliveryError(t *testing.T) {
	c := &EmailChannel{from: "alerts@example.org", to: []string{"a@example.org"}, client: &fakeMailer{err: errors.New("535 auth failed")}}
	if _, err := c.Send(context.Background(), alertMessage()); !errors.Is(err, domain.ErrDelivery) {
		t.Fatalf("expected delivery error, got %v", err)
	}
}

func TestEmailChannel_BadSender(t *testing.T) {
	c := &EmailChannel{from: "not an address", to: []string{"a@example.org"}, client: &fakeMailer{}}
	if _, err := c.Send(context.Background(), alertMessage()); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

type fakeTwilio struct {
	params *twilioApi.CreateMessageParams
	err    error
}

func (f *fakeTwilio) CreateMessage(p *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = p
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func TestSMSChannel_Send(t *testing.T) {
	fake := &fakeTwilio{}
	c := &SMSChannel{from: "+15550000000", to: "+919800000000", api: fake}

	id, err := c.Send(context.Background(), alertMessage())
	if err != nil {
		t.Fatal(err)
	}
	if id != "SM123" {
		t.Errorf("sid = %q", id)
	}
	if *fake.params.To != "+919800000000" || *fake.params.From != "+15550000000" {
		t.Errorf("params to=%s from=%s", *fake.params.To, *fake.params.From)
	}
	if *fake.params.Body != SMSBody(alertMessage()) {
		t.Errorf("body = %q", *fake.params.Body)
	}

	fake.err = errors.New("21211 invalid number")
	if _, err := c.Send(context.Background(), alertMessage()); !errors.Is(err, domain.ErrDelivery) {
		t.Errorf("expected delivery error, got %v", err)
	}
}

type fakeFCM struct {
	msg *messaging.Message
	err error
}

func (f *fakeFCM) Send(_ context.Context, m *messaging.Message) (string, error) {
	f.msg = m
	if f.err != nil {
		return "", f.err
	}
	return "projects/p/messages/1", nil
}

func TestPushChannel_Send(t *testing.T) {
	fake := &fakeFCM{}
	c := &PushChannel{topic: "wildfire_alerts", client: fake}

	id, err := c.Send(context.Background(), alertMessage())
	if err != nil {
		t.Fatal(err)
	}
	if id != "projects/p/messages/1" {
		t.Errorf("id = %q", id)
	}
	if fake.msg.Topic != "wildfire_alerts" || fake.msg.Notification.Title != alertTitle {
		t.Errorf("message = %+v", fake.msg)
	}
	if got := fake.msg.Data[pushDataKey]; got != "tiles/mumbai_001.png,tiles/mumbai_002.png" {
		t.Errorf("data = %q", got)
	}

	fake.err = errors.New("unavailable")
	if _, err := c.Send(context.Background(), alertMessage()); !errors.Is(err, domain.ErrDelivery) {
		t.Errorf("expected delivery error, got %v", err)
	}
}

func TestConstructorsRequireConfig(t *testing.T) {
	if _, err := NewEmailChannel(config.EmailConfig{}, 0); !errors.Is(err, domain.ErrChannelNotConfigured) {
		t.Errorf("email: %v", err)
	}
	if _, err := NewSMSChannel(config.SMSConfig{}); !errors.Is(err, domain.ErrChannelNotConfigured) {
		t.Errorf("sms: %v", err)
	}
	if _, err := NewPushChannel(context.Background(), config.PushConfig{}); !errors.Is(err, domain.ErrChannelNotConfigured) {
		t.Errorf("push: %v", err)
	}
}
