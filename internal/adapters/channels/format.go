package channels

import (
	"strings"

	"github.com/pyrovision/pyrovision/internal/core/domain"
)

const (
	alertTitle  = "🔥 Wildfire Alert"
	emailIntro  = "Wildfires detected in the following locations:\n"
	smsIntro    = "🔥 Wildfires detected:\n"
	pushPrefix  = "Wildfires detected: "
	pushDataKey = "source_ids"
)

// EmailBody renders the plain-text email body, one line per fire.
func EmailBody(msg domain.AlertMessage) string {
	return emailIntro + strings.Join(msg.Lines, "\n")
}

// SMSBody renders the SMS text, one line per fire.
func SMSBody(msg domain.AlertMessage) string {
	return smsIntro + strings.Join(msg.Lines, "\n")
}

// PushBody renders the push notification body on a single line.
func PushBody(msg domain.AlertMessage) string {
	return pushPrefix + strings.Join(msg.Lines, ", ")
}

func sourceIDs(msg domain.AlertMessage) string {
	ids := make([]string, 0, len(msg.Fires))
	for _, f := range msg.Fires {
		ids = append(ids, f.SourceID)
	}
	return strings.Join(ids, ",")
}
