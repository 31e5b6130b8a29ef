package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Label is the binary classifier outcome.
type Label string

const (
	LabelWildfire   Label = "Wildfire"
	LabelNoWildfire Label = "No Wildfire"
)

// ParseLabel accepts the feed spellings of a label.
func ParseLabel(s string) (Label, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wildfire":
		return LabelWildfire, nil
	case "no wildfire", "nowildfire", "no_wildfire":
		return LabelNoWildfire, nil
	}
	return "", fmt.Errorf("%w: unknown prediction %q", ErrMalformedRecord, s)
}

// Slug is the label as used in event subjects.
func (l Label) Slug() string {
	if l == LabelWildfire {
		return "wildfire"
	}
	return "no_wildfire"
}

// DetectionRecord is the result of scoring one image, paired with its location.
// It is created once and never mutated.
type DetectionRecord struct {
	SourceID   string     `json:"source_id"`
	Coordinate Coordinate `json:"coordinate"`
	Label      Label      `json:"label"`
	Confidence float64    `json:"confidence"`
	Timestamp  time.Time  `json:"timestamp"`
}

// AlertLine renders the record as "<source_id> (<lat>,<lon>)". Whole
// degrees keep one decimal place, so 19 reads as 19.0.
func (d DetectionRecord) AlertLine() string {
	return fmt.Sprintf("%s (%s,%s)", d.SourceID, degrees(d.Coordinate.Lat), degrees(d.Coordinate.Lon))
}

func degrees(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// FeedRecord is one row of a pre-scored metadata feed, before validation.
// Pointer fields distinguish "missing" from zero.
type FeedRecord struct {
	ImagePath  string   `json:"image_path"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	Prediction string   `json:"prediction"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// ToDetection validates the record and converts it.
func (f FeedRecord) ToDetection(now time.Time) (DetectionRecord, error) {
	if strings.TrimSpace(f.ImagePath) == "" {
		return DetectionRecord{}, fmt.Errorf("%w: image_path is required", ErrMalformedRecord)
	}
	if f.Latitude == nil || f.Longitude == nil {
		return DetectionRecord{}, fmt.Errorf("%w: %s: latitude and longitude are required", ErrMalformedRecord, f.ImagePath)
	}
	coord := Coordinate{Lat: *f.Latitude, Lon: *f.Longitude}
	if err := coord.Validate(); err != nil {
		return DetectionRecord{}, fmt.Errorf("%w: %s: %v", ErrMalformedRecord, f.ImagePath, err)
	}
	label, err := ParseLabel(f.Prediction)
	if err != nil {
		return DetectionRecord{}, fmt.Errorf("%s: %w", f.ImagePath, err)
	}

	// Feeds that carry only a label get the label's nominal probability.
	conf := 0.0
	if label == LabelWildfire {
		conf = 1
	}
	if f.Confidence != nil {
		conf = *f.Confidence
		if conf < 0 || conf > 1 {
			return DetectionRecord{}, fmt.Errorf("%w: %s: confidence %v out of range [0, 1]", ErrMalformedRecord, f.ImagePath, conf)
		}
	}

	return DetectionRecord{
		SourceID:   f.ImagePath,
		Coordinate: coord,
		Label:      label,
		Confidence: conf,
		Timestamp:  now,
	}, nil
}

// RecordError reports one rejected feed record.
type RecordError struct {
	Index  int    `json:"index"`
	Source string `json:"source,omitempty"`
	Reason string `json:"reason"`
}

// FeedSnapshot is one full read of a feed.
type FeedSnapshot struct {
	Records  []FeedRecord  `json:"records"`
	Rejected []RecordError `json:"rejected,omitempty"`
}

// AlertBatch is the unit handed to the dispatcher. Non-empty by precondition.
type AlertBatch struct {
	Fires []DetectionRecord `json:"fires"`
}

// Lines returns the ordered human-readable lines shared by every channel.
func (b AlertBatch) Lines() []string {
	lines := make([]string, 0, len(b.Fires))
	for _, f := range b.Fires {
		lines = append(lines, f.AlertLine())
	}
	return lines
}

// AlertMessage is what a channel adapter formats and sends.
type AlertMessage struct {
	Lines       []string          `json:"lines"`
	Fires       []DetectionRecord `json:"fires"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// Channel is one notification medium.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// AllChannels lists every channel in dispatch order.
var AllChannels = []Channel{ChannelEmail, ChannelSMS, ChannelPush}

// ParseChannel validates a channel name.
func ParseChannel(s string) (Channel, error) {
	switch c := Channel(strings.ToLower(strings.TrimSpace(s))); c {
	case ChannelEmail, ChannelSMS, ChannelPush:
		return c, nil
	}
	return "", fmt.Errorf("%w: unknown channel %q", ErrConfiguration, s)
}

// ChannelOutcome is the per-channel slot of a DispatchReport.
type ChannelOutcome struct {
	Channel    Channel       `json:"channel"`
	Attempted  bool          `json:"attempted"`
	Succeeded  bool          `json:"succeeded"`
	Error      string        `json:"error,omitempty"`
	ProviderID string        `json:"provider_id,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// DispatchReport holds exactly one outcome per requested channel.
type DispatchReport struct {
	ID          string           `json:"id"`
	Fires       int              `json:"fires"`
	SourceIDs   []string         `json:"source_ids"`
	Outcomes    []ChannelOutcome `json:"outcomes"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
}

// AnySucceeded reports whether at least one channel delivered.
func (r DispatchReport) AnySucceeded() bool {
	for _, o := range r.Outcomes {
		if o.Succeeded {
			return true
		}
	}
	return false
}

// Outcome returns the slot for a channel.
func (r DispatchReport) Outcome(c Channel) (ChannelOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.Channel == c {
			return o, true
		}
	}
	return ChannelOutcome{}, false
}
