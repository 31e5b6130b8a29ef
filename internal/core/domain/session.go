package domain

import "time"

// SessionState is a step of the interactive detection flow.
type SessionState string

const (
	StateAwaitingImage        SessionState = "awaiting_image"
	StateClassified           SessionState = "classified"
	StateAwaitingCoordinates  SessionState = "awaiting_coordinates"
	StateChecked              SessionState = "checked"
	StateAwaitingConfirmation SessionState = "awaiting_confirmation"
	StateDispatched           SessionState = "dispatched"
	StateNotAlerted           SessionState = "not_alerted"
	StateCancelled            SessionState = "cancelled"
)

// Terminal reports whether no further transition is possible.
// A classified session is terminal only when nothing was detected.
func (s SessionState) Terminal() bool {
	switch s {
	case StateClassified, StateDispatched, StateNotAlerted, StateCancelled:
		return true
	}
	return false
}

// Session is one operator's pass through the interactive flow.
type Session struct {
	ID         string           `json:"id"`
	State      SessionState     `json:"state"`
	Filename   string           `json:"filename,omitempty"`
	Region     GeoRegion        `json:"region"`
	Label      Label            `json:"label,omitempty"`
	Confidence float64          `json:"confidence"`
	Coordinate *Coordinate      `json:"coordinate,omitempty"`
	InRegion   *bool            `json:"in_region,omitempty"`
	Detection  *DetectionRecord `json:"detection,omitempty"`
	Report     *DispatchReport  `json:"report,omitempty"`
	Outcome    string           `json:"outcome,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}
