package domain

import "errors"

// Error kinds. Callers wrap them with fmt.Errorf("%w: ...") and check with errors.Is.
var (
	// ErrConfiguration is a malformed region or tiling parameter. Fatal, raised before any I/O.
	ErrConfiguration = errors.New("configuration error")

	// ErrInference means the model was unavailable or the input could not be scored.
	ErrInference = errors.New("inference error")

	// ErrAcquisition is a failed download for one tile.
	ErrAcquisition = errors.New("acquisition error")

	// ErrDelivery is a failed alert on one channel.
	ErrDelivery = errors.New("delivery error")

	// ErrMalformedRecord marks a feed record that failed validation.
	ErrMalformedRecord = errors.New("malformed feed record")

	ErrEmptyBatch           = errors.New("alert batch is empty")
	ErrSessionNotFound      = errors.New("session not found")
	ErrInvalidTransition    = errors.New("invalid session transition")
	ErrChannelNotConfigured = errors.New("channel not configured")
)
