package ports

import (
	"context"
	"errors"

	"github.com/pyrovision/pyrovision/internal/core/domain"
)

// Tensor is a preprocessed HWC float image, values in [0,1].
type Tensor struct {
	Height   int
	Width    int
	Channels int
	Data     []float32
}

// Model scores a single-item batch and returns P(Wildfire).
type Model interface {
	Predict(ctx context.Context, input Tensor) (float64, error)
}

// NotificationChannel delivers one alert message over one medium.
// Send performs exactly one outbound call and returns the provider's
// message identifier when it has one.
type NotificationChannel interface {
	Channel() domain.Channel
	Send(ctx context.Context, msg domain.AlertMessage) (string, error)
}

// FeedSource reads one snapshot of pre-scored image metadata.
type FeedSource interface {
	Name() string
	Load(ctx context.Context) (domain.FeedSnapshot, error)
}

// ImageryRequest describes what to fetch for a tile.
type ImageryRequest struct {
	Tile   domain.Tile
	Width  int
	Height int
}

// ImageryProvider downloads imagery for a single tile.
type ImageryProvider interface {
	FetchTile(ctx context.Context, req ImageryRequest) ([]byte, error)
}

// TileSink stores downloaded tile imagery.
type TileSink interface {
	Store(ctx context.Context, index int, tile domain.Tile, data []byte) (string, error)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishDetection(ctx context.Context, rec *domain.DetectionRecord) error
	PublishDispatch(ctx context.Context, report *domain.DispatchReport) error
}

// EventSubscriber consumes inbound scored feed records.
type EventSubscriber interface {
	SubscribeFeed(ctx context.Context, handler func(ctx context.Context, rec domain.FeedRecord) error) error
}

// ErrCacheMiss is returned by CacheService.Get for absent or expired keys.
var ErrCacheMiss = errors.New("cache miss")

// CacheService provides key/value storage with expiry.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
