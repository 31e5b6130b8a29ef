package valkey_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pyrovision/pyrovision/internal/adapters/valkey"
	"github.com/pyrovision/pyrovision/internal/core/domain"
	"github.com/pyrovision/pyrovision/internal/core/ports"
)

type memCache struct {
	data map[string][]byte
	ttls map[string]int
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}, ttls: map[string]int{}}
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, ports.ErrCacheMiss
	}
	return v, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, ttl int) error {
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestSessionStore_RoundTrip(t *testing.T) {
	cache := newMemCache()
	store := valkey.NewSessionStore(cache)
	ctx := context.Background()

	in := &domain.Session{
		ID:         "abc",
		State:      domain.StateAwaitingCoordinates,
		Region:     domain.GeoRegion{MinLat: 18.5, MaxLat: 20, MinLon: 72, MaxLon: 73.5},
		Label:      domain.LabelWildfire,
		Confidence: 0.91,
		CreatedAt:  time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := store.Put(ctx, in, 30*time.Minute); err != nil {
		t.Fatal(err)
	}
	if cache.ttls["session:abc"] != 1800 {
		t.Errorf("ttl = %d, want 1800", cache.ttls["session:abc"])
	}

	out, err := store.Get(ctx, "abc")
	if err != nil {
		t.Fatal(err)
	}
	if out.State != in.State || out.Confidence != in.Confidence || out.Region != in.Region || !out.CreatedAt.Equal(in.CreatedAt) {
		t.Errorf("got %+v, want %+v", out, in)
	}
}

func TestSessionStore_Missing(t *testing.T) {
	store := valkey.NewSessionStore(newMemCache())
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
