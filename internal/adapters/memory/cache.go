// Package memory is an in-process ports.CacheService used when Valkey is
// unavailable. Entries are lost on restart and not shared across replicas.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/pyrovision/pyrovision/internal/core/ports"
)

type entry struct {
	value   []byte
	expires time.Time
}

// Cache is a mutex-guarded map with per-key expiry.
type Cache struct {
	mu   sync.Mutex
	data map[string]entry
	now  func() time.Time
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{data: make(map[string]entry), now: time.Now}
}

// Get returns ports.ErrCacheMiss for absent or expired keys.
func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.data[key]
	if !ok {
		return nil, ports.ErrCacheMiss
	}
	if c.now().After(e.expires) {
		delete(c.data, key)
		return nil, ports.ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = entry{
		value:   append([]byte(nil), value...),
		expires: c.now().Add(time.Duration(ttlSeconds) * time.Second),
	}
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// Ping always succeeds.
func (c *Cache) Ping(context.Context) error { return nil }
