package valkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pyrovision/pyrovision/internal/core/domain"
	"github.com/pyrovision/pyrovision/internal/core/ports"
)

// SessionStore implements ports.SessionStore as JSON values on top of a
// CacheService, so sessions survive API restarts and are shared between
// replicas.
type SessionStore struct {
	cache ports.CacheService
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(cache ports.CacheService) *SessionStore {
	return &SessionStore{cache: cache}
}

func sessionKey(id string) string { return "session:" + id }

// Get returns the session or domain.ErrSessionNotFound.
func (s *SessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	data, err := s.cache.Get(ctx, sessionKey(id))
	if err != nil {
		if errors.Is(err, ports.ErrCacheMiss) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, nil
}

// Put stores the session, resetting its TTL.
func (s *SessionStore) Put(ctx context.Context, sess *domain.Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	secs := int(ttl.Seconds())
	if secs < 1 {
		secs = 1
	}
	return s.cache.Set(ctx, sessionKey(sess.ID), data, secs)
}
