package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pyrovision/pyrovision/internal/core/ports"
)

func TestCache_Expiry(t *testing.T) {
	c := New()
	base := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return base }
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), 10); err != nil {
		t.Fatal(err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("got %q, %v", got, err)
	}

	c.now = func() time.Time { return base.Add(11 * time.Second) }
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ports.ErrCacheMiss) {
		t.Errorf("expected miss after expiry, got %v", err)
	}
}

func TestCache_Delete(t *testing.T) {
	c := New()
	ctx := context.Background()
	_ = c.Set(ctx, "k", []byte("v"), 60)
	_ = c.Delete(ctx, "k")
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ports.ErrCacheMiss) {
		t.Errorf("expected miss after delete, got %v", err)
	}
}
