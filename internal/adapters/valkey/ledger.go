package valkey

import (
	"context"
	"time"

	"github.com/valkey-io/valkey-go"
)

// Ledger implements ports.AlertLedger with one expiring key per source ID.
type Ledger struct {
	client valkey.Client
	prefix string
}

// NewLedger shares the cache's client.
func NewLedger(c *Cache) *Ledger {
	return &Ledger{client: c.client, prefix: c.prefix + "alerted:"}
}

// Seen returns the ids whose ledger key still exists.
func (l *Ledger) Seen(ctx context.Context, ids []string) (map[string]bool, error) {
	seen := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return seen, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = l.prefix + id
	}
	vals, err := l.client.Do(ctx, l.client.B().Mget().Key(keys...).Build()).ToArray()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if !v.IsNil() {
			seen[ids[i]] = true
		}
	}
	return seen, nil
}

// Mark sets a key per id that expires after ttl.
func (l *Ledger) Mark(ctx context.Context, ids []string, ttl time.Duration) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339)
	cmds := make(valkey.Commands, 0, len(ids))
	for _, id := range ids {
		cmds = append(cmds, l.client.B().Set().Key(l.prefix+id).Value(now).Ex(ttl).Build())
	}
	for _, res := range l.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return err
		}
	}
	return nil
}
