package engine

import (
	"context"
	"time"

	"github.com/CryptoRabble/glanker/pkg/kv"
)

const processedKeyPrefix = "processed_cast:"

// DefaultDedupeTTL covers the webhook provider's redelivery window. After
// it lapses, a very late redelivery would be processed again.
const DefaultDedupeTTL = time.Hour

// Deduplicator gives at-most-once processing per event id within a TTL
// window, backed by an atomic check-and-set on the store.
type Deduplicator struct {
	store kv.Store
	ttl   time.Duration
}

func NewDeduplicator(store kv.Store, ttl time.Duration) *Deduplicator {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	return &Deduplicator{store: store, ttl: ttl}
}

// MarkProcessed records the event id and reports whether this delivery is
// the first one. A false result means the event was already handled and
// the caller should acknowledge without doing any further work.
func (d *Deduplicator) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	return d.store.SetNX(ctx, processedKeyPrefix+eventID, "1", d.ttl)
}
