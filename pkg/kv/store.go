// Package kv provides the key-value store abstraction backing the bot's
// durable state: dedup markers, rate-limit records, and pfp flags. Redis is
// the production backing; the in-memory store serves tests and single-node
// deployments without external state.
package kv

import (
	"context"
	"time"
)

// NoExpiry disables expiry for Set and SetNX.
const NoExpiry time.Duration = 0

// Store is a minimal get/set/conditional-set contract with per-key expiry.
// No multi-key transactions are offered; callers must not assume atomicity
// across keys.
type Store interface {
	// Get returns the value for key. The second return is false when the key
	// is absent or expired.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes key=value. A ttl of NoExpiry persists the key indefinitely.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX writes key=value only if the key does not exist, returning true
	// if the write happened. This is the atomic check-and-set used for
	// event dedup markers.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
