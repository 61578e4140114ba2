package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers request keys that have already been accepted
type IdempotencyStore interface {
	// MarkProcessed claims a key for the given TTL.
	// Returns true if the key was newly claimed, false if it was already held.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key is currently held
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Release drops a claim so the request can be retried after a failure
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}
