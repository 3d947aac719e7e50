package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers request keys for a limited time
type IdempotencyStore interface {
	// MarkProcessed claims key for ttl. Returns false when the key was already claimed.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// IsProcessed reports whether key is currently claimed
	IsProcessed(ctx context.Context, key string) (bool, error)
	// Release drops a claim so the request may be retried
	Release(ctx context.Context, key string) error
}
