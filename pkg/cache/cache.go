// Package cache defines the shared key/value acceleration layer used by the
// response cache and the persisted query store's shared tier.
//
// A Cache is never authoritative: losing an entry changes latency, not
// correctness. Callers that must survive a cache outage should wrap any
// implementation in NewResilient, which degrades every failure to a miss.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("cache: key not found")

// Cache is the adapter contract for a key/value store. Implementations may be
// remote and must be assumed to fail partially (timeouts, disconnects).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (bool, error)

	// Close releases any residual resources held by the cache.
	Close() error
}
