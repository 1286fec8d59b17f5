package cache

import (
	"context"
	"fmt"
)

// ErrCacheMiss indicates the key was not found in cache
var ErrCacheMiss = fmt.Errorf("cache miss")

// Store is a key/value store for timestamped cache entries. Entries are
// kept without a store-side expiry: freshness is decided by the caller from
// the entry's own timestamp, so a stale payload remains available as a
// degraded fallback after a failed refetch.
type Store interface {
	// Get retrieves a value into dest. Returns ErrCacheMiss if absent.
	Get(ctx context.Context, key string, dest interface{}) error

	// Set stores a value under key, overwriting any previous entry
	Set(ctx context.Context, key string, value interface{}) error

	// Delete removes a single key
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key with the given prefix
	DeletePrefix(ctx context.Context, prefix string) error

	// HealthCheck checks if the store is reachable
	HealthCheck(ctx context.Context) error
}
