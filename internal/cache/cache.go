// Package cache provides the key-value cache used for duplicate markers,
// per-source request budgets, and session snapshots. The cache is advisory:
// callers must treat every operation as best-effort and fall back to the
// store when it is unavailable.
package cache

import (
	"context"
	"time"
)

// Cache is the subset of key-value operations the pipeline needs.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	// Increment atomically increments key and returns the new value. When the
	// returned count is 1 the caller owns setting the window via Expire.
	Increment(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Close() error
}
