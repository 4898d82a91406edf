// Package cache fronts document reads with an optional key-value store.
// Absence of a configured cache is a first-class state, and every
// operational failure degrades to a miss or no-op; callers never see a
// cache error.
package cache

import (
	"context"
	"time"
)

// Cache is the adapter interface. Implementations must be safe for
// concurrent use and must never propagate store failures.
type Cache interface {
	// Get returns the cached value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores val under key for ttl. Best effort.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
	// Delete removes key. Best effort.
	Delete(ctx context.Context, key string)
}

// Noop is the unconfigured cache: every read misses, writes are dropped.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool)         { return nil, false }
func (Noop) Set(context.Context, string, []byte, time.Duration) {}
func (Noop) Delete(context.Context, string)                     {}
