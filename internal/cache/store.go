// Package cache provides the bounded TTL key/value stores used in front
// of provider and retrieval calls, and the coordinator that layers a
// fast primary store over an optional fallback.
package cache

import (
	"context"
	"time"
)

// Stats are the running counters every store maintains.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Sets    int64 `json:"sets"`
	Deletes int64 `json:"deletes"`
	Errors  int64 `json:"errors"`
	Size    int64 `json:"size"`
}

// Store is the contract every cache backend conforms to. Values are
// opaque bytes; callers marshal at the edge so remote and in-process
// backends behave identically.
//
// Expiry is lazy: a value older than its TTL is treated as absent on
// read. Backends may additionally sweep expired entries to bound
// memory, but correctness never depends on the sweep running.
type Store interface {
	// Get returns the value and true on a live hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key for ttl. A ttl of zero means the
	// backend's default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key, reporting whether it was present.
	Delete(ctx context.Context, key string) (bool, error)

	// Clear removes entries whose key matches pattern and returns how
	// many were removed. An empty pattern clears everything; a trailing
	// "*" matches by prefix; anything else matches exactly.
	Clear(ctx context.Context, pattern string) (int, error)

	// Stats returns the store's running counters.
	Stats(ctx context.Context) (Stats, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// matchesPattern implements the Clear pattern semantics shared by the
// in-process backends.
func matchesPattern(key, pattern string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	if n := len(pattern); pattern[n-1] == '*' {
		prefix := pattern[:n-1]
		return len(key) >= len(prefix) && key[:len(prefix)] == prefix
	}
	return key == pattern
}
