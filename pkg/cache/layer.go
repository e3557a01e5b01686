package cache

import (
	"context"
	"time"
)

// Layer is one tier of the directory cache. Values are opaque encoded bytes;
// callers own serialization so every tier stores exactly the same payload.
type Layer interface {
	// Get returns the stored bytes, or ErrMiss when absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for ttl. A zero ttl means the layer default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Name identifies the layer in logs and metrics ("memory", "redis").
	Name() string

	// Close releases the layer's resources.
	Close() error
}

// TTLReader is implemented by layers that can report how long a key has left
// to live. A negative duration means the key never expires.
type TTLReader interface {
	TTL(ctx context.Context, key string) (time.Duration, error)
}
