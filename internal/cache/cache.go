// Package cache provides the key-value store shared by the rate limiter and the
// tenant resolver.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key does not exist or has expired.
var ErrMiss = errors.New("cache: miss")

// Store is a key-value cache with TTLs and an atomic windowed counter.
type Store interface {
	// Get returns the value stored at key, or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value at key, replacing any previous value, expiring after ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// IncrWindow atomically increments the counter at key and returns the new
	// value. When the increment creates the counter (result 1) the counter is
	// given a fixed expiry of window. Increment and expiry are one operation.
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
