// Package store defines the durable key/value substrate and implementations.
//
// TTL and eviction semantics live above this boundary; the store only holds
// string values by key.
package store

import "context"

// Store is the interface for durable key/value persistence.
type Store interface {
	// Get returns the value for key. The second return is false when the key
	// does not exist.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes a single key.
	Set(ctx context.Context, key, value string) error

	// SetMany writes all pairs atomically.
	SetMany(ctx context.Context, pairs map[string]string) error

	// Delete removes all given keys atomically. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Lifecycle
	Close() error
}
