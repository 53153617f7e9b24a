// Package cacher provides read-through caching with stampede protection,
// used to keep hot leaderboard queries off the user store.
package cacher

import (
	"context"
	"time"
)

// FetchFunc is a function that fetches a value from the source when a
// cache miss occurs.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Cacher is an interface that defines methods for caching values with
// automatic fetching on cache misses. Implementations should provide
// thread-safe caching and prevent cache stampede when multiple concurrent
// requests occur for the same missing cache key.
type Cacher[T any] interface {
	// GetOrFetch retrieves a value from the cache, or fetches it using the
	// provided function if it's not cached. The fetched value is then
	// stored in the cache with the specified TTL for future requests.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - key: The cache key to retrieve or set
	//   - ttl: Time-to-live duration for the cached value
	//   - fetchFn: Function to fetch the value if not in cache
	//
	// Returns:
	//   - The cached or fetched value of type T
	//   - An error if retrieval or fetching fails
	GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetchFn FetchFunc[T]) (T, error)

	// Delete removes a key from the cache, forcing the next GetOrFetch for
	// that key to hit the source.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - key: The cache key to delete
	Delete(ctx context.Context, key string) error
}
