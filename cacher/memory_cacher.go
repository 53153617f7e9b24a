package cacher

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// MemoryCacher is an in-memory implementation of the Cacher interface.
// It uses go-cache for storage and singleflight to prevent cache stampede
// when multiple concurrent requests occur for the same cache key.
type MemoryCacher[T any] struct {
	cache *cache.Cache
	group singleflight.Group
}

// NewMemoryCacher creates a new in-memory cache instance with the
// specified default expiration and cleanup interval.
//
// Parameters:
//   - defaultExpiration: Default TTL for cached items
//   - cleanupInterval: Interval at which expired items are removed
//
// Returns:
//   - A new MemoryCacher instance
func NewMemoryCacher[T any](defaultExpiration, cleanupInterval time.Duration) Cacher[T] {
	return &MemoryCacher[T]{
		cache: cache.New(defaultExpiration, cleanupInterval),
	}
}

// GetOrFetch retrieves a value from the cache, or fetches it using the
// provided function if it's not cached. The singleflight group ensures
// that for concurrent requests to the same key only one fetch executes.
func (c *MemoryCacher[T]) GetOrFetch(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fetchFn FetchFunc[T],
) (T, error) {
	var zero T

	if val, found := c.cache.Get(key); found {
		if typedVal, ok := val.(T); ok {
			return typedVal, nil
		}
	}

	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Another goroutine may have populated the cache while we waited
		// for the singleflight slot.
		if cachedVal, found := c.cache.Get(key); found {
			if typedVal, ok := cachedVal.(T); ok {
				return typedVal, nil
			}
		}

		fetchedVal, err := fetchFn(ctx)
		if err != nil {
			return zero, err
		}

		c.cache.Set(key, fetchedVal, ttl)
		return fetchedVal, nil
	})

	if err != nil {
		return zero, err
	}

	typedVal, ok := val.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected type in cache for key %s", key)
	}

	return typedVal, nil
}

// Delete removes a key from the cache.
func (c *MemoryCacher[T]) Delete(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c.cache.Delete(key)
	return nil
}
