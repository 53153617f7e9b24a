package cacher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMemoryCacher(t *testing.T) {
	c := NewMemoryCacher[string](time.Minute, time.Minute)
	require.NotNil(t, c)
}

func TestMemoryCacher_GetOrFetch_CacheMiss(t *testing.T) {
	c := NewMemoryCacher[string](time.Minute, time.Minute)

	fetchCalled := false
	val, err := c.GetOrFetch(context.Background(), "k", time.Minute, func(ctx context.Context) (string, error) {
		fetchCalled = true
		return "fetched", nil
	})

	require.NoError(t, err)
	assert.True(t, fetchCalled)
	assert.Equal(t, "fetched", val)
}

func TestMemoryCacher_GetOrFetch_CacheHit(t *testing.T) {
	c := NewMemoryCacher[string](time.Minute, time.Minute)
	ctx := context.Background()

	_, err := c.GetOrFetch(ctx, "k", time.Minute, func(ctx context.Context) (string, error) {
		return "first", nil
	})
	require.NoError(t, err)

	val, err := c.GetOrFetch(ctx, "k", time.Minute, func(ctx context.Context) (string, error) {
		t.Fatal("fetch must not run on a cache hit")
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "first", val)
}

func TestMemoryCacher_GetOrFetch_FetchError(t *testing.T) {
	c := NewMemoryCacher[string](time.Minute, time.Minute)
	wantErr := errors.New("source down")

	_, err := c.GetOrFetch(context.Background(), "k", time.Minute, func(ctx context.Context) (string, error) {
		return "", wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	t.Run("error is not cached", func(t *testing.T) {
		val, err := c.GetOrFetch(context.Background(), "k", time.Minute, func(ctx context.Context) (string, error) {
			return "recovered", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "recovered", val)
	})
}

func TestMemoryCacher_GetOrFetch_ConcurrentSameKey_Singleflight(t *testing.T) {
	c := NewMemoryCacher[int](time.Minute, time.Minute)

	var fetches atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			val, err := c.GetOrFetch(context.Background(), "k", time.Minute, func(ctx context.Context) (int, error) {
				fetches.Add(1)
				time.Sleep(20 * time.Millisecond)
				return 7, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, 7, val)
		}()
	}

	close(start)
	wg.Wait()

	assert.LessOrEqual(t, fetches.Load(), int32(2), "singleflight must collapse concurrent fetches")
}

func TestMemoryCacher_Delete(t *testing.T) {
	c := NewMemoryCacher[string](time.Minute, time.Minute)
	ctx := context.Background()

	_, err := c.GetOrFetch(ctx, "k", time.Minute, func(ctx context.Context) (string, error) {
		return "v1", nil
	})
	require.NoError(t, err)

	require.NoError(t, c.Delete(ctx, "k"))

	val, err := c.GetOrFetch(ctx, "k", time.Minute, func(ctx context.Context) (string, error) {
		return "v2", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "v2", val, "delete must force a refetch")
}

func TestMemoryCacher_Delete_ContextCancelled(t *testing.T) {
	c := NewMemoryCacher[string](time.Minute, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, c.Delete(ctx, "k"), context.Canceled)
}
