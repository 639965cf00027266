package cache

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

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Set(ctx, "k", "v", time.Minute))

		value, ok, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "v", value)
	})

	t.Run("MissOnUnknownKey", func(t *testing.T) {
		store := NewMemoryStore()
		_, ok, err := store.Get(ctx, "absent")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ExpiresAfterTTL", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Set(ctx, "k", "v", 10*time.Millisecond))
		time.Sleep(25 * time.Millisecond)

		_, ok, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Delete", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Set(ctx, "k", "v", time.Minute))
		require.NoError(t, store.Delete(ctx, "k"))

		_, ok, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestLoader(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadsOnceWithinTTL", func(t *testing.T) {
		loader := NewLoader(NewMemoryStore())
		loads := 0
		load := func(context.Context) (string, error) {
			loads++
			return "job-1", nil
		}

		first, err := loader.GetOrLoad(ctx, "generate:mz:boundary:HEALTH", time.Minute, load)
		require.NoError(t, err)
		second, err := loader.GetOrLoad(ctx, "generate:mz:boundary:HEALTH", time.Minute, load)
		require.NoError(t, err)

		assert.Equal(t, "job-1", first)
		assert.Equal(t, "job-1", second)
		assert.Equal(t, 1, loads)
	})

	t.Run("ConcurrentCallsShareOneLoad", func(t *testing.T) {
		loader := NewLoader(NewMemoryStore())
		var loads int64
		load := func(context.Context) (string, error) {
			atomic.AddInt64(&loads, 1)
			time.Sleep(20 * time.Millisecond)
			return "shared", nil
		}

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				value, err := loader.GetOrLoad(ctx, "key", time.Minute, load)
				assert.NoError(t, err)
				assert.Equal(t, "shared", value)
			}()
		}
		wg.Wait()
		assert.Equal(t, int64(1), atomic.LoadInt64(&loads))
	})

	t.Run("FailuresAreNotCached", func(t *testing.T) {
		loader := NewLoader(NewMemoryStore())
		loads := 0
		boom := errors.New("upstream down")

		_, err := loader.GetOrLoad(ctx, "key", time.Minute, func(context.Context) (string, error) {
			loads++
			return "", boom
		})
		assert.ErrorIs(t, err, boom)

		value, err := loader.GetOrLoad(ctx, "key", time.Minute, func(context.Context) (string, error) {
			loads++
			return "recovered", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "recovered", value)
		assert.Equal(t, 2, loads)
	})

	t.Run("InvalidateForcesReload", func(t *testing.T) {
		loader := NewLoader(NewMemoryStore())
		loads := 0
		load := func(context.Context) (string, error) {
			loads++
			return "value", nil
		}

		_, err := loader.GetOrLoad(ctx, "key", time.Minute, load)
		require.NoError(t, err)
		require.NoError(t, loader.Invalidate(ctx, "key"))
		_, err = loader.GetOrLoad(ctx, "key", time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, 2, loads)
	})
}
