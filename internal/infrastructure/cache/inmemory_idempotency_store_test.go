package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ nanos atomic.Int64 }

func newFakeClock() *fakeClock {
	c := &fakeClock{}
	c.nanos.Store(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC).UnixNano())
	return c
}

func (c *fakeClock) Now() time.Time          { return time.Unix(0, c.nanos.Load()).UTC() }
func (c *fakeClock) Advance(d time.Duration) { c.nanos.Add(int64(d)) }

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newInMemoryStore(clock.Now, time.Hour)
	defer store.Close()

	t.Run("duplicate inside the window is refused", func(t *testing.T) {
		ok, err := store.MarkProcessed(ctx, "user-1:promo1:09171234567:", 30*time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		clock.Advance(29 * time.Minute)
		ok, err = store.MarkProcessed(ctx, "user-1:promo1:09171234567:", 30*time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		processed, err := store.IsProcessed(ctx, "user-1:promo1:09171234567:")
		require.NoError(t, err)
		assert.True(t, processed)
	})

	t.Run("accepted again after the window", func(t *testing.T) {
		ok, err := store.MarkProcessed(ctx, "user-2:promo1:09171234567:", 30*time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		clock.Advance(30 * time.Minute)
		processed, err := store.IsProcessed(ctx, "user-2:promo1:09171234567:")
		require.NoError(t, err)
		assert.False(t, processed)

		ok, err = store.MarkProcessed(ctx, "user-2:promo1:09171234567:", 30*time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unknown key", func(t *testing.T) {
		processed, err := store.IsProcessed(ctx, "never-seen")
		require.NoError(t, err)
		assert.False(t, processed)
	})
}

func TestInMemoryIdempotencyStore_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newInMemoryStore(clock.Now, time.Hour)
	defer store.Close()

	_, _ = store.MarkProcessed(ctx, "short", time.Minute)
	_, _ = store.MarkProcessed(ctx, "long", time.Hour)
	require.Equal(t, 2, store.Size())

	clock.Advance(2 * time.Minute)
	store.sweep()
	assert.Equal(t, 1, store.Size())
}

func TestInMemoryIdempotencyStore_Concurrent(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.MarkProcessed(context.Background(), "same-query", time.Minute); ok {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), accepted.Load())
}

func TestInMemoryIdempotencyStore_CloseTwice(t *testing.T) {
	store := newInMemoryStore(time.Now, time.Millisecond)
	for i := 0; i < 3; i++ {
		_, _ = store.MarkProcessed(context.Background(), fmt.Sprintf("k%d", i), time.Nanosecond)
	}
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
