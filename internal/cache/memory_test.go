package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("HitAndMiss", func(t *testing.T) {
		c := NewMemoryCache(10, nil)
		require.NoError(t, c.Set(ctx, "guilds:list", []byte("[]"), time.Minute))

		v, found, err := c.Get(ctx, "guilds:list")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []byte("[]"), v)

		_, found, _ = c.Get(ctx, "other")
		assert.False(t, found)

		stats := c.GetStats()
		assert.Equal(t, int64(1), stats.Hits)
		assert.Equal(t, int64(1), stats.Misses)
	})

	t.Run("ExpiredItemIsMiss", func(t *testing.T) {
		c := NewMemoryCache(10, nil)
		now := time.Now()
		c.now = func() time.Time { return now }
		require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))

		c.now = func() time.Time { return now.Add(2 * time.Second) }
		_, found, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("EvictsLeastRecentlyUsed", func(t *testing.T) {
		c := NewMemoryCache(2, nil)
		require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
		require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Minute))
		_, _, _ = c.Get(ctx, "a")
		require.NoError(t, c.Set(ctx, "c", []byte("3"), time.Minute))

		_, found, _ := c.Get(ctx, "b")
		assert.False(t, found)
		_, found, _ = c.Get(ctx, "a")
		assert.True(t, found)
		assert.Equal(t, int64(1), c.GetStats().Evictions)
	})

	t.Run("DeleteAndCopy", func(t *testing.T) {
		c := NewMemoryCache(10, nil)
		value := []byte("abc")
		require.NoError(t, c.Set(ctx, "k", value, time.Minute))
		value[0] = 'z'

		got, _, _ := c.Get(ctx, "k")
		assert.Equal(t, "abc", string(got))

		require.NoError(t, c.Delete(ctx, "k", "missing"))
		_, found, _ := c.Get(ctx, "k")
		assert.False(t, found)
	})
}
