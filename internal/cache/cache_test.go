package cache_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/benbjohnson/zen/internal/cache"
)

func TestFinite_Set(t *testing.T) {
	t.Run("EvictOne", func(t *testing.T) {
		c := cache.New[int, string](4)
		for i := 1; i <= 5; i++ {
			c.Set(i, "v")
		}
		require.Equal(t, 4, c.Len())
		_, ok := c.Get(5)
		require.True(t, ok)

		var missing int
		for i := 1; i <= 4; i++ {
			if _, ok := c.Get(i); !ok {
				missing++
			}
		}
		require.Equal(t, 1, missing)
		require.Equal(t, 1, c.Evictions())
	})

	t.Run("LRU", func(t *testing.T) {
		c := cache.New[int, int](2)
		c.Set(1, 1)
		c.Set(2, 2)
		c.Get(1)
		c.Set(3, 3)
		_, ok := c.Get(2)
		require.False(t, ok)
		require.Equal(t, []int{3, 1}, c.Keys())
	})

	t.Run("Duplicate", func(t *testing.T) {
		c := cache.New[string, int](2)
		c.Set("a", 1)
		c.Set("a", 2)
		require.Equal(t, 1, c.Len())
		v, ok := c.Get("a")
		require.True(t, ok)
		require.Equal(t, 2, v)
	})

	t.Run("Unbounded", func(t *testing.T) {
		for _, capacity := range []int{0, -1} {
			c := cache.New[int, int](capacity)
			for i := 0; i < 1000; i++ {
				c.Set(i, i)
			}
			require.Equal(t, 1000, c.Len())
			require.Zero(t, c.Evictions())
		}
	})

	t.Run("Bound", func(t *testing.T) {
		c := cache.New[int, int](7)
		for i := 0; i < 100; i++ {
			c.Set(i%13, i)
			require.LessOrEqual(t, c.Len(), 7)
		}
	})
}

func TestFinite_Delete(t *testing.T) {
	c := cache.New[int, int](2)
	c.Set(1, 1)
	c.Delete(1)
	c.Delete(2)
	require.Zero(t, c.Len())
}
