package lru

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	c := New(1 << 20)

	require.NoError(t, c.Set("apple", "red"))
	v, ok := c.Get("apple")
	require.True(t, ok)
	assert.Equal(t, "red", v)

	_, ok = c.Get("miss")
	assert.False(t, ok)
}

func TestEvictionOrdering(t *testing.T) {
	// Capacity for exactly two entries of this shape.
	cap := accountedSize("a", "1")*2 + 1
	c := New(cap)

	require.NoError(t, c.Set("a", "1"))
	require.NoError(t, c.Set("b", "2"))

	// Touch a so b becomes the LRU victim.
	_, ok := c.Get("a")
	require.True(t, ok)

	require.NoError(t, c.Set("c", "3"))

	_, ok = c.Get("b")
	assert.False(t, ok, "b should have been evicted")

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	v, ok = c.Get("c")
	require.True(t, ok)
	assert.Equal(t, "3", v)
}

func TestDelAccounting(t *testing.T) {
	c := New(1 << 20)
	before := c.MemoryUsage()

	require.NoError(t, c.Set("k", "v"))
	assert.True(t, c.Del("k"))
	assert.False(t, c.Del("k"))
	assert.Equal(t, before, c.MemoryUsage())
}

func TestSetRejectsOversizedEntry(t *testing.T) {
	c := New(10)
	err := c.Set("key", "a value far too long to fit in ten bytes")
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, int64(0), c.MemoryUsage())
}

func TestSpillCallbackFiresOnEviction(t *testing.T) {
	var spilled []string
	c := New(accountedSize("a", "1")+1, WithSpill(func(k, v string) {
		spilled = append(spilled, k)
	}))

	require.NoError(t, c.Set("a", "1"))
	require.NoError(t, c.Set("b", "2"))

	require.Len(t, spilled, 1)
	assert.Equal(t, "a", spilled[0])
}

func TestRehydrateOnMiss(t *testing.T) {
	cold := map[string]string{"cold": "value"}
	c := New(1<<20, WithRehydrate(func(key string) (string, bool) {
		v, ok := cold[key]
		return v, ok
	}))

	v, ok := c.Get("cold")
	require.True(t, ok)
	assert.Equal(t, "value", v)

	// After rehydration the key lives in the hot tier.
	assert.Equal(t, 1, c.Size())
}

func TestAccountingInvariantHolds(t *testing.T) {
	c := New(1 << 20)
	keys := []string{"a", "b", "c", "d"}
	for _, k := range keys {
		require.NoError(t, c.Set(k, k+k))
	}
	var want int64
	for _, k := range keys {
		want += accountedSize(k, k+k)
	}
	assert.Equal(t, want, c.MemoryUsage())
}
