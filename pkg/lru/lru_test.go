package lru_test

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmaruan/simpledb/pkg/lru"
)

func Test_New_When_CapacityBelowOne_Panics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { lru.New[string, int](0) })
	assert.Panics(t, func() { lru.New[string, int](-1) })
}

func Test_Get_When_KeyNeverInserted_Misses(t *testing.T) {
	t.Parallel()

	c := lru.New[string, int](2)

	v, ok := c.Get("absent")
	assert.False(t, ok)
	assert.Nil(t, v)
}

func Test_Get_When_ValueAlive_ReturnsStrongPointer(t *testing.T) {
	t.Parallel()

	c := lru.New[string, int](2)

	value := new(int)
	*value = 7
	c.Insert("seven", value)

	got, ok := c.Get("seven")
	require.True(t, ok)
	assert.Same(t, value, got)

	runtime.KeepAlive(value)
}

func Test_Insert_When_AtCapacity_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	c := lru.New[string, int](2)

	a, b, d := new(int), new(int), new(int)
	*a, *b, *d = 1, 2, 3

	c.Insert("a", a)
	c.Insert("b", b)

	// Touching "a" makes "b" the eviction candidate.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Insert("d", d)

	_, ok = c.Get("b")
	assert.False(t, ok, "least recently used entry should be evicted")

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Same(t, a, got)

	got, ok = c.Get("d")
	require.True(t, ok)
	assert.Same(t, d, got)

	assert.Equal(t, 2, c.Len())

	runtime.KeepAlive(a)
	runtime.KeepAlive(b)
	runtime.KeepAlive(d)
}

func Test_Insert_When_Overflowing_CapsTrackedEntries(t *testing.T) {
	t.Parallel()

	c := lru.New[int, int](2)

	// Strong references held throughout, so misses below are evictions,
	// not collections.
	values := make([]*int, 5)
	for i := range values {
		values[i] = new(int)
		*values[i] = i
		c.Insert(i, values[i])
	}

	assert.Equal(t, 2, c.Len())

	for i := 0; i < 3; i++ {
		_, ok := c.Get(i)
		assert.False(t, ok, "key %d should have been evicted", i)
	}

	for i := 3; i < 5; i++ {
		got, ok := c.Get(i)
		require.True(t, ok, "key %d should survive", i)
		assert.Same(t, values[i], got)
	}

	runtime.KeepAlive(values)
}

func Test_Get_When_ValueCollected_PurgesEntry(t *testing.T) {
	t.Parallel()

	c := lru.New[string, int](4)

	kept := new(int)
	*kept = 1
	c.Insert("kept", kept)
	insertTransient(c, "gone")

	require.Equal(t, 2, c.Len())

	// No strong reference to "gone" survives, so collection kills it.
	runtime.GC()
	runtime.GC()

	v, ok := c.Get("gone")
	assert.False(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, 1, c.Len(), "dead entry should be purged by the miss")

	got, ok := c.Get("kept")
	require.True(t, ok)
	assert.Same(t, kept, got)

	runtime.KeepAlive(kept)
}

func Test_Get_When_EntryPurged_FreesRoomForInserts(t *testing.T) {
	t.Parallel()

	c := lru.New[string, int](2)

	insertTransient(c, "dead1")
	insertTransient(c, "dead2")

	runtime.GC()
	runtime.GC()

	_, ok := c.Get("dead1")
	assert.False(t, ok)
	_, ok = c.Get("dead2")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())

	alive := new(int)
	c.Insert("alive", alive)

	got, ok := c.Get("alive")
	require.True(t, ok)
	assert.Same(t, alive, got)

	runtime.KeepAlive(alive)
}

func Test_Insert_When_KeyDuplicated_StaleNodeAgesOutSilently(t *testing.T) {
	t.Parallel()

	c := lru.New[string, int](2)

	a1, a2, b, d := new(int), new(int), new(int), new(int)

	// Two inserts of "a" leave a stale recency node behind the live one.
	c.Insert("a", a1)
	c.Insert("a", a2)

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Same(t, a2, got, "second insert should win")

	// This insert evicts the stale "a" node; the live entry survives.
	c.Insert("b", b)

	got, ok = c.Get("a")
	require.True(t, ok)
	assert.Same(t, a2, got)

	_, ok = c.Get("b")
	require.True(t, ok)

	// Now a genuine eviction takes "a" out.
	c.Insert("d", d)

	_, ok = c.Get("a")
	assert.False(t, ok)

	_, ok = c.Get("b")
	assert.True(t, ok)

	_, ok = c.Get("d")
	assert.True(t, ok)

	runtime.KeepAlive(a1)
	runtime.KeepAlive(a2)
	runtime.KeepAlive(b)
	runtime.KeepAlive(d)
}

// insertTransient inserts a value that the caller holds no strong
// reference to, so the next collection may reclaim it.
func insertTransient(c *lru.Cache[string, int], key string) {
	v := new(int)
	*v = len(key)
	c.Insert(key, v)
}
