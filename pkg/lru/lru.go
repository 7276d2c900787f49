package lru

import (
	"container/list"
	"fmt"
	"weak"
)

// Cache is a fixed-capacity LRU cache from keys to weakly-held values.
// See the package documentation for the ownership model.
type Cache[K comparable, V any] struct {
	capacity int

	// order tracks recency, most recent at the front. Element values
	// are keys, so evicting the back element finds its maps entries.
	order *list.List

	values    map[K]weak.Pointer[V]
	positions map[K]*list.Element
}

// New creates a cache that tracks at most capacity entries.
// Panics if capacity is less than 1.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity < 1 {
		panic(fmt.Sprintf("lru: capacity must be at least 1, got %d", capacity))
	}

	return &Cache[K, V]{
		capacity:  capacity,
		order:     list.New(),
		values:    make(map[K]weak.Pointer[V]),
		positions: make(map[K]*list.Element),
	}
}

// Insert records value under key as the most recently used entry,
// evicting the least recently used entry first if the cache is at
// capacity. Only a weak reference is retained; the caller keeps
// ownership of value.
//
// Inserting a key that is already present overwrites its value and
// position but leaves the old recency node in place until it ages out,
// so a duplicate insert can temporarily displace an extra entry's
// worth of tracking. Callers wanting strict semantics should Get
// before Insert.
func (c *Cache[K, V]) Insert(key K, value *V) {
	if c.order.Len() >= c.capacity {
		c.evictOldest()
	}

	c.positions[key] = c.order.PushFront(key)
	c.values[key] = weak.Make(value)
}

// Get returns the value cached under key, promoting it to most
// recently used. It reports a miss if the key was never inserted, has
// been evicted, or its value has been garbage collected; a dead entry
// is purged on the spot.
func (c *Cache[K, V]) Get(key K) (*V, bool) {
	elem, ok := c.positions[key]
	if !ok {
		return nil, false
	}

	value := c.values[key].Value()
	if value == nil {
		c.remove(key, elem)

		return nil, false
	}

	c.order.MoveToFront(elem)

	return value, true
}

// Len returns the number of tracked entries, including entries whose
// values have been collected but not yet purged by a Get.
func (c *Cache[K, V]) Len() int {
	return len(c.positions)
}

// evictOldest drops the least recently used recency node. The maps are
// cleaned only when they still point at that node; a stale node left
// behind by a duplicate insert is discarded silently.
func (c *Cache[K, V]) evictOldest() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}

	c.order.Remove(oldest)

	key := oldest.Value.(K)
	if c.positions[key] == oldest {
		delete(c.positions, key)
		delete(c.values, key)
	}
}

// remove purges a dead entry found during Get.
func (c *Cache[K, V]) remove(key K, elem *list.Element) {
	c.order.Remove(elem)
	delete(c.positions, key)
	delete(c.values, key)
}
