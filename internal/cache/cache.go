// Package cache provides a bounded associative cache.
package cache

import "container/list"

// Finite is a key/value cache holding at most Cap entries. When full,
// inserting a new key evicts the least recently used entry. A capacity less
// than or equal to zero never evicts.
//
// Finite is not safe for concurrent use.
type Finite[K comparable, V any] struct {
	cap   int
	items map[K]*list.Element
	order *list.List // front is most recently used

	evictions int
}

type item[K comparable, V any] struct {
	key   K
	value V
}

// New returns a cache with the given capacity.
func New[K comparable, V any](capacity int) *Finite[K, V] {
	return &Finite[K, V]{
		cap:   capacity,
		items: make(map[K]*list.Element),
		order: list.New(),
	}
}

// Get returns the value stored for key and marks it as recently used.
func (c *Finite[K, V]) Get(key K) (value V, ok bool) {
	elem, ok := c.items[key]
	if !ok {
		return value, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*item[K, V]).value, true
}

// Set stores value under key. Re-setting an existing key updates its value
// in place without changing occupancy.
func (c *Finite[K, V]) Set(key K, value V) {
	if elem, ok := c.items[key]; ok {
		elem.Value.(*item[K, V]).value = value
		c.order.MoveToFront(elem)
		return
	}

	if c.cap > 0 && len(c.items) >= c.cap {
		c.evict()
	}
	c.items[key] = c.order.PushFront(&item[K, V]{key: key, value: value})
}

// evict removes the least recently used entry.
func (c *Finite[K, V]) evict() {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*item[K, V]).key)
	c.evictions++
}

// Delete removes key from the cache.
func (c *Finite[K, V]) Delete(key K) {
	if elem, ok := c.items[key]; ok {
		c.order.Remove(elem)
		delete(c.items, key)
	}
}

// Len returns the number of entries.
func (c *Finite[K, V]) Len() int { return len(c.items) }

// Cap returns the capacity passed to New.
func (c *Finite[K, V]) Cap() int { return c.cap }

// Evictions returns the number of entries evicted since creation.
func (c *Finite[K, V]) Evictions() int { return c.evictions }

// Keys returns the keys from most to least recently used.
func (c *Finite[K, V]) Keys() []K {
	keys := make([]K, 0, len(c.items))
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*item[K, V]).key)
	}
	return keys
}
