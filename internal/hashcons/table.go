// Package hashcons implements a weakly-held interning table.
//
// Entries map a structural key to a canonical node. The table never keeps a
// node alive on its own: once every outside reference is dropped the garbage
// collector may reclaim the node and the entry becomes stale. Stale entries
// are skipped by lookups and removed by Compact.
package hashcons

import (
	"sync"
	"weak"

	"github.com/cespare/xxhash/v2"
)

// Table interns values of type T by key.
type Table[T any] struct {
	mu      sync.Mutex
	buckets map[uint64][]entry[T]
	n       int
	gen     uint64
}

type entry[T any] struct {
	key string
	ptr weak.Pointer[T]
}

// New returns an empty table.
func New[T any]() *Table[T] {
	return &Table[T]{buckets: make(map[uint64][]entry[T])}
}

// GetOrAdd returns the canonical node for key.
//
// If a live node is already stored under key it is returned with isNew set
// to false and value is discarded. Otherwise init is called on value, value
// is stored and returned with isNew set to true. The node is only published
// after init returns so other lookups never observe a partially initialized
// node.
func (t *Table[T]) GetOrAdd(key string, value *T, init func(*T)) (isNew bool, node *T) {
	h := xxhash.Sum64String(key)

	t.mu.Lock()
	defer t.mu.Unlock()

	bucket := t.buckets[h]
	for i := range bucket {
		if bucket[i].key != key {
			continue
		}
		if p := bucket[i].ptr.Value(); p != nil {
			return false, p
		}

		// Slot is stale; reuse it for the new node.
		if init != nil {
			init(value)
		}
		bucket[i].ptr = weak.Make(value)
		return true, value
	}

	if init != nil {
		init(value)
	}
	t.buckets[h] = append(bucket, entry[T]{key: key, ptr: weak.Make(value)})
	t.n++
	return true, value
}

// Lookup returns the live node stored under key, if any.
func (t *Table[T]) Lookup(key string) *T {
	h := xxhash.Sum64String(key)

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.buckets[h] {
		if e.key == key {
			return e.ptr.Value()
		}
	}
	return nil
}

// Compact removes entries whose node has been reclaimed and returns the
// number of entries removed. It is safe to call between lookups from the
// same or other goroutines.
func (t *Table[T]) Compact() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var removed int
	for h, bucket := range t.buckets {
		live := bucket[:0]
		for _, e := range bucket {
			if e.ptr.Value() == nil {
				removed++
				continue
			}
			live = append(live, e)
		}
		if len(live) == 0 {
			delete(t.buckets, h)
			continue
		}
		for i := len(live); i < len(bucket); i++ {
			bucket[i] = entry[T]{}
		}
		t.buckets[h] = live
	}
	t.n -= removed
	t.gen++
	return removed
}

// Len returns the number of entries, including stale entries that have not
// been compacted yet.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.n
}

// Generation returns the number of completed Compact calls.
func (t *Table[T]) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen
}
