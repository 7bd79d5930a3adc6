// Package cache provides a fixed-capacity LRU keyed by string.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRU is a capacity-bounded least-recently-used cache. A read touches the
// entry, moving it to most-recently-used; there is no TTL, only capacity
// pressure. Safe for concurrent use.
type LRU[V any] struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[string]*list.Element
}

type entry[V any] struct {
	key        string
	insertedAt time.Time
	value      V
}

// New creates an LRU with the given maximum entry count.
func New[V any](capacity int) *LRU[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &LRU[V]{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// Get returns the cached value and touches the entry.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry[V]).value, true
}

// Set inserts or supersedes the value for key, evicting the least recently
// used entry under capacity pressure.
func (c *LRU[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.insertedAt = time.Now()
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&entry[V]{key: key, insertedAt: time.Now(), value: value})
	c.items[key] = el

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry[V]).key)
	}
}

// Len returns the number of cached entries.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
