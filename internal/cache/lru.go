// Package cache provides a bounded registry that evicts the least recently
// used entry.
package cache

import (
	"sync"
)

// DefaultCapacity is used when a non-positive capacity is requested
const DefaultCapacity = 16

// EvictFunc is called with entries pushed out by capacity or removed
// explicitly. It runs after the cache lock is released.
type EvictFunc[V any] func(key string, value V)

// LRU is a thread-safe least recently used cache
type LRU[V any] struct {
	mutex    sync.Mutex
	capacity int
	items    map[string]*node[V]
	head     *node[V] // most recently used sentinel
	tail     *node[V] // least recently used sentinel
	onEvict  EvictFunc[V]
	hits     int64
	misses   int64
}

type node[V any] struct {
	key   string
	value V
	prev  *node[V]
	next  *node[V]
}

// NewLRU creates a cache holding at most capacity entries
func NewLRU[V any](capacity int, onEvict EvictFunc[V]) *LRU[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	c := &LRU[V]{
		capacity: capacity,
		items:    make(map[string]*node[V]),
		head:     &node[V]{},
		tail:     &node[V]{},
		onEvict:  onEvict,
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get returns the value for key and marks it as recently used
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if n, ok := c.items[key]; ok {
		c.moveToFront(n)
		c.hits++
		return n.value, true
	}

	c.misses++
	var zero V
	return zero, false
}

// Put adds or replaces key. A replaced value and any entry evicted for
// capacity are handed to the evict callback.
func (c *LRU[V]) Put(key string, value V) {
	var evicted []*node[V]

	c.mutex.Lock()
	if n, ok := c.items[key]; ok {
		evicted = append(evicted, &node[V]{key: key, value: n.value})
		n.value = value
		c.moveToFront(n)
	} else {
		n := &node[V]{key: key, value: value}
		c.addToFront(n)
		c.items[key] = n

		for len(c.items) > c.capacity {
			lru := c.tail.prev
			c.removeNode(lru)
			delete(c.items, lru.key)
			evicted = append(evicted, lru)
		}
	}
	c.mutex.Unlock()

	c.notify(evicted)
}

// Remove deletes key, handing its value to the evict callback
func (c *LRU[V]) Remove(key string) bool {
	c.mutex.Lock()
	n, ok := c.items[key]
	if ok {
		c.removeNode(n)
		delete(c.items, key)
	}
	c.mutex.Unlock()

	if ok {
		c.notify([]*node[V]{n})
	}
	return ok
}

// EvictOldest removes the least recently used entry, handing it to the
// evict callback. It reports false when the cache is empty.
func (c *LRU[V]) EvictOldest() bool {
	c.mutex.Lock()
	lru := c.tail.prev
	if lru == c.head {
		c.mutex.Unlock()
		return false
	}
	c.removeNode(lru)
	delete(c.items, lru.key)
	c.mutex.Unlock()

	c.notify([]*node[V]{lru})
	return true
}

// Clear removes every entry, most recently used first
func (c *LRU[V]) Clear() {
	c.mutex.Lock()
	var evicted []*node[V]
	for n := c.head.next; n != c.tail; n = n.next {
		evicted = append(evicted, n)
	}
	c.items = make(map[string]*node[V])
	c.head.next = c.tail
	c.tail.prev = c.head
	c.mutex.Unlock()

	c.notify(evicted)
}

// Len returns the number of entries
func (c *LRU[V]) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.items)
}

// Capacity returns the maximum number of entries
func (c *LRU[V]) Capacity() int {
	return c.capacity
}

// Keys returns keys from most to least recently used
func (c *LRU[V]) Keys() []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	keys := make([]string, 0, len(c.items))
	for n := c.head.next; n != c.tail; n = n.next {
		keys = append(keys, n.key)
	}
	return keys
}

// Stats returns hit and size counters
func (c *LRU[V]) Stats() Stats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	total := c.hits + c.misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(c.hits) / float64(total) * 100
	}

	return Stats{
		Hits:     c.hits,
		Misses:   c.misses,
		HitRate:  hitRate,
		Size:     len(c.items),
		Capacity: c.capacity,
	}
}

func (c *LRU[V]) notify(evicted []*node[V]) {
	if c.onEvict == nil {
		return
	}
	for _, n := range evicted {
		c.onEvict(n.key, n.value)
	}
}

func (c *LRU[V]) moveToFront(n *node[V]) {
	c.removeNode(n)
	c.addToFront(n)
}

func (c *LRU[V]) addToFront(n *node[V]) {
	n.prev = c.head
	n.next = c.head.next
	c.head.next.prev = n
	c.head.next = n
}

func (c *LRU[V]) removeNode(n *node[V]) {
	n.prev.next = n.next
	n.next.prev = n.prev
}

// Stats describes cache usage
type Stats struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRate  float64 `json:"hit_rate_percent"`
	Size     int     `json:"current_size"`
	Capacity int     `json:"max_capacity"`
}
