package cache

import (
	"sync"
	"time"
)

type ttlItem[V any] struct {
	val      V
	deadline time.Time // zero means no expiry
}

func (it ttlItem[V]) liveAt(now time.Time) bool {
	return it.deadline.IsZero() || !now.After(it.deadline)
}

// TTLCache is a typed in-process map whose entries expire at an absolute deadline.
type TTLCache[V any] struct {
	mu    sync.RWMutex
	items map[string]ttlItem[V]
	clock func() time.Time
}

func NewTTLCache[V any]() *TTLCache[V] {
	return &TTLCache[V]{items: make(map[string]ttlItem[V]), clock: time.Now}
}

// WithClock replaces time.Now, for tests.
func (c *TTLCache[V]) WithClock(now func() time.Time) *TTLCache[V] {
	c.clock = now
	return c
}

// Get returns the value for key if it has not expired. Expired entries are
// left for Sweep.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	now := c.clock()
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || !it.liveAt(now) {
		var zero V
		return zero, false
	}
	return it.val, true
}

// Set stores v; ttl <= 0 keeps it until deleted.
func (c *TTLCache[V]) Set(key string, v V, ttl time.Duration) {
	it := ttlItem[V]{val: v}
	if ttl > 0 {
		it.deadline = c.clock().Add(ttl)
	}
	c.mu.Lock()
	c.items[key] = it
	c.mu.Unlock()
}

func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Len counts entries, expired or not.
func (c *TTLCache[V]) Len() int {
	c.mu.RLock()
	n := len(c.items)
	c.mu.RUnlock()
	return n
}

// Sweep removes expired entries and reports how many went.
func (c *TTLCache[V]) Sweep() int {
	now := c.clock()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, it := range c.items {
		if !it.liveAt(now) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}
