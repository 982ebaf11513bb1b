// Package cache provides a small bounded TTL cache for third-party API
// responses. Entries are process-local and lost on restart; the only
// invalidation is expiry.
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a bounded, mutex-guarded TTL cache keyed by string (typically a
// user id). Writers overwrite, last writer wins.
type Cache[V any] struct {
	mu      sync.Mutex
	entries *lru.Cache[string, entry[V]]
	ttl     time.Duration
	now     func() time.Time
}

// New creates a cache holding at most size entries, each valid for ttl.
func New[V any](size int, ttl time.Duration) *Cache[V] {
	return newWithClock[V](size, ttl, time.Now)
}

// newWithClock is the test seam for deterministic expiry.
func newWithClock[V any](size int, ttl time.Duration, now func() time.Time) *Cache[V] {
	if size <= 0 {
		size = 128
	}
	entries, err := lru.New[string, entry[V]](size)
	if err != nil {
		// lru.New only fails for non-positive sizes, which are normalized
		// above.
		panic(err)
	}
	return &Cache[V]{
		entries: entries,
		ttl:     ttl,
		now:     now,
	}
}

// Get returns the cached value for key when present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries.Get(key)
	if !ok {
		return zero, false
	}
	if c.now().After(e.expiresAt) {
		c.entries.Remove(key)
		return zero, false
	}
	return e.value, true
}

// Set stores a value for key with a fresh TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Add(key, entry[V]{
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	})
}

// Delete removes a key, if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Remove(key)
}

// Len returns the number of stored entries, counting expired ones not yet
// evicted.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}
