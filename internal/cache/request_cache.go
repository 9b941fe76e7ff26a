// Package cache holds short-lived per-process caches for read-mostly
// datastore lookups.
package cache

import (
	"sync"
	"time"

	"github.com/eptportal/ept-backend/internal/clock"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

// RequestCache is a bounded TTL cache. When full, expired entries are
// evicted first, then the entry closest to expiry.
type RequestCache[V any] struct {
	clock      clock.Clock
	ttl        time.Duration
	maxEntries int

	mu      sync.Mutex
	entries map[string]entry[V]
	hits    uint64
	misses  uint64
}

// NewRequestCache creates an empty cache. A non-positive ttl disables
// caching.
func NewRequestCache[V any](clk clock.Clock, ttl time.Duration, maxEntries int) *RequestCache[V] {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &RequestCache[V]{
		clock:      clk,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]entry[V]),
	}
}

// Get returns the live value for key.
func (c *RequestCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !c.clock.Now().Before(e.expires) {
		if ok {
			delete(c.entries, key)
		}
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	return e.value, true
}

// Set stores value under key for the cache TTL.
func (c *RequestCache[V]) Set(key string, value V) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.entries[key] = entry[V]{value: value, expires: now.Add(c.ttl)}
}

// Delete drops key.
func (c *RequestCache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *RequestCache[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry[V])
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (c *RequestCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns hit and miss counts.
func (c *RequestCache[V]) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *RequestCache[V]) evictLocked(now time.Time) {
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
	if len(c.entries) < c.maxEntries {
		return
	}

	var oldest string
	var oldestAt time.Time
	for k, e := range c.entries {
		if oldest == "" || e.expires.Before(oldestAt) {
			oldest, oldestAt = k, e.expires
		}
	}
	delete(c.entries, oldest)
}
