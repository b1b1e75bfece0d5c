// Package cache provides an injected TTL cache for advisory verification
// results. The clock is injectable so tests control expiry.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// TTLCache is a process-local best-effort cache. Entries expire after the
// configured TTL; expired entries are evicted lazily on access and on Put.
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// New creates a cache with the given TTL and the wall clock.
func New(ttl time.Duration) *TTLCache {
	return NewWithClock(ttl, time.Now)
}

// NewWithClock creates a cache with an injected clock.
func NewWithClock(ttl time.Duration, now func() time.Time) *TTLCache {
	return &TTLCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     now,
	}
}

// Get returns the cached value, or false when absent or expired.
func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Put stores a value and sweeps any expired entries.
func (c *TTLCache) Put(key string, value any) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = entry{value: value, expiresAt: now.Add(c.ttl)}
}

// Len returns the number of entries, expired ones included until swept.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
