package store

import (
	"sync"
	"time"
)

type entry struct {
	value    any
	storedAt time.Time
}

// MemoryCache is a concurrency-safe in-memory read-through cache with a
// single staleness window for every entry.
type MemoryCache struct {
	mu sync.RWMutex

	data  map[string]entry
	order []string // insertion order, oldest first

	// retention configuration
	maxEntries int           // max number of entries (0 = unlimited)
	ttl        time.Duration // max age of an entry (0 = never expires)

	now func() time.Time
}

// NewMemoryCache creates a new MemoryCache with optional limits.
// If maxEntries is <= 0, it is treated as unlimited.
func NewMemoryCache(maxEntries int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		data:       make(map[string]entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Get returns the value stored under key unless it has expired.
func (c *MemoryCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.data[key]
	if !ok || c.expired(e) {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key and enforces retention by count.
func (c *MemoryCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; exists {
		c.removeFromOrder(key)
	}
	c.data[key] = entry{value: value, storedAt: c.now()}
	c.order = append(c.order, key)

	if c.maxEntries > 0 && len(c.order) > c.maxEntries {
		over := len(c.order) - c.maxEntries
		for _, k := range c.order[:over] {
			delete(c.data, k)
		}
		c.order = append([]string(nil), c.order[over:]...)
	}
}

// Purge drops every expired entry and returns how many were removed.
func (c *MemoryCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.order[:0]
	removed := 0
	for _, k := range c.order {
		if c.expired(c.data[k]) {
			delete(c.data, k)
			removed++
			continue
		}
		kept = append(kept, k)
	}
	c.order = kept
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

func (c *MemoryCache) expired(e entry) bool {
	if c.ttl <= 0 {
		return false
	}
	return c.now().Sub(e.storedAt) >= c.ttl
}

func (c *MemoryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
