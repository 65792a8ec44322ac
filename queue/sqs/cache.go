package sqs

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Cache stores resolved queue URLs keyed by queue name. Implementations must
// be safe for concurrent use.
type Cache interface {
	Get(name string) (string, bool)
	Set(name, url string)
	Delete(name string)
}

type cacheEntry struct {
	url        string
	expiration time.Time
}

// InMemoryCache is a mutex protected Cache with a per-entry TTL and an
// optional size bound.
type InMemoryCache struct {
	// entries maps queue names to resolved URLs
	entries map[string]cacheEntry

	// maxSize limits the number of entries (0 = unlimited)
	maxSize int

	ttl   time.Duration
	clock clockwork.Clock
	mu    sync.Mutex
}

// NewInMemoryCache creates a cache whose entries live for ttl. If maxSize is
// 0 the cache is unbounded; otherwise the entry closest to expiry is evicted
// to make room.
func NewInMemoryCache(ttl time.Duration, maxSize int) *InMemoryCache {
	return NewInMemoryCacheWithClock(ttl, maxSize, clockwork.NewRealClock())
}

// NewInMemoryCacheWithClock is NewInMemoryCache with an injectable clock.
func NewInMemoryCacheWithClock(ttl time.Duration, maxSize int, clock clockwork.Clock) *InMemoryCache {
	return &InMemoryCache{
		entries: make(map[string]cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
		clock:   clock,
	}
}

// Get returns the cached URL for name if present and not expired.
func (c *InMemoryCache) Get(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[name]
	if !ok {
		return "", false
	}
	if c.clock.Now().After(entry.expiration) {
		delete(c.entries, name)
		return "", false
	}
	return entry.url, true
}

// Set stores url for name.
func (c *InMemoryCache) Set(name, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[name]; !exists && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		var oldestKey string
		var oldest time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.expiration.Before(oldest) {
				oldestKey, oldest = k, e.expiration
			}
		}
		delete(c.entries, oldestKey)
	}

	c.entries[name] = cacheEntry{url: url, expiration: c.clock.Now().Add(c.ttl)}
}

// Delete removes name from the cache.
func (c *InMemoryCache) Delete(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, name)
}

// Size returns the number of unexpired entries.
func (c *InMemoryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	count := 0
	for k, e := range c.entries {
		if now.After(e.expiration) {
			delete(c.entries, k)
			continue
		}
		count++
	}
	return count
}
