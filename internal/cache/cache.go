// Package cache is a short-TTL memo for aggregate results. Consistency is
// deliberately relaxed: concurrent misses for the same key may both fetch and
// both store, last write wins. Staleness tolerance already lives in the TTL.
package cache

import (
	"sync"
	"time"

	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/market"
)

type entry struct {
	expiresAt time.Time
	value     market.AggregateResult
}

// Cache memoizes aggregate results per key. Entries past expiry are evicted
// lazily on lookup; there is no background sweep.
type Cache struct {
	TTL      time.Duration
	MaxItems int
	Now      func() time.Time

	mu    sync.RWMutex
	items map[string]entry
}

func New(ttl time.Duration, maxItems int) *Cache {
	return &Cache{TTL: ttl, MaxItems: maxItems, Now: time.Now, items: make(map[string]entry)}
}

// Get returns the cached value when present and unexpired.
func (c *Cache) Get(key string) (market.AggregateResult, bool) {
	if c == nil || c.TTL <= 0 {
		return market.AggregateResult{}, false
	}
	now := c.Now()

	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return market.AggregateResult{}, false
	}
	if !now.Before(e.expiresAt) {
		c.mu.Lock()
		// Re-check: a concurrent Put may have refreshed the entry.
		if cur, still := c.items[key]; still && !now.Before(cur.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return market.AggregateResult{}, false
	}
	return e.value, true
}

// Put stores the value under key for the cache TTL.
func (c *Cache) Put(key string, v market.AggregateResult) {
	if c == nil || c.TTL <= 0 {
		return
	}
	now := c.Now()
	c.mu.Lock()
	c.items[key] = entry{expiresAt: now.Add(c.TTL), value: v}
	if c.MaxItems > 0 && len(c.items) > c.MaxItems {
		// best-effort cap: expired first, then arbitrary
		for k, e := range c.items {
			if !now.Before(e.expiresAt) {
				delete(c.items, k)
			}
			if len(c.items) <= c.MaxItems {
				break
			}
		}
		for k := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			delete(c.items, k)
		}
	}
	c.mu.Unlock()
}
