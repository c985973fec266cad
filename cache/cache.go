// Package cache holds the two in-process caches that sit between the
// scanner and its upstreams. Both follow the same stale-but-available
// policy: an expired entry is retained until a successful Put replaces
// it, so a failed refresh never leaves the cache empty, and Get simply
// reports a miss until fresh data lands.
package cache

import (
	"sync"
	"time"

	"skinarb/models"
)

// Clock supplies the current time. Injected so tests control expiry.
type Clock func() time.Time

// ListingCache memoizes one Buff listings page keyed by the exact query
// parameters. It deduplicates rapid repeated requests (UI re-renders);
// it holds a single entry, so a different key is always a miss.
type ListingCache struct {
	mu  sync.Mutex
	now Clock
	ttl time.Duration

	key        string
	capturedAt time.Time
	items      []models.RawListing
	filled     bool
}

func NewListingCache(ttl time.Duration, now Clock) *ListingCache {
	if now == nil {
		now = time.Now
	}
	return &ListingCache{now: now, ttl: ttl}
}

// Get returns the cached page when the stored key matches and the entry
// is still fresh.
func (c *ListingCache) Get(key string) ([]models.RawListing, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.filled || c.key != key {
		return nil, false
	}
	if c.now().Sub(c.capturedAt) >= c.ttl {
		return nil, false
	}
	return c.items, true
}

// Put replaces the entry wholesale after a successful fetch.
func (c *ListingCache) Put(key string, items []models.RawListing) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.key = key
	c.items = items
	c.capturedAt = c.now()
	c.filled = true
}

// PriceTableCache memoizes the full market.csgo.com price dump. It is
// global (no key): the upstream only exposes a whole-table endpoint, so
// one bulk fetch is amortized over many lookups under a longer TTL.
type PriceTableCache struct {
	mu  sync.Mutex
	now Clock
	ttl time.Duration

	capturedAt time.Time
	table      *models.PriceTable
}

func NewPriceTableCache(ttl time.Duration, now Clock) *PriceTableCache {
	if now == nil {
		now = time.Now
	}
	return &PriceTableCache{now: now, ttl: ttl}
}

// Get returns the cached table when it is non-empty and still fresh.
func (c *PriceTableCache) Get() (*models.PriceTable, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.table == nil || c.table.Size() == 0 {
		return nil, false
	}
	if c.now().Sub(c.capturedAt) >= c.ttl {
		return nil, false
	}
	return c.table, true
}

// Put replaces the table wholesale after a successful bulk fetch.
func (c *PriceTableCache) Put(table *models.PriceTable) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.table = table
	c.capturedAt = c.now()
}
