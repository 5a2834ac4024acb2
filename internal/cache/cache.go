// Package cache implements the keyed response cache behind list and stats
// views. Keys encode logical query identity (entity, project id, filter
// tuple); mutations invalidate exactly the keys they affect, never the whole
// cache. Entries live in memory only.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultSize = 512
	defaultTTL  = 5 * time.Minute
)

type entry struct {
	value    any
	storedAt time.Time
}

// Cache is an LRU-bounded, TTL-expiring response cache. Invalidation removes
// the entry so the next read fetches fresh data.
type Cache struct {
	ttl time.Duration

	mu  sync.Mutex
	lru *lru.Cache[string, entry]
}

// New constructs a Cache holding at most size entries, each valid for ttl.
// Zero values select the defaults.
func New(size int, ttl time.Duration) (*Cache, error) {
	if size <= 0 {
		size = defaultSize
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	backing, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{ttl: ttl, lru: backing}, nil
}

// Key joins parts into a logical cache key, e.g. Key("project-stats", id).
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Get returns the cached value for key if present and fresh.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if time.Since(ent.storedAt) > c.ttl {
		c.lru.Remove(key)
		return nil, false
	}
	return ent.value, true
}

// Set stores value under key.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, entry{value: value, storedAt: time.Now()})
}

// Invalidate marks one key stale.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// InvalidatePrefix marks every key with the given prefix stale and reports
// how many entries were removed. Used when a mutation affects a family of
// filtered list views (e.g. every "prompts:{project}:..." page).
func (c *Cache) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.lru.Remove(key)
			removed++
		}
	}
	return removed
}

// GetOrFetch reads through the cache: a fresh entry is returned directly,
// otherwise fetch is invoked and its result stored. Errors are never cached.
func (c *Cache) GetOrFetch(ctx context.Context, key string, fetch func(ctx context.Context) (any, error)) (any, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}
	value, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.Set(key, value)
	return value, nil
}
