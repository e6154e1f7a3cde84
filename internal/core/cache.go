package core

import (
	"maps"
	"slices"
	"sync"
)

// TokenCache memoizes ParseToken results. A present key with a nil value
// records a token that is known not to match.
type TokenCache struct {
	mu      sync.RWMutex
	entries map[string][]StringifiedUtil
}

func newTokenCache() *TokenCache {
	return &TokenCache{entries: make(map[string][]StringifiedUtil)}
}

// CacheKey returns the cache key for raw parsed under alias.
func CacheKey(raw, alias string) string {
	if alias == "" {
		return raw
	}
	return raw + " " + alias
}

// Get returns the cached result and whether the key was attempted.
func (c *TokenCache) Get(key string) ([]StringifiedUtil, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// Has reports whether key was attempted.
func (c *TokenCache) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Len returns the number of attempted keys.
func (c *TokenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns the attempted keys, sorted.
func (c *TokenCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.entries))
}

func (c *TokenCache) set(key string, v []StringifiedUtil) {
	c.mu.Lock()
	c.entries[key] = v
	c.mu.Unlock()
}

func (c *TokenCache) clear() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}
