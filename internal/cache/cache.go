package cache

import (
	"context"
	"sync"
	"time"

	"github.com/tianqi-tools/weather-mcp/internal/models"
)

// Cache stores resolved locations keyed by the normalized query text.
// City-to-LocationID mappings are effectively static, so long TTLs are safe.
type Cache interface {
	Get(ctx context.Context, key string) (models.ResolvedLocation, bool, error)
	Set(ctx context.Context, key string, value models.ResolvedLocation, ttl time.Duration) error
}

// InMemoryCache implements Cache with a mutex-guarded map and TTL-based
// expiration. Expired entries are removed on access.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
}

type cacheEntry struct {
	value     models.ResolvedLocation
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache instance.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
	}
}

// Get retrieves a cached location if present and not expired.
// Returns (data, true, nil) on hit, (zero, false, nil) on miss.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.ResolvedLocation, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return models.ResolvedLocation{}, false, nil
	}

	if time.Now().After(entry.expiresAt) {
		delete(c.data, key)
		return models.ResolvedLocation{}, false, nil
	}

	return entry.value, true, nil
}

// Set stores a resolved location with the specified TTL.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.ResolvedLocation, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}
