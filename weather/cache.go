package weather

import (
	"errors"
	"sync"
	"time"
)

// ErrCorruptEntry is returned by a Cache whose stored entry cannot be decoded.
var ErrCorruptEntry = errors.New("corrupt weather cache entry")

type CacheEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Data      []DailyForecast `json:"data"`
}

// Cache persists forecast entries. Entries are never expired by the cache
// itself; staleness is decided by the Service so old entries stay available
// as a fallback.
type Cache interface {
	// Get returns nil, nil when there is no entry for key.
	Get(key string) (*CacheEntry, error)
	Set(key string, entry CacheEntry) error
	Remove(key string) error
}

type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]CacheEntry{}}
}

func (c *MemoryCache) Get(key string) (*CacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (c *MemoryCache) Set(key string, entry CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
	return nil
}

func (c *MemoryCache) Remove(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}
