package data

import (
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
)

type CacheItem[T any] struct {
	Value     *T
	ExpiresAt time.Time
}

// Cache is a small sliding-expiry map. Expired items are dropped on read.
type Cache[K comparable, V any] struct {
	items map[K]*CacheItem[V]
	ttl   time.Duration
	clock clock.Clock
	mutex sync.Mutex
}

// NewCache creates a new cache.
func NewCache[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return NewCacheWithClock[K, V](ttl, clock.NewClock())
}

func NewCacheWithClock[K comparable, V any](ttl time.Duration, clk clock.Clock) *Cache[K, V] {
	return &Cache[K, V]{
		items: make(map[K]*CacheItem[V]),
		ttl:   ttl,
		clock: clk,
	}
}

// Get returns the value associated with the key, or nil if it is missing or expired.
// Getting an item extends its TTL
func (c *Cache[K, V]) Get(key K) *V {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	item, found := c.items[key]
	if !found {
		return nil
	}
	now := c.clock.Now().UTC()
	if now.After(item.ExpiresAt) {
		delete(c.items, key)
		return nil
	}
	// update TTL
	item.ExpiresAt = now.Add(c.ttl)

	return item.Value
}

// Set sets the value associated with the key and the expiration time.
func (c *Cache[K, V]) Set(key K, value *V) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items[key] = &CacheItem[V]{
		Value:     value,
		ExpiresAt: c.clock.Now().UTC().Add(c.ttl),
	}
}

// Len reports the number of items held, including ones not yet evicted.
func (c *Cache[K, V]) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.items)
}
