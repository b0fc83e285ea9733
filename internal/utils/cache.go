// Package utils carries small shared helpers with no domain knowledge.
package utils

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheItem wraps a cached value with its expiry.
type cacheItem[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is an LRU cache with a per-entry TTL. Expiry is checked on
// read; stale entries are dropped lazily.
type TTLCache[K comparable, V any] struct {
	lru *lru.Cache[K, cacheItem[V]]
}

func NewTTLCache[K comparable, V any](size int) (*TTLCache[K, V], error) {
	l, err := lru.New[K, cacheItem[V]](size)
	if err != nil {
		return nil, err
	}
	return &TTLCache[K, V]{lru: l}, nil
}

func (c *TTLCache[K, V]) Set(key K, value V, ttl time.Duration) {
	c.lru.Add(key, cacheItem[V]{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
}

// Get returns the cached value, or the zero value and false when the key
// is absent or expired.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	item, ok := c.lru.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	if time.Now().After(item.expiresAt) {
		c.lru.Remove(key)
		var zero V
		return zero, false
	}
	return item.value, true
}

func (c *TTLCache[K, V]) Remove(key K) {
	c.lru.Remove(key)
}
