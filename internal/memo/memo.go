// Package memo provides a compute-once cache for values decoded on first
// access and retained for the owner's lifetime.
package memo

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes successful loads by key. Concurrent misses on the same key
// share one load. Failed loads are not cached.
type Cache[V any] struct {
	mu     sync.RWMutex
	values map[string]V
	group  singleflight.Group
}

// New returns an empty cache.
func New[V any]() *Cache[V] {
	return &Cache[V]{values: make(map[string]V)}
}

// Get returns the cached value for key, if any.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Do returns the cached value for key or runs load to produce it.
func (c *Cache[V]) Do(key string, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	res, err, _ := c.group.Do(key, func() (any, error) {
		// Double-check cache inside singleflight
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := load()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.values[key] = v
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	if res == nil {
		var zero V
		return zero, nil
	}
	v, ok := res.(V)
	if !ok {
		var zero V
		return zero, fmt.Errorf("memo: unexpected value type %T for %q", res, key)
	}
	return v, nil
}

// Len reports how many keys are cached.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

// Reset drops every cached value.
func (c *Cache[V]) Reset() {
	c.mu.Lock()
	c.values = make(map[string]V)
	c.mu.Unlock()
}
