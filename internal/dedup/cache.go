// Package dedup tracks content hashes seen by this process and records
// duplicate sightings for analytics.
package dedup

import (
	"context"
	"sync"
)

// Cache is the injected seen-hash set. Lifetime and sharing are decided by
// the caller; the service only reads and inserts. Implementations must be
// safe for concurrent use.
type Cache interface {
	// Contains reports whether the hash was recorded before.
	Contains(ctx context.Context, hash string) (bool, error)
	// Add inserts the hash, reporting whether it was already present.
	Add(ctx context.Context, hash string) (bool, error)
	// Clear empties the cache.
	Clear(ctx context.Context) error
}

// MemoryCache is a mutex-guarded in-process hash set.
type MemoryCache struct {
	mu     sync.RWMutex
	hashes map[string]struct{}
}

// NewMemoryCache builds an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{hashes: make(map[string]struct{})}
}

// Contains reports membership.
func (c *MemoryCache) Contains(_ context.Context, hash string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.hashes[hash]
	return ok, nil
}

// Add inserts the hash and reports whether it already existed.
func (c *MemoryCache) Add(_ context.Context, hash string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, existed := c.hashes[hash]
	c.hashes[hash] = struct{}{}
	return existed, nil
}

// Clear empties the set.
func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hashes = make(map[string]struct{})
	return nil
}
