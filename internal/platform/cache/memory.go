package cache

import (
	"context"
	"sync"
	"time"

	"github.com/shopforge/api/internal/domain"
)

// MemoryProductCache is an in-process ProductCache with TTL expiry, used when
// no Redis backend is configured and in tests.
type MemoryProductCache struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	product   domain.ProductSnapshot
	expiresAt time.Time
}

// NewMemoryProductCache constructs an in-process product cache.
func NewMemoryProductCache(ttl time.Duration) *MemoryProductCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &MemoryProductCache{
		ttl:     ttl,
		clock:   time.Now,
		entries: map[string]memoryEntry{},
	}
}

// Get returns the cached snapshot or ErrCacheMiss.
func (c *MemoryProductCache) Get(_ context.Context, productID string) (domain.ProductSnapshot, error) {
	c.mu.RLock()
	entry, ok := c.entries[cacheKey(productID)]
	c.mu.RUnlock()

	if !ok || c.clock().After(entry.expiresAt) {
		return domain.ProductSnapshot{}, ErrCacheMiss
	}
	return entry.product, nil
}

// Set stores the snapshot under the product key.
func (c *MemoryProductCache) Set(_ context.Context, product domain.ProductSnapshot) error {
	c.mu.Lock()
	c.entries[cacheKey(product.ID)] = memoryEntry{
		product:   product,
		expiresAt: c.clock().Add(c.ttl),
	}
	c.mu.Unlock()
	return nil
}

// Delete evicts the product entry.
func (c *MemoryProductCache) Delete(_ context.Context, productID string) error {
	c.mu.Lock()
	delete(c.entries, cacheKey(productID))
	c.mu.Unlock()
	return nil
}
