package cache

import (
	"context"
	"errors"

	"github.com/shopforge/api/internal/domain"
)

// ErrCacheMiss marks a lookup that found no cached entry.
var ErrCacheMiss = errors.New("cache miss")

// ProductCache holds product snapshots between catalog reads. Writers must
// call Delete for the affected product so stale prices are never served
// (evict-on-write).
type ProductCache interface {
	Get(ctx context.Context, productID string) (domain.ProductSnapshot, error)
	Set(ctx context.Context, product domain.ProductSnapshot) error
	Delete(ctx context.Context, productID string) error
}

func cacheKey(productID string) string {
	return "product:" + productID
}
