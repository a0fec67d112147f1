package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopforge/api/internal/platform/cache"
	"github.com/shopforge/api/internal/repositories"
)

var (
	// ErrProductNotFound indicates the requested product does not exist in the catalog.
	ErrProductNotFound = errors.New("catalog: product not found")
	// ErrCatalogInvalidInput signals a malformed product lookup.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
)

// CatalogServiceDeps bundles collaborators required to construct the catalog service.
type CatalogServiceDeps struct {
	Products repositories.ProductRepository
	Cache    cache.ProductCache
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	products repositories.ProductRepository
	cache    cache.ProductCache
	logger   func(context.Context, string, map[string]any)
}

// NewCatalogService wires dependencies into a concrete CatalogService implementation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &catalogService{
		products: deps.Products,
		cache:    deps.Cache,
		logger:   logger,
	}, nil
}

// GetProduct returns the catalog snapshot for the product, consulting the
// cache before storage. Cache faults degrade to a storage read.
func (s *catalogService) GetProduct(ctx context.Context, productID string) (ProductSnapshot, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return ProductSnapshot{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, productID)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger(ctx, "catalog.cache.read.failed", map[string]any{
				"productId": productID,
				"error":     err.Error(),
			})
		}
	}

	product, err := s.products.LookupProduct(ctx, productID)
	if err != nil {
		if isRepoNotFound(err) {
			return ProductSnapshot{}, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
		}
		return ProductSnapshot{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, product); err != nil {
			s.logger(ctx, "catalog.cache.write.failed", map[string]any{
				"productId": productID,
				"error":     err.Error(),
			})
		}
	}

	return product, nil
}
