package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/shopforge/api/internal/domain"
)

// RedisProductCache stores product snapshots in Redis with a TTL.
type RedisProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProductCache constructs a Redis-backed product cache.
func NewRedisProductCache(client *redis.Client, ttl time.Duration) *RedisProductCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisProductCache{client: client, ttl: ttl}
}

type productEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

// Get returns the cached snapshot or ErrCacheMiss.
func (c *RedisProductCache) Get(ctx context.Context, productID string) (domain.ProductSnapshot, error) {
	data, err := c.client.Get(ctx, cacheKey(productID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ProductSnapshot{}, ErrCacheMiss
	}
	if err != nil {
		return domain.ProductSnapshot{}, fmt.Errorf("redis get failed: %w", err)
	}

	var entry productEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return domain.ProductSnapshot{}, fmt.Errorf("unmarshal product failed: %w", err)
	}
	price, err := decimal.NewFromString(entry.Price)
	if err != nil {
		return domain.ProductSnapshot{}, fmt.Errorf("parse cached price failed: %w", err)
	}
	return domain.ProductSnapshot{ID: entry.ID, Name: entry.Name, Price: price}, nil
}

// Set stores the snapshot under the product key.
func (c *RedisProductCache) Set(ctx context.Context, product domain.ProductSnapshot) error {
	data, err := json.Marshal(productEntry{
		ID:    product.ID,
		Name:  product.Name,
		Price: product.Price.String(),
	})
	if err != nil {
		return fmt.Errorf("marshal product failed: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(product.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete evicts the product entry.
func (c *RedisProductCache) Delete(ctx context.Context, productID string) error {
	if err := c.client.Del(ctx, cacheKey(productID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}
