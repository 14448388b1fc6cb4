package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/JaggerBean/FitCollector/internal/model"
)

const (
	// CatalogCachePrefix is the key prefix for per-server reward catalogs
	CatalogCachePrefix = "rewards:server:"

	DefaultCatalogTTL = 5 * time.Minute
)

// CatalogCache holds the stored tiers of each server. A hit with an empty
// slice means the server has no tiers of its own.
type CatalogCache interface {
	// Get returns found=false on a miss.
	Get(ctx context.Context, server string) (tiers []model.RewardTier, found bool, err error)
	// Set overwrites the entry. Writers use it after changing the catalog.
	Set(ctx context.Context, server string, tiers []model.RewardTier) error
	// Fill stores tiers only when no entry exists, so a slow reader never
	// replaces what a writer published in the meantime.
	Fill(ctx context.Context, server string, tiers []model.RewardTier) error
	Invalidate(ctx context.Context, server string) error
}

// RedisCatalogCache stores each catalog as one JSON string with a TTL.
type RedisCatalogCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCatalogCache returns a Redis-backed cache, or a cache that always misses when client is nil.
func NewCatalogCache(client *redis.Client, ttl time.Duration) CatalogCache {
	if client == nil {
		return noopCatalogCache{}
	}
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	return &RedisCatalogCache{client: client, ttl: ttl}
}

func catalogKey(server string) string {
	return CatalogCachePrefix + server
}

func (c *RedisCatalogCache) Get(ctx context.Context, server string) ([]model.RewardTier, bool, error) {
	raw, err := c.client.Get(ctx, catalogKey(server)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get catalog cache: %w", err)
	}

	var tiers []model.RewardTier
	if err := json.Unmarshal(raw, &tiers); err != nil {
		return nil, false, fmt.Errorf("decode catalog cache: %w", err)
	}
	return tiers, true, nil
}

func (c *RedisCatalogCache) Set(ctx context.Context, server string, tiers []model.RewardTier) error {
	raw, err := encodeTiers(tiers)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, catalogKey(server), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set catalog cache: %w", err)
	}
	return nil
}

func (c *RedisCatalogCache) Fill(ctx context.Context, server string, tiers []model.RewardTier) error {
	raw, err := encodeTiers(tiers)
	if err != nil {
		return err
	}
	if err := c.client.SetNX(ctx, catalogKey(server), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("fill catalog cache: %w", err)
	}
	return nil
}

func encodeTiers(tiers []model.RewardTier) ([]byte, error) {
	if tiers == nil {
		tiers = []model.RewardTier{}
	}
	raw, err := json.Marshal(tiers)
	if err != nil {
		return nil, fmt.Errorf("encode catalog cache: %w", err)
	}
	return raw, nil
}

func (c *RedisCatalogCache) Invalidate(ctx context.Context, server string) error {
	if err := c.client.Del(ctx, catalogKey(server)).Err(); err != nil {
		return fmt.Errorf("invalidate catalog cache: %w", err)
	}
	return nil
}

type noopCatalogCache struct{}

func (noopCatalogCache) Get(context.Context, string) ([]model.RewardTier, bool, error) {
	return nil, false, nil
}
func (noopCatalogCache) Set(context.Context, string, []model.RewardTier) error  { return nil }
func (noopCatalogCache) Fill(context.Context, string, []model.RewardTier) error { return nil }
func (noopCatalogCache) Invalidate(context.Context, string) error               { return nil }
