package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
)

// DefaultMarketTTL bounds how long a market detail may be served from cache.
const DefaultMarketTTL = 30 * time.Second

// MarketCache implements domain.MarketCache by storing JSON-serialized
// MarketDetail values at "market:detail:{id}".
type MarketCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewMarketCache creates a MarketCache backed by the given Client. A
// non-positive ttl selects DefaultMarketTTL.
func NewMarketCache(c *Client, ttl time.Duration) *MarketCache {
	if ttl <= 0 {
		ttl = DefaultMarketTTL
	}
	return &MarketCache{rdb: c.Underlying(), ttl: ttl}
}

func marketKey(id string) string { return "market:detail:" + id }

// Set stores a market detail with the configured TTL.
func (mc *MarketCache) Set(ctx context.Context, d domain.MarketDetail) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", d.ID, err)
	}
	if err := mc.rdb.Set(ctx, marketKey(d.ID), data, mc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set market %s: %w", d.ID, err)
	}
	return nil
}

// Get retrieves a market detail by ID.
// It returns domain.ErrNotFound when the key does not exist.
func (mc *MarketCache) Get(ctx context.Context, id string) (domain.MarketDetail, error) {
	data, err := mc.rdb.Get(ctx, marketKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.MarketDetail{}, domain.ErrNotFound
		}
		return domain.MarketDetail{}, fmt.Errorf("redis: get market %s: %w", id, err)
	}

	var d domain.MarketDetail
	if err := json.Unmarshal(data, &d); err != nil {
		return domain.MarketDetail{}, fmt.Errorf("redis: unmarshal market %s: %w", id, err)
	}
	return d, nil
}

// Compile-time interface check.
var _ domain.MarketCache = (*MarketCache)(nil)
