package redis

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
)

//go:embed scripts/set_price.lua
var setPriceLua string

// DefaultPriceTTL bounds how long a cached price outlives its last write.
const DefaultPriceTTL = 10 * time.Minute

// PriceCache implements domain.PriceCache using Redis hashes.
// Each asset's latest observation is stored at "oracle:latest:{asset}" with
// fields vs, price, source, src_ts and ts (Unix nanoseconds).
type PriceCache struct {
	rdb      *redis.Client
	ttl      time.Duration
	setPrice *redis.Script
}

// NewPriceCache creates a PriceCache backed by the given Client. A
// non-positive ttl selects DefaultPriceTTL.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = DefaultPriceTTL
	}
	return &PriceCache{
		rdb:      c.Underlying(),
		ttl:      ttl,
		setPrice: redis.NewScript(setPriceLua),
	}
}

func priceKey(asset string) string {
	return "oracle:latest:" + asset
}

// SetPrice stores the observation for an asset unless the cache already
// holds one fetched later. The check and the write are a single script.
func (pc *PriceCache) SetPrice(ctx context.Context, p domain.OraclePrice) error {
	args := setPriceArgs(p, pc.ttl)
	if err := pc.setPrice.Run(ctx, pc.rdb, []string{priceKey(p.Asset)}, args...).Err(); err != nil {
		return fmt.Errorf("redis: set price %s: %w", p.Asset, err)
	}
	return nil
}

// setPriceArgs lays out ARGV for set_price.lua: fetched-at, ttl in
// milliseconds, then the hash field/value pairs.
func setPriceArgs(p domain.OraclePrice, ttl time.Duration) []any {
	ts := strconv.FormatInt(p.FetchedAt.UnixNano(), 10)
	return []any{
		ts,
		ttl.Milliseconds(),
		"vs", p.VsCurrency,
		"price", p.Price.String(),
		"source", p.Source,
		"src_ts", strconv.FormatInt(p.SourceUpdatedAt.UnixNano(), 10),
		"ts", ts,
	}
}

// GetPrice retrieves the latest observation for an asset.
// It returns domain.ErrNotFound when the key does not exist.
func (pc *PriceCache) GetPrice(ctx context.Context, asset string) (domain.OraclePrice, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(asset)).Result()
	if err != nil {
		return domain.OraclePrice{}, fmt.Errorf("redis: get price %s: %w", asset, err)
	}
	return decodePrice(asset, vals)
}

func decodePrice(asset string, vals map[string]string) (domain.OraclePrice, error) {
	priceStr, ok := vals["price"]
	if !ok {
		return domain.OraclePrice{}, domain.ErrNotFound
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return domain.OraclePrice{}, fmt.Errorf("redis: parse price %s: %w", asset, err)
	}

	fetched, err := parseUnixNano(vals["ts"])
	if err != nil {
		return domain.OraclePrice{}, fmt.Errorf("redis: parse ts %s: %w", asset, err)
	}
	srcTS, err := parseUnixNano(vals["src_ts"])
	if err != nil {
		return domain.OraclePrice{}, fmt.Errorf("redis: parse src_ts %s: %w", asset, err)
	}

	return domain.OraclePrice{
		Asset:           asset,
		VsCurrency:      vals["vs"],
		Price:           price,
		Source:          vals["source"],
		SourceUpdatedAt: srcTS,
		FetchedAt:       fetched,
	}, nil
}

func parseUnixNano(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, n).UTC(), nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
