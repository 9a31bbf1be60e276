package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest oracle price per asset.
// SetPrice never replaces a cached observation with an older one.
type PriceCache interface {
	SetPrice(ctx context.Context, p OraclePrice) error
	GetPrice(ctx context.Context, asset string) (OraclePrice, error)
}

// MarketCache holds market detail payloads for a short time.
type MarketCache interface {
	Set(ctx context.Context, d MarketDetail) error
	Get(ctx context.Context, id string) (MarketDetail, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub between the updater and push clients.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// PriceChannel is the signal bus channel carrying oracle price updates.
const PriceChannel = "oracle:price"
