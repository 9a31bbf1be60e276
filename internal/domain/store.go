package domain

import (
	"context"
	"time"
)

// MarketStore reads markets and their related records.
type MarketStore interface {
	List(ctx context.Context, f MarketFilter, page Page) ([]Market, error)
	Count(ctx context.Context, f MarketFilter) (int64, error)
	GetDetail(ctx context.Context, id string, recentBets, recentDeposits int) (MarketDetail, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// BetStore reads bets together with their market and claim.
type BetStore interface {
	List(ctx context.Context, f BetFilter, page Page) ([]Bet, error)
	Count(ctx context.Context, f BetFilter) (int64, error)
	GetByID(ctx context.Context, id string) (Bet, error)
	Chart(ctx context.Context, marketID string, interval ChartInterval, limit int) ([]ChartPoint, error)
}

// ProtocolStore reads protocols.
type ProtocolStore interface {
	List(ctx context.Context) ([]Protocol, error)
	GetByID(ctx context.Context, id string) (Protocol, error)
}

// OracleStore persists oracle price observations. SaveLatest must upsert the
// latest row and append the history row atomically.
type OracleStore interface {
	SaveLatest(ctx context.Context, p OraclePrice) error
	GetLatest(ctx context.Context, asset string) (OraclePrice, error)
	ListHistory(ctx context.Context, asset string, page Page) ([]OraclePrice, error)
	CountHistory(ctx context.Context, asset string) (int64, error)
	ListHistoryBefore(ctx context.Context, asset string, before time.Time) ([]OraclePrice, error)
	DeleteHistoryBefore(ctx context.Context, asset string, before time.Time) (int64, error)
}

// Pinger reports backend reachability for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}
