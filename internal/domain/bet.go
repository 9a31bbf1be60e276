package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BetPosition is the side of a binary market a bet was placed on.
type BetPosition string

const (
	BetPositionYes BetPosition = "yes"
	BetPositionNo  BetPosition = "no"
)

// Bet is a user's wager against a market.
type Bet struct {
	ID       string
	MarketID string
	Bettor   string
	Position BetPosition
	Amount   decimal.Decimal
	PlacedAt time.Time
	TxDigest string

	// Market is populated by queries that join the owning market.
	Market *Market
	// Winnings is nil when no claim has been made for the bet.
	Winnings *WinningsClaimed
}

// WinningsClaimed records a payout collected after resolution. Amounts are
// nullable in the store.
type WinningsClaimed struct {
	ID            string
	BetID         string
	Winner        string
	WinningAmount decimal.NullDecimal
	YieldShare    decimal.NullDecimal
	ClaimedAt     time.Time
}

// ChartPoint is one time bucket of betting activity for a market.
type ChartPoint struct {
	Bucket    time.Time
	YesAmount decimal.Decimal
	NoAmount  decimal.Decimal
	BetCount  int64
}

// ChartInterval is the bucket width of a chart series.
type ChartInterval string

const (
	ChartIntervalHour ChartInterval = "hour"
	ChartIntervalDay  ChartInterval = "day"
)
