package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketStatus represents the lifecycle state of a market. Transitions are
// driven by external writers; the API only reports the stored value.
type MarketStatus string

const (
	MarketStatusActive   MarketStatus = "active"
	MarketStatusResolved MarketStatus = "resolved"
)

// Market is a tradable prediction instrument owned by a Protocol.
type Market struct {
	ID          string
	Question    string
	Description string
	Status      MarketStatus
	ProtocolID  string
	EndDate     *time.Time
	TotalYes    decimal.Decimal
	TotalNo     decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Protocol is populated by queries that join the owning protocol.
	Protocol *Protocol
	// BetCount is the number of bets placed against the market.
	BetCount int64
}

// MarketResolvedEvent records how and when a market was resolved.
type MarketResolvedEvent struct {
	ID         string
	MarketID   string
	Outcome    string
	ResolvedAt time.Time
	TxDigest   string
}

// YieldDeposit is an amount deposited into a protocol to earn yield on
// behalf of a market.
type YieldDeposit struct {
	ID          string
	MarketID    string
	ProtocolID  string
	Amount      decimal.Decimal
	DepositedAt time.Time
}

// MarketDetail is a market together with its most recent activity.
type MarketDetail struct {
	Market
	RecentBets    []Bet
	Resolution    *MarketResolvedEvent
	YieldDeposits []YieldDeposit
}
