package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OraclePrice is a single observation of an asset price from an external feed.
type OraclePrice struct {
	Asset           string
	VsCurrency      string
	Price           decimal.Decimal
	Source          string
	SourceUpdatedAt time.Time
	FetchedAt       time.Time
}

// IsStale reports whether the observation is older than maxAge at now.
// A zero maxAge disables the check.
func (p OraclePrice) IsStale(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	return now.Sub(p.FetchedAt) > maxAge
}
