package domain

import "time"

// Protocol is the external platform a market belongs to.
type Protocol struct {
	ID          string
	Name        string
	Description string
	Website     string
	LogoURL     string
	CreatedAt   time.Time

	// MarketCount is filled by list queries.
	MarketCount int64
}
