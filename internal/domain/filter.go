package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// MaxPageLimit caps the page size of every list query.
const MaxPageLimit = 100

// StatusAll disables the market status filter.
const StatusAll = "all"

// Page is a validated limit/offset pair.
type Page struct {
	Limit  int
	Offset int
}

// NewPage parses raw limit and offset query values. Empty values take the
// defaults (defaultLimit and 0). Negative or non-numeric values are rejected;
// limits above MaxPageLimit are clamped.
func NewPage(rawLimit, rawOffset string, defaultLimit int) (Page, error) {
	p := Page{Limit: defaultLimit}

	if rawLimit != "" {
		n, err := strconv.Atoi(strings.TrimSpace(rawLimit))
		if err != nil || n < 0 {
			return Page{}, fmt.Errorf("%w: limit must be a non-negative integer", ErrInvalidInput)
		}
		p.Limit = n
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}

	if rawOffset != "" {
		n, err := strconv.Atoi(strings.TrimSpace(rawOffset))
		if err != nil || n < 0 {
			return Page{}, fmt.Errorf("%w: offset must be a non-negative integer", ErrInvalidInput)
		}
		p.Offset = n
	}

	return p, nil
}

// MarketFilter selects markets for list and count queries. Zero fields do
// not constrain the query.
type MarketFilter struct {
	Status     MarketStatus
	ProtocolID string
}

// NewMarketFilter builds a MarketFilter from raw query values. The status
// defaults to active; "all" removes the status constraint.
func NewMarketFilter(status, protocolID string) (MarketFilter, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	f := MarketFilter{ProtocolID: strings.TrimSpace(protocolID)}

	switch {
	case status == "":
		f.Status = MarketStatusActive
	case status == StatusAll:
	case validToken(status):
		f.Status = MarketStatus(status)
	default:
		return MarketFilter{}, fmt.Errorf("%w: status %q", ErrInvalidInput, status)
	}

	if f.ProtocolID != "" && !validID(f.ProtocolID) {
		return MarketFilter{}, fmt.Errorf("%w: protocolId %q", ErrInvalidInput, f.ProtocolID)
	}
	return f, nil
}

// BetFilter selects bets for list and count queries.
type BetFilter struct {
	MarketID string
	Bettor   string
	Position BetPosition
}

// NewBetFilter builds a BetFilter from raw query values.
func NewBetFilter(marketID, bettor, position string) (BetFilter, error) {
	f := BetFilter{MarketID: strings.TrimSpace(marketID)}

	if f.MarketID != "" && !validID(f.MarketID) {
		return BetFilter{}, fmt.Errorf("%w: marketId %q", ErrInvalidInput, f.MarketID)
	}

	if strings.TrimSpace(bettor) != "" {
		addr, err := NormalizeAddress(bettor)
		if err != nil {
			return BetFilter{}, err
		}
		f.Bettor = addr
	}

	switch p := BetPosition(strings.ToLower(strings.TrimSpace(position))); p {
	case "":
	case BetPositionYes, BetPositionNo:
		f.Position = p
	default:
		return BetFilter{}, fmt.Errorf("%w: position must be yes or no", ErrInvalidInput)
	}

	return f, nil
}

// NormalizeAddress validates a 0x-prefixed hex account address and returns
// its lower-case form. Short forms with an odd digit count, such as 0x2, are
// accepted.
func NormalizeAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	padded := addr
	if len(addr) > 2 && len(addr)%2 == 1 {
		padded = addr[:2] + "0" + addr[2:]
	}
	b, err := hexutil.Decode(padded)
	if err == nil && len(b) == 0 {
		err = hexutil.ErrEmptyNumber
	}
	if err != nil {
		return "", fmt.Errorf("%w: address %q: %v", ErrInvalidInput, addr, err)
	}
	return strings.ToLower(addr), nil
}

// ParseChartInterval validates a chart bucket width, defaulting to hour.
func ParseChartInterval(raw string) (ChartInterval, error) {
	switch iv := ChartInterval(strings.ToLower(strings.TrimSpace(raw))); iv {
	case "":
		return ChartIntervalHour, nil
	case ChartIntervalHour, ChartIntervalDay:
		return iv, nil
	default:
		return "", fmt.Errorf("%w: interval must be hour or day", ErrInvalidInput)
	}
}

func validToken(s string) bool {
	if len(s) == 0 || len(s) > 32 {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && r != '_' {
			return false
		}
	}
	return true
}

func validID(s string) bool {
	if len(s) == 0 || len(s) > 128 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == ':', r == '.':
		default:
			return false
		}
	}
	return true
}
