package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
	"github.com/alanyoungcy/prophyt-api/internal/service"
)

// Response shapes. Every high-precision numeric is rendered as a decimal
// string so clients never see a rounded float.

type countDTO struct {
	Bets    *int64 `json:"bets,omitempty"`
	Markets *int64 `json:"markets,omitempty"`
}

type protocolDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Website     string    `json:"website"`
	LogoURL     string    `json:"logoUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	Count       *countDTO `json:"_count,omitempty"`
}

type marketDTO struct {
	ID             string       `json:"id"`
	Question       string       `json:"question"`
	Description    string       `json:"description"`
	Status         string       `json:"status"`
	ProtocolID     string       `json:"protocolId"`
	EndDate        *time.Time   `json:"endDate"`
	TotalYesAmount string       `json:"totalYesAmount"`
	TotalNoAmount  string       `json:"totalNoAmount"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
	Protocol       *protocolDTO `json:"protocol"`
	Count          countDTO     `json:"_count"`
}

type resolutionDTO struct {
	ID         string    `json:"id"`
	MarketID   string    `json:"marketId"`
	Outcome    string    `json:"outcome"`
	ResolvedAt time.Time `json:"resolvedAt"`
	TxDigest   string    `json:"txDigest"`
}

type yieldDepositDTO struct {
	ID          string    `json:"id"`
	MarketID    string    `json:"marketId"`
	ProtocolID  string    `json:"protocolId"`
	Amount      string    `json:"amount"`
	DepositedAt time.Time `json:"depositedAt"`
}

type marketDetailDTO struct {
	marketDTO
	Bets                []betDTO          `json:"bets"`
	MarketResolvedEvent *resolutionDTO    `json:"marketResolvedEvent"`
	YieldDeposits       []yieldDepositDTO `json:"yieldDeposits"`
}

type winningsDTO struct {
	ID            string    `json:"id"`
	BetID         string    `json:"betId"`
	Winner        string    `json:"winner"`
	WinningAmount string    `json:"winningAmount"`
	YieldShare    string    `json:"yieldShare"`
	ClaimedAt     time.Time `json:"claimedAt"`
}

type betDTO struct {
	ID              string       `json:"id"`
	MarketID        string       `json:"marketId"`
	Bettor          string       `json:"bettor"`
	Position        string       `json:"position"`
	Amount          string       `json:"amount"`
	PlacedAt        time.Time    `json:"placedAt"`
	TxDigest        string       `json:"txDigest"`
	WinningAmount   string       `json:"winningAmount"`
	YieldShare      string       `json:"yieldShare"`
	Market          *marketDTO   `json:"market,omitempty"`
	WinningsClaimed *winningsDTO `json:"winningsClaimed"`
}

type oraclePriceDTO struct {
	Asset           string    `json:"asset"`
	VsCurrency      string    `json:"vsCurrency"`
	Price           string    `json:"price"`
	Source          string    `json:"source"`
	SourceUpdatedAt time.Time `json:"sourceUpdatedAt"`
	FetchedAt       time.Time `json:"fetchedAt"`
	Stale           *bool     `json:"stale,omitempty"`
}

type chartPointDTO struct {
	Timestamp   time.Time `json:"timestamp"`
	YesAmount   string    `json:"yesAmount"`
	NoAmount    string    `json:"noAmount"`
	TotalAmount string    `json:"totalAmount"`
	BetCount    int64     `json:"betCount"`
}

// nullString renders a nullable numeric, defaulting to "0".
func nullString(d decimal.NullDecimal) string {
	if !d.Valid {
		return "0"
	}
	return d.Decimal.String()
}

func newProtocolDTO(p domain.Protocol, withCount bool) protocolDTO {
	dto := protocolDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Website:     p.Website,
		LogoURL:     p.LogoURL,
		CreatedAt:   p.CreatedAt,
	}
	if withCount {
		n := p.MarketCount
		dto.Count = &countDTO{Markets: &n}
	}
	return dto
}

func newMarketDTO(m domain.Market) marketDTO {
	n := m.BetCount
	dto := marketDTO{
		ID:             m.ID,
		Question:       m.Question,
		Description:    m.Description,
		Status:         string(m.Status),
		ProtocolID:     m.ProtocolID,
		EndDate:        m.EndDate,
		TotalYesAmount: m.TotalYes.String(),
		TotalNoAmount:  m.TotalNo.String(),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		Count:          countDTO{Bets: &n},
	}
	if m.Protocol != nil {
		p := newProtocolDTO(*m.Protocol, false)
		dto.Protocol = &p
	}
	return dto
}

func newMarketDTOs(ms []domain.Market) []marketDTO {
	out := make([]marketDTO, 0, len(ms))
	for _, m := range ms {
		out = append(out, newMarketDTO(m))
	}
	return out
}

func newMarketDetailDTO(d domain.MarketDetail) marketDetailDTO {
	dto := marketDetailDTO{
		marketDTO:     newMarketDTO(d.Market),
		Bets:          make([]betDTO, 0, len(d.RecentBets)),
		YieldDeposits: make([]yieldDepositDTO, 0, len(d.YieldDeposits)),
	}
	for _, b := range d.RecentBets {
		dto.Bets = append(dto.Bets, newBetDTO(b))
	}
	for _, y := range d.YieldDeposits {
		dto.YieldDeposits = append(dto.YieldDeposits, yieldDepositDTO{
			ID:          y.ID,
			MarketID:    y.MarketID,
			ProtocolID:  y.ProtocolID,
			Amount:      y.Amount.String(),
			DepositedAt: y.DepositedAt,
		})
	}
	if r := d.Resolution; r != nil {
		dto.MarketResolvedEvent = &resolutionDTO{
			ID:         r.ID,
			MarketID:   r.MarketID,
			Outcome:    r.Outcome,
			ResolvedAt: r.ResolvedAt,
			TxDigest:   r.TxDigest,
		}
	}
	return dto
}

func newBetDTO(b domain.Bet) betDTO {
	dto := betDTO{
		ID:            b.ID,
		MarketID:      b.MarketID,
		Bettor:        b.Bettor,
		Position:      string(b.Position),
		Amount:        b.Amount.String(),
		PlacedAt:      b.PlacedAt,
		TxDigest:      b.TxDigest,
		WinningAmount: "0",
		YieldShare:    "0",
	}
	if b.Market != nil {
		m := newMarketDTO(*b.Market)
		dto.Market = &m
	}
	if w := b.Winnings; w != nil {
		dto.WinningsClaimed = &winningsDTO{
			ID:            w.ID,
			BetID:         w.BetID,
			Winner:        w.Winner,
			WinningAmount: nullString(w.WinningAmount),
			YieldShare:    nullString(w.YieldShare),
			ClaimedAt:     w.ClaimedAt,
		}
		dto.WinningAmount = dto.WinningsClaimed.WinningAmount
		dto.YieldShare = dto.WinningsClaimed.YieldShare
	}
	return dto
}

func newBetDTOs(bs []domain.Bet) []betDTO {
	out := make([]betDTO, 0, len(bs))
	for _, b := range bs {
		out = append(out, newBetDTO(b))
	}
	return out
}

func newOraclePriceDTO(p domain.OraclePrice) oraclePriceDTO {
	return oraclePriceDTO{
		Asset:           p.Asset,
		VsCurrency:      p.VsCurrency,
		Price:           p.Price.String(),
		Source:          p.Source,
		SourceUpdatedAt: p.SourceUpdatedAt,
		FetchedAt:       p.FetchedAt,
	}
}

func newLatestPriceDTO(p service.LatestPrice) oraclePriceDTO {
	dto := newOraclePriceDTO(p.OraclePrice)
	stale := p.Stale
	dto.Stale = &stale
	return dto
}

func newChartPointDTOs(points []domain.ChartPoint) []chartPointDTO {
	out := make([]chartPointDTO, 0, len(points))
	for _, p := range points {
		out = append(out, chartPointDTO{
			Timestamp:   p.Bucket,
			YesAmount:   p.YesAmount.String(),
			NoAmount:    p.NoAmount.String(),
			TotalAmount: p.YesAmount.Add(p.NoAmount).String(),
			BetCount:    p.BetCount,
		})
	}
	return out
}
