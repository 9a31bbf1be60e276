package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
)

// BetService serves bet listings, user histories and chart series.
type BetService struct {
	bets    domain.BetStore
	markets domain.MarketStore
	logger  *slog.Logger
}

// NewBetService creates a BetService.
func NewBetService(bets domain.BetStore, markets domain.MarketStore, logger *slog.Logger) *BetService {
	return &BetService{bets: bets, markets: markets, logger: logger}
}

// List returns one page of bets matching the filter plus the total count.
func (s *BetService) List(ctx context.Context, f domain.BetFilter, page domain.Page) ([]domain.Bet, int64, error) {
	var (
		bets  []domain.Bet
		total int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bets, err = s.bets.List(gctx, f, page)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.bets.Count(gctx, f)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("bet_service: list: %w", err)
	}

	if bets == nil {
		bets = []domain.Bet{}
	}
	return bets, total, nil
}

// ListByUser returns the bets placed by address. The address must already be
// normalized.
func (s *BetService) ListByUser(ctx context.Context, address string, page domain.Page) ([]domain.Bet, int64, error) {
	bets, total, err := s.List(ctx, domain.BetFilter{Bettor: address}, page)
	if err != nil {
		return nil, 0, fmt.Errorf("bet_service: list by user %s: %w", address, err)
	}
	return bets, total, nil
}

// Get returns a single bet.
func (s *BetService) Get(ctx context.Context, id string) (domain.Bet, error) {
	b, err := s.bets.GetByID(ctx, id)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("bet_service: get %q: %w", id, err)
	}
	return b, nil
}

// Chart returns bucketed betting volume for a market, oldest bucket first.
// It returns domain.ErrNotFound when the market does not exist.
func (s *BetService) Chart(ctx context.Context, marketID string, interval domain.ChartInterval, limit int) ([]domain.ChartPoint, error) {
	ok, err := s.markets.Exists(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("bet_service: chart %q: %w", marketID, err)
	}
	if !ok {
		return nil, fmt.Errorf("bet_service: chart %q: %w", marketID, domain.ErrNotFound)
	}

	points, err := s.bets.Chart(ctx, marketID, interval, limit)
	if err != nil {
		return nil, fmt.Errorf("bet_service: chart %q: %w", marketID, err)
	}
	if points == nil {
		points = []domain.ChartPoint{}
	}
	return points, nil
}
