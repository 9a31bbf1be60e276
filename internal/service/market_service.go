package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
)

const (
	// DetailRecentBets is how many bets the market detail view embeds.
	DetailRecentBets = 10
	// DetailRecentDeposits is how many yield deposits the detail view embeds.
	DetailRecentDeposits = 5

	detailFillTimeout = 10 * time.Second
)

// MarketService serves market listings and details.
type MarketService struct {
	markets domain.MarketStore
	cache   domain.MarketCache
	logger  *slog.Logger
	detail  singleflight.Group
}

// NewMarketService creates a MarketService. cache may be nil, in which case
// every detail read goes to the store.
func NewMarketService(markets domain.MarketStore, cache domain.MarketCache, logger *slog.Logger) *MarketService {
	return &MarketService{
		markets: markets,
		cache:   cache,
		logger:  logger,
	}
}

// List returns one page of markets and the total count for the filter. The
// page and count queries run concurrently.
func (s *MarketService) List(ctx context.Context, f domain.MarketFilter, page domain.Page) ([]domain.Market, int64, error) {
	var (
		markets []domain.Market
		total   int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		markets, err = s.markets.List(gctx, f, page)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.markets.Count(gctx, f)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("market_service: list: %w", err)
	}

	if markets == nil {
		markets = []domain.Market{}
	}
	return markets, total, nil
}

// Get returns the market detail, checking the cache first. Concurrent misses
// for the same market share one store query.
func (s *MarketService) Get(ctx context.Context, id string) (domain.MarketDetail, error) {
	if s.cache != nil {
		d, err := s.cache.Get(ctx, id)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "market_service: cache get failed",
				slog.String("market_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	// The shared fill ignores caller cancellation; each caller waits on its own ctx.
	ch := s.detail.DoChan(id, func() (any, error) {
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detailFillTimeout)
		defer cancel()

		d, err := s.markets.GetDetail(fillCtx, id, DetailRecentBets, DetailRecentDeposits)
		if err != nil {
			return domain.MarketDetail{}, err
		}
		if s.cache != nil {
			if cacheErr := s.cache.Set(fillCtx, d); cacheErr != nil {
				s.logger.WarnContext(fillCtx, "market_service: cache set failed",
					slog.String("market_id", id),
					slog.String("error", cacheErr.Error()),
				)
			}
		}
		return d, nil
	})

	select {
	case <-ctx.Done():
		return domain.MarketDetail{}, fmt.Errorf("market_service: get %q: %w", id, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return domain.MarketDetail{}, fmt.Errorf("market_service: get %q: %w", id, res.Err)
		}
		return res.Val.(domain.MarketDetail), nil
	}
}
