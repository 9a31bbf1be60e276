package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
)

// LatestPrice is the newest observation for an asset together with its
// freshness at read time.
type LatestPrice struct {
	domain.OraclePrice
	Stale bool
}

// OracleService serves stored oracle prices. It never calls the upstream
// feed; the price updater is the only writer.
type OracleService struct {
	store      domain.OracleStore
	cache      domain.PriceCache
	staleAfter time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewOracleService creates an OracleService. cache may be nil.
func NewOracleService(store domain.OracleStore, cache domain.PriceCache, staleAfter time.Duration, logger *slog.Logger) *OracleService {
	return &OracleService{
		store:      store,
		cache:      cache,
		staleAfter: staleAfter,
		logger:     logger,
		now:        time.Now,
	}
}

// Latest returns the newest price for asset from the cache, falling back to
// the store and back-filling the cache on a miss.
func (s *OracleService) Latest(ctx context.Context, asset string) (LatestPrice, error) {
	if s.cache != nil {
		p, err := s.cache.GetPrice(ctx, asset)
		if err == nil {
			return s.latest(p), nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "oracle_service: cache get failed",
				slog.String("asset", asset),
				slog.String("error", err.Error()),
			)
		}
	}

	p, err := s.store.GetLatest(ctx, asset)
	if err != nil {
		return LatestPrice{}, fmt.Errorf("oracle_service: latest %s: %w", asset, err)
	}

	if s.cache != nil {
		if cacheErr := s.cache.SetPrice(ctx, p); cacheErr != nil {
			s.logger.WarnContext(ctx, "oracle_service: cache set failed",
				slog.String("asset", asset),
				slog.String("error", cacheErr.Error()),
			)
		}
	}
	return s.latest(p), nil
}

func (s *OracleService) latest(p domain.OraclePrice) LatestPrice {
	return LatestPrice{OraclePrice: p, Stale: p.IsStale(s.now(), s.staleAfter)}
}

// History returns one page of price history for asset, newest first, and the
// total number of stored observations.
func (s *OracleService) History(ctx context.Context, asset string, page domain.Page) ([]domain.OraclePrice, int64, error) {
	var (
		prices []domain.OraclePrice
		total  int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		prices, err = s.store.ListHistory(gctx, asset, page)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.store.CountHistory(gctx, asset)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("oracle_service: history %s: %w", asset, err)
	}

	if prices == nil {
		prices = []domain.OraclePrice{}
	}
	return prices, total, nil
}
