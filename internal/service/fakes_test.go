package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeMarketStore struct {
	markets     []domain.Market
	details     map[string]domain.MarketDetail
	listErr     error
	countErr    error
	detailCalls atomic.Int32
	detailDelay time.Duration
	// detailGate, when set, blocks GetDetail until closed or ctx is done.
	detailGate chan struct{}
}

func (f *fakeMarketStore) List(_ context.Context, _ domain.MarketFilter, page domain.Page) ([]domain.Market, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if page.Offset >= len(f.markets) {
		return nil, nil
	}
	end := min(page.Offset+page.Limit, len(f.markets))
	return f.markets[page.Offset:end], nil
}

func (f *fakeMarketStore) Count(context.Context, domain.MarketFilter) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return int64(len(f.markets)), nil
}

func (f *fakeMarketStore) GetDetail(ctx context.Context, id string, _, _ int) (domain.MarketDetail, error) {
	f.detailCalls.Add(1)
	if f.detailDelay > 0 {
		time.Sleep(f.detailDelay)
	}
	if f.detailGate != nil {
		select {
		case <-f.detailGate:
		case <-ctx.Done():
			return domain.MarketDetail{}, ctx.Err()
		}
	}
	d, ok := f.details[id]
	if !ok {
		return domain.MarketDetail{}, domain.ErrNotFound
	}
	return d, nil
}

func (f *fakeMarketStore) Exists(_ context.Context, id string) (bool, error) {
	_, ok := f.details[id]
	return ok, nil
}

type fakeMarketCache struct {
	mu     sync.Mutex
	items  map[string]domain.MarketDetail
	getErr error
}

func (c *fakeMarketCache) Set(_ context.Context, d domain.MarketDetail) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = map[string]domain.MarketDetail{}
	}
	c.items[d.ID] = d
	return nil
}

func (c *fakeMarketCache) Get(_ context.Context, id string) (domain.MarketDetail, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return domain.MarketDetail{}, c.getErr
	}
	d, ok := c.items[id]
	if !ok {
		return domain.MarketDetail{}, domain.ErrNotFound
	}
	return d, nil
}

type fakeBetStore struct {
	bets       []domain.Bet
	lastFilter domain.BetFilter
	chart      []domain.ChartPoint
	mu         sync.Mutex
}

func (f *fakeBetStore) List(_ context.Context, filter domain.BetFilter, _ domain.Page) ([]domain.Bet, error) {
	f.mu.Lock()
	f.lastFilter = filter
	f.mu.Unlock()
	var out []domain.Bet
	for _, b := range f.bets {
		if filter.Bettor != "" && b.Bettor != filter.Bettor {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeBetStore) Count(ctx context.Context, filter domain.BetFilter) (int64, error) {
	bets, _ := f.List(ctx, filter, domain.Page{})
	return int64(len(bets)), nil
}

func (f *fakeBetStore) GetByID(_ context.Context, id string) (domain.Bet, error) {
	for _, b := range f.bets {
		if b.ID == id {
			return b, nil
		}
	}
	return domain.Bet{}, domain.ErrNotFound
}

func (f *fakeBetStore) Chart(context.Context, string, domain.ChartInterval, int) ([]domain.ChartPoint, error) {
	return f.chart, nil
}

type fakeOracleStore struct {
	latest  map[string]domain.OraclePrice
	history []domain.OraclePrice
	// onGetLatest runs after the row is read, before it is returned.
	onGetLatest func()
}

func (f *fakeOracleStore) SaveLatest(_ context.Context, p domain.OraclePrice) error {
	if f.latest == nil {
		f.latest = map[string]domain.OraclePrice{}
	}
	f.latest[p.Asset] = p
	f.history = append(f.history, p)
	return nil
}

func (f *fakeOracleStore) GetLatest(_ context.Context, asset string) (domain.OraclePrice, error) {
	p, ok := f.latest[asset]
	if !ok {
		return domain.OraclePrice{}, domain.ErrNotFound
	}
	if f.onGetLatest != nil {
		f.onGetLatest()
	}
	return p, nil
}

func (f *fakeOracleStore) ListHistory(context.Context, string, domain.Page) ([]domain.OraclePrice, error) {
	return f.history, nil
}

func (f *fakeOracleStore) CountHistory(context.Context, string) (int64, error) {
	return int64(len(f.history)), nil
}

func (f *fakeOracleStore) ListHistoryBefore(context.Context, string, time.Time) ([]domain.OraclePrice, error) {
	return f.history, nil
}

func (f *fakeOracleStore) DeleteHistoryBefore(context.Context, string, time.Time) (int64, error) {
	n := int64(len(f.history))
	f.history = nil
	return n, nil
}

type fakePriceCache struct {
	prices map[string]domain.OraclePrice
	sets   int
}

func (c *fakePriceCache) SetPrice(_ context.Context, p domain.OraclePrice) error {
	if c.prices == nil {
		c.prices = map[string]domain.OraclePrice{}
	}
	if cur, ok := c.prices[p.Asset]; ok && cur.FetchedAt.After(p.FetchedAt) {
		return nil
	}
	c.prices[p.Asset] = p
	c.sets++
	return nil
}

func (c *fakePriceCache) GetPrice(_ context.Context, asset string) (domain.OraclePrice, error) {
	p, ok := c.prices[asset]
	if !ok {
		return domain.OraclePrice{}, domain.ErrNotFound
	}
	return p, nil
}
