package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
	"github.com/alanyoungcy/prophyt-api/internal/pipeline"
	"github.com/alanyoungcy/prophyt-api/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    *Meta           `json:"meta"`
	Error   string          `json:"error"`
	Details string          `json:"details"`
}

func do(t *testing.T, h http.HandlerFunc, pattern, method, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return rec, env
}

type fakeMarkets struct {
	markets    []domain.Market
	total      int64
	detail     domain.MarketDetail
	err        error
	gotFilter  domain.MarketFilter
	gotPage    domain.Page
	requested  string
}

func (f *fakeMarkets) List(_ context.Context, filter domain.MarketFilter, page domain.Page) ([]domain.Market, int64, error) {
	f.gotFilter, f.gotPage = filter, page
	return f.markets, f.total, f.err
}

func (f *fakeMarkets) Get(_ context.Context, id string) (domain.MarketDetail, error) {
	f.requested = id
	if f.err != nil {
		return domain.MarketDetail{}, f.err
	}
	return f.detail, nil
}

func TestListMarkets(t *testing.T) {
	svc := &fakeMarkets{
		markets: []domain.Market{{
			ID:       "m1",
			Question: "Will it rain?",
			Status:   domain.MarketStatusActive,
			TotalYes: decimal.RequireFromString("123456789012345678.5"),
			TotalNo:  decimal.Zero,
			BetCount: 3,
			Protocol: &domain.Protocol{ID: "p1", Name: "Navi"},
		}},
		total: 41,
	}
	h := NewMarketHandler(svc, discardLogger())

	rec, env := do(t, h.ListMarkets, "GET /api/markets", http.MethodGet, "/api/markets?limit=500&offset=20")
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("status = %d, success = %v", rec.Code, env.Success)
	}
	if env.Meta == nil || env.Meta.Total != 41 || env.Meta.Limit != domain.MaxPageLimit || env.Meta.Offset != 20 {
		t.Fatalf("meta = %+v", env.Meta)
	}
	if svc.gotFilter.Status != domain.MarketStatusActive {
		t.Errorf("default status = %q, want active", svc.gotFilter.Status)
	}

	var got []map[string]any
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0]["totalYesAmount"] != "123456789012345678.5" {
		t.Errorf("totalYesAmount = %v", got[0]["totalYesAmount"])
	}
	count, _ := got[0]["_count"].(map[string]any)
	if count["bets"] != float64(3) {
		t.Errorf("_count = %v", got[0]["_count"])
	}
	protocol, _ := got[0]["protocol"].(map[string]any)
	if protocol["name"] != "Navi" {
		t.Errorf("protocol = %v", got[0]["protocol"])
	}
}

func TestListMarketsRejectsBadPaging(t *testing.T) {
	h := NewMarketHandler(&fakeMarkets{}, discardLogger())
	for _, q := range []string{"limit=abc", "offset=-1", "status=DROP%20TABLE"} {
		rec, env := do(t, h.ListMarkets, "GET /api/markets", http.MethodGet, "/api/markets?"+q)
		if rec.Code != http.StatusBadRequest || env.Success {
			t.Errorf("%s: status = %d", q, rec.Code)
		}
		if strings.HasPrefix(env.Error, "invalid input") {
			t.Errorf("%s: error leaks sentinel prefix: %q", q, env.Error)
		}
	}
}

func TestListMarketsStoreFailure(t *testing.T) {
	h := NewMarketHandler(&fakeMarkets{err: errors.New("connection refused")}, discardLogger())
	rec, env := do(t, h.ListMarkets, "GET /api/markets", http.MethodGet, "/api/markets")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.Error != "Failed to fetch markets" {
		t.Errorf("error = %q", env.Error)
	}
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Error("internal error leaked to client")
	}
}

func TestGetMarket(t *testing.T) {
	resolvedAt := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	svc := &fakeMarkets{detail: domain.MarketDetail{
		Market:     domain.Market{ID: "m1", Status: domain.MarketStatusResolved},
		RecentBets: []domain.Bet{{ID: "b1", MarketID: "m1", Position: domain.BetPositionYes, Amount: decimal.NewFromInt(5)}},
		Resolution: &domain.MarketResolvedEvent{ID: "r1", MarketID: "m1", Outcome: "yes", ResolvedAt: resolvedAt},
	}}
	h := NewMarketHandler(svc, discardLogger())

	rec, env := do(t, h.GetMarket, "GET /api/markets/{marketId}", http.MethodGet, "/api/markets/m1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if svc.requested != "m1" {
		t.Errorf("requested = %q", svc.requested)
	}

	var got struct {
		ID                  string           `json:"id"`
		Bets                []map[string]any `json:"bets"`
		MarketResolvedEvent map[string]any   `json:"marketResolvedEvent"`
		YieldDeposits       []any            `json:"yieldDeposits"`
	}
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != "m1" || len(got.Bets) != 1 || got.MarketResolvedEvent["outcome"] != "yes" {
		t.Errorf("detail = %+v", got)
	}
	if got.YieldDeposits == nil {
		t.Error("yieldDeposits should be an empty array, not null")
	}
}

func TestGetMarketNotFound(t *testing.T) {
	h := NewMarketHandler(&fakeMarkets{err: fmt.Errorf("market x: %w", domain.ErrNotFound)}, discardLogger())
	rec, env := do(t, h.GetMarket, "GET /api/markets/{marketId}", http.MethodGet, "/api/markets/x")
	if rec.Code != http.StatusNotFound || env.Error != "Market not found" {
		t.Fatalf("status = %d, error = %q", rec.Code, env.Error)
	}
}

type fakeBets struct {
	bets       []domain.Bet
	total      int64
	err        error
	gotAddress string
	gotFilter  domain.BetFilter
	gotPage    domain.Page
}

func (f *fakeBets) List(_ context.Context, filter domain.BetFilter, page domain.Page) ([]domain.Bet, int64, error) {
	f.gotFilter, f.gotPage = filter, page
	return f.bets, f.total, f.err
}

func (f *fakeBets) ListByUser(_ context.Context, address string, page domain.Page) ([]domain.Bet, int64, error) {
	f.gotAddress, f.gotPage = address, page
	return f.bets, f.total, f.err
}

func (f *fakeBets) Get(_ context.Context, id string) (domain.Bet, error) {
	if f.err != nil {
		return domain.Bet{}, f.err
	}
	for _, b := range f.bets {
		if b.ID == id {
			return b, nil
		}
	}
	return domain.Bet{}, domain.ErrNotFound
}

func TestListUserBets(t *testing.T) {
	svc := &fakeBets{
		bets: []domain.Bet{
			{
				ID:     "b1",
				Amount: decimal.NewFromInt(10),
				Market: &domain.Market{ID: "m1"},
				Winnings: &domain.WinningsClaimed{
					ID:            "w1",
					WinningAmount: decimal.NewNullDecimal(decimal.RequireFromString("19.5")),
				},
			},
			{ID: "b2", Amount: decimal.NewFromInt(1)},
		},
		total: 2,
	}
	h := NewUserHandler(svc, discardLogger())

	rec, env := do(t, h.ListUserBets, "GET /api/users/{address}/bets", http.MethodGet, "/api/users/0xABCdef01/bets")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if svc.gotAddress != "0xabcdef01" {
		t.Errorf("address = %q, want lower-cased", svc.gotAddress)
	}
	if svc.gotPage.Limit != DefaultUserBetLimit {
		t.Errorf("limit = %d", svc.gotPage.Limit)
	}

	var got []map[string]any
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatal(err)
	}
	claim, _ := got[0]["winningsClaimed"].(map[string]any)
	if claim["winningAmount"] != "19.5" || claim["yieldShare"] != "0" {
		t.Errorf("winningsClaimed = %v", got[0]["winningsClaimed"])
	}
	if got[1]["winningsClaimed"] != nil || got[1]["winningAmount"] != "0" {
		t.Errorf("unclaimed bet = %v", got[1])
	}
}

func TestListUserBetsInvalidAddress(t *testing.T) {
	h := NewUserHandler(&fakeBets{}, discardLogger())
	for _, addr := range []string{"abc", "0xzz", "0x"} {
		rec, _ := do(t, h.ListUserBets, "GET /api/users/{address}/bets", http.MethodGet, "/api/users/"+addr+"/bets")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", addr, rec.Code)
		}
	}
}

func TestListUserBetsShortAddress(t *testing.T) {
	svc := &fakeBets{}
	h := NewUserHandler(svc, discardLogger())

	rec, env := do(t, h.ListUserBets, "GET /api/users/{address}/bets", http.MethodGet, "/api/users/0x2/bets")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if svc.gotAddress != "0x2" {
		t.Errorf("address = %q, want 0x2", svc.gotAddress)
	}
	if string(env.Data) != "[]" {
		t.Errorf("data = %s, want []", env.Data)
	}
}

func TestListUserBetsFailure(t *testing.T) {
	h := NewUserHandler(&fakeBets{err: errors.New("boom")}, discardLogger())
	rec, env := do(t, h.ListUserBets, "GET /api/users/{address}/bets", http.MethodGet, "/api/users/0xab/bets")
	if rec.Code != http.StatusInternalServerError || env.Error != "Failed to fetch user bets" {
		t.Fatalf("status = %d, error = %q", rec.Code, env.Error)
	}
}

func TestListBetsFilters(t *testing.T) {
	svc := &fakeBets{}
	h := NewBetHandler(svc, discardLogger())

	rec, env := do(t, h.ListBets, "GET /api/bets", http.MethodGet, "/api/bets?marketId=m1&position=NO")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if svc.gotFilter.MarketID != "m1" || svc.gotFilter.Position != domain.BetPositionNo {
		t.Errorf("filter = %+v", svc.gotFilter)
	}
	if string(env.Data) != "[]" {
		t.Errorf("data = %s, want []", env.Data)
	}

	rec, _ = do(t, h.ListBets, "GET /api/bets", http.MethodGet, "/api/bets?position=maybe")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad position status = %d", rec.Code)
	}
}

func TestGetBet(t *testing.T) {
	h := NewBetHandler(&fakeBets{bets: []domain.Bet{{ID: "b1"}}}, discardLogger())

	rec, _ := do(t, h.GetBet, "GET /api/bets/{betId}", http.MethodGet, "/api/bets/b1")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	rec, env := do(t, h.GetBet, "GET /api/bets/{betId}", http.MethodGet, "/api/bets/missing")
	if rec.Code != http.StatusNotFound || env.Error != "Bet not found" {
		t.Errorf("status = %d, error = %q", rec.Code, env.Error)
	}
}

type fakeProtocols struct {
	protocols []domain.Protocol
	err       error
}

func (f fakeProtocols) List(context.Context) ([]domain.Protocol, error) { return f.protocols, f.err }

func (f fakeProtocols) Get(_ context.Context, id string) (domain.Protocol, error) {
	for _, p := range f.protocols {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Protocol{}, domain.ErrNotFound
}

func TestProtocols(t *testing.T) {
	h := NewProtocolHandler(fakeProtocols{protocols: []domain.Protocol{{ID: "p1", Name: "Scallop", MarketCount: 4}}}, discardLogger())

	rec, env := do(t, h.ListProtocols, "GET /api/protocols", http.MethodGet, "/api/protocols")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []map[string]any
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatal(err)
	}
	count, _ := got[0]["_count"].(map[string]any)
	if count["markets"] != float64(4) {
		t.Errorf("_count = %v", got[0]["_count"])
	}

	rec, env = do(t, h.GetProtocol, "GET /api/protocols/{protocolId}", http.MethodGet, "/api/protocols/nope")
	if rec.Code != http.StatusNotFound || env.Error != "Protocol not found" {
		t.Errorf("status = %d, error = %q", rec.Code, env.Error)
	}
}

type fakeOracle struct {
	latest   service.LatestPrice
	total    int64
	err      error
	gotAsset string
	gotPage  domain.Page
}

func (f *fakeOracle) Latest(_ context.Context, asset string) (service.LatestPrice, error) {
	f.gotAsset = asset
	return f.latest, f.err
}

func (f *fakeOracle) History(_ context.Context, asset string, page domain.Page) ([]domain.OraclePrice, int64, error) {
	f.gotAsset, f.gotPage = asset, page
	return []domain.OraclePrice{f.latest.OraclePrice}, f.total, f.err
}

type fakeTrigger struct{ calls int }

func (f *fakeTrigger) Trigger() bool {
	f.calls++
	return f.calls == 1
}

func TestLatestPrice(t *testing.T) {
	svc := &fakeOracle{latest: service.LatestPrice{
		OraclePrice: domain.OraclePrice{Asset: "sui", VsCurrency: "usd", Price: decimal.RequireFromString("3.4512"), Source: "coingecko"},
		Stale:       true,
	}}
	h := NewOracleHandler(svc, "sui", discardLogger())

	rec, env := do(t, h.LatestPrice, "GET /api/oracle/price/latest", http.MethodGet, "/api/oracle/price/latest")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if svc.gotAsset != "sui" {
		t.Errorf("asset = %q, want default", svc.gotAsset)
	}
	var got map[string]any
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got["price"] != "3.4512" || got["stale"] != true {
		t.Errorf("data = %v", got)
	}

	do(t, h.LatestPrice, "GET /api/oracle/price/latest", http.MethodGet, "/api/oracle/price/latest?asset=BTC")
	if svc.gotAsset != "btc" {
		t.Errorf("asset = %q, want btc", svc.gotAsset)
	}
}

func TestLatestPriceMissing(t *testing.T) {
	h := NewOracleHandler(&fakeOracle{err: domain.ErrNotFound}, "sui", discardLogger())
	rec, env := do(t, h.LatestPrice, "GET /api/oracle/price/latest", http.MethodGet, "/api/oracle/price/latest")
	if rec.Code != http.StatusNotFound || env.Error != "No price available" {
		t.Errorf("status = %d, error = %q", rec.Code, env.Error)
	}
}

func TestPriceHistoryHasNoStaleFlag(t *testing.T) {
	h := NewOracleHandler(&fakeOracle{}, "sui", discardLogger())
	rec, env := do(t, h.PriceHistory, "GET /api/oracle/price/history", http.MethodGet, "/api/oracle/price/history")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(string(env.Data), "stale") {
		t.Errorf("history rows should not carry stale: %s", env.Data)
	}
}

func TestPriceHistoryMeta(t *testing.T) {
	svc := &fakeOracle{total: 120}
	h := NewOracleHandler(svc, "sui", discardLogger())

	rec, env := do(t, h.PriceHistory, "GET /api/oracle/price/history", http.MethodGet, "/api/oracle/price/history?asset=ETH&limit=10&offset=30")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if svc.gotAsset != "eth" || svc.gotPage != (domain.Page{Limit: 10, Offset: 30}) {
		t.Errorf("asset = %q, page = %+v", svc.gotAsset, svc.gotPage)
	}
	if env.Meta == nil || *env.Meta != (Meta{Total: 120, Limit: 10, Offset: 30}) {
		t.Errorf("meta = %+v", env.Meta)
	}
}

func TestRefreshPrice(t *testing.T) {
	trigger := &fakeTrigger{}
	h := NewOracleHandler(&fakeOracle{}, "sui", discardLogger()).WithTrigger(trigger)

	for i, want := range []bool{true, false} {
		rec, env := do(t, h.RefreshPrice, "POST /api/oracle/price/refresh", http.MethodPost, "/api/oracle/price/refresh")
		if rec.Code != http.StatusAccepted {
			t.Fatalf("call %d: status = %d", i, rec.Code)
		}
		var got map[string]any
		if err := json.Unmarshal(env.Data, &got); err != nil {
			t.Fatal(err)
		}
		if got["queued"] != want {
			t.Errorf("call %d: queued = %v, want %v", i, got["queued"], want)
		}
	}
}

type fakeCharts struct {
	points      []domain.ChartPoint
	err         error
	gotInterval domain.ChartInterval
	gotLimit    int
}

func (f *fakeCharts) Chart(_ context.Context, _ string, interval domain.ChartInterval, limit int) ([]domain.ChartPoint, error) {
	f.gotInterval, f.gotLimit = interval, limit
	return f.points, f.err
}

func TestMarketChart(t *testing.T) {
	svc := &fakeCharts{points: []domain.ChartPoint{{
		YesAmount: decimal.NewFromInt(3),
		NoAmount:  decimal.RequireFromString("1.5"),
		BetCount:  2,
	}}}
	h := NewChartHandler(svc, discardLogger())

	rec, env := do(t, h.MarketChart, "GET /api/charts/market/{marketId}", http.MethodGet, "/api/charts/market/m1?interval=day")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if svc.gotInterval != domain.ChartIntervalDay || svc.gotLimit != DefaultChartPoints {
		t.Errorf("interval = %q, limit = %d", svc.gotInterval, svc.gotLimit)
	}
	var got struct {
		Points []map[string]any `json:"points"`
	}
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Points[0]["totalAmount"] != "4.5" {
		t.Errorf("point = %v", got.Points[0])
	}

	rec, _ = do(t, h.MarketChart, "GET /api/charts/market/{marketId}", http.MethodGet, "/api/charts/market/m1?interval=week")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad interval status = %d", rec.Code)
	}
}

func TestMarketChartUnknownMarket(t *testing.T) {
	h := NewChartHandler(&fakeCharts{err: fmt.Errorf("market m9: %w", domain.ErrNotFound)}, discardLogger())
	rec, env := do(t, h.MarketChart, "GET /api/charts/market/{marketId}", http.MethodGet, "/api/charts/market/m9")
	if rec.Code != http.StatusNotFound || env.Error != "Market not found" {
		t.Errorf("status = %d, error = %q", rec.Code, env.Error)
	}
}

func TestRootAndNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", Root)
	mux.HandleFunc("/", NotFound)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	var b banner
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK || b.Version != Version || b.Endpoints.Markets != "/api/markets" {
		t.Errorf("banner = %+v", b)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nothing", nil))
	var f Failure
	if err := json.Unmarshal(rec.Body.Bytes(), &f); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusNotFound || f.Error != "Endpoint not found" || f.Success {
		t.Errorf("status = %d, body = %+v", rec.Code, f)
	}
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthCheck(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	bad := pingFunc(func(context.Context) error { return errors.New("down") })

	tests := []struct {
		name     string
		db       domain.Pinger
		cache    domain.Pinger
		code     int
		database string
		cacheSt  string
	}{
		{"healthy", ok, ok, http.StatusOK, "ok", "ok"},
		{"cache down", ok, bad, http.StatusOK, "ok", "error"},
		{"no cache", ok, nil, http.StatusOK, "ok", "disabled"},
		{"db down", bad, ok, http.StatusServiceUnavailable, "error", "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.db, tt.cache, discardLogger())
			rec, env := do(t, h.HealthCheck, "GET /api/health", http.MethodGet, "/api/health")
			if rec.Code != tt.code {
				t.Fatalf("status = %d", rec.Code)
			}
			var got map[string]any
			if err := json.Unmarshal(env.Data, &got); err != nil {
				t.Fatal(err)
			}
			if got["database"] != tt.database || got["cache"] != tt.cacheSt {
				t.Errorf("data = %v", got)
			}
		})
	}
}

type fixedStatus struct{ st pipeline.UpdaterStatus }

func (f fixedStatus) Status() pipeline.UpdaterStatus { return f.st }

func TestHealthCheckIncludesUpdater(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	last := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	h := NewHealthHandler(ok, ok, discardLogger()).
		WithUpdater(fixedStatus{pipeline.UpdaterStatus{LastSuccess: last, ConsecutiveFailures: 2}})

	_, env := do(t, h.HealthCheck, "GET /api/health", http.MethodGet, "/api/health")
	var got struct {
		Oracle struct {
			LastSuccess         string `json:"lastSuccess"`
			ConsecutiveFailures int    `json:"consecutiveFailures"`
		} `json:"oracle"`
	}
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Oracle.LastSuccess != "2025-06-01T12:00:00Z" || got.Oracle.ConsecutiveFailures != 2 {
		t.Errorf("oracle = %+v", got.Oracle)
	}
}
