package redis

import (
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
)

func TestDecodePrice(t *testing.T) {
	fetched := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	vals := map[string]string{
		"vs":     "usd",
		"price":  "1.234500000000000001",
		"source": "coingecko",
		"src_ts": "0",
		"ts":     "1772366400000000000",
	}

	p, err := decodePrice("sui", vals)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Asset != "sui" || p.VsCurrency != "usd" || p.Source != "coingecko" {
		t.Errorf("unexpected fields: %+v", p)
	}
	if got := p.Price.String(); got != "1.234500000000000001" {
		t.Errorf("price = %s, lost precision", got)
	}
	if !p.FetchedAt.Equal(fetched) {
		t.Errorf("fetched = %v, want %v", p.FetchedAt, fetched)
	}
}

func TestDecodePriceMissing(t *testing.T) {
	_, err := decodePrice("sui", map[string]string{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDecodePriceMalformed(t *testing.T) {
	_, err := decodePrice("sui", map[string]string{"price": "abc"})
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestSetPriceArgs(t *testing.T) {
	fetched := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := domain.OraclePrice{
		Asset:      "sui",
		VsCurrency: "usd",
		Price:      decimal.RequireFromString("3.50"),
		Source:     "coingecko",
		FetchedAt:  fetched,
	}

	args := setPriceArgs(p, 10*time.Minute)
	ts := strconv.FormatInt(fetched.UnixNano(), 10)
	if args[0] != ts {
		t.Errorf("ARGV[1] = %v, want fetched-at %s", args[0], ts)
	}
	if args[1] != int64(600000) {
		t.Errorf("ARGV[2] = %v, want ttl of 600000ms", args[1])
	}

	pairs := args[2:]
	if len(pairs)%2 != 0 {
		t.Fatalf("odd field/value list: %v", pairs)
	}
	vals := map[string]string{}
	for i := 0; i < len(pairs); i += 2 {
		vals[pairs[i].(string)] = pairs[i+1].(string)
	}
	if vals["ts"] != ts {
		t.Errorf("ts field = %q, want %q", vals["ts"], ts)
	}

	got, err := decodePrice("sui", vals)
	if err != nil {
		t.Fatalf("fields do not decode: %v", err)
	}
	if !got.Price.Equal(p.Price) || !got.FetchedAt.Equal(fetched) || got.Source != "coingecko" {
		t.Errorf("round trip = %+v", got)
	}
}

func TestSetPriceScriptGuardsOlderWrites(t *testing.T) {
	if !strings.Contains(setPriceLua, "tonumber(current) > ts") {
		t.Error("set_price.lua no longer rejects observations older than the cached one")
	}
	if !strings.Contains(setPriceLua, "PEXPIRE") {
		t.Error("set_price.lua no longer applies the ttl")
	}
}

func TestKeys(t *testing.T) {
	if got := priceKey("sui"); got != "oracle:latest:sui" {
		t.Errorf("priceKey = %q", got)
	}
	if got := marketKey("m1"); got != "market:detail:m1" {
		t.Errorf("marketKey = %q", got)
	}
	if got := lockKey("oracle:sui"); got != "lock:oracle:sui" {
		t.Errorf("lockKey = %q", got)
	}
	if got := rateLimitKey("ip:1.2.3.4"); got != "ratelimit:ip:1.2.3.4" {
		t.Errorf("rateLimitKey = %q", got)
	}
}

func TestClientConfigOptions(t *testing.T) {
	opts, err := ClientConfig{Addr: "localhost:6379", DB: 2, PoolSize: 7}.options()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.DB != 2 || opts.PoolSize != 7 {
		t.Errorf("unexpected options: addr=%s db=%d pool=%d", opts.Addr, opts.DB, opts.PoolSize)
	}

	opts, err = ClientConfig{URL: "redis://:secret@cache:6380/3", Addr: "ignored:1"}.options()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "cache:6380" || opts.Password != "secret" || opts.DB != 3 {
		t.Errorf("url not applied: addr=%s db=%d", opts.Addr, opts.DB)
	}

	if _, err := (ClientConfig{URL: "http://nope"}).options(); err == nil {
		t.Error("expected error for non-redis scheme")
	}
}
