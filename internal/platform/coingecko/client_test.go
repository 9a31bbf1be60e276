package coingecko

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "demo-key")
	c.now = func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }
	return c
}

func TestFetchPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("ids") != "sui" || q.Get("vs_currencies") != "usd" || q.Get("include_last_updated_at") != "true" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if got := r.Header.Get("x-cg-demo-api-key"); got != "demo-key" {
			t.Errorf("api key header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sui":{"usd":3.4512345678901234,"last_updated_at":1745000000}}`))
	})

	p, err := c.FetchPrice(context.Background(), "sui", "usd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := p.Price.String(); got != "3.4512345678901234" {
		t.Errorf("price = %s", got)
	}
	if p.Source != Source || p.Asset != "sui" || p.VsCurrency != "usd" {
		t.Errorf("unexpected fields: %+v", p)
	}
	if want := time.Unix(1745000000, 0).UTC(); !p.SourceUpdatedAt.Equal(want) {
		t.Errorf("source updated = %v, want %v", p.SourceUpdatedAt, want)
	}
	if want := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC); !p.FetchedAt.Equal(want) {
		t.Errorf("fetched = %v, want %v", p.FetchedAt, want)
	}
}

func TestFetchPriceFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `oops`},
		{"rate limited", http.StatusTooManyRequests, `{"status":{"error_code":429}}`},
		{"missing asset", http.StatusOK, `{}`},
		{"missing currency", http.StatusOK, `{"sui":{"eur":1.0}}`},
		{"zero price", http.StatusOK, `{"sui":{"usd":0}}`},
		{"not json", http.StatusOK, `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.FetchPrice(context.Background(), "sui", "usd")
			if !errors.Is(err, domain.ErrFeedFailure) {
				t.Fatalf("expected ErrFeedFailure, got %v", err)
			}
		})
	}
}

func TestFetchPriceHonoursContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := c.FetchPrice(ctx, "sui", "usd"); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestFetchPriceDefaultsSourceTimestamp(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"sui":{"usd":1.5}}`))
	})
	p, err := c.FetchPrice(context.Background(), "sui", "usd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.SourceUpdatedAt.Equal(p.FetchedAt) {
		t.Errorf("source updated = %v, want fetched time %v", p.SourceUpdatedAt, p.FetchedAt)
	}
}
