// Package coingecko is a minimal client for the CoinGecko simple-price API.
package coingecko

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
)

// Source is recorded on every observation fetched by this client.
const Source = "coingecko"

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

const maxBodyBytes = 1 << 20

// Client fetches spot prices from CoinGecko.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a client. An empty baseURL selects DefaultBaseURL; apiKey
// is optional and sent as the demo key header when present.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

// FetchPrice returns the current price of asset quoted in vsCurrency. The
// caller's context bounds the request. Upstream failures are wrapped with
// domain.ErrFeedFailure.
func (c *Client) FetchPrice(ctx context.Context, asset, vsCurrency string) (domain.OraclePrice, error) {
	params := url.Values{}
	params.Set("ids", asset)
	params.Set("vs_currencies", vsCurrency)
	params.Set("include_last_updated_at", "true")

	body, err := c.doGet(ctx, "/simple/price?"+params.Encode())
	if err != nil {
		return domain.OraclePrice{}, fmt.Errorf("coingecko: fetch %s/%s: %w", asset, vsCurrency, err)
	}

	p, err := decodeSimplePrice(body, asset, vsCurrency)
	if err != nil {
		return domain.OraclePrice{}, fmt.Errorf("coingecko: decode %s/%s: %w", asset, vsCurrency, err)
	}
	p.FetchedAt = c.now().UTC()
	if p.SourceUpdatedAt.IsZero() {
		p.SourceUpdatedAt = p.FetchedAt
	}
	return p, nil
}

// decodeSimplePrice parses {"<asset>":{"<vs>":1.23,"last_updated_at":1700000000}}.
// Numbers are kept as json.Number so the price never passes through float64.
func decodeSimplePrice(body []byte, asset, vsCurrency string) (domain.OraclePrice, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload map[string]map[string]json.Number
	if err := dec.Decode(&payload); err != nil {
		return domain.OraclePrice{}, fmt.Errorf("%w: %v", domain.ErrFeedFailure, err)
	}

	quote, ok := payload[asset]
	if !ok {
		return domain.OraclePrice{}, fmt.Errorf("%w: asset %q missing from response", domain.ErrFeedFailure, asset)
	}
	raw, ok := quote[vsCurrency]
	if !ok {
		return domain.OraclePrice{}, fmt.Errorf("%w: currency %q missing from response", domain.ErrFeedFailure, vsCurrency)
	}
	price, err := decimal.NewFromString(raw.String())
	if err != nil {
		return domain.OraclePrice{}, fmt.Errorf("%w: price %q: %v", domain.ErrFeedFailure, raw, err)
	}
	if !price.IsPositive() {
		return domain.OraclePrice{}, fmt.Errorf("%w: non-positive price %s", domain.ErrFeedFailure, price)
	}

	p := domain.OraclePrice{
		Asset:      asset,
		VsCurrency: vsCurrency,
		Price:      price,
		Source:     Source,
	}
	if ts, ok := quote["last_updated_at"]; ok {
		if secs, err := ts.Int64(); err == nil && secs > 0 {
			p.SourceUpdatedAt = time.Unix(secs, 0).UTC()
		}
	}
	return p, nil
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: http request: %v", domain.ErrFeedFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrFeedFailure, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d: %s", domain.ErrFeedFailure, resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
