package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
	"github.com/alanyoungcy/prophyt-api/internal/service"
)

// DefaultPriceHistoryLimit is the page size of price history.
const DefaultPriceHistoryLimit = 50

// OracleService is the subset of the oracle service used by OracleHandler.
type OracleService interface {
	Latest(ctx context.Context, asset string) (service.LatestPrice, error)
	History(ctx context.Context, asset string, page domain.Page) ([]domain.OraclePrice, int64, error)
}

// RefreshTrigger queues an out-of-band price update.
type RefreshTrigger interface {
	Trigger() bool
}

// OracleHandler serves stored oracle prices.
type OracleHandler struct {
	oracle       OracleService
	defaultAsset string
	trigger      RefreshTrigger
	logger       *slog.Logger
}

// NewOracleHandler creates an OracleHandler. defaultAsset is used when the
// request omits ?asset=.
func NewOracleHandler(oracle OracleService, defaultAsset string, logger *slog.Logger) *OracleHandler {
	return &OracleHandler{oracle: oracle, defaultAsset: defaultAsset, logger: logger}
}

// WithTrigger enables RefreshPrice.
func (h *OracleHandler) WithTrigger(t RefreshTrigger) *OracleHandler {
	h.trigger = t
	return h
}

func (h *OracleHandler) asset(r *http.Request) string {
	if a := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("asset"))); a != "" {
		return a
	}
	return h.defaultAsset
}

// LatestPrice returns the newest stored price and whether it is stale.
// GET /api/oracle/price/latest?asset=
func (h *OracleHandler) LatestPrice(w http.ResponseWriter, r *http.Request) {
	asset := h.asset(r)

	p, err := h.oracle.Latest(r.Context(), asset)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "No price available", "Failed to fetch price",
			slog.String("asset", asset))
		return
	}

	writeData(w, newLatestPriceDTO(p))
}

// PriceHistory returns stored observations, newest first.
// GET /api/oracle/price/history?asset=&limit=&offset=
func (h *OracleHandler) PriceHistory(w http.ResponseWriter, r *http.Request) {
	asset := h.asset(r)
	page, err := parsePage(r, DefaultPriceHistoryLimit)
	if err != nil {
		writeInvalid(w, err)
		return
	}

	prices, total, err := h.oracle.History(r.Context(), asset, page)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "", "Failed to fetch price history",
			slog.String("asset", asset))
		return
	}

	out := make([]oraclePriceDTO, 0, len(prices))
	for _, p := range prices {
		out = append(out, newOraclePriceDTO(p))
	}
	writePage(w, out, total, page)
}

// RefreshPrice queues one updater run. A request that arrives while another
// is still pending is accepted without queueing a second run.
// POST /api/oracle/price/refresh
func (h *OracleHandler) RefreshPrice(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		WriteError(w, http.StatusNotFound, "Endpoint not found")
		return
	}

	queued := h.trigger.Trigger()
	h.logger.InfoContext(r.Context(), "handler: price refresh requested", slog.Bool("queued", queued))

	writeJSON(w, http.StatusAccepted, Success{
		Success: true,
		Data: map[string]any{
			"queued":      queued,
			"requestedAt": time.Now().UTC().Format(time.RFC3339),
		},
	})
}
