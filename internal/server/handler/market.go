package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
)

// DefaultMarketLimit is the page size of market lists.
const DefaultMarketLimit = 20

// MarketService is the subset of the market service used by MarketHandler.
type MarketService interface {
	List(ctx context.Context, f domain.MarketFilter, page domain.Page) ([]domain.Market, int64, error)
	Get(ctx context.Context, id string) (domain.MarketDetail, error)
}

// MarketHandler serves market listings and details.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, logger: logger}
}

// ListMarkets returns a page of markets, newest first.
// GET /api/markets?status=&protocolId=&limit=&offset=
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := domain.NewMarketFilter(q.Get("status"), q.Get("protocolId"))
	if err != nil {
		writeInvalid(w, err)
		return
	}
	page, err := parsePage(r, DefaultMarketLimit)
	if err != nil {
		writeInvalid(w, err)
		return
	}

	markets, total, err := h.markets.List(r.Context(), filter, page)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "", "Failed to fetch markets")
		return
	}

	writePage(w, newMarketDTOs(markets), total, page)
}

// GetMarket returns a market with its recent bets, resolution and deposits.
// GET /api/markets/{marketId}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("marketId")

	detail, err := h.markets.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Market not found", "Failed to fetch market",
			slog.String("market_id", id))
		return
	}

	writeData(w, newMarketDetailDTO(detail))
}
