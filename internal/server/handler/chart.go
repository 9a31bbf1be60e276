package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
)

// DefaultChartPoints is the number of buckets returned when ?limit= is absent.
const DefaultChartPoints = 24

// ChartService produces bucketed betting volume.
type ChartService interface {
	Chart(ctx context.Context, marketID string, interval domain.ChartInterval, limit int) ([]domain.ChartPoint, error)
}

// ChartHandler serves chart series.
type ChartHandler struct {
	charts ChartService
	logger *slog.Logger
}

// NewChartHandler creates a ChartHandler.
func NewChartHandler(charts ChartService, logger *slog.Logger) *ChartHandler {
	return &ChartHandler{charts: charts, logger: logger}
}

// MarketChart returns YES/NO volume per bucket for a market, oldest first.
// GET /api/charts/market/{marketId}?interval=hour|day&limit=
func (h *ChartHandler) MarketChart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("marketId")
	q := r.URL.Query()

	interval, err := domain.ParseChartInterval(q.Get("interval"))
	if err != nil {
		writeInvalid(w, err)
		return
	}
	page, err := domain.NewPage(q.Get("limit"), "", DefaultChartPoints)
	if err != nil {
		writeInvalid(w, err)
		return
	}

	points, err := h.charts.Chart(r.Context(), id, interval, page.Limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Market not found", "Failed to fetch chart",
			slog.String("market_id", id))
		return
	}

	writeData(w, map[string]any{
		"marketId": id,
		"interval": interval,
		"points":   newChartPointDTOs(points),
	})
}
