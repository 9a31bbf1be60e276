package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
)

// DefaultBetLimit is the page size of bet lists.
const DefaultBetLimit = 20

// BetService is the subset of the bet service used by BetHandler.
type BetService interface {
	List(ctx context.Context, f domain.BetFilter, page domain.Page) ([]domain.Bet, int64, error)
	Get(ctx context.Context, id string) (domain.Bet, error)
}

// BetHandler serves bet listings.
type BetHandler struct {
	bets   BetService
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(bets BetService, logger *slog.Logger) *BetHandler {
	return &BetHandler{bets: bets, logger: logger}
}

// ListBets returns a page of bets, newest first.
// GET /api/bets?marketId=&bettor=&position=&limit=&offset=
func (h *BetHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := domain.NewBetFilter(q.Get("marketId"), q.Get("bettor"), q.Get("position"))
	if err != nil {
		writeInvalid(w, err)
		return
	}
	page, err := parsePage(r, DefaultBetLimit)
	if err != nil {
		writeInvalid(w, err)
		return
	}

	bets, total, err := h.bets.List(r.Context(), filter, page)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "", "Failed to fetch bets")
		return
	}

	writePage(w, newBetDTOs(bets), total, page)
}

// GetBet returns one bet with its market and winnings claim.
// GET /api/bets/{betId}
func (h *BetHandler) GetBet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("betId")

	bet, err := h.bets.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Bet not found", "Failed to fetch bet",
			slog.String("bet_id", id))
		return
	}

	writeData(w, newBetDTO(bet))
}
