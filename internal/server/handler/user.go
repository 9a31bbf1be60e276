package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
)

// DefaultUserBetLimit is the page size of a user's bet history.
const DefaultUserBetLimit = 50

// UserBetService lists the bets placed by one address.
type UserBetService interface {
	ListByUser(ctx context.Context, address string, page domain.Page) ([]domain.Bet, int64, error)
}

// UserHandler serves per-address endpoints.
type UserHandler struct {
	bets   UserBetService
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(bets UserBetService, logger *slog.Logger) *UserHandler {
	return &UserHandler{bets: bets, logger: logger}
}

// ListUserBets returns the address's bets newest first, each with its market
// and winnings claim.
// GET /api/users/{address}/bets?limit=&offset=
func (h *UserHandler) ListUserBets(w http.ResponseWriter, r *http.Request) {
	address, err := domain.NormalizeAddress(r.PathValue("address"))
	if err != nil {
		writeInvalid(w, err)
		return
	}
	page, err := parsePage(r, DefaultUserBetLimit)
	if err != nil {
		writeInvalid(w, err)
		return
	}

	bets, total, err := h.bets.ListByUser(r.Context(), address, page)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "", "Failed to fetch user bets",
			slog.String("address", address))
		return
	}

	writePage(w, newBetDTOs(bets), total, page)
}
