package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
)

// ProtocolService is the subset of the protocol service used by ProtocolHandler.
type ProtocolService interface {
	List(ctx context.Context) ([]domain.Protocol, error)
	Get(ctx context.Context, id string) (domain.Protocol, error)
}

// ProtocolHandler serves protocol endpoints.
type ProtocolHandler struct {
	protocols ProtocolService
	logger    *slog.Logger
}

// NewProtocolHandler creates a ProtocolHandler.
func NewProtocolHandler(protocols ProtocolService, logger *slog.Logger) *ProtocolHandler {
	return &ProtocolHandler{protocols: protocols, logger: logger}
}

// ListProtocols returns every protocol with its market count.
// GET /api/protocols
func (h *ProtocolHandler) ListProtocols(w http.ResponseWriter, r *http.Request) {
	protocols, err := h.protocols.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "", "Failed to fetch protocols")
		return
	}

	out := make([]protocolDTO, 0, len(protocols))
	for _, p := range protocols {
		out = append(out, newProtocolDTO(p, true))
	}
	writeData(w, out)
}

// GetProtocol returns one protocol.
// GET /api/protocols/{protocolId}
func (h *ProtocolHandler) GetProtocol(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("protocolId")

	p, err := h.protocols.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Protocol not found", "Failed to fetch protocol",
			slog.String("protocol_id", id))
		return
	}

	writeData(w, newProtocolDTO(p, true))
}
