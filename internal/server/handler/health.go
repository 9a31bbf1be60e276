package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
	"github.com/alanyoungcy/prophyt-api/internal/pipeline"
)

const healthTimeout = 2 * time.Second

// UpdaterStatusSource exposes the price updater's state.
type UpdaterStatusSource interface {
	Status() pipeline.UpdaterStatus
}

// HealthHandler reports backend reachability.
type HealthHandler struct {
	db      domain.Pinger
	cache   domain.Pinger
	updater UpdaterStatusSource
	logger  *slog.Logger
}

// NewHealthHandler creates a HealthHandler. cache may be nil when Redis is
// not configured.
func NewHealthHandler(db, cache domain.Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, cache: cache, logger: logger}
}

// WithUpdater adds the price updater's state to the report.
func (h *HealthHandler) WithUpdater(u UpdaterStatusSource) *HealthHandler {
	h.updater = u
	return h
}

func (h *HealthHandler) check(ctx context.Context, name string, p domain.Pinger) string {
	if p == nil {
		return "disabled"
	}
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		h.logger.WarnContext(ctx, "handler: health check failed",
			slog.String("backend", name),
			slog.String("error", err.Error()),
		)
		return "error"
	}
	return "ok"
}

// HealthCheck pings the database and cache. It answers 503 when the
// database is unreachable.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	db := h.check(r.Context(), "database", h.db)
	cache := h.check(r.Context(), "cache", h.cache)

	status, code := "ok", http.StatusOK
	if db == "error" {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	data := map[string]any{
		"status":    status,
		"database":  db,
		"cache":     cache,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.updater != nil {
		st := h.updater.Status()
		oracle := map[string]any{
			"consecutiveFailures": st.ConsecutiveFailures,
			"running":             st.Running,
		}
		if !st.LastSuccess.IsZero() {
			oracle["lastSuccess"] = st.LastSuccess.UTC().Format(time.RFC3339)
		}
		data["oracle"] = oracle
	}

	writeJSON(w, code, Success{Success: code == http.StatusOK, Data: data})
}
