package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/alanyoungcy/prophyt-api/internal/server/handler"
)

// Recover converts a panic in a downstream handler into a 500 failure
// envelope. The panic value is included as details only when exposeDetails
// is set.
func Recover(logger *slog.Logger, exposeDetails bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}

				logger.ErrorContext(r.Context(), "panic serving request",
					slog.String("request_id", w.Header().Get(RequestIDHeader)),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("panic", v),
					slog.String("stack", string(debug.Stack())),
				)

				details := ""
				if exposeDetails {
					details = fmt.Sprint(v)
				}
				handler.WriteErrorDetails(w, http.StatusInternalServerError, "Internal server error", details)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
