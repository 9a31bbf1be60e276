package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
)

// Meta carries pagination details for list responses.
type Meta struct {
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// Success is the envelope of every successful response.
type Success struct {
	Success bool  `json:"success"`
	Data    any   `json:"data"`
	Meta    *Meta `json:"meta,omitempty"`
}

// Failure is the envelope of every error response.
type Failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeJSON marshals v and writes it with the given status. If marshaling
// fails it falls back to a generic failure envelope.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data = []byte(`{"success":false,"error":"Internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Success{Success: true, Data: data})
}

func writePage(w http.ResponseWriter, data any, total int64, page domain.Page) {
	writeJSON(w, http.StatusOK, Success{
		Success: true,
		Data:    data,
		Meta:    &Meta{Total: total, Limit: page.Limit, Offset: page.Offset},
	})
}

// WriteError sends a failure envelope.
func WriteError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Failure{Error: msg})
}

// WriteErrorDetails sends a failure envelope with a details field.
func WriteErrorDetails(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, Failure{Error: msg, Details: details})
}

// writeInvalid answers 400 with the validation message, without the
// sentinel prefix.
func writeInvalid(w http.ResponseWriter, err error) {
	msg := err.Error()
	if i := strings.Index(msg, domain.ErrInvalidInput.Error()+": "); i >= 0 {
		msg = msg[i+len(domain.ErrInvalidInput.Error())+2:]
	}
	WriteError(w, http.StatusBadRequest, msg)
}

// writeServiceError maps not-found errors to 404 and everything else to a
// logged 500 carrying only the generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, notFoundMsg, failMsg string, attrs ...any) {
	switch {
	case errors.Is(err, domain.ErrNotFound) && notFoundMsg != "":
		WriteError(w, http.StatusNotFound, notFoundMsg)
	case errors.Is(err, domain.ErrInvalidInput):
		writeInvalid(w, err)
	default:
		logger.ErrorContext(r.Context(), "handler: "+strings.ToLower(failMsg),
			append(attrs, slog.String("error", err.Error()))...,
		)
		WriteError(w, http.StatusInternalServerError, failMsg)
	}
}

// parsePage reads limit and offset from the query string.
func parsePage(r *http.Request, defaultLimit int) (domain.Page, error) {
	q := r.URL.Query()
	return domain.NewPage(q.Get("limit"), q.Get("offset"), defaultLimit)
}
