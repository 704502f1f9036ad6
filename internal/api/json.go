package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/solace/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error"`
	// Fields holds per-field messages for validation failures.
	Fields map[string]string `json:"fields,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps the journal error taxonomy onto HTTP responses. Only
// unexpected failures are logged; upstream detail never reaches the client.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrAuthentication):
		writeJSON(w, http.StatusUnauthorized, errorBody("authentication required"))
	case errors.Is(err, apperr.ErrValidation):
		body := errorBody("validation failed")
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			body.Fields = make(map[string]string, len(verrs))
			for field, ferr := range verrs {
				body.Fields[field] = ferr.Error()
			}
		}
		writeJSON(w, http.StatusBadRequest, body)
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrEmptyGeneration):
		writeJSON(w, http.StatusBadGateway, errorBody("no text generated"))
	case errors.Is(err, apperr.ErrUpstream):
		slog.Warn(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("enrichment service unavailable"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
