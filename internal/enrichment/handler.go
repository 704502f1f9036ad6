package enrichment

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starford/solace/internal/auth"
	"github.com/starford/solace/internal/metrics"
)

const maxRequestBytes = 64 << 10

// GenerateRequest is what the endpoint forwards upstream after clamping.
type GenerateRequest struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Generator is the upstream text-generation service.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Handler serves POST /enrichment.
type Handler struct {
	verifier auth.Verifier
	gen      Generator
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// NewHandler creates the endpoint. A nil gen makes every authenticated
// request fail with 500 (misconfiguration).
func NewHandler(verifier auth.Verifier, gen Generator, logger *slog.Logger, rec metrics.Recorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Handler{verifier: verifier, gen: gen, logger: logger, metrics: rec}
}

type endpointRequest struct {
	Prompt      string `json:"prompt"`
	Temperature any    `json:"temperature"`
	MaxTokens   any    `json:"maxTokens"`
}

type endpointResponse struct {
	Text string `json:"text"`
}

type endpointError struct {
	Error string `json:"error"`
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.fail(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	token, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		h.fail(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	id, err := h.verifier.Verify(token)
	if err != nil {
		h.logger.Info("enrichment: token rejected", slog.String("error", err.Error()))
		h.fail(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	var req endpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		h.fail(w, http.StatusBadRequest, "prompt is required")
		return
	}

	if h.gen == nil {
		h.logger.Error("enrichment: no generation service configured")
		h.fail(w, http.StatusInternalServerError, "generation service is not configured")
		return
	}

	gr := GenerateRequest{
		Prompt:      req.Prompt,
		Temperature: ClampTemperature(req.Temperature),
		MaxTokens:   ClampMaxTokens(req.MaxTokens),
	}
	text, err := h.gen.Generate(r.Context(), gr)
	if err != nil {
		h.logger.Error("enrichment: upstream generation failed",
			slog.String("user_id", id.UserID),
			slog.String("error", err.Error()))
		h.fail(w, http.StatusInternalServerError, "generation failed")
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		h.fail(w, http.StatusInternalServerError, "no text generated")
		return
	}

	h.metrics.RecordEndpointStatus(http.StatusOK)
	writeJSON(w, http.StatusOK, endpointResponse{Text: text})
}

func (h *Handler) fail(w http.ResponseWriter, status int, msg string) {
	h.metrics.RecordEndpointStatus(status)
	writeJSON(w, status, endpointError{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
