package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/solace/internal/auth"
	"github.com/starford/solace/internal/journal"
	"github.com/starford/solace/internal/patterns"
)

// RouterConfig holds the collaborators of the API router.
type RouterConfig struct {
	Sessions *journal.Sessions
	Patterns *patterns.Registry
	Verifier auth.Verifier
	// Limiter (optional) guards routes that call the enrichment service.
	Limiter *RateLimiter
	// Events (optional) is mounted at GET /events inside the auth group.
	Events http.Handler
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(cfg RouterConfig) chi.Router {
	h := NewHandler(cfg.Sessions, cfg.Patterns)

	limited := func(next http.Handler) http.Handler { return next }
	if cfg.Limiter != nil {
		limited = cfg.Limiter.Middleware()
	}

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.Verifier))

	// Entries.
	r.Get("/entries", h.ListEntries)
	r.With(limited).Post("/entries", h.CreateEntry)
	r.Get("/entries/{id}", h.GetEntry)
	r.With(limited).Post("/entries/{id}/insights", h.GenerateInsights)

	// Weekly reflection.
	r.Get("/reflection/weekly", h.GetWeeklyReflection)
	r.With(limited).Post("/reflection/weekly", h.GenerateWeeklyReflection)

	// Analytics.
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/streak", h.Streak)
		r.Get("/trend", h.Trend)
		r.Get("/distribution", h.Distribution)
		r.Get("/weekly-report", h.WeeklyReport)
	})

	// Patterns.
	r.Get("/patterns", h.ListPatterns)
	r.Get("/patterns/{id}", h.GetPattern)

	if cfg.Events != nil {
		r.Get("/events", cfg.Events.ServeHTTP)
	}

	return r
}
