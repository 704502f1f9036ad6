package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/solace/internal/analytics"
	"github.com/starford/solace/internal/checksum"
	"github.com/starford/solace/internal/journal"
	"github.com/starford/solace/internal/patterns"
)

const maxEntryBody = 64 << 10

// Handler holds API route handlers.
type Handler struct {
	sessions *journal.Sessions
	patterns *patterns.Registry
}

// NewHandler creates a new Handler.
func NewHandler(sessions *journal.Sessions, reg *patterns.Registry) *Handler {
	return &Handler{sessions: sessions, patterns: reg}
}

// loadedStore returns the caller's store with its cache loaded.
func (h *Handler) loadedStore(r *http.Request) (*journal.Store, error) {
	store := h.sessions.For(r.Context())
	if err := store.Ensure(r.Context()); err != nil {
		return nil, err
	}
	return store, nil
}

// CreateEntry handles POST /api/entries.
//
//	@Summary		Record a mood check-in
//	@Tags			entries
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateEntryRequest	true	"Entry to create"
//	@Success		201		{object}	models.Entry
//	@Failure		400		{object}	errResponse
//	@Failure		401		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries [post]
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxEntryBody)
	var req CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	e, err := h.sessions.For(r.Context()).CreateEntry(r.Context(), req)
	if err != nil {
		writeError(w, "create entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// ListEntries handles GET /api/entries. The response carries an ETag; a
// matching If-None-Match yields 304.
//
//	@Summary		List the caller's entries, newest first
//	@Tags			entries
//	@Produce		json
//	@Success		200	{object}	EntryListResponse
//	@Success		304	"Not modified"
//	@Security		BearerAuth
//	@Router			/entries [get]
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.sessions.For(r.Context()).LoadEntries(r.Context())
	if err != nil {
		writeError(w, "list entries", err)
		return
	}
	body, err := json.Marshal(EntryListResponse{Entries: entries})
	if err != nil {
		writeError(w, "list entries", err)
		return
	}

	etag := checksum.ETag(body)
	w.Header().Set("ETag", etag)
	if checksum.Matches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(append(body, '\n'))
}

// GetEntry handles GET /api/entries/{id}.
//
//	@Summary		Get a single entry
//	@Tags			entries
//	@Produce		json
//	@Param			id	path		string	true	"Entry id"
//	@Success		200	{object}	models.Entry
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{id} [get]
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	store, err := h.loadedStore(r)
	if err != nil {
		writeError(w, "get entry", err)
		return
	}
	e, err := store.Entry(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get entry", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// GenerateInsights handles POST /api/entries/{id}/insights.
//
//	@Summary		Generate (or regenerate) the insight for an entry
//	@Tags			entries
//	@Produce		json
//	@Param			id	path		string	true	"Entry id"
//	@Success		200	{object}	models.Entry
//	@Failure		401	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{id}/insights [post]
func (h *Handler) GenerateInsights(w http.ResponseWriter, r *http.Request) {
	store, err := h.loadedStore(r)
	if err != nil {
		writeError(w, "generate insights", err)
		return
	}
	e, err := store.GenerateInsights(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "generate insights", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// GetWeeklyReflection handles GET /api/reflection/weekly.
//
//	@Summary		Get the current weekly reflection
//	@Tags			reflection
//	@Produce		json
//	@Success		200	{object}	models.WeeklyReflection
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/reflection/weekly [get]
func (h *Handler) GetWeeklyReflection(w http.ResponseWriter, r *http.Request) {
	reflection, ok := h.sessions.For(r.Context()).WeeklyReflection()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("no reflection generated yet"))
		return
	}
	writeJSON(w, http.StatusOK, reflection)
}

// GenerateWeeklyReflection handles POST /api/reflection/weekly.
//
//	@Summary		Regenerate the weekly reflection
//	@Tags			reflection
//	@Produce		json
//	@Success		200	{object}	models.WeeklyReflection
//	@Failure		401	{object}	errResponse
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/reflection/weekly [post]
func (h *Handler) GenerateWeeklyReflection(w http.ResponseWriter, r *http.Request) {
	store, err := h.loadedStore(r)
	if err != nil {
		writeError(w, "weekly reflection", err)
		return
	}
	reflection, err := store.GenerateWeeklyReflection(r.Context())
	if err != nil {
		writeError(w, "weekly reflection", err)
		return
	}
	writeJSON(w, http.StatusOK, reflection)
}

// Streak handles GET /api/analytics/streak.
//
//	@Summary		Current journaling streak in days
//	@Tags			analytics
//	@Produce		json
//	@Success		200	{object}	StreakResponse
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/analytics/streak [get]
func (h *Handler) Streak(w http.ResponseWriter, r *http.Request) {
	store, err := h.loadedStore(r)
	if err != nil {
		writeError(w, "streak", err)
		return
	}
	writeJSON(w, http.StatusOK, StreakResponse{Streak: analytics.Streak(store.Entries(), store.Now())})
}

// Trend handles GET /api/analytics/trend.
//
//	@Summary		Daily average mood over the last 30 days
//	@Tags			analytics
//	@Produce		json
//	@Success		200	{object}	TrendResponse
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/analytics/trend [get]
func (h *Handler) Trend(w http.ResponseWriter, r *http.Request) {
	store, err := h.loadedStore(r)
	if err != nil {
		writeError(w, "mood trend", err)
		return
	}
	writeJSON(w, http.StatusOK, TrendResponse{Days: analytics.MoodTrend(store.Entries(), store.Now())})
}

// Distribution handles GET /api/analytics/distribution?days=N.
// Without days (or days=0) every entry is counted.
//
//	@Summary		Entry count and share per mood
//	@Tags			analytics
//	@Produce		json
//	@Param			days	query		int	false	"Trailing window in days, 0 for all entries"
//	@Success		200		{object}	DistributionResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/analytics/distribution [get]
func (h *Handler) Distribution(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > 3660 {
			writeJSON(w, http.StatusBadRequest, errorBody("days must be an integer between 0 and 3660"))
			return
		}
		days = n
	}
	store, err := h.loadedStore(r)
	if err != nil {
		writeError(w, "mood distribution", err)
		return
	}
	writeJSON(w, http.StatusOK, DistributionResponse{
		WindowDays: days,
		Moods:      analytics.Distribution(store.Entries(), store.Now(), days),
	})
}

// WeeklyReport handles GET /api/analytics/weekly-report.
//
//	@Summary		Statistics over the last 30 days
//	@Tags			analytics
//	@Produce		json
//	@Success		200	{object}	WeeklyReportResponse
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/analytics/weekly-report [get]
func (h *Handler) WeeklyReport(w http.ResponseWriter, r *http.Request) {
	store, err := h.loadedStore(r)
	if err != nil {
		writeError(w, "weekly report", err)
		return
	}
	writeJSON(w, http.StatusOK, analytics.WeeklyReport(store.Entries(), store.Now()))
}

// ListPatterns handles GET /api/patterns.
//
//	@Summary		Detected recurring patterns
//	@Tags			patterns
//	@Produce		json
//	@Success		200	{object}	PatternListResponse
//	@Security		BearerAuth
//	@Router			/patterns [get]
func (h *Handler) ListPatterns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, PatternListResponse{Patterns: h.patterns.List()})
}

// GetPattern handles GET /api/patterns/{id}.
//
//	@Summary		Get a single pattern
//	@Tags			patterns
//	@Produce		json
//	@Param			id	path		string	true	"Pattern id"
//	@Success		200	{object}	models.Pattern
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/patterns/{id} [get]
func (h *Handler) GetPattern(w http.ResponseWriter, r *http.Request) {
	p, err := h.patterns.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get pattern", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
