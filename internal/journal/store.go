// Package journal owns the entry lifecycle of a user's session: creating and
// loading entries, and requesting generated insights and weekly reflections.
package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/starford/solace/internal/analytics"
	"github.com/starford/solace/internal/apperr"
	"github.com/starford/solace/internal/auth"
	"github.com/starford/solace/internal/enrichment"
	"github.com/starford/solace/internal/models"
	"github.com/starford/solace/internal/sse"
)

// Store is the entry cache and lifecycle of one user's session.
//
// The cache is the only state read by consumers. Writes go to the repository
// first and reach the cache only when they succeed. A freshly created entry is
// prepended without re-querying, so if the repository clock assigned it an
// earlier date than a cached entry, cache order differs from LoadEntries
// until the next load.
type Store struct {
	userID string
	deps   Deps

	mu         sync.RWMutex
	entries    []models.Entry
	loaded     bool
	reflection *models.WeeklyReflection
	// writes counts cache mutations so a load can detect writes that
	// landed while its repository read was in flight.
	writes uint64

	insights   singleflight.Group
	background sync.WaitGroup
}

func newStore(userID string, deps Deps) *Store {
	return &Store{userID: userID, deps: deps, entries: []models.Entry{}}
}

// UserID returns the owner of the session, empty for the anonymous store.
func (s *Store) UserID() string {
	return s.userID
}

// identity returns the caller when it is authenticated as the store owner.
func (s *Store) identity(ctx context.Context) (auth.Identity, bool) {
	id, ok := s.deps.Identity.Identity(ctx)
	if !ok || s.userID == "" || id.UserID != s.userID {
		return auth.Identity{}, false
	}
	return id, true
}

// Now returns the current time in the configured location.
func (s *Store) Now() time.Time {
	return s.deps.Now().In(s.deps.Location)
}

// CreateEntry validates and persists draft, prepends it to the cache, and
// starts insight generation in the background. Enrichment failures never
// fail the create; the entry stays without insights and can be retried.
func (s *Store) CreateEntry(ctx context.Context, draft models.Draft) (models.Entry, error) {
	id, ok := s.identity(ctx)
	if !ok {
		return models.Entry{}, fmt.Errorf("%w: sign in to create entries", apperr.ErrAuthentication)
	}

	draft = s.normalizeDraft(draft)
	if err := ValidateDraft(draft); err != nil {
		return models.Entry{}, err
	}

	e, err := s.deps.Repo.Insert(ctx, id.UserID, draft)
	if err != nil {
		return models.Entry{}, fmt.Errorf("%w: %v", apperr.ErrPersistence, err)
	}

	s.mu.Lock()
	s.entries = append([]models.Entry{e}, s.entries...)
	s.writes++
	s.mu.Unlock()

	s.deps.Metrics.RecordEntryCreated()
	s.deps.Events.PublishJournalEvent(id.UserID, sse.EventEntryCreated, e)
	s.deps.Logger.Info("entry created", slog.String("user_id", id.UserID), slog.String("entry_id", e.ID))

	s.enrichInBackground(ctx, e.ID)
	return e, nil
}

func (s *Store) enrichInBackground(ctx context.Context, entryID string) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()

		bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.deps.BackgroundTimeout)
		defer cancel()

		if _, err := s.GenerateInsights(bgCtx, entryID); err != nil {
			s.deps.Logger.Warn("background enrichment failed",
				slog.String("user_id", s.userID),
				slog.String("entry_id", entryID),
				slog.String("error", err.Error()))
		}
	}()
}

// LoadEntries replaces the cache with the caller's entries from the
// repository, newest first. Without an identity it returns an empty slice and
// no error. On repository failure the cache is left empty.
func (s *Store) LoadEntries(ctx context.Context) ([]models.Entry, error) {
	id, ok := s.identity(ctx)
	if !ok {
		return []models.Entry{}, nil
	}

	s.mu.RLock()
	before := s.writes
	s.mu.RUnlock()

	entries, err := s.deps.Repo.ListByUser(ctx, id.UserID)
	if err != nil {
		s.mu.Lock()
		s.entries = []models.Entry{}
		s.loaded = false
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", apperr.ErrPersistence, err)
	}
	if entries == nil {
		entries = []models.Entry{}
	}

	s.mu.Lock()
	if s.writes != before {
		entries = mergeWrites(entries, s.entries)
	}
	s.entries = entries
	s.loaded = true
	s.mu.Unlock()
	return s.Entries(), nil
}

// mergeWrites carries cache writes made after snapshot was read into it:
// entries missing from snapshot are prepended in cache order, and insights
// set in the cache win over the snapshot's.
func mergeWrites(snapshot, cached []models.Entry) []models.Entry {
	index := make(map[string]int, len(snapshot))
	for i, e := range snapshot {
		index[e.ID] = i
	}
	var fresh []models.Entry
	for _, c := range cached {
		i, ok := index[c.ID]
		if !ok {
			fresh = append(fresh, c)
			continue
		}
		if c.AIInsights != nil {
			snapshot[i].AIInsights = c.AIInsights
		}
	}
	return append(fresh, snapshot...)
}

// Ensure loads the cache once per session. Later calls are no-ops.
func (s *Store) Ensure(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}
	_, err := s.LoadEntries(ctx)
	return err
}

// Entries returns a copy of the cache.
func (s *Store) Entries() []models.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Entry returns the cached entry with the given id.
func (s *Store) Entry(entryID string) (models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == entryID {
			return e, nil
		}
	}
	return models.Entry{}, fmt.Errorf("%w: entry %s", apperr.ErrNotFound, entryID)
}

// GenerateInsights requests insight text for a cached entry, persists it and
// updates the cache. Concurrent calls for the same entry share one upstream
// request. On failure the cached entry is left unchanged.
func (s *Store) GenerateInsights(ctx context.Context, entryID string) (models.Entry, error) {
	id, ok := s.identity(ctx)
	if !ok {
		return models.Entry{}, fmt.Errorf("%w: sign in to generate insights", apperr.ErrAuthentication)
	}
	if _, err := s.Entry(entryID); err != nil {
		return models.Entry{}, err
	}

	leader := false
	v, err, shared := s.insights.Do(entryID, func() (any, error) {
		leader = true
		return s.generateInsights(ctx, id, entryID)
	})
	if shared && !leader {
		s.deps.Metrics.RecordInsightsCoalesced()
	}
	if err != nil {
		return models.Entry{}, err
	}
	return v.(models.Entry), nil
}

func (s *Store) generateInsights(ctx context.Context, id auth.Identity, entryID string) (models.Entry, error) {
	e, err := s.Entry(entryID)
	if err != nil {
		return models.Entry{}, err
	}

	text, err := s.deps.Enricher.EnrichEntry(ctx, id.Token, enrichment.InputFromEntry(e))
	if err != nil {
		return models.Entry{}, err
	}

	if err := s.deps.Repo.UpdateInsights(ctx, id.UserID, entryID, text); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return models.Entry{}, err
		}
		return models.Entry{}, fmt.Errorf("%w: %v", apperr.ErrPersistence, err)
	}

	e.AIInsights = &text
	s.mu.Lock()
	for i := range s.entries {
		if s.entries[i].ID == entryID {
			s.entries[i].AIInsights = &text
			e = s.entries[i]
			break
		}
	}
	s.writes++
	s.mu.Unlock()

	s.deps.Events.PublishJournalEvent(id.UserID, sse.EventEntryInsights, e)
	return e, nil
}

// GenerateWeeklyReflection digests the cached entries of the trailing seven
// days, at most the seven newest, and overwrites the reflection slot. The
// slot is replaced even when there were no entries, and left as it was when
// generation fails.
func (s *Store) GenerateWeeklyReflection(ctx context.Context) (models.WeeklyReflection, error) {
	id, ok := s.identity(ctx)
	if !ok {
		return models.WeeklyReflection{}, fmt.Errorf("%w: sign in to generate a reflection", apperr.ErrAuthentication)
	}

	now := s.Now()
	selected := analytics.WeeklyDigest(s.Entries(), now)
	inputs := make([]enrichment.EntryInput, len(selected))
	for i, e := range selected {
		inputs[i] = enrichment.InputFromEntry(e)
	}

	text, err := s.deps.Enricher.Digest(ctx, id.Token, inputs)
	if err != nil {
		return models.WeeklyReflection{}, err
	}

	r := models.WeeklyReflection{Text: text, GeneratedAt: now, EntryCount: len(selected)}
	s.mu.Lock()
	s.reflection = &r
	s.mu.Unlock()

	s.deps.Events.PublishJournalEvent(id.UserID, sse.EventReflectionUpdated, r)
	return r, nil
}

// WeeklyReflection returns the current reflection, if one was generated.
func (s *Store) WeeklyReflection() (models.WeeklyReflection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.reflection == nil {
		return models.WeeklyReflection{}, false
	}
	return *s.reflection, true
}

// Wait blocks until background enrichment started by CreateEntry finishes.
func (s *Store) Wait() {
	s.background.Wait()
}
