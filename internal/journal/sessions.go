package journal

import (
	"context"
	"sync"
)

// Sessions hands out one Store per authenticated user. Every consumer of the
// same user receives the same Store, so they share its cache.
type Sessions struct {
	deps Deps

	mu     sync.Mutex
	stores map[string]*Store
	anon   *Store
}

// NewSessions creates a session manager. Deps.Repo and Deps.Enricher are
// required.
func NewSessions(deps Deps) *Sessions {
	deps = deps.withDefaults()
	return &Sessions{
		deps:   deps,
		stores: make(map[string]*Store),
		anon:   newStore("", deps),
	}
}

// For returns the Store of the caller identified by ctx. Unauthenticated
// callers share an anonymous Store whose operations behave as for a missing
// identity.
func (m *Sessions) For(ctx context.Context) *Store {
	id, ok := m.deps.Identity.Identity(ctx)
	if !ok {
		return m.anon
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stores[id.UserID]
	if !ok {
		s = newStore(id.UserID, m.deps)
		m.stores[id.UserID] = s
	}
	return s
}

// Close waits for background work of every session to finish.
func (m *Sessions) Close() {
	m.mu.Lock()
	stores := make([]*Store, 0, len(m.stores))
	for _, s := range m.stores {
		stores = append(stores, s)
	}
	m.mu.Unlock()

	for _, s := range stores {
		s.Wait()
	}
}
