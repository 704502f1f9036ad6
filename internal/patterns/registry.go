// Package patterns keeps the recurring patterns reported by the external
// detector and serves them read-only. It never scores or counts anything
// itself.
package patterns

import (
	"fmt"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/solace/internal/apperr"
	"github.com/starford/solace/internal/models"
)

// Registry holds the current pattern set in the order the detector supplied
// it, most relevant first.
type Registry struct {
	mu       sync.RWMutex
	patterns []models.Pattern
	byID     map[string]int
	version  string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: map[string]int{}}
}

// Validate checks a single detector record.
func Validate(p models.Pattern) error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ID, validation.Required),
		validation.Field(&p.Pattern, validation.Required),
		validation.Field(&p.FirstDetected, validation.Required),
		validation.Field(&p.Occurrences, validation.Required, validation.Min(1)),
		validation.Field(&p.Confidence, validation.Min(0.0), validation.Max(1.0)),
	)
}

// Replace swaps in a new pattern set. If any record is invalid or an id
// repeats, nothing changes.
func (r *Registry) Replace(ps []models.Pattern) error {
	return r.replace(ps, "")
}

func (r *Registry) replace(ps []models.Pattern, version string) error {
	byID := make(map[string]int, len(ps))
	for i, p := range ps {
		if err := Validate(p); err != nil {
			return fmt.Errorf("%w: pattern %d (%q): %w", apperr.ErrValidation, i, p.ID, err)
		}
		if _, dup := byID[p.ID]; dup {
			return fmt.Errorf("%w: duplicate pattern id %q", apperr.ErrValidation, p.ID)
		}
		byID[p.ID] = i
	}

	cp := make([]models.Pattern, len(ps))
	copy(cp, ps)

	r.mu.Lock()
	r.patterns = cp
	r.byID = byID
	r.version = version
	r.mu.Unlock()
	return nil
}

// List returns the patterns in supplied order.
func (r *Registry) List() []models.Pattern {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Pattern, len(r.patterns))
	copy(out, r.patterns)
	return out
}

// Get returns the pattern with the given id.
func (r *Registry) Get(id string) (models.Pattern, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byID[id]
	if !ok {
		return models.Pattern{}, fmt.Errorf("%w: pattern %s", apperr.ErrNotFound, id)
	}
	return r.patterns[i], nil
}

// Len returns the number of patterns.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.patterns)
}

func (r *Registry) currentVersion() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}
