package storage

import (
	"context"

	"github.com/starford/solace/internal/models"
)

// EntryRepository is the durable store for journal entries.
// Every query is scoped by the owning user's id.
type EntryRepository interface {
	// Insert persists draft for userID and returns the stored entry with
	// its server-assigned id and date.
	Insert(ctx context.Context, userID string, draft models.Draft) (models.Entry, error)
	// ListByUser returns the user's entries ordered by date descending.
	ListByUser(ctx context.Context, userID string) ([]models.Entry, error)
	// UpdateInsights stores generated text against an entry.
	UpdateInsights(ctx context.Context, userID, entryID, insights string) error
	Close() error
}

// Verify *DB satisfies EntryRepository at compile time.
var _ EntryRepository = (*DB)(nil)
