package journal

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/solace/internal/auth"
	"github.com/starford/solace/internal/enrichment"
	"github.com/starford/solace/internal/metrics"
	"github.com/starford/solace/internal/models"
)

// IdentitySource resolves the authenticated caller of a request.
type IdentitySource interface {
	Identity(ctx context.Context) (auth.Identity, bool)
}

// Repository is the durable store the journal writes through to.
type Repository interface {
	Insert(ctx context.Context, userID string, draft models.Draft) (models.Entry, error)
	ListByUser(ctx context.Context, userID string) ([]models.Entry, error)
	UpdateInsights(ctx context.Context, userID, entryID, insights string) error
}

// Enricher requests generated text for entries.
type Enricher interface {
	EnrichEntry(ctx context.Context, token string, in enrichment.EntryInput) (string, error)
	Digest(ctx context.Context, token string, entries []enrichment.EntryInput) (string, error)
}

// Publisher receives journal change notifications.
type Publisher interface {
	PublishJournalEvent(userID, eventType string, data any)
}

// Sanitizer cleans optional free-text fields.
type Sanitizer interface {
	Optional(p *string) *string
}

// Deps are the collaborators shared by every Store of a Sessions manager.
type Deps struct {
	Identity IdentitySource
	Repo     Repository
	Enricher Enricher

	// Optional.
	Events    Publisher
	Sanitizer Sanitizer
	Metrics   metrics.Recorder
	Logger    *slog.Logger
	Now       func() time.Time
	// Location is the time zone calendar days are grouped in.
	Location *time.Location
	// BackgroundTimeout bounds the enrichment started after CreateEntry.
	BackgroundTimeout time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Identity == nil {
		d.Identity = auth.ContextSource{}
	}
	if d.Events == nil {
		d.Events = nopPublisher{}
	}
	if d.Sanitizer == nil {
		d.Sanitizer = passthrough{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.BackgroundTimeout <= 0 {
		d.BackgroundTimeout = 2 * time.Minute
	}
	return d
}

type nopPublisher struct{}

func (nopPublisher) PublishJournalEvent(string, string, any) {}

type passthrough struct{}

func (passthrough) Optional(p *string) *string { return p }
