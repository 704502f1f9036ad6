package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/solace/internal/apperr"
	"github.com/starford/solace/internal/enrichment"
	"github.com/starford/solace/internal/metrics"
	"github.com/starford/solace/internal/models"
	"github.com/starford/solace/internal/sanitize"
	"github.com/starford/solace/internal/testutil"
)

var testNow = time.Date(2024, time.May, 10, 18, 0, 0, 0, time.UTC)

func strp(s string) *string { return &s }

// fakeRepo is an in-memory Repository that counts calls.
type fakeRepo struct {
	mu        sync.Mutex
	entries   map[string][]models.Entry
	seq       int
	inserts   int
	insertErr error
	listErr   error
	updateErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{entries: make(map[string][]models.Entry)}
}

func (r *fakeRepo) seed(userID string, e models.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.UserID = userID
	r.entries[userID] = append(r.entries[userID], e)
}

func (r *fakeRepo) Insert(_ context.Context, userID string, d models.Draft) (models.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts++
	if r.insertErr != nil {
		return models.Entry{}, r.insertErr
	}
	r.seq++
	e := models.Entry{
		ID: fmt.Sprintf("e%d", r.seq), UserID: userID, Date: testNow,
		Mood: d.Mood, Gratitude: d.Gratitude, Intentions: d.Intentions, Thoughts: d.Thoughts,
	}
	r.entries[userID] = append([]models.Entry{e}, r.entries[userID]...)
	return e, nil
}

func (r *fakeRepo) ListByUser(_ context.Context, userID string) ([]models.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]models.Entry, len(r.entries[userID]))
	copy(out, r.entries[userID])
	return out, nil
}

func (r *fakeRepo) UpdateInsights(_ context.Context, userID, entryID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	for i, e := range r.entries[userID] {
		if e.ID == entryID {
			r.entries[userID][i].AIInsights = &text
			return nil
		}
	}
	return apperr.ErrNotFound
}

// fakeEnricher records requests. When gate is set EnrichEntry blocks on it.
type fakeEnricher struct {
	mu         sync.Mutex
	text       string
	err        error
	entryCalls atomic.Int32
	lastEntry  enrichment.EntryInput
	lastDigest []enrichment.EntryInput
	gate       chan struct{}
}

func (f *fakeEnricher) EnrichEntry(ctx context.Context, _ string, in enrichment.EntryInput) (string, error) {
	f.entryCalls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastEntry = in
	return f.text, f.err
}

func (f *fakeEnricher) Digest(_ context.Context, _ string, entries []enrichment.EntryInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastDigest = entries
	return f.text, f.err
}

type countingMetrics struct {
	metrics.Nop
	coalesced atomic.Int32
	created   atomic.Int32
}

func (m *countingMetrics) RecordInsightsCoalesced() { m.coalesced.Add(1) }
func (m *countingMetrics) RecordEntryCreated()      { m.created.Add(1) }

type recordedEvent struct{ userID, kind string }

type fakeEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeEvents) PublishJournalEvent(userID, kind string, _ any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{userID, kind})
}

func (f *fakeEvents) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.events {
		out = append(out, e.kind)
	}
	return out
}

func newTestSessions(repo Repository, enr Enricher) *Sessions {
	return NewSessions(Deps{
		Repo:      repo,
		Enricher:  enr,
		Sanitizer: sanitize.New(),
		Now:       func() time.Time { return testNow },
		Location:  time.UTC,
	})
}

func TestCreateEntryUnauthenticated(t *testing.T) {
	repo := newFakeRepo()
	sessions := newTestSessions(repo, &fakeEnricher{text: "x"})

	ctx := context.Background()
	_, err := sessions.For(ctx).CreateEntry(ctx, models.Draft{Mood: models.MoodGood})
	if !errors.Is(err, apperr.ErrAuthentication) {
		t.Fatalf("err = %v, want ErrAuthentication", err)
	}
	if repo.inserts != 0 {
		t.Errorf("inserts = %d, want 0", repo.inserts)
	}
}

func TestCreateEntryValidation(t *testing.T) {
	repo := newFakeRepo()
	ctx := testutil.AsUser("u1")
	store := newTestSessions(repo, &fakeEnricher{text: "x"}).For(ctx)

	long := make([]rune, MaxFieldRunes+1)
	for i := range long {
		long[i] = 'a'
	}
	tests := []struct {
		name  string
		draft models.Draft
		field string
	}{
		{"missing mood", models.Draft{Gratitude: strp("sun")}, "mood"},
		{"unknown mood", models.Draft{Mood: "ecstatic"}, "mood"},
		{"out of range score", models.Draft{Mood: "9"}, "mood"},
		{"thoughts too long", models.Draft{Mood: models.MoodOkay, Thoughts: strp(string(long))}, "thoughts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.CreateEntry(ctx, tt.draft)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
			var verrs validation.Errors
			if !errors.As(err, &verrs) || verrs[tt.field] == nil {
				t.Errorf("no error for field %q in %v", tt.field, err)
			}
		})
	}
	if repo.inserts != 0 {
		t.Errorf("inserts = %d, want 0", repo.inserts)
	}
}

func TestCreateEntryNormalizesInput(t *testing.T) {
	ctx := testutil.AsUser("u1")
	store := newTestSessions(newFakeRepo(), &fakeEnricher{text: "x"}).For(ctx)

	e, err := store.CreateEntry(ctx, models.Draft{
		Mood:       "4",
		Gratitude:  strp("<b>my dog</b> &amp; cat"),
		Intentions: strp("   "),
	})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	store.Wait()
	if e.Mood != models.MoodGood {
		t.Errorf("mood = %q, want good", e.Mood)
	}
	if models.Deref(e.Gratitude) != "my dog & cat" {
		t.Errorf("gratitude = %q", models.Deref(e.Gratitude))
	}
	if e.Intentions != nil {
		t.Errorf("blank intentions stored as %q", *e.Intentions)
	}
}

func TestCreateEntryEndToEnd(t *testing.T) {
	db := testutil.TestDB(t)
	db.SetClock(func() time.Time { return testNow })
	enr := &fakeEnricher{text: "Rest counts as progress."}
	events := &fakeEvents{}
	rec := &countingMetrics{}
	sessions := NewSessions(Deps{
		Repo: db, Enricher: enr, Events: events, Metrics: rec,
		Sanitizer: sanitize.New(), Now: func() time.Time { return testNow },
	})
	ctx := testutil.AsUser("u1")
	store := sessions.For(ctx)

	e, err := store.CreateEntry(ctx, models.Draft{
		Mood:       models.MoodGood,
		Gratitude:  strp("family"),
		Intentions: strp("exercise"),
		Thoughts:   strp("tired"),
	})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if e.ID == "" || !e.Date.Equal(testNow) {
		t.Errorf("entry id = %q, date = %v", e.ID, e.Date)
	}
	// Visible before enrichment completes.
	if got := store.Entries(); len(got) != 1 || got[0].ID != e.ID {
		t.Fatalf("cache = %+v", got)
	}

	sessions.Close()

	want := enrichment.EntryInput{Date: testNow, Mood: models.MoodGood, Gratitude: "family", Intentions: "exercise", Thoughts: "tired"}
	enr.mu.Lock()
	got := enr.lastEntry
	enr.mu.Unlock()
	if !got.Date.Equal(want.Date) || got.Mood != want.Mood || got.Gratitude != want.Gratitude ||
		got.Intentions != want.Intentions || got.Thoughts != want.Thoughts {
		t.Errorf("enrichment input = %+v, want %+v", got, want)
	}

	cached, err := store.Entry(e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if models.Deref(cached.AIInsights) != "Rest counts as progress." {
		t.Errorf("cached insights = %v", cached.AIInsights)
	}

	loaded, err := store.LoadEntries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 || !loaded[0].HasInsights() {
		t.Errorf("persisted entries = %+v", loaded)
	}
	if rec.created.Load() != 1 {
		t.Errorf("created metric = %d", rec.created.Load())
	}
	kinds := events.kinds()
	if len(kinds) != 2 || kinds[0] != "entry.created" || kinds[1] != "entry.insights" {
		t.Errorf("events = %v", kinds)
	}
}

func TestCreateEntrySurvivesEnrichmentFailure(t *testing.T) {
	repo := newFakeRepo()
	ctx := testutil.AsUser("u1")
	store := newTestSessions(repo, &fakeEnricher{err: apperr.ErrUpstream}).For(ctx)

	e, err := store.CreateEntry(ctx, models.Draft{Mood: models.MoodLow})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	store.Wait()

	cached, err := store.Entry(e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if cached.AIInsights != nil {
		t.Errorf("insights = %q, want none", *cached.AIInsights)
	}
	if repo.inserts != 1 {
		t.Errorf("inserts = %d", repo.inserts)
	}
}

func TestCreateEntryPersistenceError(t *testing.T) {
	repo := newFakeRepo()
	repo.insertErr = errors.New("disk full")
	ctx := testutil.AsUser("u1")
	store := newTestSessions(repo, &fakeEnricher{text: "x"}).For(ctx)

	if _, err := store.CreateEntry(ctx, models.Draft{Mood: models.MoodOkay}); !errors.Is(err, apperr.ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	if len(store.Entries()) != 0 {
		t.Error("failed insert reached the cache")
	}
}

func TestBackgroundEnrichmentOutlivesRequest(t *testing.T) {
	enr := &fakeEnricher{text: "later", gate: make(chan struct{})}
	ctx, cancel := context.WithCancel(testutil.AsUser("u1"))
	store := newTestSessions(newFakeRepo(), enr).For(ctx)

	e, err := store.CreateEntry(ctx, models.Draft{Mood: models.MoodGood})
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	close(enr.gate)
	store.Wait()

	cached, _ := store.Entry(e.ID)
	if models.Deref(cached.AIInsights) != "later" {
		t.Errorf("insights = %v, want generated after request ended", cached.AIInsights)
	}
}

func TestLoadEntriesUnauthenticated(t *testing.T) {
	repo := newFakeRepo()
	repo.seed("u1", models.Entry{ID: "a", Mood: models.MoodGood})
	sessions := newTestSessions(repo, &fakeEnricher{})

	got, err := sessions.For(context.Background()).LoadEntries(context.Background())
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("entries = %v, want empty", got)
	}
}

func TestLoadEntriesScopedAndIdempotent(t *testing.T) {
	repo := newFakeRepo()
	repo.seed("u1", models.Entry{ID: "b", Date: testNow, Mood: models.MoodGood})
	repo.seed("u1", models.Entry{ID: "a", Date: testNow.Add(-time.Hour), Mood: models.MoodLow})
	repo.seed("u2", models.Entry{ID: "z", Date: testNow, Mood: models.MoodGreat})
	ctx := testutil.AsUser("u1")
	store := newTestSessions(repo, &fakeEnricher{}).For(ctx)

	first, err := store.LoadEntries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	second, err := store.LoadEntries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("lens = %d, %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("order differs at %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
		if first[i].UserID != "u1" {
			t.Errorf("foreign entry %s", first[i].ID)
		}
	}
}

func TestLoadEntriesFailureEmptiesCache(t *testing.T) {
	repo := newFakeRepo()
	repo.seed("u1", models.Entry{ID: "a", Mood: models.MoodGood})
	ctx := testutil.AsUser("u1")
	store := newTestSessions(repo, &fakeEnricher{}).For(ctx)

	if _, err := store.LoadEntries(ctx); err != nil {
		t.Fatal(err)
	}
	repo.listErr = errors.New("database is locked")
	if _, err := store.LoadEntries(ctx); !errors.Is(err, apperr.ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	if n := len(store.Entries()); n != 0 {
		t.Errorf("cache has %d entries after failure", n)
	}
}

func TestGenerateInsightsNotFound(t *testing.T) {
	ctx := testutil.AsUser("u1")
	enr := &fakeEnricher{text: "x"}
	store := newTestSessions(newFakeRepo(), enr).For(ctx)

	if _, err := store.GenerateInsights(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if enr.entryCalls.Load() != 0 {
		t.Error("enricher called for unknown entry")
	}
}

func TestGenerateInsightsFailureLeavesEntry(t *testing.T) {
	for name, setup := range map[string]func(*fakeRepo, *fakeEnricher) (want error){
		"upstream": func(_ *fakeRepo, e *fakeEnricher) error { e.err = apperr.ErrUpstream; return apperr.ErrUpstream },
		"empty": func(_ *fakeRepo, e *fakeEnricher) error {
			e.err = apperr.ErrEmptyGeneration
			return apperr.ErrEmptyGeneration
		},
		"persist": func(r *fakeRepo, e *fakeEnricher) error {
			e.text = "fresh"
			r.updateErr = errors.New("readonly database")
			return apperr.ErrPersistence
		},
	} {
		t.Run(name, func(t *testing.T) {
			repo := newFakeRepo()
			repo.seed("u1", models.Entry{ID: "a", Mood: models.MoodOkay, AIInsights: strp("old")})
			enr := &fakeEnricher{}
			want := setup(repo, enr)
			ctx := testutil.AsUser("u1")
			store := newTestSessions(repo, enr).For(ctx)
			if _, err := store.LoadEntries(ctx); err != nil {
				t.Fatal(err)
			}

			if _, err := store.GenerateInsights(ctx, "a"); !errors.Is(err, want) {
				t.Fatalf("err = %v, want %v", err, want)
			}
			e, _ := store.Entry("a")
			if models.Deref(e.AIInsights) != "old" {
				t.Errorf("insights = %v, want unchanged", e.AIInsights)
			}
		})
	}
}

func TestGenerateInsightsRegenerates(t *testing.T) {
	repo := newFakeRepo()
	repo.seed("u1", models.Entry{ID: "a", Mood: models.MoodOkay, AIInsights: strp("old")})
	ctx := testutil.AsUser("u1")
	store := newTestSessions(repo, &fakeEnricher{text: "new"}).For(ctx)
	if err := store.Ensure(ctx); err != nil {
		t.Fatal(err)
	}

	e, err := store.GenerateInsights(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if models.Deref(e.AIInsights) != "new" {
		t.Errorf("returned insights = %v", e.AIInsights)
	}
	stored, _ := repo.ListByUser(ctx, "u1")
	if models.Deref(stored[0].AIInsights) != "new" {
		t.Errorf("persisted insights = %v", stored[0].AIInsights)
	}
}

func TestGenerateInsightsSingleFlight(t *testing.T) {
	repo := newFakeRepo()
	repo.seed("u1", models.Entry{ID: "a", Mood: models.MoodGood})
	enr := &fakeEnricher{text: "shared", gate: make(chan struct{})}
	rec := &countingMetrics{}
	sessions := NewSessions(Deps{Repo: repo, Enricher: enr, Metrics: rec})
	ctx := testutil.AsUser("u1")
	store := sessions.For(ctx)
	if err := store.Ensure(ctx); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	results := make([]models.Entry, 3)
	errs := make([]error, 3)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = store.GenerateInsights(ctx, "a")
		}(i)
	}
	time.Sleep(100 * time.Millisecond)
	close(enr.gate)
	wg.Wait()

	if n := enr.entryCalls.Load(); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}
	for i := range results {
		if errs[i] != nil || models.Deref(results[i].AIInsights) != "shared" {
			t.Errorf("call %d = %+v, %v", i, results[i], errs[i])
		}
	}
	if n := rec.coalesced.Load(); n != 2 {
		t.Errorf("coalesced = %d, want 2", n)
	}
}

func TestGenerateInsightsRequiresIdentity(t *testing.T) {
	sessions := newTestSessions(newFakeRepo(), &fakeEnricher{text: "x"})
	ctx := context.Background()
	if _, err := sessions.For(ctx).GenerateInsights(ctx, "a"); !errors.Is(err, apperr.ErrAuthentication) {
		t.Fatalf("err = %v, want ErrAuthentication", err)
	}
}

func TestGenerateWeeklyReflection(t *testing.T) {
	repo := newFakeRepo()
	// Ten entries spanning fourteen days, newest an hour ago.
	for i := 0; i < 10; i++ {
		repo.seed("u1", models.Entry{
			ID:   fmt.Sprintf("e%02d", i),
			Date: testNow.Add(-time.Hour - time.Duration(i)*34*time.Hour),
			Mood: models.MoodOkay,
		})
	}
	enr := &fakeEnricher{text: "A steady week."}
	ctx := testutil.AsUser("u1")
	store := newTestSessions(repo, enr).For(ctx)
	if err := store.Ensure(ctx); err != nil {
		t.Fatal(err)
	}

	r, err := store.GenerateWeeklyReflection(ctx)
	if err != nil {
		t.Fatal(err)
	}
	enr.mu.Lock()
	digest := enr.lastDigest
	enr.mu.Unlock()
	if len(digest) != 5 || r.EntryCount != 5 {
		t.Fatalf("digest size = %d, entry count = %d, want 5", len(digest), r.EntryCount)
	}
	for _, in := range digest {
		if testNow.Sub(in.Date) > 7*24*time.Hour {
			t.Errorf("entry dated %v outside window", in.Date)
		}
	}
	got, ok := store.WeeklyReflection()
	if !ok || got.Text != "A steady week." || !got.GeneratedAt.Equal(testNow) {
		t.Errorf("slot = %+v, %v", got, ok)
	}
}

func TestWeeklyReflectionOverwritesAndKeepsOnFailure(t *testing.T) {
	enr := &fakeEnricher{text: "first"}
	ctx := testutil.AsUser("u1")
	store := newTestSessions(newFakeRepo(), enr).For(ctx)

	// Zero entries still replace the slot.
	if _, err := store.GenerateWeeklyReflection(ctx); err != nil {
		t.Fatal(err)
	}
	enr.mu.Lock()
	enr.text = "second"
	enr.mu.Unlock()
	if _, err := store.GenerateWeeklyReflection(ctx); err != nil {
		t.Fatal(err)
	}
	if r, _ := store.WeeklyReflection(); r.Text != "second" || r.EntryCount != 0 {
		t.Errorf("slot = %+v, want overwritten", r)
	}

	enr.mu.Lock()
	enr.err = apperr.ErrUpstream
	enr.mu.Unlock()
	if _, err := store.GenerateWeeklyReflection(ctx); !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
	if r, _ := store.WeeklyReflection(); r.Text != "second" {
		t.Errorf("slot = %q after failure, want unchanged", r.Text)
	}
}

func TestSessionsShareStorePerUser(t *testing.T) {
	sessions := newTestSessions(newFakeRepo(), &fakeEnricher{})
	a := sessions.For(testutil.AsUser("u1"))
	b := sessions.For(testutil.AsUser("u1"))
	c := sessions.For(testutil.AsUser("u2"))
	anon := sessions.For(context.Background())

	if a != b {
		t.Error("same user got different stores")
	}
	if a == c || a == anon {
		t.Error("stores shared across users")
	}
	if anon.UserID() != "" {
		t.Errorf("anonymous store owner = %q", anon.UserID())
	}
}

func TestStoreRejectsForeignIdentity(t *testing.T) {
	repo := newFakeRepo()
	sessions := newTestSessions(repo, &fakeEnricher{})
	store := sessions.For(testutil.AsUser("u1"))

	_, err := store.CreateEntry(testutil.AsUser("u2"), models.Draft{Mood: models.MoodGood})
	if !errors.Is(err, apperr.ErrAuthentication) {
		t.Fatalf("err = %v, want ErrAuthentication", err)
	}
	if repo.inserts != 0 {
		t.Errorf("inserts = %d", repo.inserts)
	}
}

// pausingListRepo signals once ListByUser has copied its rows and then holds
// the result until released.
type pausingListRepo struct {
	*fakeRepo
	copied  chan struct{}
	release chan struct{}
}

func (r *pausingListRepo) ListByUser(ctx context.Context, userID string) ([]models.Entry, error) {
	rows, err := r.fakeRepo.ListByUser(ctx, userID)
	close(r.copied)
	<-r.release
	return rows, err
}

func TestLoadEntriesKeepsEntryCreatedDuringRead(t *testing.T) {
	inner := newFakeRepo()
	inner.seed("u1", models.Entry{ID: "old", Date: testNow.Add(-time.Hour), Mood: models.MoodLow})
	repo := &pausingListRepo{fakeRepo: inner, copied: make(chan struct{}), release: make(chan struct{})}
	enr := &fakeEnricher{text: "noted", gate: make(chan struct{})}
	ctx := testutil.AsUser("u1")
	store := newTestSessions(repo, enr).For(ctx)

	loadErr := make(chan error, 1)
	go func() {
		_, err := store.LoadEntries(ctx)
		loadErr <- err
	}()
	<-repo.copied

	e, err := store.CreateEntry(ctx, models.Draft{Mood: models.MoodGood})
	if err != nil {
		t.Fatal(err)
	}
	close(repo.release)
	if err := <-loadErr; err != nil {
		t.Fatal(err)
	}

	got := store.Entries()
	if len(got) != 2 || got[0].ID != e.ID || got[1].ID != "old" {
		t.Fatalf("cache = %v, want new entry before old", got)
	}

	close(enr.gate)
	store.Wait()
	cached, err := store.Entry(e.ID)
	if err != nil {
		t.Fatalf("entry dropped from cache: %v", err)
	}
	if models.Deref(cached.AIInsights) != "noted" {
		t.Errorf("insights = %v, want background enrichment applied", cached.AIInsights)
	}
}

func TestLoadEntriesKeepsInsightsWrittenDuringRead(t *testing.T) {
	inner := newFakeRepo()
	inner.seed("u1", models.Entry{ID: "a", Date: testNow, Mood: models.MoodGood})
	ctx := testutil.AsUser("u1")
	store := newTestSessions(inner, &fakeEnricher{text: "steady"}).For(ctx)
	if _, err := store.LoadEntries(ctx); err != nil {
		t.Fatal(err)
	}

	repo := &pausingListRepo{fakeRepo: inner, copied: make(chan struct{}), release: make(chan struct{})}
	store.deps.Repo = repo

	loadErr := make(chan error, 1)
	go func() {
		_, err := store.LoadEntries(ctx)
		loadErr <- err
	}()
	<-repo.copied

	if _, err := store.GenerateInsights(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	close(repo.release)
	if err := <-loadErr; err != nil {
		t.Fatal(err)
	}

	cached, _ := store.Entry("a")
	if models.Deref(cached.AIInsights) != "steady" {
		t.Errorf("insights = %v, stale snapshot overwrote them", cached.AIInsights)
	}
}
