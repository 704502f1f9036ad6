package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/solace/internal/apperr"
	"github.com/starford/solace/internal/models"
)

// Insert persists a new entry. The id and creation date are assigned here.
func (db *DB) Insert(ctx context.Context, userID string, draft models.Draft) (models.Entry, error) {
	e := models.Entry{
		ID:         uuid.NewString(),
		UserID:     userID,
		Date:       db.now().UTC(),
		Mood:       draft.Mood,
		Gratitude:  draft.Gratitude,
		Intentions: draft.Intentions,
		Thoughts:   draft.Thoughts,
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO journal_entries (id, user_id, mood, gratitude, intentions, thoughts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, userID, string(e.Mood), nullString(e.Gratitude), nullString(e.Intentions), nullString(e.Thoughts), e.Date)
	if err != nil {
		return models.Entry{}, fmt.Errorf("storage: insert entry: %w", err)
	}
	return e, nil
}

// ListByUser returns the user's entries, newest first.
func (db *DB) ListByUser(ctx context.Context, userID string) ([]models.Entry, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, user_id, mood, gratitude, intentions, thoughts, ai_insights, created_at
		FROM journal_entries
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("storage: list entries: %w", err)
	}
	defer rows.Close()

	out := []models.Entry{}
	for rows.Next() {
		var (
			e                                         models.Entry
			mood                                      string
			gratitude, intentions, thoughts, insights sql.NullString
			created                                   time.Time
		)
		if err := rows.Scan(&e.ID, &e.UserID, &mood, &gratitude, &intentions, &thoughts, &insights, &created); err != nil {
			return nil, fmt.Errorf("storage: scan entry: %w", err)
		}
		e.Mood = models.Mood(mood)
		e.Gratitude = stringPtr(gratitude)
		e.Intentions = stringPtr(intentions)
		e.Thoughts = stringPtr(thoughts)
		e.AIInsights = stringPtr(insights)
		e.Date = created.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateInsights stores generated insight text on an entry owned by userID.
func (db *DB) UpdateInsights(ctx context.Context, userID, entryID, insights string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE journal_entries SET ai_insights = ? WHERE id = ? AND user_id = ?`,
		insights, entryID, userID)
	if err != nil {
		return fmt.Errorf("storage: update insights: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: update insights: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("storage: entry %s: %w", entryID, apperr.ErrNotFound)
	}
	return nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
