// Package models defines the domain types for the journal.
package models

import "time"

// Entry is one persisted mood check-in.
// ID and Date are assigned by storage, never by the client.
type Entry struct {
	ID         string    `json:"id"`
	UserID     string    `json:"-"`
	Date       time.Time `json:"date"`
	Mood       Mood      `json:"mood"`
	Gratitude  *string   `json:"gratitude"`
	Intentions *string   `json:"intentions"`
	Thoughts   *string   `json:"thoughts"`
	AIInsights *string   `json:"ai_insights"`
}

// HasInsights reports whether enrichment has produced text for the entry.
func (e Entry) HasInsights() bool {
	return e.AIInsights != nil && *e.AIInsights != ""
}

// Draft is a client-submitted entry before persistence.
type Draft struct {
	Mood       Mood    `json:"mood"`
	Gratitude  *string `json:"gratitude,omitempty"`
	Intentions *string `json:"intentions,omitempty"`
	Thoughts   *string `json:"thoughts,omitempty"`
}

// WeeklyReflection is the single ephemeral digest slot.
type WeeklyReflection struct {
	Text        string    `json:"text"`
	GeneratedAt time.Time `json:"generated_at"`
	EntryCount  int       `json:"entry_count"`
}

// Deref returns the string behind p, or "" when p is nil.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
