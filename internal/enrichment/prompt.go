package enrichment

import (
	"fmt"
	"strings"
	"time"

	"github.com/starford/solace/internal/models"
)

// EntryInput is the per-entry payload of an enrichment request.
type EntryInput struct {
	Date       time.Time
	Mood       models.Mood
	Gratitude  string
	Intentions string
	Thoughts   string
}

// InputFromEntry extracts the enrichment fields from a stored entry.
func InputFromEntry(e models.Entry) EntryInput {
	return EntryInput{
		Date:       e.Date,
		Mood:       e.Mood,
		Gratitude:  models.Deref(e.Gratitude),
		Intentions: models.Deref(e.Intentions),
		Thoughts:   models.Deref(e.Thoughts),
	}
}

// EntryPrompt builds the single-entry reflection prompt.
func EntryPrompt(in EntryInput) string {
	var sb strings.Builder
	sb.WriteString("You are a warm, supportive journaling companion. ")
	sb.WriteString("Read today's check-in and reply with a short reflective insight ")
	sb.WriteString("(2-4 sentences) that acknowledges the feeling and offers one gentle, practical suggestion. ")
	sb.WriteString("Do not diagnose and do not give medical advice.\n\n")
	writeEntry(&sb, in)
	return sb.String()
}

// DigestPrompt builds the weekly reflection prompt over entries, newest first.
func DigestPrompt(entries []EntryInput) string {
	var sb strings.Builder
	sb.WriteString("You are a warm, supportive journaling companion. ")
	sb.WriteString("Summarise the past week of check-ins below in one short paragraph: ")
	sb.WriteString("name the overall mood trend, recurring sources of gratitude, and progress on intentions, ")
	sb.WriteString("then close with one encouraging suggestion for the coming week.\n\n")
	if len(entries) == 0 {
		sb.WriteString("There were no check-ins this week. Offer a gentle invitation to start journaling again.\n")
		return sb.String()
	}
	for i, in := range entries {
		fmt.Fprintf(&sb, "Check-in %d (%s):\n", i+1, in.Date.Format("Monday, 2 Jan"))
		writeEntry(&sb, in)
		sb.WriteString("\n")
	}
	return sb.String()
}

func writeEntry(sb *strings.Builder, in EntryInput) {
	fmt.Fprintf(sb, "Mood: %s (%d/5)\n", in.Mood, in.Mood.Score())
	fmt.Fprintf(sb, "Grateful for: %s\n", orNone(in.Gratitude))
	fmt.Fprintf(sb, "Intentions: %s\n", orNone(in.Intentions))
	fmt.Fprintf(sb, "Thoughts: %s\n", orNone(in.Thoughts))
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}
