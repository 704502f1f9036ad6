package journal

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/solace/internal/apperr"
	"github.com/starford/solace/internal/models"
)

// MaxFieldRunes caps each free-text field of an entry.
const MaxFieldRunes = 4000

var moodRule = func() validation.Rule {
	moods := make([]interface{}, len(models.Moods))
	for i, m := range models.Moods {
		moods[i] = m
	}
	return validation.In(moods...).Error("must be one of awful, low, okay, good, great")
}()

// normalizeDraft canonicalises the mood and sanitises the free-text fields.
func (s *Store) normalizeDraft(d models.Draft) models.Draft {
	d.Mood = models.ParseMood(string(d.Mood))
	d.Gratitude = s.deps.Sanitizer.Optional(d.Gratitude)
	d.Intentions = s.deps.Sanitizer.Optional(d.Intentions)
	d.Thoughts = s.deps.Sanitizer.Optional(d.Thoughts)
	return d
}

// ValidateDraft checks a normalised draft. Failures wrap apperr.ErrValidation;
// per-field messages are available through errors.As on validation.Errors.
func ValidateDraft(d models.Draft) error {
	err := validation.ValidateStruct(&d,
		validation.Field(&d.Mood, validation.Required.Error("mood is required"), moodRule),
		validation.Field(&d.Gratitude, validation.RuneLength(0, MaxFieldRunes)),
		validation.Field(&d.Intentions, validation.RuneLength(0, MaxFieldRunes)),
		validation.Field(&d.Thoughts, validation.RuneLength(0, MaxFieldRunes)),
	)
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", apperr.ErrValidation, verrs)
	}
	return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
}
