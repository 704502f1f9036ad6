// Package sanitize cleans user-supplied free text before it is stored or
// forwarded to the text-generation service.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Text strips all markup from free text.
type Text struct {
	policy *bluemonday.Policy
}

// New returns a sanitizer using bluemonday's strict (no elements) policy.
func New() *Text {
	return &Text{policy: bluemonday.StrictPolicy()}
}

// maxPasses bounds decoding of nested entity encodings.
const maxPasses = 8

// String removes markup and surrounding whitespace, returning plain text.
// The strict policy escapes what it keeps, so its output is decoded and
// sanitised again until stable; entity-encoded tags cannot reappear as
// markup after decoding.
func (t *Text) String(s string) string {
	out := s
	for range maxPasses {
		next := html.UnescapeString(t.policy.Sanitize(out))
		if next == out {
			return strings.TrimSpace(out)
		}
		out = next
	}
	// Still unstable: keep the escaped form rather than risk live markup.
	return strings.TrimSpace(t.policy.Sanitize(out))
}

// Optional sanitises p and collapses blank results to nil.
func (t *Text) Optional(p *string) *string {
	if p == nil {
		return nil
	}
	out := t.String(*p)
	if out == "" {
		return nil
	}
	return &out
}
