package patterns

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/starford/solace/internal/checksum"
	"github.com/starford/solace/internal/models"
)

// fileFormat is the document the detector writes.
type fileFormat struct {
	Patterns []models.Pattern `yaml:"patterns"`
}

// Parse decodes a detector document. Unknown fields are rejected.
func Parse(data []byte) ([]models.Pattern, error) {
	var doc fileFormat
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		// An empty file is an empty set.
		if len(bytes.TrimSpace(data)) == 0 {
			return []models.Pattern{}, nil
		}
		return nil, fmt.Errorf("parse patterns: %w", err)
	}
	if doc.Patterns == nil {
		doc.Patterns = []models.Pattern{}
	}
	return doc.Patterns, nil
}

// LoadFile reads path into r. It reports whether the set changed; an
// unchanged file is not parsed again. On error r keeps its previous set.
func (r *Registry) LoadFile(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read patterns: %w", err)
	}
	sum := checksum.Sum(data)
	if sum == r.currentVersion() {
		return false, nil
	}
	ps, err := Parse(data)
	if err != nil {
		return false, err
	}
	if err := r.replace(ps, sum); err != nil {
		return false, err
	}
	return true, nil
}
