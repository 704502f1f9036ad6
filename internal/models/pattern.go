package models

import "time"

// Pattern is a recurring theme reported by the external pattern detector.
// The journal stores and surfaces these records but never mutates them.
type Pattern struct {
	ID            string    `json:"id" yaml:"id"`
	Pattern       string    `json:"pattern" yaml:"pattern"`
	FirstDetected time.Time `json:"first_detected" yaml:"first_detected"`
	Occurrences   int       `json:"occurrences" yaml:"occurrences"`
	Confidence    float64   `json:"confidence" yaml:"confidence"`
}
