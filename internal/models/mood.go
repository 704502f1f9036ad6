package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Mood is the canonical mood label of a check-in.
type Mood string

// Mood domain, lowest to highest.
const (
	MoodAwful Mood = "awful"
	MoodLow   Mood = "low"
	MoodOkay  Mood = "okay"
	MoodGood  Mood = "good"
	MoodGreat Mood = "great"
)

// Moods lists the mood domain in ascending ordinal order.
var Moods = []Mood{MoodAwful, MoodLow, MoodOkay, MoodGood, MoodGreat}

// Score returns the ordinal value of m (1..5), or 0 if m is outside the domain.
func (m Mood) Score() int {
	for i, v := range Moods {
		if v == m {
			return i + 1
		}
	}
	return 0
}

// Valid reports whether m belongs to the mood domain.
func (m Mood) Valid() bool {
	return m.Score() != 0
}

// MoodFromScore maps an ordinal 1..5 onto its label.
func MoodFromScore(score int) (Mood, bool) {
	if score < 1 || score > len(Moods) {
		return "", false
	}
	return Moods[score-1], true
}

// ParseMood normalises a boundary value: a label (any case) or a score "1".."5".
// Unknown input is returned as-is so validation can reject it.
func ParseMood(s string) Mood {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if m, ok := MoodFromScore(n); ok {
			return m
		}
	}
	return Mood(s)
}

// UnmarshalJSON accepts either a label string or a numeric score.
func (m *Mood) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*m = ParseMood(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*m = ParseMood(s)
	return nil
}
