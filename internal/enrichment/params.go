// Package enrichment is the boundary to the external text-generation service:
// the /enrichment HTTP endpoint, the client that calls it, and the prompts sent
// through it.
package enrichment

import (
	"encoding/json"
	"math"
)

// Generation parameter bounds. Requests are always clamped into these ranges
// on the server before reaching the upstream service.
const (
	DefaultTemperature = 0.7
	MinTemperature     = 0.0
	MaxTemperature     = 1.0

	DefaultMaxTokens = 512
	MinMaxTokens     = 1
	MaxMaxTokens     = 2048

	// MaxDigestEntries is the largest digest request accepted.
	MaxDigestEntries = 7
)

// ClampTemperature returns v clamped to [0, 1], or the default when v is
// absent or not a finite number.
func ClampTemperature(v any) float64 {
	f, ok := number(v)
	if !ok {
		return DefaultTemperature
	}
	return math.Min(MaxTemperature, math.Max(MinTemperature, f))
}

// ClampMaxTokens returns v truncated to an integer and clamped to [1, 2048],
// or the default when v is absent or not a finite number.
func ClampMaxTokens(v any) int {
	f, ok := number(v)
	if !ok {
		return DefaultMaxTokens
	}
	f = math.Trunc(f)
	switch {
	case f < MinMaxTokens:
		return MinMaxTokens
	case f > MaxMaxTokens:
		return MaxMaxTokens
	}
	return int(f)
}

func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case *float64:
		if n == nil {
			return 0, false
		}
		f = *n
	case *int:
		if n == nil {
			return 0, false
		}
		f = float64(*n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
