package api

import (
	"github.com/starford/solace/internal/analytics"
	"github.com/starford/solace/internal/models"
)

// CreateEntryRequest is the request body for creating an entry. Mood accepts
// a label (any case) or a score 1..5.
type CreateEntryRequest = models.Draft

// EntryListResponse wraps the caller's entries, newest first.
type EntryListResponse struct {
	Entries []models.Entry `json:"entries"`
}

// StreakResponse is the current journaling streak.
type StreakResponse struct {
	Streak int `json:"streak" example:"4"`
}

// TrendResponse is the daily mood trend, oldest day first.
type TrendResponse struct {
	Days []analytics.TrendPoint `json:"days"`
}

// DistributionResponse is the mood distribution over a window.
// WindowDays is 0 when all entries were counted.
type DistributionResponse struct {
	WindowDays int                   `json:"window_days" example:"30"`
	Moods      []analytics.MoodShare `json:"moods"`
}

// WeeklyReportResponse holds the weekly-report statistics.
type WeeklyReportResponse = analytics.Report

// PatternListResponse wraps the detected patterns in detector order.
type PatternListResponse struct {
	Patterns []models.Pattern `json:"patterns"`
}
