// Package analytics computes derived views over a user's journal entries.
//
// Every function is pure: it takes the entry set and a reference time and
// never mutates its input. Calendar days are taken in the location of the
// reference time, so callers pass now.In(loc) to group by local days.
// Results do not depend on the order of the input slice.
package analytics

import (
	"sort"
	"time"

	"github.com/starford/solace/internal/models"
)

const (
	// TrendDays is the length of the mood trend window.
	TrendDays = 30
	// ReportDays is the window of the weekly-report statistics.
	ReportDays = 30
	// DigestWindow is the trailing window considered for the weekly reflection.
	DigestWindow = 7 * 24 * time.Hour
	// DigestLimit caps the number of entries in a weekly reflection.
	DigestLimit = 7
)

// day is a calendar date independent of time zone.
type day struct {
	y int
	m time.Month
	d int
}

func dayOf(t time.Time, loc *time.Location) day {
	y, m, d := t.In(loc).Date()
	return day{y, m, d}
}

// offset returns the calendar day i days before ref.
func offset(ref time.Time, i int) day {
	y, m, d := ref.Date()
	return dayOf(time.Date(y, m, d-i, 12, 0, 0, 0, ref.Location()), ref.Location())
}

func (d day) String() string {
	return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC).Format(time.DateOnly)
}

// sorted returns a copy of entries ordered newest first, id descending on ties.
func sorted(entries []models.Entry) []models.Entry {
	out := make([]models.Entry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// byDay buckets entries by calendar day in loc.
func byDay(entries []models.Entry, loc *time.Location) map[day][]models.Entry {
	m := make(map[day][]models.Entry)
	for _, e := range entries {
		k := dayOf(e.Date, loc)
		m[k] = append(m[k], e)
	}
	return m
}

// within returns the entries dated on one of the n calendar days ending on
// now's day, inclusive.
func within(entries []models.Entry, now time.Time, n int) []models.Entry {
	days := make(map[day]struct{}, n)
	for i := 0; i < n; i++ {
		days[offset(now, i)] = struct{}{}
	}
	var out []models.Entry
	for _, e := range entries {
		if _, ok := days[dayOf(e.Date, now.Location())]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Streak counts consecutive journaling days walking back from today.
// A missing entry today does not end the streak; any earlier gap does.
func Streak(entries []models.Entry, now time.Time) int {
	days := byDay(entries, now.Location())
	streak := 0
	// A streak cannot be longer than the number of distinct days.
	for i := 0; i <= len(days); i++ {
		if _, ok := days[offset(now, i)]; ok {
			streak++
			continue
		}
		if i > 0 {
			break
		}
	}
	return streak
}

// TrendPoint is one day of the mood trend. Average is nil on days without
// entries.
type TrendPoint struct {
	Date    string   `json:"date"`
	Average *float64 `json:"average"`
	Count   int      `json:"count"`
}

// MoodTrend returns the daily mean mood score for the trailing TrendDays
// calendar days, oldest first.
func MoodTrend(entries []models.Entry, now time.Time) []TrendPoint {
	days := byDay(entries, now.Location())
	out := make([]TrendPoint, 0, TrendDays)
	for i := TrendDays - 1; i >= 0; i-- {
		d := offset(now, i)
		p := TrendPoint{Date: d.String()}
		if bucket := days[d]; len(bucket) > 0 {
			sum := 0
			for _, e := range bucket {
				sum += e.Mood.Score()
			}
			avg := float64(sum) / float64(len(bucket))
			p.Average = &avg
			p.Count = len(bucket)
		}
		out = append(out, p)
	}
	return out
}

// MoodShare is the share of one mood category.
type MoodShare struct {
	Mood models.Mood `json:"mood"`
	// Count is the number of entries with this mood.
	Count int `json:"count"`
	// Percentage is Count relative to all entries, 0..100.
	Percentage float64 `json:"percentage"`
	// Relative is Count relative to the largest category, 0..1.
	Relative float64 `json:"relative"`
}

// Distribution counts entries per mood over the trailing days calendar days,
// or over all entries when days <= 0. Every mood appears, in ascending order.
func Distribution(entries []models.Entry, now time.Time, days int) []MoodShare {
	if days > 0 {
		entries = within(entries, now, days)
	}
	counts := make(map[models.Mood]int, len(models.Moods))
	maxCount := 0
	for _, e := range entries {
		counts[e.Mood]++
		if counts[e.Mood] > maxCount {
			maxCount = counts[e.Mood]
		}
	}

	out := make([]MoodShare, 0, len(models.Moods))
	for _, m := range models.Moods {
		s := MoodShare{Mood: m, Count: counts[m]}
		if len(entries) > 0 {
			s.Percentage = float64(s.Count) * 100 / float64(len(entries))
		}
		if maxCount > 0 {
			s.Relative = float64(s.Count) / float64(maxCount)
		}
		out = append(out, s)
	}
	return out
}

// MoodCount is one histogram bucket.
type MoodCount struct {
	Mood  models.Mood `json:"mood"`
	Count int         `json:"count"`
}

// Report holds the weekly-report statistics.
type Report struct {
	TotalEntries   int         `json:"total_entries"`
	GratitudeItems int         `json:"gratitude_items"`
	IntentionItems int         `json:"intention_items"`
	Histogram      []MoodCount `json:"histogram"`
	// TopMood is the most frequent mood, nil without entries.
	TopMood *models.Mood `json:"top_mood"`
}

// WeeklyReport computes statistics over the trailing ReportDays calendar
// days. The histogram lists moods in the order first met walking from the
// newest entry; ties for TopMood go to the earlier bucket.
func WeeklyReport(entries []models.Entry, now time.Time) Report {
	window := within(sorted(entries), now, ReportDays)
	r := Report{TotalEntries: len(window), Histogram: []MoodCount{}}

	index := make(map[models.Mood]int)
	for _, e := range window {
		if models.Deref(e.Gratitude) != "" {
			r.GratitudeItems++
		}
		if models.Deref(e.Intentions) != "" {
			r.IntentionItems++
		}
		i, ok := index[e.Mood]
		if !ok {
			i = len(r.Histogram)
			index[e.Mood] = i
			r.Histogram = append(r.Histogram, MoodCount{Mood: e.Mood})
		}
		r.Histogram[i].Count++
	}

	best := -1
	for i, b := range r.Histogram {
		if best < 0 || b.Count > r.Histogram[best].Count {
			best = i
		}
	}
	if best >= 0 {
		top := r.Histogram[best].Mood
		r.TopMood = &top
	}
	return r
}

// WeeklyDigest selects the entries for a weekly reflection: those dated within
// DigestWindow before now, newest first, at most DigestLimit.
func WeeklyDigest(entries []models.Entry, now time.Time) []models.Entry {
	cutoff := now.Add(-DigestWindow)
	out := []models.Entry{}
	for _, e := range sorted(entries) {
		if e.Date.Before(cutoff) || e.Date.After(now) {
			continue
		}
		out = append(out, e)
		if len(out) == DigestLimit {
			break
		}
	}
	return out
}
