// Package aggregate computes calorie/distance totals, weekly goal progress,
// and streaks over an owner's visible workout set. Everything here is a pure
// function of the records, the profile, and a reference time.
package aggregate

import (
	"time"

	"example.com/tri/internal/domain"
)

// streakWindowWeeks bounds how far back the streak scan looks.
const streakWindowWeeks = 52

// Engine parameterizes the calendar conventions used by the computations.
type Engine struct {
	// WeekStart is the weekday a calendar week begins on.
	WeekStart time.Weekday
}

// NewEngine returns an Engine with weeks starting on Sunday.
func NewEngine() Engine {
	return Engine{WeekStart: time.Sunday}
}

// dayStart truncates t to midnight in its own location.
func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WeekStartOf returns the start of the calendar week containing t.
func (e Engine) WeekStartOf(t time.Time) time.Time {
	day := dayStart(t)
	back := (int(day.Weekday()) - int(e.WeekStart) + 7) % 7
	return day.AddDate(0, 0, -back)
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

// TotalCalories sums calories for records occurring on the same day as date.
func (e Engine) TotalCalories(records []domain.WorkoutRecord, date time.Time) float64 {
	total := 0.0
	for _, r := range records {
		if SameDay(date, r.OccurredAt) {
			total += r.Calories
		}
	}
	return total
}

// TotalDistance sums distance for records of the given kind within the
// calendar week containing date.
func (e Engine) TotalDistance(records []domain.WorkoutRecord, kind domain.ActivityKind, date time.Time) float64 {
	start := e.WeekStartOf(date)
	end := start.AddDate(0, 0, 7)
	total := 0.0
	for _, r := range records {
		if r.Kind != kind {
			continue
		}
		at := r.OccurredAt.In(start.Location())
		if !at.Before(start) && at.Before(end) {
			total += r.Distance
		}
	}
	return total
}

// Progress returns weekly distance divided by the weekly goal, or 0 when the
// goal is 0: no goal set means no progress expected, not a division error.
func (e Engine) Progress(records []domain.WorkoutRecord, profile domain.UserProfile, kind domain.ActivityKind, date time.Time) float64 {
	goal := profile.WeeklyGoal(kind)
	if goal == 0 {
		return 0
	}
	return e.TotalDistance(records, kind, date) / goal
}

// WeekCompleted reports whether every streak-included discipline met its
// weekly goal in the week starting at weekStart. A configuration with no
// included disciplines never completes a week.
func (e Engine) WeekCompleted(records []domain.WorkoutRecord, profile domain.UserProfile, weekStart time.Time) bool {
	included := false
	for _, kind := range domain.Kinds {
		if !profile.StreakIncludes(kind) {
			continue
		}
		included = true
		if e.TotalDistance(records, kind, weekStart) < profile.WeeklyGoal(kind) {
			return false
		}
	}
	return included
}

// Streak reports the current and longest runs of completed weeks within the
// last 52 calendar weeks ending at now. The two counts are independent
// traversals over the same window: longest scans oldest to newest with a
// running counter, current walks newest to oldest until the first incomplete
// week.
func (e Engine) Streak(records []domain.WorkoutRecord, profile domain.UserProfile, now time.Time) (current, longest int) {
	weeks := e.weekStarts(now, streakWindowWeeks)
	if len(weeks) == 0 {
		return 0, 0
	}

	running := 0
	for _, weekStart := range weeks {
		if e.WeekCompleted(records, profile, weekStart) {
			running++
			if running > longest {
				longest = running
			}
		} else {
			running = 0
		}
	}

	for i := len(weeks) - 1; i >= 0; i-- {
		if !e.WeekCompleted(records, profile, weeks[i]) {
			break
		}
		current++
	}
	return current, longest
}

// weekStarts returns the starts of the last count calendar weeks ending at
// now, oldest first.
func (e Engine) weekStarts(now time.Time, count int) []time.Time {
	starts := make([]time.Time, 0, count)
	for offset := count - 1; offset >= 0; offset-- {
		starts = append(starts, e.WeekStartOf(now.AddDate(0, 0, -7*offset)))
	}
	return starts
}
