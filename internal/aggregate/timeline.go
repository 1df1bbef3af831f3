package aggregate

import (
	"time"

	"example.com/tri/internal/domain"
)

// Period selects the timeline window shown by the statistics views.
type Period string

const (
	PeriodMonth     Period = "1m"
	PeriodSixMonths Period = "6m"
	PeriodYear      Period = "1y"
	PeriodAll       Period = "all"
)

// ValidPeriod reports whether p is a known period.
func ValidPeriod(p Period) bool {
	switch p {
	case PeriodMonth, PeriodSixMonths, PeriodYear, PeriodAll:
		return true
	}
	return false
}

// StatPoint is one bucket of the distance timeline.
type StatPoint struct {
	Start time.Time `json:"start"`
	Value float64   `json:"value"`
	Label string    `json:"label"`
}

// DayRing is one day of the last-seven-days calorie rings.
type DayRing struct {
	Date     time.Time `json:"date"`
	Calories float64   `json:"calories"`
	Progress float64   `json:"progress"`
}

// Timeline buckets total distance over the selected period: daily buckets for
// one month, monthly for six months and a year, yearly for all time.
func (e Engine) Timeline(records []domain.WorkoutRecord, period Period, now time.Time) []StatPoint {
	switch period {
	case PeriodMonth:
		return e.bucketize(records, now.AddDate(0, 0, -29), now, stepDay)
	case PeriodSixMonths:
		return e.bucketize(records, now.AddDate(0, -5, 0), now, stepMonth)
	case PeriodYear:
		return e.bucketize(records, now.AddDate(-1, 0, 0), now, stepMonth)
	case PeriodAll:
		earliest := time.Time{}
		for _, r := range records {
			if earliest.IsZero() || r.OccurredAt.Before(earliest) {
				earliest = r.OccurredAt
			}
		}
		if earliest.IsZero() {
			return nil
		}
		return e.bucketize(records, earliest.In(now.Location()), now, stepYear)
	}
	return nil
}

type bucketStep int

const (
	stepDay bucketStep = iota
	stepMonth
	stepYear
)

func bucketStartOf(t time.Time, step bucketStep) time.Time {
	y, m, d := t.Date()
	switch step {
	case stepDay:
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	case stepMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	default:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, t.Location())
	}
}

func advance(t time.Time, step bucketStep) time.Time {
	switch step {
	case stepDay:
		return t.AddDate(0, 0, 1)
	case stepMonth:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(1, 0, 0)
	}
}

func bucketLabel(t time.Time, step bucketStep) string {
	switch step {
	case stepDay:
		return t.Format("1/2")
	case stepMonth:
		return t.Format("Jan")
	default:
		return t.Format("2006")
	}
}

func (e Engine) bucketize(records []domain.WorkoutRecord, from, to time.Time, step bucketStep) []StatPoint {
	var points []StatPoint
	for start := bucketStartOf(from, step); !start.After(to); start = advance(start, step) {
		end := advance(start, step)
		total := 0.0
		for _, r := range records {
			at := r.OccurredAt.In(start.Location())
			if !at.Before(start) && at.Before(end) {
				total += r.Distance
			}
		}
		points = append(points, StatPoint{Start: start, Value: total, Label: bucketLabel(start, step)})
	}
	return points
}

// DayRings returns calorie progress against the daily goal for the last seven
// days ending at now, oldest first. A zero goal yields zero progress.
func (e Engine) DayRings(records []domain.WorkoutRecord, profile domain.UserProfile, now time.Time) []DayRing {
	rings := make([]DayRing, 0, 7)
	for offset := 6; offset >= 0; offset-- {
		day := dayStart(now.AddDate(0, 0, -offset))
		calories := e.TotalCalories(records, day)
		progress := 0.0
		if profile.DailyCaloriesGoal > 0 {
			progress = calories / profile.DailyCaloriesGoal
		}
		rings = append(rings, DayRing{Date: day, Calories: calories, Progress: progress})
	}
	return rings
}
