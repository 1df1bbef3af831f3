package domain

import "time"

// ActivityKind identifies the discipline of a workout.
type ActivityKind string

const (
	KindSwim ActivityKind = "swim"
	KindBike ActivityKind = "bike"
	KindRun  ActivityKind = "run"
)

// Kinds lists every tracked discipline in display order.
var Kinds = []ActivityKind{KindSwim, KindBike, KindRun}

// Valid reports whether the kind is one Tri tracks.
func (k ActivityKind) Valid() bool {
	switch k {
	case KindSwim, KindBike, KindRun:
		return true
	}
	return false
}

// UnitLabel returns the distance unit for the discipline. Swims are measured
// in yards, rides and runs in miles.
func (k ActivityKind) UnitLabel() string {
	if k == KindSwim {
		return "yd"
	}
	return "mi"
}

// WorkoutSource records how a workout entered the system.
type WorkoutSource string

const (
	SourceManual     WorkoutSource = "manual"
	SourceHealthFeed WorkoutSource = "healthfeed"
)

// WorkoutRecord is the canonical workout row stored in Postgres.
//
// SourceIdentifier is set only for healthfeed records; it is the external
// feed's stable identifier and is unique per owner. Hidden records stay in
// storage as tombstones so a replayed sync window cannot resurrect them.
type WorkoutRecord struct {
	ID               string
	OwnerID          string
	Source           WorkoutSource
	SourceIdentifier string
	Kind             ActivityKind
	Distance         float64
	DurationSeconds  float64
	Calories         float64
	OccurredAt       time.Time
	CreatedAt        time.Time
	IsHidden         bool
}

// SyncCursorState tracks how far an owner's health feed has been consumed.
// Anchor is an opaque continuation token; nil means no sync has happened yet
// and the next pass fetches from StartDate.
type SyncCursorState struct {
	OwnerID     string
	Anchor      []byte
	StartDate   time.Time
	LastFetchAt time.Time
}
