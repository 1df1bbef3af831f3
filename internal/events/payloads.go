// Package events persists and delivers Tri domain events to Kafka through a
// transactional outbox.
package events

import "time"

// Event type names as they appear in the outbox and on the wire.
const (
	TypeWorkoutRecorded = "workout.recorded"
	TypeWorkoutHidden   = "workout.hidden"
	TypeSyncCompleted   = "sync.completed"
)

// WorkoutRecorded is emitted when a workout record is persisted, whether it
// came from manual entry or the health feed.
type WorkoutRecorded struct {
	WorkoutID       string    `json:"workout_id"`
	OwnerID         string    `json:"owner_id"`
	Source          string    `json:"source"`
	Kind            string    `json:"kind"`
	Distance        float64   `json:"distance"`
	DurationSeconds float64   `json:"duration_seconds"`
	Calories        float64   `json:"calories"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// WorkoutHidden is emitted when a workout is deleted or tombstoned.
type WorkoutHidden struct {
	WorkoutID        string    `json:"workout_id"`
	OwnerID          string    `json:"owner_id"`
	SourceIdentifier string    `json:"source_identifier,omitempty"`
	HiddenAt         time.Time `json:"hidden_at"`
}

// SyncCompleted is emitted after a reconciliation pass advances the cursor.
type SyncCompleted struct {
	OwnerID    string    `json:"owner_id"`
	Added      int       `json:"added"`
	Skipped    int       `json:"skipped"`
	Deleted    int       `json:"deleted"`
	FinishedAt time.Time `json:"finished_at"`
}

// DeltaAvailable is the notification the wellness gateway publishes when new
// health data is ready for an owner. syncd consumes it; this service never
// produces it.
type DeltaAvailable struct {
	OwnerID string `json:"owner_id"`
}
