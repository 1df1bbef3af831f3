// Package healthfeed abstracts the external wellness-data source that
// produces workout records and deletion notices against an opaque anchor.
package healthfeed

import (
	"context"
	"time"
)

// Item is one externally sourced workout as the feed reports it. Distances
// arrive in meters; ActivityType uses the feed's own vocabulary, which is
// wider than the disciplines Tri tracks.
type Item struct {
	SourceIdentifier string    `json:"source_identifier"`
	ActivityType     string    `json:"activity_type"`
	DistanceMeters   float64   `json:"distance_meters"`
	DurationSeconds  float64   `json:"duration_seconds"`
	Calories         float64   `json:"calories"`
	EndedAt          time.Time `json:"ended_at"`
}

// Delta is one full fetch against an anchor. NewAnchor supersedes the anchor
// the query was issued with; it is opaque and must never be interpreted.
type Delta struct {
	Added            []Item
	DeletedSourceIDs []string
	NewAnchor        []byte
}

// Feed is the surface of the external health-data source.
type Feed interface {
	// RequestAuthorization asks the source for read access to the owner's
	// workouts. Denial returns an error wrapping domain.ErrAuthorizationDenied.
	RequestAuthorization(ctx context.Context, ownerID string) error
	// FetchDelta returns everything added or deleted since anchor. A nil
	// anchor means a cold fetch from startDate.
	FetchDelta(ctx context.Context, ownerID string, anchor []byte, startDate time.Time) (Delta, error)
}
