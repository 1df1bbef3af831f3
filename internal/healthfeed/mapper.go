package healthfeed

import (
	"github.com/google/uuid"

	"example.com/tri/internal/domain"
)

// Conversion factors from the feed's meters to discipline units.
const (
	metersPerYard = 0.9144
	metersPerMile = 1609.344
)

// kindByActivityType maps the feed's activity vocabulary onto Tri's
// disciplines. Anything absent here is silently dropped during mapping.
var kindByActivityType = map[string]domain.ActivityKind{
	"swimming": domain.KindSwim,
	"cycling":  domain.KindBike,
	"running":  domain.KindRun,
}

// MapItem converts a feed item into a workout record candidate. Each
// candidate gets a fresh workout ID; the feed's own identity stays in
// SourceIdentifier. The second return value is false for activity types Tri
// does not track; that is an expected filter, not an error. Missing distance
// or calories map to zero.
func MapItem(item Item, ownerID string) (domain.WorkoutRecord, bool) {
	kind, ok := kindByActivityType[item.ActivityType]
	if !ok {
		return domain.WorkoutRecord{}, false
	}

	distance := 0.0
	if item.DistanceMeters > 0 {
		if kind == domain.KindSwim {
			distance = item.DistanceMeters / metersPerYard
		} else {
			distance = item.DistanceMeters / metersPerMile
		}
	}

	calories := item.Calories
	if calories < 0 {
		calories = 0
	}

	return domain.WorkoutRecord{
		ID:               uuid.NewString(),
		OwnerID:          ownerID,
		Source:           domain.SourceHealthFeed,
		SourceIdentifier: item.SourceIdentifier,
		Kind:             kind,
		Distance:         distance,
		DurationSeconds:  item.DurationSeconds,
		Calories:         calories,
		OccurredAt:       item.EndedAt.UTC(),
	}, true
}
