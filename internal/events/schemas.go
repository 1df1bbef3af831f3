package events

// SchemaMetadata binds an event type to the JSON Schema registered for its
// subject. Event types sharing a topic share a subject, so their schema must
// accept every payload shape published there.
type SchemaMetadata struct {
	Schema string
}

const workoutEventsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "TriWorkoutEvent",
  "oneOf": [
    {
      "type": "object",
      "properties": {
        "workout_id": {"type": "string"},
        "owner_id": {"type": "string"},
        "source": {"type": "string", "enum": ["manual", "healthfeed"]},
        "kind": {"type": "string", "enum": ["swim", "bike", "run"]},
        "distance": {"type": "number"},
        "duration_seconds": {"type": "number"},
        "calories": {"type": "number"},
        "occurred_at": {"type": "string", "format": "date-time"}
      },
      "required": ["workout_id", "owner_id", "source", "kind", "occurred_at"]
    },
    {
      "type": "object",
      "properties": {
        "workout_id": {"type": "string"},
        "owner_id": {"type": "string"},
        "source_identifier": {"type": "string"},
        "hidden_at": {"type": "string", "format": "date-time"}
      },
      "required": ["workout_id", "owner_id", "hidden_at"]
    }
  ]
}`

const syncEventsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "TriSyncCompleted",
  "type": "object",
  "properties": {
    "owner_id": {"type": "string"},
    "added": {"type": "integer"},
    "skipped": {"type": "integer"},
    "deleted": {"type": "integer"},
    "finished_at": {"type": "string", "format": "date-time"}
  },
  "required": ["owner_id", "finished_at"]
}`

var schemaCatalog = map[string]SchemaMetadata{
	TypeWorkoutRecorded: {Schema: workoutEventsSchema},
	TypeWorkoutHidden:   {Schema: workoutEventsSchema},
	TypeSyncCompleted:   {Schema: syncEventsSchema},
}
