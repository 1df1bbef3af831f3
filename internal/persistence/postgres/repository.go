package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/tri/internal/domain"
	"example.com/tri/internal/events"
	"example.com/tri/internal/observability"
)

// Repository provides Postgres-backed persistence for workouts and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func persistenceErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrPersistence, op, err)
}

const workoutColumns = `workout_id, owner_id, source, source_identifier, activity_kind, distance, duration_seconds, calories, occurred_at, created_at, is_hidden`

func scanWorkout(row pgx.Row) (domain.WorkoutRecord, error) {
	var record domain.WorkoutRecord
	var sourceID *string
	err := row.Scan(&record.ID, &record.OwnerID, &record.Source, &sourceID, &record.Kind, &record.Distance, &record.DurationSeconds, &record.Calories, &record.OccurredAt, &record.CreatedAt, &record.IsHidden)
	if err != nil {
		return domain.WorkoutRecord{}, err
	}
	if sourceID != nil {
		record.SourceIdentifier = *sourceID
	}
	return record, nil
}

func (r *Repository) list(ctx context.Context, ownerID string, visibleOnly bool) ([]domain.WorkoutRecord, error) {
	query := `SELECT ` + workoutColumns + ` FROM workouts WHERE owner_id=$1`
	if visibleOnly {
		query += ` AND is_hidden = FALSE`
	}
	query += ` ORDER BY occurred_at DESC, workout_id DESC`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, persistenceErr("list workouts", err)
	}
	defer rows.Close()

	results := make([]domain.WorkoutRecord, 0)
	for rows.Next() {
		record, err := scanWorkout(rows)
		if err != nil {
			return nil, persistenceErr("scan workout", err)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("list workouts", err)
	}
	return results, nil
}

// ListVisible implements domain.WorkoutRepository.
func (r *Repository) ListVisible(ctx context.Context, ownerID string) ([]domain.WorkoutRecord, error) {
	return r.list(ctx, ownerID, true)
}

// ListAll implements domain.WorkoutRepository.
func (r *Repository) ListAll(ctx context.Context, ownerID string) ([]domain.WorkoutRecord, error) {
	return r.list(ctx, ownerID, false)
}

// InsertManual persists the record and its outbox event in one transaction.
func (r *Repository) InsertManual(ctx context.Context, record domain.WorkoutRecord) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return persistenceErr("begin insert", err)
	}
	defer tx.Rollback(ctx)

	if err := insertWorkout(ctx, tx, record); err != nil {
		return persistenceErr("insert manual workout", err)
	}
	if err := insertOutbox(ctx, tx, record.OwnerID, events.TypeWorkoutRecorded, record.ID, events.WorkoutRecorded{
		WorkoutID:       record.ID,
		OwnerID:         record.OwnerID,
		Source:          string(record.Source),
		Kind:            string(record.Kind),
		Distance:        record.Distance,
		DurationSeconds: record.DurationSeconds,
		Calories:        record.Calories,
		OccurredAt:      record.OccurredAt,
	}); err != nil {
		return persistenceErr("record outbox event", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return persistenceErr("commit insert", err)
	}
	observability.RecordWorkoutPersisted(record.CreatedAt)
	return nil
}

func insertWorkout(ctx context.Context, tx pgx.Tx, record domain.WorkoutRecord) error {
	const stmt = `INSERT INTO workouts (workout_id, owner_id, source, source_identifier, activity_kind, distance, duration_seconds, calories, occurred_at, created_at, is_hidden)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := tx.Exec(ctx, stmt,
		record.ID,
		record.OwnerID,
		record.Source,
		nullIfEmpty(record.SourceIdentifier),
		record.Kind,
		record.Distance,
		record.DurationSeconds,
		record.Calories,
		record.OccurredAt,
		record.CreatedAt,
		record.IsHidden,
	)
	return err
}

// UpsertExternal inserts feed records that are not already present for the
// owner. The unique index on (owner_id, source_identifier) makes replayed
// windows idempotent: conflicts are skipped, never updated, so tombstones
// survive. Returns how many records were actually inserted.
func (r *Repository) UpsertExternal(ctx context.Context, records []domain.WorkoutRecord, ownerID string) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, persistenceErr("begin upsert", err)
	}
	defer tx.Rollback(ctx)

	const stmt = `INSERT INTO workouts (workout_id, owner_id, source, source_identifier, activity_kind, distance, duration_seconds, calories, occurred_at, created_at, is_hidden)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, NOW(), FALSE)
        ON CONFLICT (owner_id, source_identifier) DO NOTHING`

	inserted := 0
	for _, record := range records {
		if record.SourceIdentifier == "" {
			continue
		}
		if record.ID == "" {
			record.ID = uuid.NewString()
		}
		tag, err := tx.Exec(ctx, stmt,
			record.ID,
			ownerID,
			domain.SourceHealthFeed,
			record.SourceIdentifier,
			record.Kind,
			record.Distance,
			record.DurationSeconds,
			record.Calories,
			record.OccurredAt,
		)
		if err != nil {
			return 0, persistenceErr("upsert external workout", err)
		}
		if tag.RowsAffected() == 0 {
			continue
		}
		inserted++
		if err := insertOutbox(ctx, tx, ownerID, events.TypeWorkoutRecorded, record.ID, events.WorkoutRecorded{
			WorkoutID:       record.ID,
			OwnerID:         ownerID,
			Source:          string(domain.SourceHealthFeed),
			Kind:            string(record.Kind),
			Distance:        record.Distance,
			DurationSeconds: record.DurationSeconds,
			Calories:        record.Calories,
			OccurredAt:      record.OccurredAt,
		}); err != nil {
			return 0, persistenceErr("record outbox event", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, persistenceErr("commit upsert", err)
	}
	return inserted, nil
}

// Hide deletes manual records and tombstones healthfeed records.
func (r *Repository) Hide(ctx context.Context, id, ownerID string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return persistenceErr("begin hide", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+workoutColumns+` FROM workouts WHERE owner_id=$1 AND workout_id=$2`, ownerID, id)
	record, err := scanWorkout(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrWorkoutNotFound
		}
		return persistenceErr("load workout", err)
	}

	if record.Source == domain.SourceHealthFeed {
		_, err = tx.Exec(ctx, `UPDATE workouts SET is_hidden = TRUE WHERE owner_id=$1 AND workout_id=$2`, ownerID, id)
	} else {
		_, err = tx.Exec(ctx, `DELETE FROM workouts WHERE owner_id=$1 AND workout_id=$2`, ownerID, id)
	}
	if err != nil {
		return persistenceErr("hide workout", err)
	}

	if err := insertOutbox(ctx, tx, ownerID, events.TypeWorkoutHidden, record.ID, events.WorkoutHidden{
		WorkoutID:        record.ID,
		OwnerID:          ownerID,
		SourceIdentifier: record.SourceIdentifier,
		HiddenAt:         time.Now().UTC(),
	}); err != nil {
		return persistenceErr("record outbox event", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return persistenceErr("commit hide", err)
	}
	return nil
}

// HideBySourceIdentifier tombstones the record matching a feed deletion
// notice. Unknown identifiers are a no-op: the feed may report deletions for
// items that were never mapped.
func (r *Repository) HideBySourceIdentifier(ctx context.Context, sourceIdentifier, ownerID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE workouts SET is_hidden = TRUE WHERE owner_id=$1 AND source_identifier=$2`,
		ownerID, sourceIdentifier)
	if err != nil {
		return persistenceErr("hide by source identifier", err)
	}
	return nil
}

// ClearAll implements domain.WorkoutRepository.
func (r *Repository) ClearAll(ctx context.Context, ownerID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM workouts WHERE owner_id=$1`, ownerID); err != nil {
		return persistenceErr("clear workouts", err)
	}
	return nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, ownerID, eventType, aggregateID string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}
	dedupeKey := fmt.Sprintf("%s:%s", aggregateID, eventType)

	const stmt = `INSERT INTO outbox (owner_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (dedupe_key) DO NOTHING`

	_, err = tx.Exec(ctx, stmt,
		ownerID,
		meta.AggregateType,
		aggregateID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		ownerID,
		body,
		dedupeKey,
	)
	return err
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	AggregateType string
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	events.TypeWorkoutRecorded: {
		AggregateType: "workout",
		Topic:         "tri_workout_events",
		SchemaSubject: "tri_workout_events-value",
	},
	events.TypeWorkoutHidden: {
		AggregateType: "workout",
		Topic:         "tri_workout_events",
		SchemaSubject: "tri_workout_events-value",
	},
	events.TypeSyncCompleted: {
		AggregateType: "sync_pass",
		Topic:         "tri_sync_events",
		SchemaSubject: "tri_sync_events-value",
	},
}
