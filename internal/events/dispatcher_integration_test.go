//go:build integration

package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	persistence "example.com/tri/internal/persistence/postgres"
)

func setupPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("tri"),
		postgrescontainer.WithUsername("tri"),
		postgrescontainer.WithPassword("tri"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	var pool *pgxpool.Pool
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err = pgxpool.New(ctx, connStr)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		require.True(t, time.Now().Before(deadline), "database never became ready: %v", err)
		time.Sleep(time.Second)
	}
	t.Cleanup(func() { pool.Close() })

	require.NoError(t, persistence.Migrate(ctx, pool))
	return pool
}

func seedOutbox(t *testing.T, ctx context.Context, pool *pgxpool.Pool, ownerID, eventType string) int64 {
	t.Helper()

	aggregateID := uuid.NewString()
	var eventID int64
	err := pool.QueryRow(ctx, `INSERT INTO outbox
        (owner_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,'workout',$2,$3,'tri_workout_events','tri_workout_events-value',$1,$4,$5)
        RETURNING event_id`,
		ownerID, aggregateID, eventType,
		[]byte(`{"workout_id":"`+aggregateID+`","owner_id":"`+ownerID+`"}`),
		aggregateID+":"+eventType,
	).Scan(&eventID)
	require.NoError(t, err)
	return eventID
}

func histogramSampleCount(t *testing.T) uint64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, batchDuration.Write(metric))
	hist := metric.GetHistogram()
	require.NotNil(t, hist)
	return hist.GetSampleCount()
}

func TestDispatcherPublishesMessages(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	ownerID := uuid.NewString()
	require.NotZero(t, seedOutbox(t, ctx, pool, ownerID, TypeWorkoutRecorded))
	require.NotZero(t, seedOutbox(t, ctx, pool, ownerID, TypeWorkoutHidden))

	producer := &producerStub{}
	registry := &registryStub{schemaID: 42}
	dispatcher := NewDispatcher(pool, producer, registry, 10*time.Millisecond, 5)

	beforeDelivered := testutil.ToFloat64(deliveredCounter)
	beforeHistogram := histogramSampleCount(t)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.batches["tri_workout_events"], 2)
	require.Equal(t, 1, registry.calls, "both event types share one subject")

	afterDelivered := testutil.ToFloat64(deliveredCounter)
	require.InDelta(t, beforeDelivered+2, afterDelivered, 0.0001)
	require.Greater(t, histogramSampleCount(t), beforeHistogram)

	var unpublished int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&unpublished))
	require.Zero(t, unpublished)
}

func TestDispatcherParksUndeliverableBatch(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	ownerID := uuid.NewString()
	eventID := seedOutbox(t, ctx, pool, ownerID, TypeWorkoutRecorded)

	producer := &producerStub{err: errors.New("kafka write failed")}
	dispatcher := NewDispatcher(pool, producer, &registryStub{schemaID: 7}, 10*time.Millisecond, 5)

	beforeFailed := testutil.ToFloat64(failedCounter)
	beforeDLQ := testutil.ToFloat64(dlqCounter.WithLabelValues("tri_workout_events"))

	require.NoError(t, dispatcher.processBatch(ctx))

	require.InDelta(t, beforeFailed+1, testutil.ToFloat64(failedCounter), 0.0001)
	require.InDelta(t, beforeDLQ+1, testutil.ToFloat64(dlqCounter.WithLabelValues("tri_workout_events")), 0.0001)

	// The outbox row is marked published so the poller keeps draining, and
	// the DLQ entry's failed_at postdates it so the manager sees an
	// undelivered event rather than a completed one.
	var publishedAt, failedAt time.Time
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT o.published_at, d.failed_at FROM outbox o JOIN outbox_dlq d USING (event_id) WHERE o.event_id = $1`,
		eventID).Scan(&publishedAt, &failedAt))
	require.False(t, publishedAt.After(failedAt))
}

func TestDLQLifecycleRequeueAndResolve(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	ownerID := uuid.NewString()
	eventID := seedOutbox(t, ctx, pool, ownerID, TypeWorkoutRecorded)

	registry := &registryStub{schemaID: 9}
	failing := NewDispatcher(pool, &producerStub{err: errors.New("broker down")}, registry, 10*time.Millisecond, 5)
	require.NoError(t, failing.processBatch(ctx))

	manager := NewDLQManager(pool, time.Second, 10, 3)

	// First sweep releases the outbox row for redelivery.
	require.NoError(t, manager.RunOnce(ctx))
	var publishedAt *time.Time
	require.NoError(t, pool.QueryRow(ctx, `SELECT published_at FROM outbox WHERE event_id = $1`, eventID).Scan(&publishedAt))
	require.Nil(t, publishedAt, "requeue must release the outbox row")
	require.InDelta(t, 1, testutil.ToFloat64(dlqBacklogGauge), 0.0001)

	// A healthy dispatcher now delivers the released row.
	working := NewDispatcher(pool, &producerStub{}, registry, 10*time.Millisecond, 5)
	require.NoError(t, working.processBatch(ctx))

	// Force the retry window open; the sweep sees the redelivery and resolves.
	_, err := pool.Exec(ctx, `UPDATE outbox_dlq SET next_retry_at = NOW() - interval '1 second'`)
	require.NoError(t, err)
	require.NoError(t, manager.RunOnce(ctx))

	var remaining int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq`).Scan(&remaining))
	require.Zero(t, remaining)
	require.InDelta(t, 0, testutil.ToFloat64(dlqBacklogGauge), 0.0001)
}

func TestDLQQuarantinesAfterRetryBudget(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	ownerID := uuid.NewString()
	eventID := seedOutbox(t, ctx, pool, ownerID, TypeSyncCompleted)
	_, err := pool.Exec(ctx, `UPDATE outbox SET topic='tri_sync_events', schema_subject='tri_sync_events-value', aggregate_type='sync_pass' WHERE event_id=$1`, eventID)
	require.NoError(t, err)

	failing := NewDispatcher(pool, &producerStub{err: errors.New("broker down")}, &registryStub{schemaID: 5}, 10*time.Millisecond, 5)
	require.NoError(t, failing.processBatch(ctx))

	manager := NewDLQManager(pool, time.Second, 10, 0)
	require.NoError(t, manager.RunOnce(ctx))

	var quarantined bool
	var reason string
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT quarantined, failure_reason FROM outbox_dlq WHERE event_id = $1`, eventID).Scan(&quarantined, &reason))
	require.True(t, quarantined)
	require.Contains(t, reason, "retry budget exhausted")

	// Quarantined entries leave the sweep's working set.
	require.InDelta(t, 0, testutil.ToFloat64(dlqBacklogGauge), 0.0001)
}
