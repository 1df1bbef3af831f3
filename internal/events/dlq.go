package events

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DLQWriter parks undeliverable outbox events in outbox_dlq so the
// dispatcher can keep draining healthy events.
type DLQWriter struct {
	pool *pgxpool.Pool
}

// NewDLQWriter constructs a DLQWriter.
func NewDLQWriter(pool *pgxpool.Pool) *DLQWriter {
	return &DLQWriter{pool: pool}
}

// Write records a failed event together with the delivery failure reason.
// The first failure is eligible for retry immediately; repeated failures for
// the same event keep their retry count and back off exponentially, capped
// at one hour.
func (w *DLQWriter) Write(ctx context.Context, msg Message, reason string) error {
	const stmt = `INSERT INTO outbox_dlq
        (event_id, owner_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, failure_reason, next_retry_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW())
        ON CONFLICT (event_id) DO UPDATE SET
            failure_reason = EXCLUDED.failure_reason,
            retry_count = outbox_dlq.retry_count + 1,
            next_retry_at = NOW() + LEAST(interval '5 seconds' * power(2, outbox_dlq.retry_count + 1), interval '1 hour'),
            failed_at = NOW()`

	_, err := w.pool.Exec(ctx, stmt,
		msg.EventID,
		msg.OwnerID,
		msg.AggregateType,
		msg.AggregateID,
		msg.EventType,
		msg.Topic,
		msg.SchemaSubject,
		msg.PartitionKey,
		msg.Payload,
		reason,
	)
	return err
}
