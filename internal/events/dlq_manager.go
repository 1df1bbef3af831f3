package events

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DLQManager periodically retries parked events by releasing their outbox
// rows back to the dispatcher. Events exhausting their retry budget are
// quarantined for operator review.
type DLQManager struct {
	pool         *pgxpool.Pool
	pollInterval time.Duration
	batchSize    int
	maxRetries   int
}

// NewDLQManager constructs a DLQManager.
func NewDLQManager(pool *pgxpool.Pool, pollInterval time.Duration, batchSize, maxRetries int) *DLQManager {
	return &DLQManager{
		pool:         pool,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		maxRetries:   maxRetries,
	}
}

// Run processes due entries until the context is cancelled.
func (m *DLQManager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		if err := m.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("dlq manager error: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce fetches due entries and retries or quarantines each one.
func (m *DLQManager) RunOnce(ctx context.Context) error {
	entries, err := m.fetchDue(ctx)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := m.handleEntry(ctx, entry); err != nil {
			log.Printf("dlq: entry event_id=%d: %v", entry.EventID, err)
		}
	}

	UpdateBacklogGauge(ctx, m.pool)
	return nil
}

type dlqEntry struct {
	DLQID      int64
	EventID    int64
	OwnerID    string
	EventType  string
	Topic      string
	RetryCount int
	FailedAt   time.Time
}

func (m *DLQManager) fetchDue(ctx context.Context) ([]dlqEntry, error) {
	const query = `SELECT dlq_id, event_id, owner_id, event_type, topic, retry_count, failed_at
        FROM outbox_dlq
        WHERE quarantined = FALSE AND next_retry_at <= NOW()
        ORDER BY failed_at
        LIMIT $1`

	rows, err := m.pool.Query(ctx, query, m.batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]dlqEntry, 0)
	for rows.Next() {
		var entry dlqEntry
		if err := rows.Scan(&entry.DLQID, &entry.EventID, &entry.OwnerID, &entry.EventType, &entry.Topic, &entry.RetryCount, &entry.FailedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (m *DLQManager) handleEntry(ctx context.Context, entry dlqEntry) error {
	var publishedAt *time.Time
	err := m.pool.QueryRow(ctx,
		`SELECT published_at FROM outbox WHERE event_id = $1`, entry.EventID).Scan(&publishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return m.resolve(ctx, entry)
		}
		return err
	}

	switch {
	case publishedAt != nil && publishedAt.After(entry.FailedAt):
		// Delivered since the last failure.
		return m.resolve(ctx, entry)
	case publishedAt == nil:
		// Released on a previous pass and still awaiting the dispatcher.
		return m.pushRetryWindow(ctx, entry)
	case entry.RetryCount >= m.maxRetries:
		return m.quarantine(ctx, entry)
	default:
		return m.requeueOutbox(ctx, entry)
	}
}

func (m *DLQManager) resolve(ctx context.Context, entry dlqEntry) error {
	_, err := m.pool.Exec(ctx, `DELETE FROM outbox_dlq WHERE dlq_id = $1`, entry.DLQID)
	if err != nil {
		return err
	}
	dlqResolvedCounter.WithLabelValues(entry.Topic).Inc()
	return nil
}

func (m *DLQManager) pushRetryWindow(ctx context.Context, entry dlqEntry) error {
	_, err := m.pool.Exec(ctx,
		`UPDATE outbox_dlq SET next_retry_at = NOW() + LEAST(interval '5 seconds' * power(2, retry_count + 1), interval '1 hour')
         WHERE dlq_id = $1`,
		entry.DLQID)
	return err
}

// requeueOutbox releases the original outbox row for redelivery. The DLQ
// entry stays behind so a repeated failure keeps its retry count.
func (m *DLQManager) requeueOutbox(ctx context.Context, entry dlqEntry) error {
	_, err := m.pool.Exec(ctx,
		`UPDATE outbox SET published_at = NULL, claimed_at = NULL WHERE event_id = $1`,
		entry.EventID)
	if err != nil {
		return err
	}

	if err := m.pushRetryWindow(ctx, entry); err != nil {
		return err
	}

	dlqRetriedCounter.WithLabelValues(entry.Topic).Inc()
	log.Printf("dlq: requeued event_id=%d owner=%s type=%s attempt=%d", entry.EventID, entry.OwnerID, entry.EventType, entry.RetryCount+1)
	return nil
}

func (m *DLQManager) quarantine(ctx context.Context, entry dlqEntry) error {
	_, err := m.pool.Exec(ctx,
		`UPDATE outbox_dlq SET quarantined = TRUE, failure_reason = failure_reason || ' (retry budget exhausted)' WHERE dlq_id = $1`,
		entry.DLQID)
	if err != nil {
		return err
	}

	dlqQuarantinedCounter.WithLabelValues(entry.Topic).Inc()
	log.Printf("dlq: quarantined event_id=%d owner=%s type=%s after %d retries", entry.EventID, entry.OwnerID, entry.EventType, entry.RetryCount)
	return nil
}
