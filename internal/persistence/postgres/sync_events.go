package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/tri/internal/events"
	"example.com/tri/internal/reconciler"
)

// SyncEventRecorder publishes sync.completed events through the outbox after
// each successful reconciliation pass.
type SyncEventRecorder struct {
	pool *pgxpool.Pool
}

// NewSyncEventRecorder constructs a SyncEventRecorder.
func NewSyncEventRecorder(pool *pgxpool.Pool) *SyncEventRecorder {
	return &SyncEventRecorder{pool: pool}
}

// RecordSyncCompleted inserts an outbox row describing the pass. Each pass is
// its own aggregate so consecutive passes for one owner all publish.
func (r *SyncEventRecorder) RecordSyncCompleted(ctx context.Context, result reconciler.PassResult) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return persistenceErr("record sync event", err)
	}
	defer tx.Rollback(ctx)

	aggregateID := fmt.Sprintf("%s:%d", result.OwnerID, result.FinishedAt.UnixNano())
	payload := events.SyncCompleted{
		OwnerID:    result.OwnerID,
		Added:      result.Added,
		Skipped:    result.Skipped,
		Deleted:    result.Deleted,
		FinishedAt: result.FinishedAt,
	}

	if err := insertOutbox(ctx, tx, result.OwnerID, events.TypeSyncCompleted, aggregateID, payload); err != nil {
		return persistenceErr("record sync event", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return persistenceErr("record sync event", err)
	}
	return nil
}
