package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/tri/internal/domain"
)

// SyncStateRepository persists per-owner feed cursors.
type SyncStateRepository struct {
	pool *pgxpool.Pool
}

// NewSyncStateRepository constructs a SyncStateRepository.
func NewSyncStateRepository(pool *pgxpool.Pool) *SyncStateRepository {
	return &SyncStateRepository{pool: pool}
}

// Load returns the owner's cursor state, creating an empty row if absent.
func (r *SyncStateRepository) Load(ctx context.Context, ownerID string) (domain.SyncCursorState, error) {
	state := domain.SyncCursorState{OwnerID: ownerID}

	row := r.pool.QueryRow(ctx,
		`SELECT anchor, start_date, last_fetch_at FROM sync_state WHERE owner_id=$1`, ownerID)

	var anchor []byte
	var startDate, lastFetchAt *time.Time
	err := row.Scan(&anchor, &startDate, &lastFetchAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, err := r.pool.Exec(ctx,
				`INSERT INTO sync_state (owner_id) VALUES ($1) ON CONFLICT (owner_id) DO NOTHING`, ownerID); err != nil {
				return domain.SyncCursorState{}, persistenceErr("create sync state", err)
			}
			return state, nil
		}
		return domain.SyncCursorState{}, persistenceErr("load sync state", err)
	}

	state.Anchor = anchor
	if startDate != nil {
		state.StartDate = *startDate
	}
	if lastFetchAt != nil {
		state.LastFetchAt = *lastFetchAt
	}
	return state, nil
}

// Save upserts the owner's cursor state in one write.
func (r *SyncStateRepository) Save(ctx context.Context, state domain.SyncCursorState) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sync_state (owner_id, anchor, start_date, last_fetch_at)
         VALUES ($1,$2,$3,$4)
         ON CONFLICT (owner_id) DO UPDATE SET anchor=excluded.anchor, start_date=excluded.start_date, last_fetch_at=excluded.last_fetch_at`,
		state.OwnerID,
		state.Anchor,
		nullIfZeroTime(state.StartDate),
		nullIfZeroTime(state.LastFetchAt),
	)
	if err != nil {
		return persistenceErr("save sync state", err)
	}
	return nil
}

// Clear removes the owner's cursor entirely (account deletion).
func (r *SyncStateRepository) Clear(ctx context.Context, ownerID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM sync_state WHERE owner_id=$1`, ownerID); err != nil {
		return persistenceErr("clear sync state", err)
	}
	return nil
}

func nullIfZeroTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
