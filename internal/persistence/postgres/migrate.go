package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations are applied in order at startup; each entry runs once, tracked
// by version in schema_migrations.
var migrations = []struct {
	version string
	sql     string
}{
	{
		version: "001_workouts",
		sql: `CREATE TABLE IF NOT EXISTS workouts (
            workout_id UUID PRIMARY KEY,
            owner_id TEXT NOT NULL,
            source TEXT NOT NULL,
            source_identifier TEXT,
            activity_kind TEXT NOT NULL,
            distance DOUBLE PRECISION NOT NULL DEFAULT 0,
            duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
            calories DOUBLE PRECISION NOT NULL DEFAULT 0,
            occurred_at TIMESTAMPTZ NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            is_hidden BOOLEAN NOT NULL DEFAULT FALSE
        );
        CREATE UNIQUE INDEX IF NOT EXISTS workouts_owner_source_identifier
            ON workouts (owner_id, source_identifier)
            WHERE source_identifier IS NOT NULL;
        CREATE INDEX IF NOT EXISTS workouts_owner_occurred
            ON workouts (owner_id, occurred_at DESC);`,
	},
	{
		version: "002_sync_state",
		sql: `CREATE TABLE IF NOT EXISTS sync_state (
            owner_id TEXT PRIMARY KEY,
            anchor BYTEA,
            start_date TIMESTAMPTZ,
            last_fetch_at TIMESTAMPTZ
        );`,
	},
	{
		version: "003_profiles",
		sql: `CREATE TABLE IF NOT EXISTS profiles (
            owner_id TEXT PRIMARY KEY,
            has_onboarded BOOLEAN NOT NULL DEFAULT FALSE,
            favorite_kind TEXT NOT NULL DEFAULT 'swim',
            daily_calories_goal DOUBLE PRECISION NOT NULL DEFAULT 1000,
            weekly_swim_goal DOUBLE PRECISION NOT NULL DEFAULT 5000,
            weekly_bike_goal DOUBLE PRECISION NOT NULL DEFAULT 60,
            weekly_run_goal DOUBLE PRECISION NOT NULL DEFAULT 12,
            streak_include_swim BOOLEAN NOT NULL DEFAULT TRUE,
            streak_include_bike BOOLEAN NOT NULL DEFAULT TRUE,
            streak_include_run BOOLEAN NOT NULL DEFAULT TRUE,
            health_sync_enabled BOOLEAN NOT NULL DEFAULT FALSE,
            has_active_subscription BOOLEAN NOT NULL DEFAULT FALSE,
            subscription_product_id TEXT NOT NULL DEFAULT '',
            user_email TEXT NOT NULL DEFAULT ''
        );`,
	},
	{
		version: "004_outbox",
		sql: `CREATE TABLE IF NOT EXISTS outbox (
            event_id BIGSERIAL PRIMARY KEY,
            owner_id TEXT NOT NULL,
            aggregate_type TEXT NOT NULL,
            aggregate_id TEXT NOT NULL,
            event_type TEXT NOT NULL,
            topic TEXT NOT NULL,
            schema_subject TEXT NOT NULL,
            partition_key TEXT NOT NULL,
            payload JSONB NOT NULL,
            dedupe_key TEXT NOT NULL UNIQUE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            claimed_at TIMESTAMPTZ,
            published_at TIMESTAMPTZ
        );
        CREATE INDEX IF NOT EXISTS outbox_unpublished
            ON outbox (event_id) WHERE published_at IS NULL;`,
	},
	{
		version: "005_outbox_dlq",
		sql: `CREATE TABLE IF NOT EXISTS outbox_dlq (
            dlq_id BIGSERIAL PRIMARY KEY,
            event_id BIGINT NOT NULL,
            owner_id TEXT NOT NULL,
            aggregate_type TEXT NOT NULL,
            aggregate_id TEXT NOT NULL,
            event_type TEXT NOT NULL,
            topic TEXT NOT NULL,
            schema_subject TEXT NOT NULL,
            partition_key TEXT NOT NULL,
            payload JSONB NOT NULL,
            failure_reason TEXT NOT NULL,
            retry_count INT NOT NULL DEFAULT 0,
            next_retry_at TIMESTAMPTZ,
            quarantined BOOLEAN NOT NULL DEFAULT FALSE,
            failed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE UNIQUE INDEX IF NOT EXISTS outbox_dlq_event ON outbox_dlq (event_id);`,
	},
}

// Migrate applies any pending schema migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
        version TEXT PRIMARY KEY,
        applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var exists bool
		if err := pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, m.version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", m.version, err)
		}
		if exists {
			continue
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.version, err)
		}
		if _, err := tx.Exec(ctx, m.sql); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("apply migration %s: %w", m.version, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.version); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("record migration %s: %w", m.version, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.version, err)
		}
	}
	return nil
}
