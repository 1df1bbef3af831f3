package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/tri/internal/domain"
)

// ProfileRepository persists per-owner profiles.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository constructs a ProfileRepository.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

const profileColumns = `owner_id, has_onboarded, favorite_kind, daily_calories_goal, weekly_swim_goal, weekly_bike_goal, weekly_run_goal, streak_include_swim, streak_include_bike, streak_include_run, health_sync_enabled, has_active_subscription, subscription_product_id, user_email`

// Load returns the owner's profile, seeding defaults on first access.
func (r *ProfileRepository) Load(ctx context.Context, ownerID string) (domain.UserProfile, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE owner_id=$1`, ownerID)

	var p domain.UserProfile
	err := row.Scan(&p.OwnerID, &p.HasOnboarded, &p.FavoriteKind, &p.DailyCaloriesGoal, &p.WeeklySwimGoal, &p.WeeklyBikeGoal, &p.WeeklyRunGoal, &p.StreakIncludeSwim, &p.StreakIncludeBike, &p.StreakIncludeRun, &p.HealthSyncEnabled, &p.HasActiveSubscription, &p.SubscriptionProductID, &p.UserEmail)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.UserProfile{}, persistenceErr("load profile", err)
	}

	seeded := domain.DefaultProfile(ownerID)
	if err := r.Save(ctx, seeded); err != nil {
		return domain.UserProfile{}, err
	}
	return seeded, nil
}

// Save upserts the full profile in one write. Callers group related field
// changes so a settings mutation is a single statement, not one per field.
func (r *ProfileRepository) Save(ctx context.Context, profile domain.UserProfile) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO profiles (`+profileColumns+`)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
         ON CONFLICT (owner_id) DO UPDATE SET
           has_onboarded=excluded.has_onboarded,
           favorite_kind=excluded.favorite_kind,
           daily_calories_goal=excluded.daily_calories_goal,
           weekly_swim_goal=excluded.weekly_swim_goal,
           weekly_bike_goal=excluded.weekly_bike_goal,
           weekly_run_goal=excluded.weekly_run_goal,
           streak_include_swim=excluded.streak_include_swim,
           streak_include_bike=excluded.streak_include_bike,
           streak_include_run=excluded.streak_include_run,
           health_sync_enabled=excluded.health_sync_enabled,
           has_active_subscription=excluded.has_active_subscription,
           subscription_product_id=excluded.subscription_product_id,
           user_email=excluded.user_email`,
		profile.OwnerID,
		profile.HasOnboarded,
		profile.FavoriteKind,
		profile.DailyCaloriesGoal,
		profile.WeeklySwimGoal,
		profile.WeeklyBikeGoal,
		profile.WeeklyRunGoal,
		profile.StreakIncludeSwim,
		profile.StreakIncludeBike,
		profile.StreakIncludeRun,
		profile.HealthSyncEnabled,
		profile.HasActiveSubscription,
		profile.SubscriptionProductID,
		profile.UserEmail,
	)
	if err != nil {
		return persistenceErr("save profile", err)
	}
	return nil
}

// Delete removes the owner's profile; the next Load reseeds defaults.
func (r *ProfileRepository) Delete(ctx context.Context, ownerID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM profiles WHERE owner_id=$1`, ownerID); err != nil {
		return persistenceErr("delete profile", err)
	}
	return nil
}
