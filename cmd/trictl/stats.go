package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"example.com/tri/internal/aggregate"
	"example.com/tri/internal/domain"
	persistence "example.com/tri/internal/persistence/postgres"
)

var (
	statsOwner string
)

var streakCmd = &cobra.Command{
	Use:   "streak",
	Short: "Show the owner's current and longest weekly streaks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
			records, profile, err := loadOwner(ctx, pool, statsOwner)
			if err != nil {
				return err
			}
			current, longest := aggregate.NewEngine().Streak(records, profile, time.Now().UTC())
			fmt.Fprintf(cmd.OutOrStdout(), "Current streak: %d weeks\nLongest streak: %d weeks\n", current, longest)
			return nil
		})
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show today's calories and the week per discipline",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
			records, profile, err := loadOwner(ctx, pool, statsOwner)
			if err != nil {
				return err
			}

			engine := aggregate.NewEngine()
			now := time.Now().UTC()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Calories today: %.0f / %.0f\n", engine.TotalCalories(records, now), profile.DailyCaloriesGoal)
			for _, kind := range domain.Kinds {
				fmt.Fprintf(out, "%s: %.1f / %.1f %s (%.0f%%)\n",
					kind, engine.TotalDistance(records, kind, now), profile.WeeklyGoal(kind),
					kind.UnitLabel(), engine.Progress(records, profile, kind, now)*100)
			}
			if engine.WeekCompleted(records, profile, engine.WeekStartOf(now)) {
				fmt.Fprintln(out, "Week: completed")
			} else {
				fmt.Fprintln(out, "Week: in progress")
			}
			return nil
		})
	},
}

func loadOwner(ctx context.Context, pool *pgxpool.Pool, ownerID string) ([]domain.WorkoutRecord, domain.UserProfile, error) {
	records, err := persistence.NewRepository(pool).ListVisible(ctx, ownerID)
	if err != nil {
		return nil, domain.UserProfile{}, err
	}
	profile, err := persistence.NewProfileRepository(pool).Load(ctx, ownerID)
	if err != nil {
		return nil, domain.UserProfile{}, err
	}
	return records, profile, nil
}

func init() {
	for _, cmd := range []*cobra.Command{streakCmd, summaryCmd} {
		cmd.Flags().StringVar(&statsOwner, "owner", "", "Owner ID (required)")
		_ = cmd.MarkFlagRequired("owner")
		rootCmd.AddCommand(cmd)
	}
}
