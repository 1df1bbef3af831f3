package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"example.com/tri/internal/domain"
	persistence "example.com/tri/internal/persistence/postgres"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect and update owner profiles",
}

var (
	profileOwner   string
	goalCalories   float64
	goalSwim       float64
	goalBike       float64
	goalRun        float64
	goalFavorite   string
	streakSwim     bool
	streakBike     bool
	streakRun      bool
)

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the owner's profile, seeding defaults if absent",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
			profile, err := persistence.NewProfileRepository(pool).Load(ctx, profileOwner)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Owner: %s\n", profile.OwnerID)
			fmt.Fprintf(out, "Onboarded: %v\n", profile.HasOnboarded)
			fmt.Fprintf(out, "Favorite: %s\n", profile.FavoriteKind)
			fmt.Fprintf(out, "Daily calories goal: %.0f\n", profile.DailyCaloriesGoal)
			fmt.Fprintf(out, "Weekly goals: swim %.0f yd, bike %.0f mi, run %.0f mi\n",
				profile.WeeklySwimGoal, profile.WeeklyBikeGoal, profile.WeeklyRunGoal)
			fmt.Fprintf(out, "Streak includes: swim=%v bike=%v run=%v\n",
				profile.StreakIncludeSwim, profile.StreakIncludeBike, profile.StreakIncludeRun)
			fmt.Fprintf(out, "Health sync: %v\n", profile.HealthSyncEnabled)
			if profile.HasActiveSubscription {
				fmt.Fprintf(out, "Subscription: %s\n", profile.SubscriptionProductID)
			}
			return nil
		})
	},
}

var profileGoalsCmd = &cobra.Command{
	Use:   "set-goals",
	Short: "Replace every goal field in one write",
	RunE: func(cmd *cobra.Command, args []string) error {
		if goalFavorite != "" && !domain.ActivityKind(goalFavorite).Valid() {
			return fmt.Errorf("favorite must be one of swim, bike, run")
		}
		return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
			repo := persistence.NewProfileRepository(pool)
			service := domain.NewProfileService(repo, nil)
			profile, err := service.UpdateGoals(ctx, profileOwner, domain.GoalsInput{
				DailyCaloriesGoal: goalCalories,
				WeeklySwimGoal:    goalSwim,
				WeeklyBikeGoal:    goalBike,
				WeeklyRunGoal:     goalRun,
				FavoriteKind:      domain.ActivityKind(goalFavorite),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Goals updated for %s (calories %.0f, swim %.0f, bike %.0f, run %.0f)\n",
				profile.OwnerID, profile.DailyCaloriesGoal, profile.WeeklySwimGoal, profile.WeeklyBikeGoal, profile.WeeklyRunGoal)
			return nil
		})
	},
}

var profileStreakCmd = &cobra.Command{
	Use:   "set-streak",
	Short: "Replace the streak discipline toggles",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
			repo := persistence.NewProfileRepository(pool)
			service := domain.NewProfileService(repo, nil)
			profile, err := service.UpdateStreakSettings(ctx, profileOwner, domain.StreakSettingsInput{
				IncludeSwim: streakSwim,
				IncludeBike: streakBike,
				IncludeRun:  streakRun,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Streak settings updated for %s: swim=%v bike=%v run=%v\n",
				profile.OwnerID, profile.StreakIncludeSwim, profile.StreakIncludeBike, profile.StreakIncludeRun)
			return nil
		})
	},
}

func init() {
	profileCmd.PersistentFlags().StringVar(&profileOwner, "owner", "", "Owner ID (required)")
	_ = profileCmd.MarkPersistentFlagRequired("owner")

	profileGoalsCmd.Flags().Float64Var(&goalCalories, "calories", 1000, "Daily calorie goal")
	profileGoalsCmd.Flags().Float64Var(&goalSwim, "swim", 5000, "Weekly swim goal in yards")
	profileGoalsCmd.Flags().Float64Var(&goalBike, "bike", 60, "Weekly bike goal in miles")
	profileGoalsCmd.Flags().Float64Var(&goalRun, "run", 12, "Weekly run goal in miles")
	profileGoalsCmd.Flags().StringVar(&goalFavorite, "favorite", "", "Favorite discipline")

	profileStreakCmd.Flags().BoolVar(&streakSwim, "swim", true, "Count swims toward the streak")
	profileStreakCmd.Flags().BoolVar(&streakBike, "bike", true, "Count rides toward the streak")
	profileStreakCmd.Flags().BoolVar(&streakRun, "run", true, "Count runs toward the streak")

	profileCmd.AddCommand(profileShowCmd, profileGoalsCmd, profileStreakCmd)
	rootCmd.AddCommand(profileCmd)
}
