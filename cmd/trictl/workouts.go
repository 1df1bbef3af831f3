package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"example.com/tri/internal/domain"
	persistence "example.com/tri/internal/persistence/postgres"
)

var workoutsCmd = &cobra.Command{
	Use:   "workouts",
	Short: "List, add, and hide workout records",
}

var (
	workoutsOwner    string
	workoutsAll      bool
	addKind          string
	addDistance      float64
	addDuration      float64
	addCalories      float64
	addAt            string
	hideID           string
)

var workoutsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List an owner's workouts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
			repo := persistence.NewRepository(pool)
			var records []domain.WorkoutRecord
			var err error
			if workoutsAll {
				records, err = repo.ListAll(ctx, workoutsOwner)
			} else {
				records, err = repo.ListVisible(ctx, workoutsOwner)
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "ID\tKIND\tDIST\tUNIT\tKCAL\tSOURCE\tWHEN\tHIDDEN")
			for _, r := range records {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%.1f\t%s\t%.0f\t%s\t%s\t%v\n",
					r.ID, r.Kind, r.Distance, r.Kind.UnitLabel(), r.Calories, r.Source,
					r.OccurredAt.Format(time.RFC3339), r.IsHidden)
			}
			return nil
		})
	},
}

var workoutsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Insert a manual workout record",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := domain.ActivityKind(addKind)
		if !kind.Valid() {
			return fmt.Errorf("kind must be one of swim, bike, run")
		}
		occurredAt, err := parseTimeArg("at", addAt)
		if err != nil {
			return err
		}

		record := domain.WorkoutRecord{
			ID:              uuid.NewString(),
			OwnerID:         workoutsOwner,
			Source:          domain.SourceManual,
			Kind:            kind,
			Distance:        addDistance,
			DurationSeconds: addDuration,
			Calories:        addCalories,
			OccurredAt:      occurredAt,
			CreatedAt:       time.Now().UTC(),
		}

		return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
			if err := persistence.NewRepository(pool).InsertManual(ctx, record); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s (%.1f %s)\n", record.Kind, record.ID, record.Distance, record.Kind.UnitLabel())
			return nil
		})
	},
}

var workoutsHideCmd = &cobra.Command{
	Use:   "hide",
	Short: "Hide a workout (deletes manual records, tombstones feed records)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
			if err := persistence.NewRepository(pool).Hide(ctx, hideID, workoutsOwner); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Hidden %s\n", hideID)
			return nil
		})
	},
}

func init() {
	workoutsCmd.PersistentFlags().StringVar(&workoutsOwner, "owner", "", "Owner ID (required)")
	_ = workoutsCmd.MarkPersistentFlagRequired("owner")

	workoutsListCmd.Flags().BoolVar(&workoutsAll, "all", false, "Include hidden tombstones")

	workoutsAddCmd.Flags().StringVar(&addKind, "kind", "", "swim, bike, or run")
	workoutsAddCmd.Flags().Float64Var(&addDistance, "distance", 0, "Distance (yd for swim, mi otherwise)")
	workoutsAddCmd.Flags().Float64Var(&addDuration, "duration", 0, "Duration in seconds")
	workoutsAddCmd.Flags().Float64Var(&addCalories, "calories", 0, "Active calories")
	workoutsAddCmd.Flags().StringVar(&addAt, "at", "now", "When the workout happened (RFC3339 or YYYY-MM-DD)")
	_ = workoutsAddCmd.MarkFlagRequired("kind")

	workoutsHideCmd.Flags().StringVar(&hideID, "id", "", "Workout ID (required)")
	_ = workoutsHideCmd.MarkFlagRequired("id")

	workoutsCmd.AddCommand(workoutsListCmd, workoutsAddCmd, workoutsHideCmd)
	rootCmd.AddCommand(workoutsCmd)
}
