package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	persistence "example.com/tri/internal/persistence/postgres"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Inspect and reset health-feed sync cursors",
}

var syncOwner string

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the owner's sync cursor",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
			state, err := persistence.NewSyncStateRepository(pool).Load(ctx, syncOwner)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Owner: %s\n", state.OwnerID)
			if len(state.Anchor) == 0 {
				fmt.Fprintln(out, "Anchor: <none> (next pass is a cold sync)")
			} else {
				fmt.Fprintf(out, "Anchor: %s\n", base64.StdEncoding.EncodeToString(state.Anchor))
			}
			if state.StartDate.IsZero() {
				fmt.Fprintln(out, "Start date: <unset>")
			} else {
				fmt.Fprintf(out, "Start date: %s\n", state.StartDate.Format(time.RFC3339))
			}
			if state.LastFetchAt.IsZero() {
				fmt.Fprintln(out, "Last fetch: never")
			} else {
				fmt.Fprintf(out, "Last fetch: %s\n", state.LastFetchAt.Format(time.RFC3339))
			}
			return nil
		})
	},
}

var syncResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the owner's cursor so the next pass re-fetches from its start date",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
			if err := persistence.NewSyncStateRepository(pool).Clear(ctx, syncOwner); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cursor cleared for %s\n", syncOwner)
			return nil
		})
	},
}

func init() {
	syncCmd.PersistentFlags().StringVar(&syncOwner, "owner", "", "Owner ID (required)")
	_ = syncCmd.MarkPersistentFlagRequired("owner")

	syncCmd.AddCommand(syncStatusCmd, syncResetCmd)
	rootCmd.AddCommand(syncCmd)
}
