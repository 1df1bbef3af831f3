// trictl is an operator CLI for the Tri backend: inspect workouts, profiles,
// cursors, and streaks straight from the database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trictl",
	Short: "trictl inspects and administers the Tri backend",
	Long:  "trictl talks directly to the Tri Postgres store for operational tasks: listing and fixing workout records, inspecting sync cursors, and checking goal progress.",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
