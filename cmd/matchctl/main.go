package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "matchctl",
		Short: "matchctl - operator tool for the skillmatch invitation service",
		Long: `matchctl talks to the skillmatch database directly. It reads the same
environment (.env, DATABASE_URL, JWT_SECRET, ...) as the API server.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(MigrateCmd())
	rootCmd.AddCommand(TokenCmd())
	rootCmd.AddCommand(UserCmd())
	rootCmd.AddCommand(AssignmentsCmd())
	rootCmd.AddCommand(TeamCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
