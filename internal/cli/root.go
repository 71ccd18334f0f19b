// Package cli implements the Lock In command-line interface using Cobra.
// Each subcommand maps to one reward engine operation run against the
// configured store.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lockin-app/lockin/internal/daemon"
	"github.com/lockin-app/lockin/internal/domain"
)

var jsonOutput bool

var rootCmd = &cobra.Command{
	Use:   "lockin",
	Short: "Lock In — focus sessions, XP and streaks",
	Long: `Lock In is the progression backend of the Lock In focus app.
It records focus sessions and awards XP, levels, streaks, shields, badges and quests.

Run 'lockin serve' for the HTTP API, or use the subcommands to operate on a
user directly against the configured store.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if domain.IsStoreFailure(err) {
			fmt.Fprintf(os.Stderr, "Check the store settings in %s.\n", daemon.ConfigPath())
			os.Exit(2)
		}
		os.Exit(1)
	}
}
