// Package cli implements the Lumen command-line interface using Cobra.
// Each subcommand maps to one progression operation (log, reflect,
// stats, badges, etc.).
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lumen",
	Short: "Lumen — progression engine for mindful journaling",
	Long: `Lumen tracks your journaling practice locally.
Log moments, complete evening reflections, and watch your streaks,
levels, and badges grow. All data stays on your machine.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// userID is the persistent --user flag shared by all subcommands.
var userID string

func init() {
	rootCmd.PersistentFlags().StringVar(&userID, "user", "local", "User the command acts on")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
