// Package commands implements the inkwell CLI commands.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "inkwell",
	Short: "Permission and collaboration core for autonomous writing agents",
	Long: `inkwell decides, for every action an autonomous writing agent proposes
on a shared document, whether it is allowed, denied, budget-limited, or must
pause for human approval, and reconciles concurrent edits from agents and
human collaborators into one consistent document state.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	// Best effort; a missing .env is fine.
	_ = godotenv.Load()
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
