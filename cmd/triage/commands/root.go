// Package commands implements the triage CLI commands using cobra.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is overridden by the release build.
var Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "Strict-priority task dispatcher",
	Long: `Triage routes tasks into per-class FIFO queues and dispatches them
in strict priority order: the lowest class number always drains first.

Submit tasks from the command line or drop JSON files into the spool
directory, then dispatch them one at a time or let 'triage run' drain
the queue on a schedule.`,
	Version: Version,
}

// Execute dispatches to the selected subcommand.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "Log at debug level")
}
