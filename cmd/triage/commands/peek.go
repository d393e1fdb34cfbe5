package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucasdoreac/triage/internal/config"
)

var peekCmd = &cobra.Command{
	Use:   "peek",
	Short: "Show the most urgent task without dispatching it",
	Long: `Print the task 'triage next' would dispatch, leaving the queue
untouched. Peeking any number of times changes nothing.`,
	RunE: runPeek,
}

func init() {
	peekCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(peekCmd)
}

func runPeek(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	svc, database, err := openDispatch(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	t, ok := svc.Peek()
	if asJSON {
		if !ok {
			return printJSON(nil)
		}
		return printJSON(t)
	}

	if !ok {
		fmt.Println("No pending tasks.")
		return nil
	}
	fmt.Println(t)
	return nil
}
