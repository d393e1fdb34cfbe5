package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucasdoreac/triage/internal/config"
	"github.com/lucasdoreac/triage/internal/task"
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Dispatch the most urgent task",
	Long: `Remove and print the most urgent pending task.

Classes are scanned in ascending order and the head of the first
non-empty queue is dispatched. Within a class, tasks leave in the
order they were submitted.`,
	RunE: runNext,
}

func init() {
	nextCmd.Flags().IntP("count", "n", 1, "Dispatch up to N tasks")
	nextCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(nextCmd)
}

func runNext(cmd *cobra.Command, args []string) error {
	count, _ := cmd.Flags().GetInt("count")
	asJSON, _ := cmd.Flags().GetBool("json")

	if count < 1 {
		return fmt.Errorf("--count must be at least 1")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	svc, database, err := openDispatch(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	var dispatched []task.Task
	var nextErr error
	for i := 0; i < count; i++ {
		t, ok, err := svc.Next()
		if !ok {
			break
		}
		dispatched = append(dispatched, t)
		if err != nil {
			// The task left the queue but the journal missed it; show
			// what was dispatched, then surface the failure.
			nextErr = err
			break
		}
	}

	if asJSON {
		if dispatched == nil {
			dispatched = []task.Task{}
		}
		if err := printJSON(dispatched); err != nil {
			return err
		}
		return nextErr
	}

	if len(dispatched) == 0 {
		fmt.Println("No pending tasks.")
		return nil
	}
	for i, t := range dispatched {
		if i > 0 {
			fmt.Println()
		}
		fmt.Println(t)
	}
	return nextErr
}
