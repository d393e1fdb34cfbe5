package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucasdoreac/triage/internal/config"
	"github.com/lucasdoreac/triage/internal/journal"
	"github.com/lucasdoreac/triage/internal/queue"
	"github.com/lucasdoreac/triage/internal/task"
)

var submitCmd = &cobra.Command{
	Use:   "submit <name>",
	Short: "Add a task to the queue",
	Long: `Submit a task to the back of its priority class queue.

The class must be one of the configured priority classes; submissions
carrying an unknown class are rejected and recorded in the journal.`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringP("desc", "d", "", "Task description")
	submitCmd.Flags().IntP("class", "c", task.ClassMedium, "Priority class (lowest dispatches first)")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	name := args[0]
	desc, _ := cmd.Flags().GetString("desc")
	class, _ := cmd.Flags().GetInt("class")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	svc, database, err := openDispatch(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	if err := svc.Submit(task.New(name, desc, class), journal.SourceCLI); err != nil {
		if errors.Is(err, queue.ErrUnknownClass) {
			return fmt.Errorf("invalid priority class (%d)\nValid classes: %s", class, classList(svc.Classes()))
		}
		return fmt.Errorf("submit: %w", err)
	}

	fmt.Printf("Task %q added with priority %d (%s)\n", name, class, cfg.LabelFor(class))
	return nil
}

// classList renders configured classes as "1, 2, 3".
func classList(classes []int) string {
	parts := make([]string, len(classes))
	for i, c := range classes {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ", ")
}
