package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucasdoreac/triage/internal/config"
	"github.com/lucasdoreac/triage/internal/queue"
	"github.com/lucasdoreac/triage/internal/task"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all queued tasks by class",
	Long: `List every queued task, grouped by priority class in ascending
order. Within a class, tasks print in the order they will dispatch.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
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

	snapshot := svc.Snapshot()

	if asJSON {
		return printListJSON(snapshot, cfg.LabelFor)
	}
	renderList(snapshot, cfg.LabelFor, cfg.Display.PreviewLength)
	return nil
}

func renderList(snapshot []queue.ClassSnapshot, labelFor func(int) string, previewLen int) {
	fmt.Println("Triage Queues")
	fmt.Println("================================")

	total := 0
	for _, cs := range snapshot {
		fmt.Println()
		fmt.Printf("%s (%d)\n", labelFor(cs.Class), len(cs.Tasks))
		if len(cs.Tasks) == 0 {
			fmt.Println("  (empty)")
			continue
		}
		for i, t := range cs.Tasks {
			line := fmt.Sprintf("  %d. %s", i+1, t.Name)
			if t.Description != "" {
				line += " - " + preview(t.Description, previewLen)
			}
			fmt.Println(line)
		}
		total += len(cs.Tasks)
	}

	fmt.Println()
	fmt.Printf("Total: %d task(s)\n", total)
}

type listEntry struct {
	Class int         `json:"class"`
	Label string      `json:"label"`
	Count int         `json:"count"`
	Tasks []task.Task `json:"tasks"`
}

func printListJSON(snapshot []queue.ClassSnapshot, labelFor func(int) string) error {
	entries := make([]listEntry, len(snapshot))
	for i, cs := range snapshot {
		entries[i] = listEntry{
			Class: cs.Class,
			Label: labelFor(cs.Class),
			Count: len(cs.Tasks),
			Tasks: cs.Tasks,
		}
	}
	return printJSON(entries)
}
