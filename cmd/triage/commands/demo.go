package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucasdoreac/triage/internal/config"
	"github.com/lucasdoreac/triage/internal/dispatch"
	"github.com/lucasdoreac/triage/internal/journal"
	"github.com/lucasdoreac/triage/internal/task"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Walk through the dispatcher with sample tasks",
	Long: `Run a self-contained demonstration on a fresh in-memory queue:
submit eight sample tasks, show statistics and the full listing,
dispatch the five most urgent ones, and show what remains.

The demo never touches the journal database or your configuration.`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	svc, err := dispatch.New([]int{task.ClassHigh, task.ClassMedium, task.ClassLow})
	if err != nil {
		return err
	}

	samples := []task.Task{
		task.New("Fix critical bug", "The login system is failing for some users", task.ClassHigh),
		task.New("Update documentation", "Update the API documentation with the new endpoints", task.ClassMedium),
		task.New("Optimize SQL query", "The reports query is far too slow", task.ClassHigh),
		task.New("Add new icons", "Add the icons for the new theme", task.ClassLow),
		task.New("Review pull requests", "Review the team's pending PRs", task.ClassMedium),
		task.New("Fix typos", "Fix typos across the interface", task.ClassLow),
		task.New("Investigate security flaw", "Check a reported vulnerability", task.ClassHigh),
		task.New("Implement dark mode", "Add dark theme support", task.ClassMedium),
	}

	fmt.Println("Adding tasks...")
	fmt.Println()
	for _, t := range samples {
		if err := svc.Submit(t, journal.SourceDemo); err != nil {
			return err
		}
		fmt.Printf("Task %q added with priority %d (%s)\n", t.Name, t.Class, task.Label(t.Class))
	}

	printDemoStats(svc, "Statistics:", "Total tasks")
	fmt.Println()
	renderList(svc.Snapshot(), task.Label, config.DefaultPreviewLength)

	if t, ok := svc.Peek(); ok {
		fmt.Printf("\nNext up: %s\n", t.Name)
	}

	fmt.Println("\nProcessing tasks in priority order:")
	for i := 0; i < 5; i++ {
		t, ok, err := svc.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		fmt.Printf("\nExecuting: %s\n", t)
		fmt.Println(strings.Repeat("-", 40))
	}

	printDemoStats(svc, "Updated statistics:", "Tasks remaining")
	fmt.Println()
	renderList(svc.Snapshot(), task.Label, config.DefaultPreviewLength)
	return nil
}

func printDemoStats(svc *dispatch.Service, header, totalLabel string) {
	qs := svc.Stats()
	fmt.Println()
	fmt.Println(header)
	fmt.Printf("  %s: %d\n", totalLabel, qs.Total)
	for _, c := range svc.Classes() {
		fmt.Printf("  %s: %d\n", task.Label(c), qs.PerClass[c])
	}
}
