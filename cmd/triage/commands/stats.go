package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lucasdoreac/triage/internal/config"
	"github.com/lucasdoreac/triage/internal/stats"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue and journal statistics",
	Long: `Display the live queue population alongside lifetime journal
totals: submissions, dispatches, rejections, and how long the oldest
pending task has been waiting. Use --json for machine-readable output.`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
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

	s := stats.New(database, cfg.LabelFor)
	result, err := s.Compute(svc.Stats(), svc.Classes())
	if err != nil {
		return fmt.Errorf("compute stats: %w", err)
	}

	if asJSON {
		return printJSON(result)
	}
	return renderStatsHuman(result)
}

func renderStatsHuman(result *stats.StatsResult) error {
	fmt.Println("Triage Stats")
	fmt.Println("================================")
	fmt.Println()

	// Queue section
	fmt.Println("Queue")
	fmt.Printf("  %-14s%d task(s)\n", "Total:", result.QueueTotal)
	for _, c := range result.Classes {
		fmt.Printf("  %-14s%d\n", c.Label+":", c.Count)
	}
	fmt.Println()

	// Journal section
	fmt.Println("Journal")
	fmt.Printf("  %-14s%d\n", "Submitted:", result.Submitted)
	fmt.Printf("  %-14s%d\n", "Dispatched:", result.Dispatched)
	fmt.Printf("  %-14s%d\n", "Pending:", result.Pending)
	fmt.Printf("  %-14s%d\n", "Rejected:", result.Rejected)
	if result.FirstSubmittedAt != nil {
		fmt.Printf("  %-14s%s (%s)\n", "First:", result.FirstSubmittedAt.Format("Jan 2, 2006"), humanize.Time(*result.FirstSubmittedAt))
	}
	if result.LastSubmittedAt != nil {
		fmt.Printf("  %-14s%s (%s)\n", "Last:", result.LastSubmittedAt.Format("Jan 2, 2006"), humanize.Time(*result.LastSubmittedAt))
	}
	if result.OldestPendingAge != nil {
		fmt.Printf("  %-14s%s\n", "Oldest wait:", result.OldestPendingAge.String())
	}

	return nil
}
