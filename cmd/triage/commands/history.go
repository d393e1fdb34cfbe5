package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lucasdoreac/triage/internal/config"
	"github.com/lucasdoreac/triage/internal/db"
	"github.com/lucasdoreac/triage/internal/journal"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent journal entries",
	Long: `Display recent journal entries, newest first. Every submission is
journaled, including rejected ones, so the history covers tasks that
never reached a queue.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Max entries to show (0 = all)")
	historyCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	database, err := db.Open(cfg.StoragePath())
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() { _ = database.Close() }()

	entries, err := journal.New(database).Recent(limit)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}

	if asJSON {
		if entries == nil {
			entries = []journal.Entry{}
		}
		return printJSON(entries)
	}

	if len(entries) == 0 {
		fmt.Println("No journal entries found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STATUS\tTASK\tCLASS\tSUBMITTED\tSOURCE")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			e.Status,
			e.Task.Name,
			e.Task.Class,
			humanize.Time(e.SubmittedAt),
			e.Source,
		)
	}
	_ = w.Flush()
	fmt.Printf("\n%d entry(s)\n", len(entries))
	return nil
}
