package commands

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucasdoreac/triage/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Write a commented starter configuration.

Without flags this drops a triage.yaml into the current directory.
With --global it writes ~/.config/triage/config.yaml instead, which
every project inherits unless its own triage.yaml overrides it.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().Bool("global", false, "Write the global config instead of a project one")
	initCmd.Flags().BoolP("force", "f", false, "Replace an existing config without asking")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	global, _ := cmd.Flags().GetBool("global")
	force, _ := cmd.Flags().GetBool("force")

	path := filepath.Join(".", config.ProjectConfigName)
	if global {
		path = config.GlobalConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !force {
		ok, err := confirmOverwrite(path)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Kept the existing config.")
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmpl := projectTemplate
	if global {
		tmpl = globalTemplate
	}
	if err := os.WriteFile(path, []byte(tmpl), 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Wrote %s\n", path)
	fmt.Println()
	fmt.Println("Next:")
	for i, step := range nextSteps(global) {
		fmt.Printf("  %d. %s\n", i+1, step)
	}
	return nil
}

// confirmOverwrite asks on stdin before clobbering an existing config.
func confirmOverwrite(path string) (bool, error) {
	fmt.Printf("%s already exists. Overwrite? [y/N] ", path)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func nextSteps(global bool) []string {
	if global {
		return []string{
			"Adjust the classes and spool directory to taste",
			`Queue something: triage submit "my task" --class 1`,
			"Watch it drain: triage run --watch",
		}
	}
	return []string{
		"Tune the classes for this project",
		`Queue something: triage submit "my task" --class 1`,
		"Check the queue: triage list",
	}
}

const globalTemplate = `# triage global configuration
# Lives at ~/.config/triage/config.yaml. A project-level triage.yaml
# overrides anything set here.

# Priority classes. Lower numbers drain first; labels are display only.
classes:
  - class: 1
    label: High
  - class: 2
    label: Medium
  - class: 3
    label: Low

# How often 'triage run' drains the queue. Pick cron or interval, not both.
schedule:
  interval: 1m
  # cron: "*/15 * * * *"
  # window:                # only drain inside these hours
  #   start: "09:00"
  #   end: "18:00"
  #   timezone: "America/Sao_Paulo"

# Where the journal database lives.
storage:
  path: ~/.local/share/triage/triage.db

# Directory watched for dropped-in task files. Each file is JSON:
#   {"name": "...", "description": "...", "class": 2}
spool:
  dir: ~/.local/share/triage/spool

logging:
  level: info              # debug | info | warn | error
  path: ~/.local/share/triage/logs
  format: json             # json | text

display:
  preview_length: 50       # description column width in listings
`

const projectTemplate = `# triage project configuration
# Lives at the project root as triage.yaml and overrides the global
# config at ~/.config/triage/config.yaml.

# Priority classes for this project. Lower numbers drain first.
classes:
  - class: 1
    label: High
  - class: 2
    label: Medium
  - class: 3
    label: Low

# Uncomment to drain on a project-specific cadence.
# schedule:
#   interval: 5m

# Uncomment to keep this project's queue in its own journal.
# storage:
#   path: .triage/triage.db

# Uncomment for a project-local spool directory.
# spool:
#   dir: .triage/spool
`
