package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/lucasdoreac/triage/internal/config"
	"github.com/lucasdoreac/triage/internal/db"
	"github.com/lucasdoreac/triage/internal/dispatch"
	"github.com/lucasdoreac/triage/internal/journal"
	"github.com/lucasdoreac/triage/internal/logging"
	"github.com/lucasdoreac/triage/internal/queue"
	"github.com/lucasdoreac/triage/internal/scheduler"
	"github.com/lucasdoreac/triage/internal/spool"
	"github.com/lucasdoreac/triage/internal/task"
	"github.com/lucasdoreac/triage/internal/ui"
)

// isInteractive reports whether stdout is attached to a terminal. Tests swap
// this out to force either path.
var isInteractive = func() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the dispatch loop",
	Long: `Run the foreground dispatch loop: watch the spool directory for
incoming task files and drain the queue on the configured schedule.

Without a schedule the loop only ingests spool files; drain the queue
with 'triage next' or configure schedule.cron or schedule.interval.

Flags:
  --once       Ingest the spool, drain everything pending, and exit.
  --watch      Attach the live queue dashboard (requires a terminal).
  --no-color   Render the dashboard without ANSI colors.

Examples:
  triage run                 # Spool intake + scheduled drain
  triage run --watch         # Same, with the live dashboard
  triage run --once          # One drain pass, then exit`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().Bool("once", false, "Drain everything pending and exit")
	runCmd.Flags().BoolP("watch", "w", false, "Attach the live queue dashboard")
	runCmd.Flags().Bool("no-color", false, "Render the dashboard without ANSI colors")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	once, _ := cmd.Flags().GetBool("once")
	watch, _ := cmd.Flags().GetBool("watch")

	if once && watch {
		return fmt.Errorf("--once and --watch are mutually exclusive")
	}
	if watch && !isInteractive() {
		return fmt.Errorf("--watch requires a terminal")
	}

	noColor, _ := cmd.Flags().GetBool("no-color")
	if noColor || os.Getenv("NO_COLOR") != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Logging.Level = "debug"
	}

	if err := initLogging(cfg); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	log := logging.Component("run")

	database, err := db.Open(cfg.StoragePath())
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() { _ = database.Close() }()

	opts := []dispatch.Option{dispatch.WithJournal(journal.New(database))}
	var events chan queue.Event
	if watch {
		// Queue events feed the dashboard. The channel is drained by a
		// forwarding goroutine once the dashboard is up; a full buffer
		// drops events rather than blocking a submission.
		events = make(chan queue.Event, 64)
		opts = append(opts, dispatch.WithEventHandler(func(e queue.Event) {
			select {
			case events <- e:
			default:
			}
		}))
	}

	svc, err := dispatch.New(cfg.ClassNumbers(), opts...)
	if err != nil {
		return fmt.Errorf("init dispatcher: %w", err)
	}

	watcher := newSpoolWatcher(cfg, svc)

	if once {
		return runOnce(cfg, svc, watcher, log)
	}

	// The watch loop runs until SIGINT/SIGTERM arrives or the dashboard quits.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if ingested, err := watcher.Scan(); err != nil {
		log.Warnf("initial spool scan: %v", err)
	} else if ingested > 0 {
		log.Infof("ingested %d spool task(s)", ingested)
	}
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("start spool watcher: %w", err)
	}
	defer func() { _ = watcher.Stop() }()

	var sched *scheduler.Scheduler
	if cfg.Schedule.Cron != "" || cfg.Schedule.Interval != "" {
		sched, err = scheduler.NewFromConfig(&cfg.Schedule)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
	} else {
		log.Warn("no schedule configured; spool intake only")
	}

	var program *tea.Program
	if watch {
		model := ui.New(svc)
		model.SetLabeler(cfg.LabelFor)
		model.SetPreviewLength(cfg.Display.PreviewLength)
		model.SetStatus(ui.StatusWatching)
		if sched != nil {
			model.SetNextRunFunc(sched.NextRun)
		}

		program, err = model.RunWithProgram()
		if err != nil {
			return fmt.Errorf("start dashboard: %w", err)
		}

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case e := <-events:
					program.Send(ui.EventMsg{Event: e})
				}
			}
		}()
	}

	drainFn := func(t task.Task) error {
		fmt.Printf("dispatched: %s (%s)\n", t.Name, cfg.LabelFor(t.Class))
		return nil
	}
	if watch {
		// The dashboard owns the terminal; dispatches show up in its
		// event feed instead.
		drainFn = nil
	}

	if sched != nil {
		sched.AddJob(func(context.Context) error {
			if program != nil {
				program.Send(ui.StatusMsg{Status: ui.StatusDraining})
				defer program.Send(ui.StatusMsg{Status: ui.StatusWatching})
			}
			count, err := svc.Drain(drainFn)
			if count > 0 {
				log.Infof("drained %d task(s)", count)
			}
			return err
		})
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	go func() {
		select {
		case sig := <-sigCh:
			log.Infof("received signal %v, shutting down", sig)
			if program != nil {
				program.Quit()
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	if sched != nil {
		log.InfoFields("run loop started", map[string]any{
			"next_run": sched.NextRun().Format(time.RFC3339),
			"spool":    watcher.Dir(),
		})
	} else {
		log.InfoFields("run loop started", map[string]any{"spool": watcher.Dir()})
	}

	if watch {
		program.Wait()
		cancel()
	} else {
		fmt.Println("triage run loop started (Ctrl+C to stop)")
		if sched != nil {
			fmt.Printf("Next drain: %s\n", sched.NextRun().Format("15:04:05"))
		}
		fmt.Printf("Spool: %s\n", watcher.Dir())
		<-ctx.Done()
	}

	if sched != nil {
		if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrNotRunning) {
			log.Errorf("stop scheduler: %v", err)
		}
	}

	log.Info("run loop stopped")
	return nil
}

// newSpoolWatcher wires the spool directory to the dispatcher.
func newSpoolWatcher(cfg *config.Config, svc *dispatch.Service) *spool.Watcher {
	return spool.New(cfg.SpoolDir(), func(t task.Task) error {
		return svc.Submit(t, journal.SourceSpool)
	})
}

// runOnce ingests whatever is sitting in the spool, drains the queue in
// priority order, and exits.
func runOnce(cfg *config.Config, svc *dispatch.Service, watcher *spool.Watcher, log *logging.Logger) error {
	ingested, err := watcher.Scan()
	if err != nil {
		return fmt.Errorf("scan spool: %w", err)
	}
	if ingested > 0 {
		log.Infof("ingested %d spool task(s)", ingested)
	}

	count, err := svc.Drain(func(t task.Task) error {
		fmt.Printf("dispatched: %s (%s)\n", t.Name, cfg.LabelFor(t.Class))
		return nil
	})
	if err != nil {
		return fmt.Errorf("drain: %w", err)
	}

	fmt.Printf("Drained %d task(s).\n", count)
	return nil
}
