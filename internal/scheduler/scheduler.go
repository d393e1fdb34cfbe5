// Package scheduler triggers jobs on a cron expression or fixed interval,
// optionally restricted to a time-of-day window.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lucasdoreac/triage/internal/config"
	"github.com/lucasdoreac/triage/internal/logging"
)

// Scheduler state errors.
var (
	ErrNoSchedule     = errors.New("no schedule configured")
	ErrAlreadyRunning = errors.New("scheduler already running")
	ErrNotRunning     = errors.New("scheduler not running")
)

// Job is a unit of scheduled work.
type Job func(ctx context.Context) error

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (a single-digit hour is accepted).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	if hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("hour out of range in %q", s)
	}
	if minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("minute out of range in %q", s)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns the offset from midnight in minutes.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// Window is a daily time window. End is exclusive; a window whose end
// precedes its start wraps past midnight.
type Window struct {
	Start    TimeOfDay
	End      TimeOfDay
	Location *time.Location
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	loc := w.Location
	if loc == nil {
		loc = time.Local
	}
	local := t.In(loc)
	m := local.Hour()*60 + local.Minute()

	start, end := w.Start.Minutes(), w.End.Minutes()
	if start == end {
		return true
	}
	if start < end {
		return m >= start && m < end
	}
	// Overnight wrap
	return m >= start || m < end
}

// Scheduler runs registered jobs whenever its schedule fires. Cron and
// interval are alternatives; when both are set the cron expression wins.
type Scheduler struct {
	mu       sync.Mutex
	cronExpr string
	schedule cron.Schedule
	interval time.Duration
	window   *Window
	jobs     []Job
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	nextRun  time.Time
	logger   *logging.Logger
}

// New creates an unconfigured scheduler.
func New() *Scheduler {
	return &Scheduler{
		logger: logging.Component("scheduler"),
	}
}

// NewFromConfig builds a scheduler from configuration. At least one of cron
// or interval must be set.
func NewFromConfig(cfg *config.ScheduleConfig) (*Scheduler, error) {
	if cfg.Cron == "" && cfg.Interval == "" {
		return nil, ErrNoSchedule
	}

	s := New()
	if cfg.Cron != "" {
		if err := s.SetCron(cfg.Cron); err != nil {
			return nil, err
		}
	}
	if cfg.Interval != "" {
		d, err := time.ParseDuration(cfg.Interval)
		if err != nil {
			return nil, fmt.Errorf("parse interval %q: %w", cfg.Interval, err)
		}
		if err := s.SetInterval(d); err != nil {
			return nil, err
		}
	}
	if cfg.Window != nil {
		if err := s.SetWindow(cfg.Window); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// SetCron sets the cron expression (standard 5-field syntax).
func (s *Scheduler) SetCron(expr string) error {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("parse cron %q: %w", expr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cronExpr = expr
	s.schedule = sched
	return nil
}

// SetInterval sets a fixed run interval.
func (s *Scheduler) SetInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("interval must be positive, got %v", d)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = d
	return nil
}

// SetWindow restricts job execution to a time-of-day window.
func (s *Scheduler) SetWindow(wc *config.WindowConfig) error {
	w, err := windowFromConfig(wc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = w
	return nil
}

func windowFromConfig(wc *config.WindowConfig) (*Window, error) {
	start, err := ParseTimeOfDay(wc.Start)
	if err != nil {
		return nil, fmt.Errorf("window start: %w", err)
	}
	end, err := ParseTimeOfDay(wc.End)
	if err != nil {
		return nil, fmt.Errorf("window end: %w", err)
	}

	loc := time.Local
	if wc.Timezone != "" {
		loc, err = time.LoadLocation(wc.Timezone)
		if err != nil {
			return nil, fmt.Errorf("window timezone: %w", err)
		}
	}
	return &Window{Start: start, End: end, Location: loc}, nil
}

// AddJob registers a job to run on every schedule fire.
func (s *Scheduler) AddJob(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
}

// Start launches the schedule loop. It returns immediately; jobs run on a
// background goroutine until Stop or context cancellation.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	if s.schedule == nil && s.interval <= 0 {
		s.mu.Unlock()
		return ErrNoSchedule
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	s.computeNextRunLocked(time.Now())
	done := s.done
	s.mu.Unlock()

	go s.loop(runCtx, done)
	return nil
}

// Stop halts the schedule loop and waits for it to exit.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	<-done
	return nil
}

// IsRunning reports whether the schedule loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns when the next fire is due. Zero before Start.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRun
}

// IsInWindow reports whether t is inside the configured window. With no
// window configured every time qualifies.
func (s *Scheduler) IsInWindow(t time.Time) bool {
	s.mu.Lock()
	w := s.window
	s.mu.Unlock()

	if w == nil {
		return true
	}
	return w.Contains(t)
}

func (s *Scheduler) computeNextRunLocked(now time.Time) {
	if s.schedule != nil {
		s.nextRun = s.schedule.Next(now)
		return
	}
	s.nextRun = now.Add(s.interval)
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		s.mu.Lock()
		next := s.nextRun
		s.mu.Unlock()

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		now := time.Now()
		if s.IsInWindow(now) {
			s.runJobs(ctx)
		} else {
			s.logger.Debugf("skipping run at %s: outside window", now.Format("15:04"))
		}

		s.mu.Lock()
		s.computeNextRunLocked(time.Now())
		s.mu.Unlock()
	}
}

func (s *Scheduler) runJobs(ctx context.Context) {
	s.mu.Lock()
	jobs := make([]Job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.Unlock()

	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		if err := job(ctx); err != nil {
			s.logger.Errorf("scheduled job failed: %v", err)
		}
	}
}
