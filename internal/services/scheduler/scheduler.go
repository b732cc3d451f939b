// Package scheduler triggers backup cycles at a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fgeck/gosnap-homelab/internal/services/events"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler owns one repeating cron entry. It is either stopped (no entry) or running.
type Scheduler struct {
	cron     *cron.Cron
	job      func()
	unit     time.Duration
	observer events.Observer
	logger   zerolog.Logger

	mu       sync.Mutex
	entry    cron.EntryID
	running  bool
	started  bool
	interval int
}

// New creates a stopped scheduler whose interval is counted in minutes.
func New(job func(), observer events.Observer, logger zerolog.Logger) *Scheduler {
	return NewWithUnit(job, observer, logger, time.Minute)
}

// NewWithUnit creates a stopped scheduler with a custom interval unit (for testing).
func NewWithUnit(job func(), observer events.Observer, logger zerolog.Logger, unit time.Duration) *Scheduler {
	logger = logger.With().Str("component", "scheduler").Logger()
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron:     cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		job:      job,
		unit:     unit,
		observer: observer,
		logger:   logger,
	}
}

// Start (re)schedules the job every intervalMinutes units. Calling Start while running
// replaces the entry, so it doubles as the reschedule operation after a config change.
func (s *Scheduler) Start(intervalMinutes int) error {
	if intervalMinutes < 1 {
		return fmt.Errorf("interval must be positive, got %d", intervalMinutes)
	}

	s.mu.Lock()
	if s.running {
		s.cron.Remove(s.entry)
	}
	s.entry = s.cron.Schedule(cron.Every(time.Duration(intervalMinutes)*s.unit), cron.FuncJob(s.job))
	if !s.started {
		s.cron.Start()
		s.started = true
	}
	s.running = true
	s.interval = intervalMinutes
	s.mu.Unlock()

	s.logger.Info().Int("interval_minutes", intervalMinutes).Msg("schedule started")
	s.observer.Log(fmt.Sprintf("Starting auto-backup. Interval: %d mins.", intervalMinutes))
	s.observer.Status(true)
	return nil
}

// Stop removes the entry. Stopping a stopped scheduler does nothing. A cycle that is
// already executing is not interrupted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cron.Remove(s.entry)
	s.running = false
	s.mu.Unlock()

	s.logger.Info().Msg("schedule stopped")
	s.observer.Log("Auto-backup stopped.")
	s.observer.Status(false)
}

// Running reports whether an entry is scheduled.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Interval returns the interval of the current or last entry.
func (s *Scheduler) Interval() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Close shuts the cron runner down. The returned context is done once a job that was
// firing has returned.
func (s *Scheduler) Close() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.cron.Remove(s.entry)
		s.running = false
	}
	return s.cron.Stop()
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
