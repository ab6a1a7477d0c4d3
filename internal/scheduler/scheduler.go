// Package scheduler runs enabled health checks on their configured interval.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/inferguard/inferguard/internal/healthcheck"
	"github.com/inferguard/inferguard/internal/monitor"
)

// DefinitionSource lists the checks to schedule.
type DefinitionSource interface {
	Enabled(ctx context.Context) ([]*healthcheck.Definition, error)
}

// CheckRunner executes a configured check.
type CheckRunner interface {
	RunCheck(ctx context.Context, id int64, threshold float64) (*monitor.Outcome, error)
}

// Config holds configuration for the scheduler.
type Config struct {
	Definitions DefinitionSource
	Runner      CheckRunner
	Logger      zerolog.Logger
}

// Scheduler maps each enabled definition to an "@every" cron entry.
type Scheduler struct {
	cron   *cron.Cron
	defs   DefinitionSource
	runner CheckRunner
	logger zerolog.Logger

	mu      sync.Mutex
	entries map[int64]cron.EntryID
}

// New creates a scheduler. Overlapping runs of the same check are skipped.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger.With().Str("component", "scheduler").Logger()
	cl := cronLogger{logger: logger}

	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		defs:    cfg.Definitions,
		runner:  cfg.Runner,
		logger:  logger,
		entries: make(map[int64]cron.EntryID),
	}
}

// Sync replaces the schedule with the currently enabled definitions and
// returns how many were scheduled.
func (s *Scheduler) Sync(ctx context.Context) (int, error) {
	defs, err := s.defs.Enabled(ctx)
	if err != nil {
		return 0, fmt.Errorf("list enabled checks: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entry := range s.entries {
		s.cron.Remove(entry)
		delete(s.entries, id)
	}

	for _, def := range defs {
		if def.IntervalSeconds <= 0 {
			s.logger.Warn().Int64("check_id", def.ID).Msg("skipping check without interval")
			continue
		}
		spec := fmt.Sprintf("@every %ds", def.IntervalSeconds)
		entry, err := s.cron.AddJob(spec, s.job(def.ID, def.Name))
		if err != nil {
			return len(s.entries), fmt.Errorf("schedule check %d: %w", def.ID, err)
		}
		s.entries[def.ID] = entry
		s.logger.Info().
			Int64("check_id", def.ID).
			Str("name", def.Name).
			Str("schedule", spec).
			Msg("scheduled health check")
	}
	return len(s.entries), nil
}

// Scheduled returns the number of registered checks.
func (s *Scheduler) Scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Start begins executing jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("checks", s.Scheduled()).Msg("scheduler started")
}

// Stop halts scheduling and waits for running jobs or ctx, whichever ends
// first.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info().Msg("scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn().Msg("scheduler stop timed out with jobs in flight")
	}
}

// RunNow executes every scheduled job once, synchronously.
func (s *Scheduler) RunNow() {
	for _, e := range s.cron.Entries() {
		e.WrappedJob.Run()
	}
}

func (s *Scheduler) job(id int64, name string) cron.Job {
	return cron.FuncJob(func() {
		// Runs are never cut short; SkipIfStillRunning absorbs slow ones.
		out, err := s.runner.RunCheck(context.Background(), id, 0)
		if err != nil {
			s.logger.Error().Err(err).Int64("check_id", id).Str("name", name).Msg("scheduled check failed")
			return
		}
		if !out.Passed {
			s.logger.Warn().
				Int64("check_id", id).
				Str("name", name).
				Float64("result_value", out.ResultValue).
				Msg("scheduled check did not pass")
		}
	})
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
