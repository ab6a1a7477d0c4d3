package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/inferguard/inferguard/internal/healthcheck"
	"github.com/inferguard/inferguard/internal/infra"
	"github.com/inferguard/inferguard/internal/monitor"
)

// CheckSource lists the checks a sweep should execute.
type CheckSource interface {
	Enabled(ctx context.Context) ([]*healthcheck.Definition, error)
}

// CheckRunner executes a configured check and records its outcome.
type CheckRunner interface {
	RunCheck(ctx context.Context, id int64, threshold float64) (*monitor.Outcome, error)
}

// Collector samples infrastructure utilization. An empty id samples the whole
// fleet.
type Collector interface {
	Collect(id string) ([]infra.Metric, error)
}

// SweepJob runs every enabled health check through a bounded worker pool.
type SweepJob struct {
	config    SweepConfig
	logger    zerolog.Logger
	checks    CheckSource
	runner    CheckRunner
	collector Collector

	metrics *SweepMetrics
}

// SweepMetrics tracks sweep job statistics.
type SweepMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalSweeps      int64
	ChecksPassed     int64
	ChecksFailed     int64
	ChecksErrored    int64
	SamplesCollected int64

	// Timings
	LastSweepAt       time.Time
	LastSweepDuration time.Duration
	TotalDuration     time.Duration
}

// SweepJobConfig holds configuration for creating a SweepJob.
type SweepJobConfig struct {
	Config    SweepConfig
	Logger    zerolog.Logger
	Checks    CheckSource
	Runner    CheckRunner
	Collector Collector // optional
}

// NewSweepJob creates a new sweep job processor.
func NewSweepJob(cfg SweepJobConfig) *SweepJob {
	return &SweepJob{
		config:    cfg.Config.withDefaults(),
		logger:    cfg.Logger,
		checks:    cfg.Checks,
		runner:    cfg.Runner,
		collector: cfg.Collector,
		metrics:   &SweepMetrics{},
	}
}

// SweepResult contains the result of a sweep.
type SweepResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Total     int
	Passed    int
	Failed    int
	Errored   int
	Incidents []int64
	Errors    []SweepError
	Samples   int
}

// SweepError represents a check that could not be executed.
type SweepError struct {
	CheckID int64
	Name    string
	Error   string
}

// Run executes every enabled check. Listing failures abort the sweep; per
// check failures are collected in the result.
func (j *SweepJob) Run(ctx context.Context) (*SweepResult, error) {
	startTime := time.Now()

	defs, err := j.checks.Enabled(ctx)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{
		StartTime: startTime,
		Total:     len(defs),
	}

	j.logger.Info().
		Int("total_checks", result.Total).
		Int("concurrency", j.config.Concurrency).
		Msg("starting health check sweep")

	defsChan := make(chan *healthcheck.Definition, len(defs))
	resultsChan := make(chan checkResult, len(defs))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.sweepWorker(ctx, defsChan, resultsChan)
		}()
	}

	for _, def := range defs {
		defsChan <- def
	}
	close(defsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for cr := range resultsChan {
		switch {
		case cr.err != nil:
			result.Errored++
			result.Errors = append(result.Errors, SweepError{
				CheckID: cr.def.ID,
				Name:    cr.def.Name,
				Error:   cr.err.Error(),
			})
		case cr.outcome.Passed:
			result.Passed++
		default:
			result.Failed++
			if cr.outcome.IncidentID != nil {
				result.Incidents = append(result.Incidents, *cr.outcome.IncidentID)
			}
		}
	}

	if j.config.CollectInfra && j.collector != nil && ctx.Err() == nil {
		samples, err := j.collector.Collect("")
		if err != nil {
			j.logger.Warn().Err(err).Msg("infrastructure collection failed")
		}
		result.Samples = len(samples)
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("passed", result.Passed).
		Int("failed", result.Failed).
		Int("errored", result.Errored).
		Int("samples", result.Samples).
		Msg("health check sweep completed")

	return result, nil
}

type checkResult struct {
	def     *healthcheck.Definition
	outcome *monitor.Outcome
	err     error
}

func (j *SweepJob) sweepWorker(ctx context.Context, defs <-chan *healthcheck.Definition, results chan<- checkResult) {
	for def := range defs {
		select {
		case <-ctx.Done():
			results <- checkResult{def: def, err: ctx.Err()}
		default:
			results <- j.runOne(ctx, def)
		}
	}
}

func (j *SweepJob) runOne(ctx context.Context, def *healthcheck.Definition) checkResult {
	checkCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	out, err := j.runner.RunCheck(checkCtx, def.ID, 0)
	if err != nil {
		j.logger.Error().Err(err).Int64("check_id", def.ID).Msg("check execution failed")
	}
	return checkResult{def: def, outcome: out, err: err}
}

func (j *SweepJob) updateMetrics(result *SweepResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalSweeps++
	j.metrics.ChecksPassed += int64(result.Passed)
	j.metrics.ChecksFailed += int64(result.Failed)
	j.metrics.ChecksErrored += int64(result.Errored)
	j.metrics.SamplesCollected += int64(result.Samples)
	j.metrics.LastSweepAt = result.EndTime
	j.metrics.LastSweepDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *SweepJob) GetMetrics() SweepMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return SweepMetrics{
		TotalSweeps:       j.metrics.TotalSweeps,
		ChecksPassed:      j.metrics.ChecksPassed,
		ChecksFailed:      j.metrics.ChecksFailed,
		ChecksErrored:     j.metrics.ChecksErrored,
		SamplesCollected:  j.metrics.SamplesCollected,
		LastSweepAt:       j.metrics.LastSweepAt,
		LastSweepDuration: j.metrics.LastSweepDuration,
		TotalDuration:     j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *SweepJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_sweeps":        m.TotalSweeps,
		"checks_passed":       m.ChecksPassed,
		"checks_failed":       m.ChecksFailed,
		"checks_errored":      m.ChecksErrored,
		"samples_collected":   m.SamplesCollected,
		"last_sweep_at":       m.LastSweepAt,
		"last_sweep_duration": m.LastSweepDuration.String(),
		"total_duration":      m.TotalDuration.String(),
	}
}
