// Package monitor executes health check definitions and feeds their results
// into incident tracking and metrics.
package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/inferguard/inferguard/internal/checks"
	"github.com/inferguard/inferguard/internal/healthcheck"
	"github.com/inferguard/inferguard/internal/incident"
)

// Runner executes a single check.
type Runner interface {
	Run(ctx context.Context, kind checks.Kind, threshold float64) checks.Result
}

// Recorder receives check metrics.
type Recorder interface {
	CheckRun(checkName, checkType string, passed bool, latencyMs, resultValue float64)
}

// Outcome is the result of one executed check.
type Outcome struct {
	CheckID     *int64         `json:"check_id,omitempty"`
	CheckName   string         `json:"check_name"`
	Kind        checks.Kind    `json:"check_type"`
	Passed      bool           `json:"passed"`
	ResultValue float64        `json:"result_value"`
	Threshold   float64        `json:"threshold"`
	Details     map[string]any `json:"details"`
	Error       string         `json:"error,omitempty"`
	LatencyMs   float64        `json:"latency_ms"`
	RunID       *int64         `json:"run_id,omitempty"`
	IncidentID  *int64         `json:"incident_id,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Sweep summarizes a run over every enabled check.
type Sweep struct {
	Total   int       `json:"total"`
	Passed  int       `json:"passed"`
	Failed  int       `json:"failed"`
	Results []Outcome `json:"results"`
}

// Add folds an outcome into the sweep.
func (s *Sweep) Add(o Outcome) {
	s.Total++
	if o.Passed {
		s.Passed++
	} else {
		s.Failed++
	}
	s.Results = append(s.Results, o)
}

// ServiceConfig holds configuration for the monitor service.
type ServiceConfig struct {
	Checks    *healthcheck.Service
	Incidents *incident.Manager
	Runner    Runner
	Recorder  Recorder
	Logger    zerolog.Logger
}

// Service runs health checks.
type Service struct {
	checks    *healthcheck.Service
	incidents *incident.Manager
	runner    Runner
	recorder  Recorder
	logger    zerolog.Logger
}

// NewService creates a new monitor service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		checks:    cfg.Checks,
		incidents: cfg.Incidents,
		runner:    cfg.Runner,
		recorder:  cfg.Recorder,
		logger:    cfg.Logger,
	}
}

// RunCheck executes a configured check, records the run and opens an incident
// on failure. A positive threshold overrides the definition's.
func (s *Service) RunCheck(ctx context.Context, id int64, threshold float64) (*Outcome, error) {
	def, err := s.checks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if threshold > 0 {
		def.Threshold = threshold
	}
	return s.execute(ctx, def)
}

// RunAdHoc executes a check that has no definition. Nothing is persisted.
func (s *Service) RunAdHoc(ctx context.Context, kind checks.Kind, threshold float64) *Outcome {
	if threshold <= 0 {
		threshold = kind.DefaultThreshold()
	}
	res := s.runner.Run(ctx, kind, threshold)
	name := "Ad-hoc " + string(kind) + " check"
	s.record(name, res)

	out := newOutcome(name, threshold, res)
	return &out
}

// RunAllEnabled executes every enabled check in ID order.
func (s *Service) RunAllEnabled(ctx context.Context) (*Sweep, error) {
	defs, err := s.checks.Enabled(ctx)
	if err != nil {
		return nil, err
	}

	sweep := &Sweep{Results: make([]Outcome, 0, len(defs))}
	for _, def := range defs {
		out, err := s.execute(ctx, def)
		if err != nil {
			return nil, err
		}
		sweep.Add(*out)
	}

	s.logger.Info().
		Int("total", sweep.Total).
		Int("passed", sweep.Passed).
		Int("failed", sweep.Failed).
		Msg("health check sweep completed")
	return sweep, nil
}

func (s *Service) execute(ctx context.Context, def *healthcheck.Definition) (*Outcome, error) {
	res := s.runner.Run(ctx, def.Kind, def.Threshold)
	s.record(def.Name, res)

	run, inc, err := s.incidents.RecordCheckResult(ctx, def, res)
	if err != nil {
		return nil, err
	}

	out := newOutcome(def.Name, def.Threshold, res)
	id := def.ID
	out.CheckID = &id
	out.RunID = &run.ID
	if inc != nil {
		out.IncidentID = &inc.ID
	}

	event := s.logger.Debug()
	if !res.Passed {
		event = s.logger.Warn()
	}
	event.
		Int64("check_id", def.ID).
		Str("check_type", string(def.Kind)).
		Bool("passed", res.Passed).
		Float64("result_value", res.ResultValue).
		Float64("latency_ms", res.LatencyMs).
		Msg("health check executed")

	return &out, nil
}

func (s *Service) record(name string, res checks.Result) {
	if s.recorder == nil {
		return
	}
	s.recorder.CheckRun(name, string(res.Kind), res.Passed, res.LatencyMs, res.ResultValue)
}

func newOutcome(name string, threshold float64, res checks.Result) Outcome {
	return Outcome{
		CheckName:   name,
		Kind:        res.Kind,
		Passed:      res.Passed,
		ResultValue: res.ResultValue,
		Threshold:   threshold,
		Details:     res.Details,
		Error:       res.Error,
		LatencyMs:   res.LatencyMs,
		Timestamp:   res.Timestamp,
	}
}
