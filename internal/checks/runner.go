// Package checks executes synthetic health checks against the inference backend.
package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/inferguard/inferguard/internal/faults"
	"github.com/inferguard/inferguard/internal/inference"
	"github.com/inferguard/inferguard/internal/sim"
	"github.com/inferguard/inferguard/internal/telemetry"
)

const tracerName = "github.com/inferguard/inferguard/internal/checks"

// Kind identifies a health check algorithm.
type Kind string

const (
	KindLatency     Kind = "latency"
	KindCorrectness Kind = "correctness"
	KindDrift       Kind = "drift"
	KindResource    Kind = "resource"
)

// Kinds lists every supported check kind.
var Kinds = []Kind{KindLatency, KindCorrectness, KindDrift, KindResource}

// ErrUnknownKind is the Result error for an unsupported kind.
const ErrUnknownKind = "unknown check type"

// ParseKind validates a check kind supplied by a caller.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown check type: %q", s)
}

// DefaultThreshold returns the threshold applied when none is configured.
func (k Kind) DefaultThreshold() float64 {
	switch k {
	case KindLatency:
		return 200
	case KindCorrectness:
		return 0.95
	case KindDrift:
		return 0.1
	case KindResource:
		return 80
	}
	return 0
}

// DisplayName is the human readable check name.
func (k Kind) DisplayName() string {
	switch k {
	case KindLatency:
		return "Latency Check"
	case KindCorrectness:
		return "Correctness Check"
	case KindDrift:
		return "Drift Check"
	case KindResource:
		return "Resource Check"
	}
	return "Unknown Check"
}

// Result is the outcome of a single check execution.
type Result struct {
	CheckName   string         `json:"check_name"`
	Kind        Kind           `json:"check_type"`
	Passed      bool           `json:"passed"`
	ResultValue float64        `json:"result_value"`
	Details     map[string]any `json:"details"`
	Error       string         `json:"error,omitempty"`
	LatencyMs   float64        `json:"latency_ms"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Model is the inference surface the checks probe.
type Model interface {
	Infer(ctx context.Context, sampleID string) (inference.Prediction, error)
	PredictionDistribution(n int) []float64
	BaselineDistribution() []float64
}

// FaultSource exposes the fault configuration snapshot.
type FaultSource interface {
	Snapshot() faults.Config
}

// Config holds configuration for a Runner.
type Config struct {
	Model           Model
	Faults          FaultSource
	Rand            *sim.Rand
	Logger          zerolog.Logger
	LatencySample   string
	DriftSamples    int
	MemoryThreshold float64
}

type checkFunc func(ctx context.Context, threshold float64, res *Result)

// Runner executes health checks. It never returns an error: every failure is
// reported through the Result.
type Runner struct {
	model           Model
	faults          FaultSource
	rng             *sim.Rand
	logger          zerolog.Logger
	latencySample   string
	driftSamples    int
	memoryThreshold float64
	dispatch        map[Kind]checkFunc
}

// NewRunner creates a check runner.
func NewRunner(cfg Config) *Runner {
	if cfg.Rand == nil {
		cfg.Rand = sim.NewRand(0)
	}
	if cfg.LatencySample == "" {
		cfg.LatencySample = "test_sample_1"
	}
	if cfg.DriftSamples <= 0 {
		cfg.DriftSamples = 100
	}
	if cfg.MemoryThreshold <= 0 {
		cfg.MemoryThreshold = 80
	}

	r := &Runner{
		model:           cfg.Model,
		faults:          cfg.Faults,
		rng:             cfg.Rand,
		logger:          cfg.Logger,
		latencySample:   cfg.LatencySample,
		driftSamples:    cfg.DriftSamples,
		memoryThreshold: cfg.MemoryThreshold,
	}
	r.dispatch = map[Kind]checkFunc{
		KindLatency:     r.latency,
		KindCorrectness: r.correctness,
		KindDrift:       r.drift,
		KindResource:    r.resource,
	}
	return r
}

// Run executes one check. A threshold <= 0 selects the kind's default.
// Checks run to completion even if ctx is cancelled, so a dropped caller
// never turns a healthy model into a failed run.
func (r *Runner) Run(ctx context.Context, kind Kind, threshold float64) (res Result) {
	res = Result{
		CheckName: kind.DisplayName(),
		Kind:      kind,
		Details:   map[string]any{},
		Timestamp: time.Now().UTC(),
	}

	fn, ok := r.dispatch[kind]
	if !ok {
		res.Error = ErrUnknownKind
		return res
	}
	if threshold <= 0 {
		threshold = kind.DefaultThreshold()
	}

	ctx, span := telemetry.Start(context.WithoutCancel(ctx), tracerName, "checks."+string(kind),
		attribute.String("check.type", string(kind)))

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			res.Passed = false
			res.Error = fmt.Sprintf("check panicked: %v", rec)
			res.LatencyMs = msSince(start)
		}
		telemetry.End(span, res.Error,
			attribute.Bool("check.passed", res.Passed),
			attribute.Float64("check.result_value", res.ResultValue),
		)
		r.logger.Debug().
			Str("check_type", string(kind)).
			Bool("passed", res.Passed).
			Float64("result_value", res.ResultValue).
			Float64("latency_ms", res.LatencyMs).
			Str("error", res.Error).
			Msg("health check executed")
	}()

	fn(ctx, threshold, &res)
	if res.LatencyMs == 0 {
		res.LatencyMs = msSince(start)
	}
	return res
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
