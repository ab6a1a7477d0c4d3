// Package remediation runs scripted recovery actions against the inference
// backend and keeps an audit trail of every attempt.
package remediation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/inferguard/inferguard/internal/checks"
	"github.com/inferguard/inferguard/internal/inference"
	"github.com/inferguard/inferguard/internal/telemetry"
)

const tracerName = "github.com/inferguard/inferguard/internal/remediation"

// Strategy names a remediation action.
type Strategy string

const (
	StrategyRestartService Strategy = "restart_service"
	StrategyClearCache     Strategy = "clear_cache"
	StrategyScaleHint      Strategy = "scale_hint"
	StrategyRollbackModel  Strategy = "rollback_model"
)

// ErrUnknownStrategy is returned by ParseStrategy for unsupported names.
var ErrUnknownStrategy = errors.New("unknown remediation strategy")

// Strategies lists every supported strategy.
var Strategies = []Strategy{
	StrategyRestartService,
	StrategyClearCache,
	StrategyScaleHint,
	StrategyRollbackModel,
}

// ParseStrategy validates a strategy supplied by a caller.
func ParseStrategy(s string) (Strategy, error) {
	for _, st := range Strategies {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// Result is the outcome of one remediation attempt.
type Result struct {
	Strategy        Strategy       `json:"strategy"`
	Success         bool           `json:"success"`
	DryRun          bool           `json:"dry_run"`
	Details         map[string]any `json:"details"`
	Error           string         `json:"error,omitempty"`
	DurationSeconds float64        `json:"duration_seconds"`
	Timestamp       time.Time      `json:"timestamp"`
}

// Model is the part of the inference backend remediation acts on.
type Model interface {
	ModelVersion() string
	SetModelVersion(v string)
	ClearCache(ctx context.Context) (inference.CacheClearResult, error)
}

// FaultClearer resets injected faults.
type FaultClearer interface {
	Clear()
}

// Config holds configuration for a Remediator.
type Config struct {
	Model           Model
	Faults          FaultClearer
	Audit           *AuditLog
	Logger          zerolog.Logger
	ServiceName     string
	RestartDelay    time.Duration
	RollbackDelay   time.Duration
	RetryDelay      time.Duration
	MaxRetries      int
	CurrentReplicas int
	TargetReplicas  int

	// RollbackTarget pins the rollback version. When empty the target is
	// the previous patch release, or RollbackFallback if there is none.
	RollbackTarget   string
	RollbackFallback string
}

type strategyFunc func(ctx context.Context, dryRun bool, details map[string]any) error

// Remediator executes remediation strategies. Remediate never fails: errors and
// panics inside a strategy become an unsuccessful Result.
type Remediator struct {
	model            Model
	faults           FaultClearer
	audit            *AuditLog
	logger           zerolog.Logger
	serviceName      string
	restartDelay     time.Duration
	rollbackDelay    time.Duration
	retryDelay       time.Duration
	maxRetries       int
	currentReplicas  int
	targetReplicas   int
	rollbackTarget   string
	rollbackFallback string
	strategies       map[Strategy]strategyFunc
}

// NewRemediator creates a remediator.
func NewRemediator(cfg Config) *Remediator {
	if cfg.Audit == nil {
		cfg.Audit = NewAuditLog(DefaultAuditCapacity)
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "inference-service"
	}
	if cfg.RestartDelay == 0 {
		cfg.RestartDelay = 2 * time.Second
	}
	if cfg.RollbackDelay == 0 {
		cfg.RollbackDelay = time.Second
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.CurrentReplicas <= 0 {
		cfg.CurrentReplicas = 1
	}
	if cfg.TargetReplicas <= 0 {
		cfg.TargetReplicas = 3
	}
	if cfg.RollbackFallback == "" {
		cfg.RollbackFallback = DefaultRollbackFallback
	}

	r := &Remediator{
		model:            cfg.Model,
		faults:           cfg.Faults,
		audit:            cfg.Audit,
		logger:           cfg.Logger,
		serviceName:      cfg.ServiceName,
		restartDelay:     cfg.RestartDelay,
		rollbackDelay:    cfg.RollbackDelay,
		retryDelay:       cfg.RetryDelay,
		maxRetries:       cfg.MaxRetries,
		currentReplicas:  cfg.CurrentReplicas,
		targetReplicas:   cfg.TargetReplicas,
		rollbackTarget:   cfg.RollbackTarget,
		rollbackFallback: cfg.RollbackFallback,
	}
	r.strategies = map[Strategy]strategyFunc{
		StrategyRestartService: r.restartService,
		StrategyClearCache:     r.clearCache,
		StrategyScaleHint:      r.scaleHint,
		StrategyRollbackModel:  r.rollbackModel,
	}
	return r
}

// Audit returns the remediator's audit log.
func (r *Remediator) Audit() *AuditLog {
	return r.audit
}

// Remediate runs a single strategy. The attempt is appended to the audit log
// before returning. Caller cancellation does not interrupt a running strategy.
func (r *Remediator) Remediate(ctx context.Context, strategy Strategy, incidentID *int64, dryRun bool) (res Result) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	res = Result{
		Strategy:  strategy,
		DryRun:    dryRun,
		Details:   map[string]any{},
		Timestamp: start.UTC(),
	}

	ctx, span := telemetry.Start(ctx, tracerName, "remediation."+string(strategy),
		attribute.String("remediation.strategy", string(strategy)),
		attribute.Bool("remediation.dry_run", dryRun),
	)

	defer func() {
		if rec := recover(); rec != nil {
			res.Success = false
			res.Error = fmt.Sprintf("remediation panicked: %v", rec)
		}
		res.DurationSeconds = time.Since(start).Seconds()

		r.audit.Append(AuditEntry{
			Strategy:        strategy,
			IncidentID:      incidentID,
			Success:         res.Success,
			DryRun:          dryRun,
			Timestamp:       res.Timestamp,
			DurationSeconds: res.DurationSeconds,
			Error:           res.Error,
		})

		telemetry.End(span, res.Error, attribute.Bool("remediation.success", res.Success))

		event := r.logger.Info()
		if !res.Success {
			event = r.logger.Warn()
		}
		if incidentID != nil {
			event = event.Int64("incident_id", *incidentID)
		}
		event.
			Str("strategy", string(strategy)).
			Bool("dry_run", dryRun).
			Bool("success", res.Success).
			Float64("duration_seconds", res.DurationSeconds).
			Str("error", res.Error).
			Msg("remediation executed")
	}()

	fn, ok := r.strategies[strategy]
	if !ok {
		res.Error = fmt.Sprintf("unknown remediation strategy: %s", strategy)
		return res
	}
	if err := fn(ctx, dryRun, res.Details); err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = true
	return res
}

// AutoRemediate repeats Remediate up to maxRetries times with a fixed delay
// after each failure, stopping at the first success. Every attempt is returned
// in order. A maxRetries <= 0 uses the configured default.
func (r *Remediator) AutoRemediate(
	ctx context.Context,
	incidentID *int64,
	kind checks.Kind,
	strategy Strategy,
	maxRetries int,
	dryRun bool,
) []Result {
	if maxRetries <= 0 {
		maxRetries = r.maxRetries
	}

	logger := r.logger.With().
		Str("strategy", string(strategy)).
		Str("check_type", string(kind)).
		Int("max_retries", maxRetries).
		Logger()

	results := make([]Result, 0, maxRetries)
	operation := func() error {
		res := r.Remediate(ctx, strategy, incidentID, dryRun)
		results = append(results, res)
		if res.Success {
			return nil
		}
		if res.Error == "" {
			return errors.New("remediation failed")
		}
		return errors.New(res.Error)
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(r.retryDelay), uint64(maxRetries-1)) //nolint:gosec // maxRetries > 0
	notify := func(err error, wait time.Duration) {
		logger.Warn().
			Err(err).
			Int("attempt", len(results)).
			Dur("retry_in", wait).
			Msg("remediation attempt failed, retrying")
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		logger.Error().Err(err).Int("attempts", len(results)).Msg("auto-remediation exhausted retries")
	} else {
		logger.Info().Int("attempts", len(results)).Msg("auto-remediation succeeded")
	}

	return results
}
