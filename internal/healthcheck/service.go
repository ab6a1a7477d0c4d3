package healthcheck

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/inferguard/inferguard/internal/checks"
	"github.com/inferguard/inferguard/internal/remediation"
)

// History paging bounds.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// DefaultDefinitions are the checks installed on a fresh deployment.
func DefaultDefinitions() []*Definition {
	return []*Definition{
		{
			Name:                "Threat Detection Model Latency",
			Kind:                checks.KindLatency,
			Enabled:             true,
			IntervalSeconds:     30,
			Threshold:           200,
			RemediationStrategy: remediation.StrategyRestartService,
		},
		{
			Name:                "Malware Classifier Correctness",
			Kind:                checks.KindCorrectness,
			Enabled:             true,
			IntervalSeconds:     60,
			Threshold:           0.95,
			RemediationStrategy: remediation.StrategyRollbackModel,
		},
		{
			Name:                "Behavioral Analysis Drift",
			Kind:                checks.KindDrift,
			Enabled:             true,
			IntervalSeconds:     300,
			Threshold:           0.1,
			RemediationStrategy: remediation.StrategyClearCache,
		},
		{
			Name:                "Inference Cluster Resources",
			Kind:                checks.KindResource,
			Enabled:             true,
			IntervalSeconds:     60,
			Threshold:           80,
			RemediationStrategy: remediation.StrategyScaleHint,
		},
	}
}

// ServiceConfig holds configuration for the health check service.
type ServiceConfig struct {
	Repository Repository
	Logger     zerolog.Logger
}

// Service is the read side of health check definitions and run history.
type Service struct {
	repo   Repository
	logger zerolog.Logger
}

// NewService creates a new health check service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{repo: cfg.Repository, logger: cfg.Logger}
}

// Seed installs any of defs whose name is not yet present.
func (s *Service) Seed(ctx context.Context, defs []*Definition) (int, error) {
	created := 0
	for _, def := range defs {
		_, err := s.repo.GetDefinitionByName(ctx, def.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrDefinitionNotFound) {
			return created, fmt.Errorf("look up %q: %w", def.Name, err)
		}

		cpy := *def
		if err := s.repo.CreateDefinition(ctx, &cpy); err != nil {
			if errors.Is(err, ErrDuplicateName) {
				continue
			}
			return created, fmt.Errorf("seed %q: %w", def.Name, err)
		}
		created++
		s.logger.Info().
			Int64("check_id", cpy.ID).
			Str("name", cpy.Name).
			Str("check_type", string(cpy.Kind)).
			Msg("seeded health check")
	}
	return created, nil
}

// List returns every definition with its most recent run.
func (s *Service) List(ctx context.Context) ([]DefinitionStatus, error) {
	defs, err := s.repo.ListDefinitions(ctx, false)
	if err != nil {
		return nil, err
	}

	out := make([]DefinitionStatus, 0, len(defs))
	for _, def := range defs {
		runs, err := s.repo.ListRuns(ctx, def.ID, 1)
		if err != nil {
			return nil, err
		}
		status := DefinitionStatus{Definition: def}
		if len(runs) > 0 {
			status.LastRun = runs[0]
		}
		out = append(out, status)
	}
	return out, nil
}

// Get returns a single definition.
func (s *Service) Get(ctx context.Context, id int64) (*Definition, error) {
	return s.repo.GetDefinition(ctx, id)
}

// Enabled returns the definitions that should be executed.
func (s *Service) Enabled(ctx context.Context) ([]*Definition, error) {
	return s.repo.ListDefinitions(ctx, true)
}

// History returns recent runs of a check, newest first.
func (s *Service) History(ctx context.Context, id int64, limit int) ([]*Run, error) {
	if _, err := s.repo.GetDefinition(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListRuns(ctx, id, ClampLimit(limit, DefaultHistoryLimit, MaxHistoryLimit))
}

// ClampLimit applies a default and an upper bound to a requested page size.
func ClampLimit(limit, def, maxLimit int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, maxLimit)
}
