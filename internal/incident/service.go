package incident

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/inferguard/inferguard/internal/api/models"
	"github.com/inferguard/inferguard/internal/checks"
	"github.com/inferguard/inferguard/internal/healthcheck"
	"github.com/inferguard/inferguard/internal/remediation"
)

// Listing bounds.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
	MaxTitleLength   = 200
)

const summaryWindow = 24 * time.Hour

// Remediator runs remediation strategies.
type Remediator interface {
	Remediate(ctx context.Context, strategy remediation.Strategy, incidentID *int64, dryRun bool) remediation.Result
	AutoRemediate(
		ctx context.Context,
		incidentID *int64,
		kind checks.Kind,
		strategy remediation.Strategy,
		maxRetries int,
		dryRun bool,
	) []remediation.Result
}

// Recorder receives incident and remediation metrics.
type Recorder interface {
	IncidentCreated(severity string)
	RemediationAttempt(strategy string, success bool, durationSeconds float64)
	ActiveIncidents(bySeverity map[string]int)
}

type nopRecorder struct{}

func (nopRecorder) IncidentCreated(string)                   {}
func (nopRecorder) RemediationAttempt(string, bool, float64) {}
func (nopRecorder) ActiveIncidents(map[string]int)           {}

// ManagerConfig holds configuration for the incident manager.
type ManagerConfig struct {
	Incidents  Repository
	Checks     healthcheck.Repository
	Remediator Remediator
	Recorder   Recorder
	Logger     zerolog.Logger
	Now        func() time.Time
}

// Manager records check outcomes as runs and incidents and moves incidents
// through remediation.
type Manager struct {
	incidents  Repository
	checks     healthcheck.Repository
	remediator Remediator
	recorder   Recorder
	logger     zerolog.Logger
	now        func() time.Time
}

// NewManager creates a new incident manager.
func NewManager(cfg ManagerConfig) *Manager {
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Manager{
		incidents:  cfg.Incidents,
		checks:     cfg.Checks,
		remediator: cfg.Remediator,
		recorder:   recorder,
		logger:     cfg.Logger,
		now:        now,
	}
}

// RecordCheckResult persists a run for def and, when the check failed, opens a
// new incident pointing at it. Every failure opens its own incident.
func (m *Manager) RecordCheckResult(
	ctx context.Context,
	def *healthcheck.Definition,
	res checks.Result,
) (*healthcheck.Run, *Incident, error) {
	completed := m.now()
	started := res.Timestamp
	if started.IsZero() || started.After(completed) {
		started = completed
	}

	value := res.ResultValue
	run := &healthcheck.Run{
		CheckID:     def.ID,
		Status:      healthcheck.RunStatusPassed,
		ResultValue: &value,
		Details:     maps.Clone(res.Details),
		StartedAt:   started,
		CompletedAt: &completed,
	}
	if !res.Passed {
		run.Status = healthcheck.RunStatusFailed
	}
	if res.Error != "" {
		errText := res.Error
		run.Error = &errText
	}

	if err := m.checks.CreateRun(ctx, run); err != nil {
		return nil, nil, fmt.Errorf("record check run: %w", err)
	}

	if res.Passed {
		return run, nil, nil
	}

	runID := run.ID
	inc := &Incident{
		Title: "Health Check Failed: " + def.Name,
		Description: strings.TrimSpace(fmt.Sprintf(
			"Check failed with value %.2f (threshold: %g). %s",
			res.ResultValue, def.Threshold, res.Error,
		)),
		Severity:    SeverityForKind(def.Kind),
		Status:      StatusOpen,
		CheckRunID:  &runID,
		TriggeredAt: completed,
	}
	if err := m.incidents.Create(ctx, inc); err != nil {
		return run, nil, fmt.Errorf("create incident: %w", err)
	}
	m.recorder.IncidentCreated(string(inc.Severity))

	m.logger.Warn().
		Int64("incident_id", inc.ID).
		Int64("check_id", def.ID).
		Int64("run_id", run.ID).
		Str("severity", string(inc.Severity)).
		Float64("result_value", res.ResultValue).
		Msg("health check failed, incident opened")

	return run, inc, nil
}

// Create opens an incident reported by an operator.
func (m *Manager) Create(ctx context.Context, input CreateInput) (*Incident, error) {
	var fieldErrors []models.FieldError

	title := strings.TrimSpace(input.Title)
	if title == "" {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field:   "title",
			Message: "Title is required",
			Code:    "required",
		})
	} else if len(title) > MaxTitleLength {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field:   "title",
			Message: fmt.Sprintf("Title must be at most %d characters", MaxTitleLength),
			Code:    "max_length",
		})
	}

	severity := SeverityMedium
	if input.Severity != "" {
		sev, err := ParseSeverity(input.Severity)
		if err != nil {
			fieldErrors = append(fieldErrors, models.FieldError{
				Field:   "severity",
				Message: "Severity must be one of low, medium, high, critical",
				Code:    "invalid_value",
			})
		}
		severity = sev
	}

	if input.CheckRunID != nil {
		if _, err := m.checks.GetRun(ctx, *input.CheckRunID); err != nil {
			if !errors.Is(err, healthcheck.ErrRunNotFound) {
				return nil, err
			}
			fieldErrors = append(fieldErrors, models.FieldError{
				Field:   "check_run_id",
				Message: "Check run does not exist",
				Code:    "not_found",
			})
		}
	}

	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	inc := &Incident{
		Title:       title,
		Description: input.Description,
		Severity:    severity,
		Status:      StatusOpen,
		CheckRunID:  input.CheckRunID,
		TriggeredAt: m.now(),
	}
	if err := m.incidents.Create(ctx, inc); err != nil {
		return nil, fmt.Errorf("create incident: %w", err)
	}
	m.recorder.IncidentCreated(string(inc.Severity))
	inc.Attempts = []*Attempt{}
	return inc, nil
}

// Get returns an incident with its remediation attempts.
func (m *Manager) Get(ctx context.Context, id int64) (*Incident, error) {
	inc, err := m.incidents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := m.loadAttempts(ctx, inc); err != nil {
		return nil, err
	}
	return inc, nil
}

// List returns incidents newest first with their attempts.
func (m *Manager) List(ctx context.Context, filter ListFilter) ([]*Incident, error) {
	filter.Limit = healthcheck.ClampLimit(filter.Limit, DefaultListLimit, MaxListLimit)

	incs, err := m.incidents.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, inc := range incs {
		if err := m.loadAttempts(ctx, inc); err != nil {
			return nil, err
		}
	}
	return incs, nil
}

// Summary aggregates incident counts and refreshes the active incident gauge.
func (m *Manager) Summary(ctx context.Context) (*Summary, error) {
	now := m.now()
	s, err := m.incidents.Summarize(ctx, now.Add(-summaryWindow))
	if err != nil {
		return nil, err
	}
	s.Timestamp = now

	active := make(map[string]int, len(Severities))
	for _, sev := range Severities {
		active[string(sev)] = s.ActiveBySeverity[sev]
	}
	m.recorder.ActiveIncidents(active)
	return s, nil
}

// Resolve closes an incident by hand.
func (m *Manager) Resolve(ctx context.Context, id int64, notes string) (*Incident, error) {
	inc, err := m.incidents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inc.Status.CanTransition(StatusResolved) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, inc.Status, StatusResolved)
	}

	if notes == "" {
		notes = "Manually resolved"
	}
	m.markResolved(inc, notes)
	if err := m.incidents.UpdateStatus(ctx, inc); err != nil {
		return nil, fmt.Errorf("resolve incident: %w", err)
	}

	m.logger.Info().Int64("incident_id", id).Msg("incident resolved manually")
	return inc, nil
}

// Remediate runs one remediation attempt against an incident.
func (m *Manager) Remediate(
	ctx context.Context,
	id int64,
	strategy remediation.Strategy,
	dryRun bool,
) (*Outcome, error) {
	return m.drive(ctx, id, strategy, dryRun, func(_ checks.Kind) []remediation.Result {
		return []remediation.Result{m.remediator.Remediate(ctx, strategy, &id, dryRun)}
	})
}

// AutoRemediate retries a strategy against an incident until it succeeds or
// maxRetries attempts have been made.
func (m *Manager) AutoRemediate(
	ctx context.Context,
	id int64,
	strategy remediation.Strategy,
	maxRetries int,
	dryRun bool,
) (*Outcome, error) {
	return m.drive(ctx, id, strategy, dryRun, func(kind checks.Kind) []remediation.Result {
		return m.remediator.AutoRemediate(ctx, &id, kind, strategy, maxRetries, dryRun)
	})
}

func (m *Manager) drive(
	ctx context.Context,
	id int64,
	strategy remediation.Strategy,
	dryRun bool,
	run func(kind checks.Kind) []remediation.Result,
) (*Outcome, error) {
	inc, err := m.incidents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inc.Status.CanTransition(StatusRemediating) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, inc.Status, StatusRemediating)
	}

	kind := m.triggeringKind(ctx, inc)
	prior := inc.Status

	inc.Status = StatusRemediating
	if err := m.incidents.UpdateStatus(ctx, inc); err != nil {
		return nil, fmt.Errorf("mark incident remediating: %w", err)
	}

	// Persisting the outcome must not depend on the caller staying connected.
	ctx = context.WithoutCancel(ctx)

	// A lost attempt row must not strand the incident in remediating, so the
	// final status is written before persistence errors are reported.
	results := run(kind)
	var attemptErr error
	for _, res := range results {
		attemptErr = errors.Join(attemptErr, m.recordAttempt(ctx, id, res))
	}

	outcome := &Outcome{Incident: inc, Results: results}
	success := outcome.FinalSuccess()
	switch {
	case success && !dryRun:
		m.markResolved(inc, "Auto-resolved via "+string(strategy))
	case !success:
		inc.Status = StatusEscalated
	default:
		inc.Status = prior
	}
	if err := m.incidents.UpdateStatus(ctx, inc); err != nil {
		return nil, errors.Join(attemptErr, fmt.Errorf("update incident status: %w", err))
	}
	if attemptErr != nil {
		return nil, attemptErr
	}
	if err := m.loadAttempts(ctx, inc); err != nil {
		return nil, err
	}

	m.logger.Info().
		Int64("incident_id", id).
		Str("strategy", string(strategy)).
		Bool("dry_run", dryRun).
		Int("attempts", len(results)).
		Bool("success", success).
		Str("status", string(inc.Status)).
		Msg("remediation finished")

	return outcome, nil
}

func (m *Manager) recordAttempt(ctx context.Context, incidentID int64, res remediation.Result) error {
	details := maps.Clone(res.Details)
	if details == nil {
		details = make(map[string]any)
	}
	if res.Error != "" {
		details["error"] = res.Error
	}

	completed := m.now()
	attempt := &Attempt{
		IncidentID:  incidentID,
		Strategy:    res.Strategy,
		DryRun:      res.DryRun,
		Success:     res.Success,
		Details:     details,
		AttemptedAt: res.Timestamp,
		CompletedAt: &completed,
	}
	if attempt.AttemptedAt.IsZero() {
		attempt.AttemptedAt = completed
	}
	m.recorder.RemediationAttempt(string(res.Strategy), res.Success, res.DurationSeconds)
	if err := m.incidents.AddAttempt(ctx, attempt); err != nil {
		return fmt.Errorf("record remediation attempt: %w", err)
	}
	return nil
}

// triggeringKind finds the check kind behind an incident. Manually created
// incidents yield an empty kind.
func (m *Manager) triggeringKind(ctx context.Context, inc *Incident) checks.Kind {
	if inc.CheckRunID == nil {
		return ""
	}
	run, err := m.checks.GetRun(ctx, *inc.CheckRunID)
	if err != nil {
		m.logger.Debug().Err(err).Int64("incident_id", inc.ID).Msg("triggering run unavailable")
		return ""
	}
	def, err := m.checks.GetDefinition(ctx, run.CheckID)
	if err != nil {
		m.logger.Debug().Err(err).Int64("incident_id", inc.ID).Msg("triggering check unavailable")
		return ""
	}
	return def.Kind
}

func (m *Manager) markResolved(inc *Incident, notes string) {
	now := m.now()
	inc.Status = StatusResolved
	inc.ResolvedAt = &now
	inc.ResolutionNotes = &notes
}

func (m *Manager) loadAttempts(ctx context.Context, inc *Incident) error {
	attempts, err := m.incidents.ListAttempts(ctx, inc.ID)
	if err != nil {
		return fmt.Errorf("load remediation attempts: %w", err)
	}
	if attempts == nil {
		attempts = []*Attempt{}
	}
	inc.Attempts = attempts
	return nil
}

// ValidationError represents validation errors.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}
