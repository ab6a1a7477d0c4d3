// Package incident tracks incidents raised by failing health checks and drives
// their remediation lifecycle.
package incident

import (
	"errors"
	"fmt"
	"time"

	"github.com/inferguard/inferguard/internal/checks"
	"github.com/inferguard/inferguard/internal/remediation"
)

// Repository and workflow errors.
var (
	ErrIncidentNotFound  = errors.New("incident not found")
	ErrInvalidTransition = errors.New("invalid incident status transition")
)

// Severity ranks an incident.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists every severity from least to most severe.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// ParseSeverity validates a severity supplied by a caller.
func ParseSeverity(s string) (Severity, error) {
	for _, sev := range Severities {
		if string(sev) == s {
			return sev, nil
		}
	}
	return "", fmt.Errorf("unknown severity: %q", s)
}

// SeverityForKind maps the kind of a failed check to the severity of the
// incident it raises.
func SeverityForKind(kind checks.Kind) Severity {
	switch kind {
	case checks.KindLatency:
		return SeverityHigh
	case checks.KindCorrectness:
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

// Status is the lifecycle state of an incident.
type Status string

const (
	StatusOpen        Status = "open"
	StatusRemediating Status = "remediating"
	StatusResolved    Status = "resolved"
	StatusEscalated   Status = "escalated"
)

// Statuses lists every status.
var Statuses = []Status{StatusOpen, StatusRemediating, StatusResolved, StatusEscalated}

// ParseStatus validates a status supplied by a caller.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown incident status: %q", s)
}

// Resolved incidents are terminal. Remediating may fall back to open only
// when a dry run restores the prior status.
var transitions = map[Status][]Status{
	StatusOpen:        {StatusRemediating, StatusResolved},
	StatusRemediating: {StatusRemediating, StatusResolved, StatusEscalated, StatusOpen},
	StatusEscalated:   {StatusRemediating, StatusResolved},
}

// CanTransition reports whether an incident may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Incident is a recorded failure requiring attention.
type Incident struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Severity        Severity   `json:"severity"`
	Status          Status     `json:"status"`
	CheckRunID      *int64     `json:"check_run_id"`
	TriggeredAt     time.Time  `json:"triggered_at"`
	ResolvedAt      *time.Time `json:"resolved_at"`
	ResolutionNotes *string    `json:"resolution_notes"`
	Attempts        []*Attempt `json:"remediation_attempts"`
}

// Attempt is one persisted remediation attempt against an incident.
type Attempt struct {
	ID          int64                `json:"id"`
	IncidentID  int64                `json:"incident_id"`
	Strategy    remediation.Strategy `json:"strategy"`
	DryRun      bool                 `json:"dry_run"`
	Success     bool                 `json:"success"`
	Details     map[string]any       `json:"details"`
	AttemptedAt time.Time            `json:"attempted_at"`
	CompletedAt *time.Time           `json:"completed_at"`
}

// ListFilter narrows an incident listing. Zero values match everything.
type ListFilter struct {
	Status   Status
	Severity Severity
	Limit    int
}

// Summary aggregates incident counts.
type Summary struct {
	Total            int              `json:"total"`
	ByStatus         map[Status]int   `json:"by_status"`
	BySeverity       map[Severity]int `json:"by_severity"`
	ActiveBySeverity map[Severity]int `json:"active_by_severity"`
	Last24Hours      int              `json:"last_24_hours"`
	Timestamp        time.Time        `json:"timestamp"`
}

// Active reports whether an incident still needs attention.
func (i *Incident) Active() bool {
	return i.Status != StatusResolved
}

// CreateInput is the payload for a manually reported incident.
type CreateInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	CheckRunID  *int64 `json:"check_run_id"`
}

// Outcome is the result of driving an incident through remediation.
type Outcome struct {
	Incident *Incident            `json:"incident"`
	Results  []remediation.Result `json:"results"`
}

// FinalSuccess reports whether the last attempt succeeded.
func (o *Outcome) FinalSuccess() bool {
	return len(o.Results) > 0 && o.Results[len(o.Results)-1].Success
}

func newSummary() *Summary {
	return &Summary{
		ByStatus:         make(map[Status]int),
		BySeverity:       make(map[Severity]int),
		ActiveBySeverity: make(map[Severity]int),
	}
}

// add folds count incidents with the given status and severity into s, recent
// of which fall inside the last 24 hours.
func (s *Summary) add(status Status, severity Severity, count, recent int) {
	s.Total += count
	s.ByStatus[status] += count
	s.BySeverity[severity] += count
	if status != StatusResolved {
		s.ActiveBySeverity[severity] += count
	}
	s.Last24Hours += recent
}
