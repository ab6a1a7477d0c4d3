package models

// RunCheckRequest selects a configured check by ID or an ad-hoc check by
// type. A positive threshold overrides the default.
type RunCheckRequest struct {
	CheckID   *int64  `json:"check_id,omitempty"`
	CheckType string  `json:"check_type,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

// InjectFaultRequest activates a simulated failure.
type InjectFaultRequest struct {
	FailureType string `json:"failure_type"`
	Severity    string `json:"severity,omitempty"`
}

// CreateIncidentRequest opens an incident by hand.
type CreateIncidentRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Severity    string `json:"severity,omitempty"`
	CheckRunID  *int64 `json:"check_run_id,omitempty"`
}

// ResolveIncidentRequest closes an incident manually.
type ResolveIncidentRequest struct {
	ResolutionNotes string `json:"resolution_notes,omitempty"`
}

// RemediateRequest runs one remediation attempt against an incident.
type RemediateRequest struct {
	IncidentID int64  `json:"incident_id"`
	Strategy   string `json:"strategy"`
	DryRun     bool   `json:"dry_run"`
}

// AutoRemediateRequest retries a strategy against an incident.
type AutoRemediateRequest struct {
	IncidentID int64  `json:"incident_id"`
	Strategy   string `json:"strategy"`
	MaxRetries int    `json:"max_retries,omitempty"`
	DryRun     bool   `json:"dry_run"`
}
