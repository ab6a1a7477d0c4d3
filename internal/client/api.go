package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/inferguard/inferguard/internal/api/models"
	"github.com/inferguard/inferguard/internal/faults"
	"github.com/inferguard/inferguard/internal/healthcheck"
	"github.com/inferguard/inferguard/internal/incident"
	"github.com/inferguard/inferguard/internal/inference"
	"github.com/inferguard/inferguard/internal/monitor"
	"github.com/inferguard/inferguard/internal/remediation"
)

// Ready returns the API readiness report.
func (c *Client) Ready(ctx context.Context) (*models.Health, error) {
	var out models.Health
	if err := c.do(ctx, http.MethodGet, "/v1/ops/ready", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ModelHealth returns the inference backend status.
func (c *Client) ModelHealth(ctx context.Context) (*inference.Health, error) {
	var out inference.Health
	if err := c.do(ctx, http.MethodGet, "/v1/model/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// InjectFault activates a simulated failure.
func (c *Client) InjectFault(ctx context.Context, failureType, severity string) (*faults.Injection, error) {
	var out faults.Injection
	req := models.InjectFaultRequest{FailureType: failureType, Severity: severity}
	if err := c.do(ctx, http.MethodPost, "/v1/faults", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearFaults resets every simulated failure.
func (c *Client) ClearFaults(ctx context.Context) (*models.ClearFaultsResponse, error) {
	var out models.ClearFaultsResponse
	if err := c.do(ctx, http.MethodDelete, "/v1/faults", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListChecks returns every check definition with its last run.
func (c *Client) ListChecks(ctx context.Context) ([]healthcheck.DefinitionStatus, error) {
	var out []healthcheck.DefinitionStatus
	if err := c.do(ctx, http.MethodGet, "/v1/healthchecks", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RunAllChecks executes every enabled check.
func (c *Client) RunAllChecks(ctx context.Context) (*monitor.Sweep, error) {
	var out monitor.Sweep
	if err := c.do(ctx, http.MethodPost, "/v1/healthchecks/run-all", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// IncidentSummary returns incident counts.
func (c *Client) IncidentSummary(ctx context.Context) (*incident.Summary, error) {
	var out incident.Summary
	if err := c.do(ctx, http.MethodGet, "/v1/incidents/summary", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListIncidents returns incidents, optionally narrowed by status.
func (c *Client) ListIncidents(ctx context.Context, status string, limit int) ([]incident.Incident, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/incidents"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []incident.Incident
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Remediate runs one remediation attempt.
func (c *Client) Remediate(ctx context.Context, incidentID int64, strategy string, dryRun bool) (*remediation.Result, error) {
	var out remediation.Result
	req := models.RemediateRequest{IncidentID: incidentID, Strategy: strategy, DryRun: dryRun}
	if err := c.do(ctx, http.MethodPost, "/v1/remediations", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AutoRemediate retries a strategy until it succeeds or maxRetries is spent.
func (c *Client) AutoRemediate(
	ctx context.Context,
	incidentID int64,
	strategy string,
	maxRetries int,
	dryRun bool,
) (*models.AutoRemediationResponse, error) {
	var out models.AutoRemediationResponse
	req := models.AutoRemediateRequest{
		IncidentID: incidentID,
		Strategy:   strategy,
		MaxRetries: maxRetries,
		DryRun:     dryRun,
	}
	if err := c.do(ctx, http.MethodPost, "/v1/remediations/auto", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Audit returns up to limit recent remediation attempts.
func (c *Client) Audit(ctx context.Context, limit int) ([]remediation.AuditEntry, error) {
	path := "/v1/remediations/audit"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	var out []remediation.AuditEntry
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
