package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/inferguard/inferguard/internal/api/models"
	"github.com/inferguard/inferguard/internal/api/response"
	"github.com/inferguard/inferguard/internal/incident"
	"github.com/inferguard/inferguard/internal/remediation"
)

// Audit paging bounds.
const (
	defaultAuditLimit = 100
	maxAuditLimit     = 500
)

// IncidentRemediator drives incidents through remediation.
type IncidentRemediator interface {
	Remediate(ctx context.Context, id int64, strategy remediation.Strategy, dryRun bool) (*incident.Outcome, error)
	AutoRemediate(ctx context.Context, id int64, strategy remediation.Strategy, maxRetries int, dryRun bool) (*incident.Outcome, error)
}

// AuditReader exposes recent remediation audit entries.
type AuditReader interface {
	Recent(n int) []remediation.AuditEntry
}

// RemediationHandler handles remediation endpoints.
type RemediationHandler struct {
	remediator        IncidentRemediator
	audit             AuditReader
	defaultMaxRetries int
	logger            zerolog.Logger
}

// NewRemediationHandler creates a new RemediationHandler.
func NewRemediationHandler(
	remediator IncidentRemediator,
	audit AuditReader,
	defaultMaxRetries int,
	logger zerolog.Logger,
) *RemediationHandler {
	if defaultMaxRetries < 1 {
		defaultMaxRetries = 3
	}
	return &RemediationHandler{
		remediator:        remediator,
		audit:             audit,
		defaultMaxRetries: defaultMaxRetries,
		logger:            logger,
	}
}

// Remediate handles POST /v1/remediations.
func (h *RemediationHandler) Remediate(w http.ResponseWriter, r *http.Request) {
	var req models.RemediateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	strategy, ok := h.validate(w, r, req.IncidentID, req.Strategy)
	if !ok {
		return
	}

	out, err := h.remediator.Remediate(r.Context(), req.IncidentID, strategy, req.DryRun)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if len(out.Results) == 0 {
		response.InternalError(w, r, "remediation produced no result")
		return
	}
	response.JSON(w, r, http.StatusOK, out.Results[len(out.Results)-1])
}

// AutoRemediate handles POST /v1/remediations/auto.
func (h *RemediationHandler) AutoRemediate(w http.ResponseWriter, r *http.Request) {
	var req models.AutoRemediateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	strategy, ok := h.validate(w, r, req.IncidentID, req.Strategy)
	if !ok {
		return
	}
	if req.MaxRetries < 0 || req.MaxRetries > 10 {
		invalidField(w, r, "max_retries", "must be between 1 and 10")
		return
	}
	maxRetries := req.MaxRetries
	if maxRetries == 0 {
		maxRetries = h.defaultMaxRetries
	}

	out, err := h.remediator.AutoRemediate(r.Context(), req.IncidentID, strategy, maxRetries, req.DryRun)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.AutoRemediationResponse{
		IncidentID:   req.IncidentID,
		Status:       string(out.Incident.Status),
		Attempts:     len(out.Results),
		FinalSuccess: out.FinalSuccess(),
		Results:      out.Results,
	})
}

// Audit handles GET /v1/remediations/audit.
func (h *RemediationHandler) Audit(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r, maxAuditLimit)
	if !ok {
		return
	}
	if limit == 0 {
		limit = defaultAuditLimit
	}
	response.JSON(w, r, http.StatusOK, h.audit.Recent(limit))
}

// Strategies handles GET /v1/remediations/strategies.
func (h *RemediationHandler) Strategies(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, remediation.Strategies)
}

func (h *RemediationHandler) validate(w http.ResponseWriter, r *http.Request, incidentID int64, raw string) (remediation.Strategy, bool) {
	if incidentID <= 0 {
		invalidField(w, r, "incident_id", "must be a positive integer")
		return "", false
	}
	strategy, err := remediation.ParseStrategy(raw)
	if err != nil {
		invalidField(w, r, "strategy", err.Error())
		return "", false
	}
	return strategy, true
}
