package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/inferguard/inferguard/internal/api/models"
	"github.com/inferguard/inferguard/internal/api/response"
	"github.com/inferguard/inferguard/internal/checks"
	"github.com/inferguard/inferguard/internal/healthcheck"
	"github.com/inferguard/inferguard/internal/monitor"
)

// CheckCatalog is the read side of health check definitions.
type CheckCatalog interface {
	List(ctx context.Context) ([]healthcheck.DefinitionStatus, error)
	Get(ctx context.Context, id int64) (*healthcheck.Definition, error)
	History(ctx context.Context, id int64, limit int) ([]*healthcheck.Run, error)
}

// CheckExecutor runs health checks.
type CheckExecutor interface {
	RunCheck(ctx context.Context, id int64, threshold float64) (*monitor.Outcome, error)
	RunAdHoc(ctx context.Context, kind checks.Kind, threshold float64) *monitor.Outcome
	RunAllEnabled(ctx context.Context) (*monitor.Sweep, error)
}

// HealthCheckHandler handles health check endpoints.
type HealthCheckHandler struct {
	catalog  CheckCatalog
	executor CheckExecutor
	logger   zerolog.Logger
}

// NewHealthCheckHandler creates a new HealthCheckHandler.
func NewHealthCheckHandler(catalog CheckCatalog, executor CheckExecutor, logger zerolog.Logger) *HealthCheckHandler {
	return &HealthCheckHandler{catalog: catalog, executor: executor, logger: logger}
}

// List handles GET /v1/healthchecks.
func (h *HealthCheckHandler) List(w http.ResponseWriter, r *http.Request) {
	defs, err := h.catalog.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, defs)
}

// Get handles GET /v1/healthchecks/{checkId}.
func (h *HealthCheckHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "checkId")
	if !ok {
		return
	}

	def, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	runs, err := h.catalog.History(r.Context(), id, 1)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	status := healthcheck.DefinitionStatus{Definition: def}
	if len(runs) > 0 {
		status.LastRun = runs[0]
	}
	response.JSON(w, r, http.StatusOK, status)
}

// History handles GET /v1/healthchecks/{checkId}/history.
func (h *HealthCheckHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "checkId")
	if !ok {
		return
	}
	limit, ok := queryLimit(w, r, healthcheck.MaxHistoryLimit)
	if !ok {
		return
	}

	runs, err := h.catalog.History(r.Context(), id, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, runs)
}

// Run handles POST /v1/healthchecks/run.
// A check_id runs the configured check; a check_type runs an ad-hoc check
// that is not persisted.
func (h *HealthCheckHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req models.RunCheckRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Threshold < 0 {
		invalidField(w, r, "threshold", "must not be negative")
		return
	}

	if req.CheckID != nil {
		out, err := h.executor.RunCheck(r.Context(), *req.CheckID, req.Threshold)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		response.JSON(w, r, http.StatusOK, out)
		return
	}

	if req.CheckType == "" {
		invalidField(w, r, "check_id", "either check_id or check_type is required")
		return
	}
	kind, err := checks.ParseKind(req.CheckType)
	if err != nil {
		invalidField(w, r, "check_type", err.Error())
		return
	}
	response.JSON(w, r, http.StatusOK, h.executor.RunAdHoc(r.Context(), kind, req.Threshold))
}

// RunAll handles POST /v1/healthchecks/run-all.
func (h *HealthCheckHandler) RunAll(w http.ResponseWriter, r *http.Request) {
	sweep, err := h.executor.RunAllEnabled(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, sweep)
}
