package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/inferguard/inferguard/internal/api/models"
	"github.com/inferguard/inferguard/internal/api/response"
	"github.com/inferguard/inferguard/internal/faults"
	"github.com/inferguard/inferguard/internal/inference"
)

// FaultController injects and clears simulated failures.
type FaultController interface {
	Snapshot() faults.Config
	Inject(kind faults.Kind, severity faults.Severity) faults.Injection
	Clear()
}

// ModelReporter reports inference model health.
type ModelReporter interface {
	Health(ctx context.Context) inference.Health
}

// ModelHandler handles model health and fault injection endpoints.
type ModelHandler struct {
	faults FaultController
	model  ModelReporter
	logger zerolog.Logger
}

// NewModelHandler creates a new ModelHandler.
func NewModelHandler(fc FaultController, model ModelReporter, logger zerolog.Logger) *ModelHandler {
	return &ModelHandler{faults: fc, model: model, logger: logger}
}

// Health handles GET /v1/model/health.
func (h *ModelHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.model.Health(r.Context()))
}

// Faults handles GET /v1/faults.
func (h *ModelHandler) Faults(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.faults.Snapshot())
}

// Inject handles POST /v1/faults.
func (h *ModelHandler) Inject(w http.ResponseWriter, r *http.Request) {
	var req models.InjectFaultRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	kind, err := faults.ParseKind(req.FailureType)
	if err != nil {
		invalidField(w, r, "failure_type", err.Error())
		return
	}
	severity := faults.SeverityMedium
	if req.Severity != "" {
		if severity, err = faults.ParseSeverity(req.Severity); err != nil {
			invalidField(w, r, "severity", err.Error())
			return
		}
	}

	injection := h.faults.Inject(kind, severity)
	h.logger.Warn().
		Str("failure_type", string(kind)).
		Str("severity", string(severity)).
		Float64("multiplier", injection.Multiplier).
		Msg("fault injected")

	response.JSON(w, r, http.StatusOK, injection)
}

// Clear handles DELETE /v1/faults.
func (h *ModelHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.faults.Clear()
	h.logger.Info().Msg("faults cleared")

	response.JSON(w, r, http.StatusOK, models.ClearFaultsResponse{
		Status:      "cleared",
		FailureMode: h.faults.Snapshot(),
		Timestamp:   models.Now(),
	})
}
