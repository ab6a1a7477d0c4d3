package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/inferguard/inferguard/internal/api/models"
	"github.com/inferguard/inferguard/internal/api/response"
	"github.com/inferguard/inferguard/internal/incident"
)

// IncidentService manages incidents.
type IncidentService interface {
	Create(ctx context.Context, input incident.CreateInput) (*incident.Incident, error)
	Get(ctx context.Context, id int64) (*incident.Incident, error)
	List(ctx context.Context, filter incident.ListFilter) ([]*incident.Incident, error)
	Summary(ctx context.Context) (*incident.Summary, error)
	Resolve(ctx context.Context, id int64, notes string) (*incident.Incident, error)
}

// IncidentHandler handles incident endpoints.
type IncidentHandler struct {
	incidents IncidentService
	logger    zerolog.Logger
}

// NewIncidentHandler creates a new IncidentHandler.
func NewIncidentHandler(incidents IncidentService, logger zerolog.Logger) *IncidentHandler {
	return &IncidentHandler{incidents: incidents, logger: logger}
}

// List handles GET /v1/incidents.
func (h *IncidentHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter incident.ListFilter
	q := r.URL.Query()

	if raw := q.Get("status"); raw != "" {
		status, err := incident.ParseStatus(raw)
		if err != nil {
			invalidField(w, r, "status", err.Error())
			return
		}
		filter.Status = status
	}
	if raw := q.Get("severity"); raw != "" {
		severity, err := incident.ParseSeverity(raw)
		if err != nil {
			invalidField(w, r, "severity", err.Error())
			return
		}
		filter.Severity = severity
	}
	limit, ok := queryLimit(w, r, incident.MaxListLimit)
	if !ok {
		return
	}
	filter.Limit = limit

	list, err := h.incidents.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, list)
}

// Create handles POST /v1/incidents.
func (h *IncidentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateIncidentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	inc, err := h.incidents.Create(r.Context(), incident.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Severity:    req.Severity,
		CheckRunID:  req.CheckRunID,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.Created(w, r, fmt.Sprintf("/v1/incidents/%d", inc.ID), inc)
}

// Summary handles GET /v1/incidents/summary.
func (h *IncidentHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.incidents.Summary(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, summary)
}

// Get handles GET /v1/incidents/{incidentId}.
func (h *IncidentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "incidentId")
	if !ok {
		return
	}

	inc, err := h.incidents.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, inc)
}

// Resolve handles POST /v1/incidents/{incidentId}/resolve.
func (h *IncidentHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "incidentId")
	if !ok {
		return
	}

	var req models.ResolveIncidentRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	if _, err := h.incidents.Resolve(r.Context(), id, req.ResolutionNotes); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.ResolveIncidentResponse{
		Status:     string(incident.StatusResolved),
		IncidentID: id,
	})
}
