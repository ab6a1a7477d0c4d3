package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferguard/inferguard/internal/api/handler"
	"github.com/inferguard/inferguard/internal/incident"
	"github.com/inferguard/inferguard/internal/infra"
	"github.com/inferguard/inferguard/internal/remediation"
)

type stubIncidents struct {
	err    error
	filter incident.ListFilter
}

func (s *stubIncidents) Create(context.Context, incident.CreateInput) (*incident.Incident, error) {
	return nil, s.err
}

func (s *stubIncidents) Get(context.Context, int64) (*incident.Incident, error) {
	return nil, s.err
}

func (s *stubIncidents) List(_ context.Context, filter incident.ListFilter) ([]*incident.Incident, error) {
	s.filter = filter
	return []*incident.Incident{}, s.err
}

func (s *stubIncidents) Summary(context.Context) (*incident.Summary, error) {
	return nil, s.err
}

func (s *stubIncidents) Resolve(context.Context, int64, string) (*incident.Incident, error) {
	return nil, s.err
}

func serve(h http.HandlerFunc, pattern, method, target, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIncidentHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", incident.ErrIncidentNotFound, http.StatusNotFound},
		{"wrapped transition", errors.Join(errors.New("ctx"), incident.ErrInvalidTransition), http.StatusConflict},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable},
		{"unexpected", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewIncidentHandler(&stubIncidents{err: tt.err}, zerolog.Nop())

			w := serve(h.Get, "/v1/incidents/{incidentId}", http.MethodGet, "/v1/incidents/5", "")

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
			if tt.status == http.StatusInternalServerError {
				assert.NotContains(t, w.Body.String(), "disk full")
			}
		})
	}
}

func TestIncidentHandler_ListFilter(t *testing.T) {
	stub := &stubIncidents{}
	h := handler.NewIncidentHandler(stub, zerolog.Nop())

	w := serve(h.List, "/v1/incidents", http.MethodGet, "/v1/incidents?status=escalated&severity=low&limit=5", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, incident.ListFilter{
		Status:   incident.StatusEscalated,
		Severity: incident.SeverityLow,
		Limit:    5,
	}, stub.filter)
}

func TestIncidentHandler_ValidationErrorsAreReturned(t *testing.T) {
	stub := &stubIncidents{err: &incident.ValidationError{}}
	h := handler.NewIncidentHandler(stub, zerolog.Nop())

	w := serve(h.Create, "/v1/incidents", http.MethodPost, "/v1/incidents", `{"title":""}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type stubRemediator struct {
	maxRetries int
}

func (s *stubRemediator) Remediate(context.Context, int64, remediation.Strategy, bool) (*incident.Outcome, error) {
	return &incident.Outcome{Incident: &incident.Incident{}}, nil
}

func (s *stubRemediator) AutoRemediate(
	_ context.Context,
	id int64,
	strategy remediation.Strategy,
	maxRetries int,
	dryRun bool,
) (*incident.Outcome, error) {
	s.maxRetries = maxRetries
	return &incident.Outcome{
		Incident: &incident.Incident{ID: id, Status: incident.StatusEscalated},
		Results: []remediation.Result{
			{Strategy: strategy, DryRun: dryRun},
		},
	}, nil
}

type stubAudit struct{ requested int }

func (s *stubAudit) Recent(n int) []remediation.AuditEntry {
	s.requested = n
	return []remediation.AuditEntry{}
}

func TestRemediationHandler_AutoUsesDefaultRetries(t *testing.T) {
	stub := &stubRemediator{}
	h := handler.NewRemediationHandler(stub, &stubAudit{}, 4, zerolog.Nop())

	w := serve(h.AutoRemediate, "/auto", http.MethodPost, "/auto", `{"incident_id":3,"strategy":"rollback_model"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 4, stub.maxRetries)
	assert.Contains(t, w.Body.String(), `"status":"escalated"`)
	assert.Contains(t, w.Body.String(), `"final_success":false`)
}

func TestRemediationHandler_EmptyOutcomeIsInternalError(t *testing.T) {
	h := handler.NewRemediationHandler(&stubRemediator{}, &stubAudit{}, 3, zerolog.Nop())

	w := serve(h.Remediate, "/r", http.MethodPost, "/r", `{"incident_id":3,"strategy":"clear_cache"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRemediationHandler_AuditLimit(t *testing.T) {
	tests := []struct {
		query     string
		status    int
		requested int
	}{
		{"", http.StatusOK, 100},
		{"?limit=500", http.StatusOK, 500},
		{"?limit=501", http.StatusBadRequest, 0},
		{"?limit=0", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run("limit"+tt.query, func(t *testing.T) {
			audit := &stubAudit{}
			h := handler.NewRemediationHandler(&stubRemediator{}, audit, 3, zerolog.Nop())

			w := serve(h.Audit, "/audit", http.MethodGet, "/audit"+tt.query, "")

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.requested, audit.requested)
		})
	}
}

type stubFleet struct{}

func (stubFleet) Instances(infra.Provider) []infra.Instance { return nil }
func (stubFleet) Idle(float64) []infra.IdleInstance         { return nil }
func (stubFleet) Opportunities() []infra.Opportunity        { return nil }
func (stubFleet) Summary() infra.Summary                    { return infra.Summary{} }
func (stubFleet) CostSummary() infra.CostSummary            { return infra.CostSummary{} }

func (stubFleet) Collect(string) ([]infra.Metric, error) {
	return []infra.Metric{
		{InstanceID: "aws-1", Provider: infra.ProviderAWS},
		{InstanceID: "oci-1", Provider: infra.ProviderOCI},
	}, nil
}

func TestInfrastructureHandler_MetricsProviderFilter(t *testing.T) {
	h := handler.NewInfrastructureHandler(stubFleet{}, nil, zerolog.Nop())

	w := serve(h.Metrics, "/metrics", http.MethodGet, "/metrics?provider=oci", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "oci-1")
	assert.NotContains(t, w.Body.String(), "aws-1")
}
