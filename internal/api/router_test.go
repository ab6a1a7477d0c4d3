package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferguard/inferguard/internal/api"
	"github.com/inferguard/inferguard/internal/api/handler"
	"github.com/inferguard/inferguard/internal/api/models"
	"github.com/inferguard/inferguard/internal/checks"
	"github.com/inferguard/inferguard/internal/faults"
	"github.com/inferguard/inferguard/internal/healthcheck"
	"github.com/inferguard/inferguard/internal/incident"
	"github.com/inferguard/inferguard/internal/inference"
	"github.com/inferguard/inferguard/internal/infra"
	"github.com/inferguard/inferguard/internal/metrics"
	"github.com/inferguard/inferguard/internal/monitor"
	"github.com/inferguard/inferguard/internal/remediation"
	"github.com/inferguard/inferguard/internal/sim"
)

type testStack struct {
	router   http.Handler
	injector *faults.Injector
}

func newTestStack(t *testing.T, readiness ...handler.ReadinessCheck) *testStack {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.New(io.Discard)

	injector := faults.NewInjector()
	model := inference.NewMockModel(inference.Config{
		BaseLatency:   5 * time.Millisecond,
		LatencyJitter: time.Nanosecond,
		MinLatency:    time.Millisecond,
		BaselineSize:  200,
		Faults:        injector,
		Rand:          sim.NewRand(7),
		Logger:        logger,
	})

	checkRepo := healthcheck.NewInMemoryRepository()
	checkSvc := healthcheck.NewService(healthcheck.ServiceConfig{Repository: checkRepo, Logger: logger})
	_, err := checkSvc.Seed(ctx, healthcheck.DefaultDefinitions())
	require.NoError(t, err)

	remediator := remediation.NewRemediator(remediation.Config{
		Model:         model,
		Faults:        injector,
		Logger:        logger,
		RestartDelay:  time.Millisecond,
		RollbackDelay: time.Millisecond,
		RetryDelay:    time.Millisecond,
	})
	recorder := metrics.NewRecorder()
	manager := incident.NewManager(incident.ManagerConfig{
		Incidents:  incident.NewInMemoryRepository(),
		Checks:     checkRepo,
		Remediator: remediator,
		Recorder:   recorder,
		Logger:     logger,
	})
	runner := checks.NewRunner(checks.Config{
		Model:        model,
		Faults:       injector,
		Rand:         sim.NewRand(11),
		Logger:       logger,
		DriftSamples: 200,
	})
	mon := monitor.NewService(monitor.ServiceConfig{
		Checks:    checkSvc,
		Incidents: manager,
		Runner:    runner,
		Recorder:  recorder,
		Logger:    logger,
	})

	ingestor := infra.NewIngestor(infra.IngestorConfig{Rand: sim.NewRand(3), Recorder: recorder, Logger: logger})
	engine := infra.NewEngine(infra.EngineConfig{Ingestor: ingestor, Logger: logger})

	reg := prometheus.NewRegistry()
	require.NoError(t, recorder.Register(reg))

	router := api.NewRouter(api.RouterConfig{
		Version:    "test",
		BuildTime:  "2024-01-01T00:00:00Z",
		Logger:     logger,
		Gatherer:   reg,
		Checks:     checkSvc,
		Monitor:    mon,
		Faults:     injector,
		Model:      model,
		Incidents:  manager,
		Remediator: manager,
		Audit:      remediator.Audit(),
		Fleet:      ingestor,
		Rightsizer: engine,
		Readiness:  readiness,
	})
	return &testStack{router: router, injector: injector}
}

func (s *testStack) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRouter_HealthCheck(t *testing.T) {
	s := newTestStack(t)

	w := s.do(t, http.MethodGet, "/v1/ops/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	health := decode[models.Health](t, w)
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestRouter_ReadinessCheck(t *testing.T) {
	t.Run("all subsystems healthy", func(t *testing.T) {
		s := newTestStack(t, handler.ReadinessCheck{
			Name:  "database",
			Check: func(context.Context) error { return nil },
		})

		w := s.do(t, http.MethodGet, "/v1/ops/ready", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		health := decode[models.Health](t, w)
		assert.Equal(t, models.HealthStatusOK, health.Status)
		require.Len(t, health.Subsystems, 1)
		assert.Equal(t, "database", health.Subsystems[0].Name)
	})

	t.Run("failing subsystem", func(t *testing.T) {
		s := newTestStack(t,
			handler.ReadinessCheck{Name: "database", Check: func(context.Context) error { return nil }},
			handler.ReadinessCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
		)

		w := s.do(t, http.MethodGet, "/v1/ops/ready", nil)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		health := decode[models.Health](t, w)
		assert.Equal(t, models.HealthStatusFail, health.Status)
		require.Len(t, health.Subsystems, 2)
		assert.Equal(t, models.HealthStatusFail, health.Subsystems[1].Status)
		require.NotNil(t, health.Subsystems[1].Detail)
		assert.Equal(t, "connection refused", *health.Subsystems[1].Detail)
	})
}

func TestRouter_SecurityHeaders(t *testing.T) {
	s := newTestStack(t)

	w := s.do(t, http.MethodGet, "/v1/ops/health", nil)

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestRouter_UnknownRoutesAreProblems(t *testing.T) {
	s := newTestStack(t)

	w := s.do(t, http.MethodGet, "/v1/dashboards", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	p := decode[models.Problem](t, w)
	assert.Equal(t, models.ProblemTypeNotFound, p.Type)
	assert.Equal(t, "/v1/dashboards", p.Instance)
	assert.NotEmpty(t, p.TraceID)

	w = s.do(t, http.MethodPut, "/v1/faults", nil)
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	p = decode[models.Problem](t, w)
	assert.Equal(t, "PUT is not supported on /v1/faults", p.Detail)
}

func TestRouter_HealthChecks_ListAndGet(t *testing.T) {
	s := newTestStack(t)

	w := s.do(t, http.MethodGet, "/v1/healthchecks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	defs := decode[[]healthcheck.DefinitionStatus](t, w)
	require.Len(t, defs, 4)
	assert.Equal(t, "Threat Detection Model Latency", defs[0].Name)
	assert.Nil(t, defs[0].LastRun)

	w = s.do(t, http.MethodGet, "/v1/healthchecks/2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	def := decode[healthcheck.DefinitionStatus](t, w)
	assert.Equal(t, checks.KindCorrectness, def.Kind)

	w = s.do(t, http.MethodGet, "/v1/healthchecks/99", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	w = s.do(t, http.MethodGet, "/v1/healthchecks/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_HealthChecks_RunAdHoc(t *testing.T) {
	s := newTestStack(t)

	w := s.do(t, http.MethodPost, "/v1/healthchecks/run", models.RunCheckRequest{CheckType: "correctness"})

	require.Equal(t, http.StatusOK, w.Code)
	out := decode[monitor.Outcome](t, w)
	assert.True(t, out.Passed)
	assert.InDelta(t, 1.0, out.ResultValue, 1e-9)
	assert.Nil(t, out.RunID)
	assert.Nil(t, out.IncidentID)
}

func TestRouter_HealthChecks_RunValidation(t *testing.T) {
	s := newTestStack(t)

	tests := []struct {
		name string
		body any
	}{
		{name: "neither id nor type", body: map[string]any{}},
		{name: "unknown type", body: map[string]any{"check_type": "throughput"}},
		{name: "negative threshold", body: map[string]any{"check_type": "latency", "threshold": -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/v1/healthchecks/run", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/healthchecks/run", strings.NewReader("{"))
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("non-JSON content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/healthchecks/run", strings.NewReader("check_type=latency"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	})
}

func TestRouter_FaultInjectionAffectsLatencyCheck(t *testing.T) {
	s := newTestStack(t)
	run := models.RunCheckRequest{CheckType: "latency", Threshold: 25}

	w := s.do(t, http.MethodPost, "/v1/healthchecks/run", run)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[monitor.Outcome](t, w).Passed)

	w = s.do(t, http.MethodPost, "/v1/faults", models.InjectFaultRequest{FailureType: "latency", Severity: "high"})
	require.Equal(t, http.StatusOK, w.Code)
	injection := decode[faults.Injection](t, w)
	assert.Equal(t, faults.KindLatency, injection.Injected)
	assert.InDelta(t, 10.0, injection.Multiplier, 1e-9)

	w = s.do(t, http.MethodPost, "/v1/healthchecks/run", run)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[monitor.Outcome](t, w).Passed)

	w = s.do(t, http.MethodDelete, "/v1/faults", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := decode[models.ClearFaultsResponse](t, w)
	assert.Equal(t, "cleared", cleared.Status)
	assert.InDelta(t, 1.0, cleared.FailureMode.LatencyMultiplier, 1e-9)

	w = s.do(t, http.MethodPost, "/v1/healthchecks/run", run)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[monitor.Outcome](t, w).Passed)
}

func TestRouter_FaultInjectionValidation(t *testing.T) {
	s := newTestStack(t)

	w := s.do(t, http.MethodPost, "/v1/faults", models.InjectFaultRequest{FailureType: "meltdown"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/v1/faults", models.InjectFaultRequest{FailureType: "error", Severity: "extreme"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/v1/faults", models.InjectFaultRequest{FailureType: "error"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, faults.SeverityMedium, decode[faults.Injection](t, w).Severity)

	w = s.do(t, http.MethodGet, "/v1/faults", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 0.3, decode[faults.Config](t, w).ErrorRate, 1e-9)
}

func TestRouter_ModelHealth(t *testing.T) {
	s := newTestStack(t)
	s.injector.Inject(faults.KindDrift, faults.SeverityLow)

	w := s.do(t, http.MethodGet, "/v1/model/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "mock://local", body["endpoint"])
	assert.Equal(t, "v1.2.3", body["model_version"])
}

func TestRouter_FailingCheckOpensIncident(t *testing.T) {
	s := newTestStack(t)
	s.injector.Inject(faults.KindLatency, faults.SeverityHigh)

	checkID := int64(1)
	w := s.do(t, http.MethodPost, "/v1/healthchecks/run", models.RunCheckRequest{CheckID: &checkID, Threshold: 25})
	require.Equal(t, http.StatusOK, w.Code)
	out := decode[monitor.Outcome](t, w)
	assert.False(t, out.Passed)
	require.NotNil(t, out.RunID)
	require.NotNil(t, out.IncidentID)

	w = s.do(t, http.MethodGet, "/v1/healthchecks/1/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]healthcheck.Run](t, w), 1)

	w = s.do(t, http.MethodGet, "/v1/incidents?status=open&severity=high", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]incident.Incident](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, *out.IncidentID, list[0].ID)
	assert.Equal(t, out.RunID, list[0].CheckRunID)
}

func TestRouter_IncidentLifecycle(t *testing.T) {
	s := newTestStack(t)

	w := s.do(t, http.MethodPost, "/v1/incidents", models.CreateIncidentRequest{
		Title:    "Classifier returning stale labels",
		Severity: "critical",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	inc := decode[incident.Incident](t, w)
	assert.Equal(t, fmt.Sprintf("/v1/incidents/%d", inc.ID), w.Header().Get("Location"))
	assert.Equal(t, incident.StatusOpen, inc.Status)

	w = s.do(t, http.MethodPost, "/v1/remediations", models.RemediateRequest{
		IncidentID: inc.ID,
		Strategy:   "clear_cache",
		DryRun:     true,
	})
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[remediation.Result](t, w)
	assert.True(t, res.Success)
	assert.True(t, res.DryRun)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/v1/incidents/%d", inc.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[incident.Incident](t, w)
	assert.Equal(t, incident.StatusOpen, got.Status)
	require.Len(t, got.Attempts, 1)
	assert.True(t, got.Attempts[0].DryRun)

	w = s.do(t, http.MethodPost, "/v1/remediations/auto", models.AutoRemediateRequest{
		IncidentID: inc.ID,
		Strategy:   "clear_cache",
	})
	require.Equal(t, http.StatusOK, w.Code)
	auto := decode[models.AutoRemediationResponse](t, w)
	assert.Equal(t, "resolved", auto.Status)
	assert.Equal(t, 1, auto.Attempts)
	assert.True(t, auto.FinalSuccess)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/v1/incidents/%d/resolve", inc.ID), models.ResolveIncidentRequest{})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/v1/remediations", models.RemediateRequest{IncidentID: inc.ID, Strategy: "clear_cache"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/v1/remediations/audit?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	audit := decode[[]remediation.AuditEntry](t, w)
	require.Len(t, audit, 2)
	assert.True(t, audit[0].DryRun)
	assert.False(t, audit[1].DryRun)

	w = s.do(t, http.MethodGet, "/v1/incidents/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[map[string]any](t, w)
	assert.EqualValues(t, 1, summary["total"])
}

func TestRouter_ResolveIncident(t *testing.T) {
	s := newTestStack(t)

	w := s.do(t, http.MethodPost, "/v1/incidents", models.CreateIncidentRequest{Title: "manual"})
	require.Equal(t, http.StatusCreated, w.Code)
	inc := decode[incident.Incident](t, w)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/v1/incidents/%d/resolve", inc.ID), models.ResolveIncidentRequest{
		ResolutionNotes: "false positive",
	})
	require.Equal(t, http.StatusOK, w.Code)
	resolved := decode[models.ResolveIncidentResponse](t, w)
	assert.Equal(t, "resolved", resolved.Status)
	assert.Equal(t, inc.ID, resolved.IncidentID)

	w = s.do(t, http.MethodPost, "/v1/incidents/999/resolve", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_IncidentValidation(t *testing.T) {
	s := newTestStack(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"missing title", http.MethodPost, "/v1/incidents", models.CreateIncidentRequest{}, http.StatusBadRequest},
		{"bad severity", http.MethodPost, "/v1/incidents", models.CreateIncidentRequest{Title: "x", Severity: "urgent"}, http.StatusBadRequest},
		{"bad status filter", http.MethodGet, "/v1/incidents?status=closed", nil, http.StatusBadRequest},
		{"limit too large", http.MethodGet, "/v1/incidents?limit=1000", nil, http.StatusBadRequest},
		{"unknown incident", http.MethodGet, "/v1/incidents/42", nil, http.StatusNotFound},
		{"unknown strategy", http.MethodPost, "/v1/remediations", map[string]any{"incident_id": 1, "strategy": "reboot"}, http.StatusBadRequest},
		{"missing incident id", http.MethodPost, "/v1/remediations/auto", map[string]any{"strategy": "clear_cache"}, http.StatusBadRequest},
		{"remediate unknown incident", http.MethodPost, "/v1/remediations", map[string]any{"incident_id": 42, "strategy": "clear_cache"}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestRouter_Infrastructure(t *testing.T) {
	s := newTestStack(t)

	w := s.do(t, http.MethodGet, "/v1/infrastructure/instances", nil)
	require.Equal(t, http.StatusOK, w.Code)
	all := decode[models.InstanceList](t, w)
	assert.GreaterOrEqual(t, all.Total, 15)
	assert.LessOrEqual(t, all.Total, 30)

	w = s.do(t, http.MethodGet, "/v1/infrastructure/instances?provider=gcp", nil)
	require.Equal(t, http.StatusOK, w.Code)
	gcp := decode[models.InstanceList](t, w)
	for _, inst := range gcp.Instances {
		assert.Equal(t, infra.ProviderGCP, inst.Provider)
	}

	w = s.do(t, http.MethodGet, "/v1/infrastructure/instances?provider=azure", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	id := all.Instances[0].ID
	w = s.do(t, http.MethodGet, "/v1/infrastructure/metrics?instance_id="+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	samples := decode[[]infra.Metric](t, w)
	require.Len(t, samples, 1)
	assert.Equal(t, id, samples[0].InstanceID)

	w = s.do(t, http.MethodGet, "/v1/infrastructure/metrics?instance_id=i-missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/v1/infrastructure/idle?threshold=100", nil)
	require.Equal(t, http.StatusOK, w.Code)
	idle := decode[models.IdleInstances](t, w)
	assert.InDelta(t, 100.0, idle.ThresholdCPU, 1e-9)
	assert.Equal(t, idle.Count, len(idle.Instances))

	w = s.do(t, http.MethodGet, "/v1/infrastructure/idle?threshold=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for _, path := range []string{"/v1/infrastructure/summary", "/v1/infrastructure/cost-summary"} {
		w = s.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRouter_Rightsizing(t *testing.T) {
	s := newTestStack(t)

	w := s.do(t, http.MethodGet, "/v1/rightsizing/opportunities?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.LessOrEqual(t, len(decode[[]infra.Opportunity](t, w)), 2)

	w = s.do(t, http.MethodGet, "/v1/rightsizing/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[infra.Report](t, w)
	assert.NotEmpty(t, report.ExecutiveSummary)

	w = s.do(t, http.MethodGet, "/v1/rightsizing/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]infra.ReportRecord](t, w), 1)

	w = s.do(t, http.MethodGet, "/v1/rightsizing/report/csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "rightsizing_report.csv")
	assert.True(t, strings.HasPrefix(w.Body.String(), "instance_id,"))

	w = s.do(t, http.MethodGet, "/v1/rightsizing/playbook", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "dry_run")

	w = s.do(t, http.MethodGet, "/v1/rightsizing/analysis/i-missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_PrometheusMetrics(t *testing.T) {
	s := newTestStack(t)

	w := s.do(t, http.MethodPost, "/v1/healthchecks/run", models.RunCheckRequest{CheckType: "resource"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "health_check_runs_total")
}

func TestRouter_ControlRateLimit(t *testing.T) {
	s := newTestStack(t)

	for i := 0; i < 20; i++ {
		w := s.do(t, http.MethodDelete, "/v1/faults", nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
	}

	w := s.do(t, http.MethodDelete, "/v1/faults", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}
