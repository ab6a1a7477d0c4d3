package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/inferguard/inferguard/internal/api/models"
	"github.com/inferguard/inferguard/internal/api/response"
	"github.com/inferguard/inferguard/internal/infra"
)

// Opportunity paging bounds.
const (
	defaultOpportunityLimit = 20
	maxOpportunityLimit     = 100
)

// Fleet is the metrics side of the simulated cloud fleet.
type Fleet interface {
	Instances(provider infra.Provider) []infra.Instance
	Collect(id string) ([]infra.Metric, error)
	Idle(cpuThreshold float64) []infra.IdleInstance
	Opportunities() []infra.Opportunity
	Summary() infra.Summary
	CostSummary() infra.CostSummary
}

// Rightsizer produces rightsizing analyses and exports.
type Rightsizer interface {
	Analyze(instanceID string) (*infra.Analysis, error)
	Report() *infra.Report
	History() []infra.ReportRecord
	ExportCSV() ([]byte, error)
	ExportPlaybook() ([]byte, error)
}

// InfrastructureHandler handles fleet and rightsizing endpoints.
type InfrastructureHandler struct {
	fleet      Fleet
	rightsizer Rightsizer
	logger     zerolog.Logger
}

// NewInfrastructureHandler creates a new InfrastructureHandler.
func NewInfrastructureHandler(fleet Fleet, rightsizer Rightsizer, logger zerolog.Logger) *InfrastructureHandler {
	return &InfrastructureHandler{fleet: fleet, rightsizer: rightsizer, logger: logger}
}

// Instances handles GET /v1/infrastructure/instances.
func (h *InfrastructureHandler) Instances(w http.ResponseWriter, r *http.Request) {
	provider, ok := queryProvider(w, r)
	if !ok {
		return
	}
	instances := h.fleet.Instances(provider)
	response.JSON(w, r, http.StatusOK, models.InstanceList{Total: len(instances), Instances: instances})
}

// Metrics handles GET /v1/infrastructure/metrics.
// It takes a fresh sample of the fleet, or of instance_id alone.
func (h *InfrastructureHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	provider, ok := queryProvider(w, r)
	if !ok {
		return
	}

	samples, err := h.fleet.Collect(r.URL.Query().Get("instance_id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if provider != "" {
		filtered := samples[:0]
		for _, m := range samples {
			if m.Provider == provider {
				filtered = append(filtered, m)
			}
		}
		samples = filtered
	}
	response.JSON(w, r, http.StatusOK, samples)
}

// Summary handles GET /v1/infrastructure/summary.
func (h *InfrastructureHandler) Summary(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.fleet.Summary())
}

// Idle handles GET /v1/infrastructure/idle.
func (h *InfrastructureHandler) Idle(w http.ResponseWriter, r *http.Request) {
	threshold := float64(infra.CPUIdleThreshold)
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 || v > 100 {
			invalidField(w, r, "threshold", "must be a percentage between 0 and 100")
			return
		}
		threshold = v
	}

	idle := h.fleet.Idle(threshold)
	response.JSON(w, r, http.StatusOK, models.IdleInstances{
		ThresholdCPU: threshold,
		Count:        len(idle),
		Instances:    idle,
	})
}

// CostSummary handles GET /v1/infrastructure/cost-summary.
func (h *InfrastructureHandler) CostSummary(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.fleet.CostSummary())
}

// Opportunities handles GET /v1/rightsizing/opportunities.
func (h *InfrastructureHandler) Opportunities(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r, maxOpportunityLimit)
	if !ok {
		return
	}
	if limit == 0 {
		limit = defaultOpportunityLimit
	}

	opps := h.fleet.Opportunities()
	if len(opps) > limit {
		opps = opps[:limit]
	}
	response.JSON(w, r, http.StatusOK, opps)
}

// Analysis handles GET /v1/rightsizing/analysis/{instanceId}.
func (h *InfrastructureHandler) Analysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.rightsizer.Analyze(chi.URLParam(r, "instanceId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, analysis)
}

// Report handles GET /v1/rightsizing/report.
func (h *InfrastructureHandler) Report(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.rightsizer.Report())
}

// ReportHistory handles GET /v1/rightsizing/history.
func (h *InfrastructureHandler) ReportHistory(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.rightsizer.History())
}

// ReportCSV handles GET /v1/rightsizing/report/csv.
func (h *InfrastructureHandler) ReportCSV(w http.ResponseWriter, r *http.Request) {
	body, err := h.rightsizer.ExportCSV()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="rightsizing_report.csv"`)
	response.Text(w, r, http.StatusOK, "text/csv", body)
}

// Playbook handles GET /v1/rightsizing/playbook.
func (h *InfrastructureHandler) Playbook(w http.ResponseWriter, r *http.Request) {
	body, err := h.rightsizer.ExportPlaybook()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="rightsizing_playbook.yml"`)
	response.Text(w, r, http.StatusOK, "application/yaml", body)
}

func queryProvider(w http.ResponseWriter, r *http.Request) (infra.Provider, bool) {
	raw := r.URL.Query().Get("provider")
	if raw == "" {
		return "", true
	}
	provider, err := infra.ParseProvider(raw)
	if err != nil {
		invalidField(w, r, "provider", err.Error())
		return "", false
	}
	return provider, true
}
