package infra

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Report section sizes.
const (
	ReportTopOpportunities = 10
	ReportTopIdle          = 10
	ReportMaxAnalyses      = 20
	PlaybookMaxTasks       = 5
	reportHistoryLimit     = 100
)

// UtilizationStatus classifies an instance's load.
type UtilizationStatus string

const (
	StatusIdle          UtilizationStatus = "idle"
	StatusUnderutilized UtilizationStatus = "underutilized"
	StatusOverutilized  UtilizationStatus = "overutilized"
	StatusOptimal       UtilizationStatus = "optimal"
)

// Classify derives the utilization status from cpu and memory percentages.
func Classify(cpu, memory float64) UtilizationStatus {
	switch {
	case cpu < CPUIdleThreshold && memory < MemoryLowThreshold:
		return StatusIdle
	case cpu < CPULowThreshold:
		return StatusUnderutilized
	case cpu > CPUHighThreshold || memory > MemoryHighThreshold:
		return StatusOverutilized
	default:
		return StatusOptimal
	}
}

// Recommendation is one suggested action for an instance.
type Recommendation struct {
	Type     string `json:"type"`
	Priority string `json:"priority"`
	Reason   string `json:"reason"`
	Action   string `json:"action"`
}

// Utilization is the sampled load of an instance.
type Utilization struct {
	CPU      float64 `json:"cpu"`
	Memory   float64 `json:"memory"`
	DiskIOPS float64 `json:"disk_iops"`
}

// Analysis is the rightsizing verdict for one instance.
type Analysis struct {
	InstanceID         string            `json:"instance_id"`
	Provider           Provider          `json:"provider"`
	InstanceType       string            `json:"instance_type"`
	Region             string            `json:"region"`
	CurrentUtilization Utilization       `json:"current_utilization"`
	Status             UtilizationStatus `json:"status"`
	Recommendations    []Recommendation  `json:"recommendations"`
	EstimatedSavings   decimal.Decimal   `json:"estimated_savings"`
	AnalyzedAt         time.Time         `json:"analyzed_at"`
}

// ReportSummary is the headline section of a Report.
type ReportSummary struct {
	TotalInstances               int                        `json:"total_instances"`
	ByProvider                   map[Provider]ProviderStats `json:"by_provider"`
	UtilizationBreakdown         map[UtilizationStatus]int  `json:"utilization_breakdown"`
	TotalPotentialMonthlySavings decimal.Decimal            `json:"total_potential_monthly_savings"`
	IdleInstanceCount            int                        `json:"idle_instance_count"`
	RightsizingOpportunities     int                        `json:"rightsizing_opportunities"`
}

// Report is a fleet-wide rightsizing report.
type Report struct {
	Title              string         `json:"title"`
	GeneratedAt        time.Time      `json:"generated_at"`
	Summary            ReportSummary  `json:"summary"`
	TopRecommendations []Opportunity  `json:"top_recommendations"`
	IdleInstances      []IdleInstance `json:"idle_instances"`
	DetailedAnalyses   []Analysis     `json:"detailed_analyses"`
	ExecutiveSummary   string         `json:"executive_summary"`
}

// ReportRecord is a past report's summary.
type ReportRecord struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Summary     ReportSummary `json:"summary"`
}

// EngineConfig holds configuration for an Engine.
type EngineConfig struct {
	Ingestor *Ingestor
	Logger   zerolog.Logger
}

// Engine turns utilization samples into rightsizing recommendations.
type Engine struct {
	ingestor *Ingestor
	logger   zerolog.Logger

	mu      sync.Mutex
	history []ReportRecord
}

// NewEngine creates a rightsizing engine.
func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{ingestor: cfg.Ingestor, logger: cfg.Logger}
}

// Ingestor returns the metrics source the engine analyzes.
func (e *Engine) Ingestor() *Ingestor {
	return e.ingestor
}

// Analyze samples one instance and recommends actions for it.
func (e *Engine) Analyze(instanceID string) (*Analysis, error) {
	metrics, err := e.ingestor.Collect(instanceID)
	if err != nil {
		return nil, err
	}
	a := e.analyze(metrics[0])
	return &a, nil
}

func (e *Engine) analyze(m Metric) Analysis {
	a := Analysis{
		InstanceID:   m.InstanceID,
		Provider:     m.Provider,
		InstanceType: m.InstanceType,
		Region:       m.Region,
		CurrentUtilization: Utilization{
			CPU:      m.CPUUtil,
			Memory:   m.MemoryUtil,
			DiskIOPS: m.DiskIOPS,
		},
		Status:           Classify(m.CPUUtil, m.MemoryUtil),
		Recommendations:  []Recommendation{},
		EstimatedSavings: decimal.Zero,
		AnalyzedAt:       e.ingestor.now(),
	}

	switch {
	case m.CPUUtil < CPUIdleThreshold:
		a.Recommendations = append(a.Recommendations, Recommendation{
			Type:     "terminate_or_downsize",
			Priority: "high",
			Reason:   fmt.Sprintf("CPU utilization is only %.1f%%", m.CPUUtil),
			Action:   "Consider terminating if unused, or downsizing significantly",
		})
	case m.CPUUtil < CPULowThreshold:
		a.Recommendations = append(a.Recommendations, Recommendation{
			Type:     "downsize",
			Priority: "medium",
			Reason:   fmt.Sprintf("CPU utilization is low at %.1f%%", m.CPUUtil),
			Action:   "Consider downsizing to a smaller instance type",
		})
	case m.CPUUtil > CPUHighThreshold:
		a.Recommendations = append(a.Recommendations, Recommendation{
			Type:     "upsize_or_scale",
			Priority: "high",
			Reason:   fmt.Sprintf("CPU utilization is high at %.1f%%", m.CPUUtil),
			Action:   "Consider upsizing or adding horizontal scaling",
		})
	}

	if m.MemoryUtil > MemoryHighThreshold {
		a.Recommendations = append(a.Recommendations, Recommendation{
			Type:     "add_memory",
			Priority: "high",
			Reason:   fmt.Sprintf("Memory utilization is critical at %.1f%%", m.MemoryUtil),
			Action:   "Consider instance type with more memory",
		})
	}

	if opp, ok := e.ingestor.opportunityFor(m); ok {
		a.EstimatedSavings = opp.EstimatedMonthlySavings
		a.Recommendations = append(a.Recommendations, Recommendation{
			Type:     "rightsize",
			Priority: "medium",
			Reason:   "Could save $" + opp.EstimatedMonthlySavings.StringFixed(2) + "/month",
			Action:   fmt.Sprintf("Change from %s to %s", opp.CurrentType, opp.RecommendedType),
		})
	}
	return a
}

// Report samples the whole fleet once and builds a rightsizing report from it.
func (e *Engine) Report() *Report {
	metrics, _ := e.ingestor.Collect("")

	opps := e.ingestor.opportunitiesFrom(metrics)
	idle := e.ingestor.idleFrom(metrics, CPUIdleThreshold)
	summary := e.ingestor.summaryFrom(metrics)

	analyses := make([]Analysis, 0, len(metrics))
	breakdown := make(map[UtilizationStatus]int)
	for _, m := range metrics {
		a := e.analyze(m)
		breakdown[a.Status]++
		analyses = append(analyses, a)
	}

	savings := totalSavings(opps)
	report := &Report{
		Title:       "Infrastructure Rightsizing Report",
		GeneratedAt: e.ingestor.now(),
		Summary: ReportSummary{
			TotalInstances:               len(e.ingestor.instances),
			ByProvider:                   summary.ByProvider,
			UtilizationBreakdown:         breakdown,
			TotalPotentialMonthlySavings: savings,
			IdleInstanceCount:            len(idle),
			RightsizingOpportunities:     len(opps),
		},
		TopRecommendations: head(opps, ReportTopOpportunities),
		IdleInstances:      head(idle, ReportTopIdle),
		DetailedAnalyses:   head(analyses, ReportMaxAnalyses),
		ExecutiveSummary:   executiveSummary(len(e.ingestor.instances), breakdown, savings, len(opps)),
	}

	e.mu.Lock()
	e.history = append(e.history, ReportRecord{GeneratedAt: report.GeneratedAt, Summary: report.Summary})
	if len(e.history) > reportHistoryLimit {
		e.history = e.history[len(e.history)-reportHistoryLimit:]
	}
	e.mu.Unlock()

	e.logger.Info().
		Int("instances", report.Summary.TotalInstances).
		Int("opportunities", len(opps)).
		Str("monthly_savings", savings.StringFixed(2)).
		Msg("rightsizing report generated")

	return report
}

// History returns summaries of previously generated reports, oldest first.
func (e *Engine) History() []ReportRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ReportRecord, len(e.history))
	copy(out, e.history)
	return out
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func executiveSummary(total int, breakdown map[UtilizationStatus]int, savings decimal.Decimal, opportunities int) string {
	return fmt.Sprintf(`## Executive Summary

Analyzed **%d instances** across AWS, GCP, and OCI cloud providers.

### Key Findings:
- **%d** instances are idle (<10%% CPU utilization)
- **%d** instances are underutilized (<30%% CPU)
- **%d** instances are overutilized (>80%% CPU)
- **%d** instances are optimally utilized

### Cost Optimization Potential:
- **%d** rightsizing opportunities identified
- Estimated monthly savings: **$%s**

### Recommended Actions:
1. Review and terminate idle instances
2. Downsize underutilized instances
3. Add capacity to overutilized instances
4. Implement auto-scaling where appropriate`,
		total,
		breakdown[StatusIdle],
		breakdown[StatusUnderutilized],
		breakdown[StatusOverutilized],
		breakdown[StatusOptimal],
		opportunities,
		groupThousands(savings.StringFixed(2)),
	)
}

// groupThousands inserts commas into the integer part of a fixed-point number.
func groupThousands(s string) string {
	intPart, frac := s, ""
	for idx := range len(s) {
		if s[idx] == '.' {
			intPart, frac = s[:idx], s[idx:]
			break
		}
	}
	sign := ""
	if len(intPart) > 0 && intPart[0] == '-' {
		sign, intPart = "-", intPart[1:]
	}
	var b bytes.Buffer
	for idx, r := range intPart {
		if idx > 0 && (len(intPart)-idx)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + frac
}

// csvHeader is the column layout of the CSV export.
var csvHeader = []string{
	"instance_id", "provider", "current_type", "recommended_type",
	"current_cpu", "monthly_savings", "confidence",
}

// WriteCSV writes opportunities in spreadsheet form.
func WriteCSV(w io.Writer, opps []Opportunity) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, o := range opps {
		record := []string{
			o.InstanceID,
			string(o.Provider),
			o.CurrentType,
			o.RecommendedType,
			strconv.FormatFloat(o.CurrentCPUUtil, 'f', 1, 64),
			o.EstimatedMonthlySavings.StringFixed(2),
			o.Confidence,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSV samples the fleet and renders its opportunities as CSV.
func (e *Engine) ExportCSV() ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, e.ingestor.Opportunities()); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

type play struct {
	Name        string         `yaml:"name"`
	Hosts       string         `yaml:"hosts"`
	Connection  string         `yaml:"connection"`
	GatherFacts bool           `yaml:"gather_facts"`
	Vars        map[string]any `yaml:"vars"`
	Tasks       []task         `yaml:"tasks"`
}

type task struct {
	Name        string            `yaml:"name"`
	Debug       map[string]string `yaml:"debug,omitempty"`
	EC2Instance *ec2Instance      `yaml:"ec2_instance,omitempty"`
	When        string            `yaml:"when,omitempty"`
	Tags        []string          `yaml:"tags,omitempty"`
}

type ec2Instance struct {
	InstanceID   string `yaml:"instance_id"`
	InstanceType string `yaml:"instance_type"`
	State        string `yaml:"state"`
}

// Playbook renders an Ansible playbook that resizes the top AWS
// recommendations. It runs in dry-run mode unless dry_run is overridden.
func Playbook(opps []Opportunity, generatedAt time.Time) ([]byte, error) {
	tasks := []task{{
		Name:  "Display dry run warning",
		Debug: map[string]string{"msg": "DRY RUN MODE - No changes will be applied"},
		When:  "dry_run",
	}}

	for _, o := range head(opps, PlaybookMaxTasks) {
		if o.Provider != ProviderAWS {
			continue
		}
		tasks = append(tasks, task{
			Name: fmt.Sprintf("Resize %s to %s", o.InstanceID, o.RecommendedType),
			EC2Instance: &ec2Instance{
				InstanceID:   o.InstanceID,
				InstanceType: o.RecommendedType,
				State:        "present",
			},
			When: "not dry_run",
			Tags: []string{"rightsize", "aws"},
		})
	}

	tasks = append(tasks, task{
		Name:  "Log recommendations",
		Debug: map[string]string{"msg": fmt.Sprintf("Would apply %d rightsizing changes", len(opps))},
	})

	plays := []play{{
		Name:        "Apply rightsizing recommendations",
		Hosts:       "localhost",
		Connection:  "local",
		GatherFacts: false,
		Vars:        map[string]any{"dry_run": true},
		Tasks:       tasks,
	}}

	body, err := yaml.Marshal(plays)
	if err != nil {
		return nil, fmt.Errorf("encode playbook: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	fmt.Fprintf(&buf, "# Rightsizing Playbook - Generated %s\n", generatedAt.Format(time.RFC3339))
	buf.WriteString("# REVIEW CAREFULLY BEFORE EXECUTING\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

// ExportPlaybook samples the fleet and renders its playbook.
func (e *Engine) ExportPlaybook() ([]byte, error) {
	return Playbook(e.ingestor.Opportunities(), e.ingestor.now())
}
