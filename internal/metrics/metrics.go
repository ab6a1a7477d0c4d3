// Package metrics exposes the monitor's Prometheus collectors.
package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// StatusPassed labels passing check runs.
	StatusPassed = "passed"
	// StatusFailed labels failing check runs.
	StatusFailed = "failed"
)

// Recorder owns the domain collectors. It satisfies the recorder interfaces of
// the monitor, incident and infra packages.
type Recorder struct {
	checkRuns           *prometheus.CounterVec
	checkLatency        *prometheus.HistogramVec
	checkStatus         *prometheus.GaugeVec
	checkLastValue      *prometheus.GaugeVec
	incidentsTotal      *prometheus.CounterVec
	incidentsActive     *prometheus.GaugeVec
	remediationAttempts *prometheus.CounterVec
	remediationDuration *prometheus.HistogramVec
	instanceCPU         *prometheus.GaugeVec
	instanceMemory      *prometheus.GaugeVec
	potentialSavings    prometheus.Gauge
}

// NewRecorder creates the collectors without registering them.
func NewRecorder() *Recorder {
	return &Recorder{
		checkRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "health_check_runs_total",
				Help: "Total number of health check runs.",
			},
			[]string{"check_name", "check_type", "status"},
		),
		checkLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "health_check_latency_ms",
				Help:    "Health check execution latency in milliseconds.",
				Buckets: []float64{10, 25, 50, 100, 200, 500, 1000, 2000, 5000},
			},
			[]string{"check_name", "check_type"},
		),
		checkStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "health_check_status",
				Help: "Current health check status (1 = passing, 0 = failing).",
			},
			[]string{"check_name", "check_type"},
		),
		checkLastValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "health_check_last_result_value",
				Help: "Result value of the most recent health check run.",
			},
			[]string{"check_name", "check_type"},
		),
		incidentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "incidents_total",
				Help: "Total number of incidents created.",
			},
			[]string{"severity"},
		),
		incidentsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "incidents_active",
				Help: "Number of incidents not yet resolved.",
			},
			[]string{"severity"},
		),
		remediationAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "remediation_attempts_total",
				Help: "Total number of remediation attempts.",
			},
			[]string{"strategy", "success"},
		),
		remediationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "remediation_duration_seconds",
				Help:    "Remediation execution time in seconds.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"strategy"},
		),
		instanceCPU: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "instance_cpu_utilization",
				Help: "Latest CPU utilization percentage per instance.",
			},
			[]string{"instance_id", "provider", "instance_type"},
		),
		instanceMemory: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "instance_memory_utilization",
				Help: "Latest memory utilization percentage per instance.",
			},
			[]string{"instance_id", "provider", "instance_type"},
		),
		potentialSavings: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rightsizing_potential_savings_monthly",
				Help: "Total potential monthly savings from rightsizing in USD.",
			},
		),
	}
}

// Register attaches the collectors to reg. Collectors that are already
// registered are skipped.
func (r *Recorder) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		r.checkRuns,
		r.checkLatency,
		r.checkStatus,
		r.checkLastValue,
		r.incidentsTotal,
		r.incidentsActive,
		r.remediationAttempts,
		r.remediationDuration,
		r.instanceCPU,
		r.instanceMemory,
		r.potentialSavings,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// CheckRun records a health check execution.
func (r *Recorder) CheckRun(checkName, checkType string, passed bool, latencyMs, resultValue float64) {
	status, up := StatusFailed, 0.0
	if passed {
		status, up = StatusPassed, 1.0
	}
	r.checkRuns.WithLabelValues(checkName, checkType, status).Inc()
	r.checkLatency.WithLabelValues(checkName, checkType).Observe(latencyMs)
	r.checkStatus.WithLabelValues(checkName, checkType).Set(up)
	r.checkLastValue.WithLabelValues(checkName, checkType).Set(resultValue)
}

// IncidentCreated counts a new incident.
func (r *Recorder) IncidentCreated(severity string) {
	r.incidentsTotal.WithLabelValues(severity).Inc()
}

// ActiveIncidents replaces the active incident gauge.
func (r *Recorder) ActiveIncidents(bySeverity map[string]int) {
	for severity, n := range bySeverity {
		r.incidentsActive.WithLabelValues(severity).Set(float64(n))
	}
}

// RemediationAttempt records one remediation attempt.
func (r *Recorder) RemediationAttempt(strategy string, success bool, durationSeconds float64) {
	r.remediationAttempts.WithLabelValues(strategy, strconv.FormatBool(success)).Inc()
	r.remediationDuration.WithLabelValues(strategy).Observe(max(durationSeconds, 0))
}

// InstanceUtilization sets the latest utilization of an instance.
func (r *Recorder) InstanceUtilization(instanceID, provider, instanceType string, cpu, memory float64) {
	r.instanceCPU.WithLabelValues(instanceID, provider, instanceType).Set(cpu)
	r.instanceMemory.WithLabelValues(instanceID, provider, instanceType).Set(memory)
}

// PotentialSavings sets the total monthly rightsizing savings.
func (r *Recorder) PotentialSavings(monthlyUSD float64) {
	r.potentialSavings.Set(monthlyUSD)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) CheckRun(string, string, bool, float64, float64)              {}
func (Nop) IncidentCreated(string)                                       {}
func (Nop) ActiveIncidents(map[string]int)                               {}
func (Nop) RemediationAttempt(string, bool, float64)                     {}
func (Nop) InstanceUtilization(string, string, string, float64, float64) {}
func (Nop) PotentialSavings(float64)                                     {}
