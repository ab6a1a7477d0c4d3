package infra

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/inferguard/inferguard/internal/sim"
)

// ErrInstanceNotFound is returned for unknown instance IDs.
var ErrInstanceNotFound = errors.New("instance not found")

// Thresholds used to classify utilization, in percent.
const (
	CPUIdleThreshold     = 10
	CPULowThreshold      = 30
	CPUHighThreshold     = 80
	MemoryLowThreshold   = 40
	MemoryHighThreshold  = 90
	OpportunityCPU       = 20
	OpportunityMemory    = 30
	DefaultHistoryLimit  = 10000
	hoursPerMonth        = 24 * 30
	billingHoursPerMonth = 730
)

// cheaperFactor bounds how expensive a recommended type may be relative to
// the current one.
var cheaperFactor = decimal.NewFromFloat(0.7)

// Profile describes how busy a simulated instance is.
type Profile string

const (
	ProfileIdle      Profile = "idle"
	ProfileLow       Profile = "low"
	ProfileMedium    Profile = "medium"
	ProfileHigh      Profile = "high"
	ProfileEfficient Profile = "efficient"
)

var profiles = []Profile{ProfileIdle, ProfileLow, ProfileMedium, ProfileHigh, ProfileEfficient}

// baseline cpu and memory utilization per profile.
var profileBase = map[Profile][2]float64{
	ProfileIdle:      {2, 5},
	ProfileLow:       {10, 20},
	ProfileMedium:    {40, 50},
	ProfileHigh:      {85, 80},
	ProfileEfficient: {65, 70},
}

// Instance is a simulated cloud machine.
type Instance struct {
	ID           string       `json:"instance_id"`
	Provider     Provider     `json:"provider"`
	InstanceType string       `json:"instance_type"`
	Region       string       `json:"region"`
	ResourceType string       `json:"resource_type"`
	Specs        InstanceType `json:"specs"`
	CreatedAt    time.Time    `json:"created_at"`
	Profile      Profile      `json:"utilization_profile"`
}

// Metric is one utilization sample of an instance.
type Metric struct {
	InstanceID      string    `json:"instance_id"`
	Provider        Provider  `json:"provider"`
	ResourceType    string    `json:"resource_type"`
	InstanceType    string    `json:"instance_type"`
	Region          string    `json:"region"`
	CPUUtil         float64   `json:"cpu_util"`
	MemoryUtil      float64   `json:"memory_util"`
	DiskIOPS        float64   `json:"disk_iops"`
	NetworkInBytes  float64   `json:"network_in_bytes"`
	NetworkOutBytes float64   `json:"network_out_bytes"`
	Timestamp       time.Time `json:"ts"`
}

// IdleInstance is an instance whose CPU sits below the idle threshold.
type IdleInstance struct {
	Metric
	Specs       InstanceType `json:"specs"`
	DaysRunning int          `json:"days_running"`
}

// Opportunity is a suggested move to a cheaper instance type.
type Opportunity struct {
	InstanceID              string          `json:"instance_id"`
	Provider                Provider        `json:"provider"`
	CurrentType             string          `json:"current_type"`
	RecommendedType         string          `json:"recommended_type"`
	CurrentCPUUtil          float64         `json:"current_cpu_util"`
	CurrentMemoryUtil       float64         `json:"current_memory_util"`
	CurrentCostPerHour      decimal.Decimal `json:"current_cost_per_hour"`
	RecommendedCostPerHour  decimal.Decimal `json:"recommended_cost_per_hour"`
	EstimatedMonthlySavings decimal.Decimal `json:"estimated_monthly_savings"`
	Confidence              string          `json:"confidence"`
}

// ProviderStats aggregates the latest sample of one provider's fleet.
type ProviderStats struct {
	InstanceCount  int     `json:"instance_count"`
	AvgCPUUtil     float64 `json:"avg_cpu_util"`
	AvgMemoryUtil  float64 `json:"avg_memory_util"`
	TotalInstances int     `json:"total_instances"`
}

// Summary aggregates a fleet-wide sample.
type Summary struct {
	TotalInstances    int                        `json:"total_instances"`
	ByProvider        map[Provider]ProviderStats `json:"by_provider"`
	IdleCount         int                        `json:"idle_count"`
	OverutilizedCount int                        `json:"overutilized_count"`
	Timestamp         time.Time                  `json:"timestamp"`
}

// ProviderCost is the running cost of one provider's fleet.
type ProviderCost struct {
	Instances   int             `json:"instances"`
	HourlyCost  decimal.Decimal `json:"hourly_cost"`
	MonthlyCost decimal.Decimal `json:"monthly_cost"`
}

// CostSummary is the running cost of the whole fleet.
type CostSummary struct {
	TotalInstances          int                       `json:"total_instances"`
	EstimatedHourlyCost     decimal.Decimal           `json:"estimated_hourly_cost"`
	EstimatedMonthlyCost    decimal.Decimal           `json:"estimated_monthly_cost"`
	ByProvider              map[Provider]ProviderCost `json:"by_provider"`
	PotentialMonthlySavings decimal.Decimal           `json:"potential_monthly_savings"`
	Timestamp               time.Time                 `json:"timestamp"`
}

// Recorder receives infrastructure gauges.
type Recorder interface {
	InstanceUtilization(instanceID, provider, instanceType string, cpu, memory float64)
	PotentialSavings(monthlyUSD float64)
}

// IngestorConfig holds configuration for an Ingestor.
type IngestorConfig struct {
	Catalog      Catalog
	Rand         *sim.Rand
	Recorder     Recorder
	Logger       zerolog.Logger
	HistoryLimit int
	Now          func() time.Time
}

// Ingestor simulates pulling utilization metrics from AWS, GCP and OCI.
type Ingestor struct {
	catalog      Catalog
	rng          *sim.Rand
	recorder     Recorder
	logger       zerolog.Logger
	historyLimit int
	now          func() time.Time

	instances []Instance

	mu      sync.Mutex
	history []Metric
}

// NewIngestor creates an ingestor with a freshly generated fleet of 5 to 10
// instances per provider.
func NewIngestor(cfg IngestorConfig) *Ingestor {
	if cfg.Catalog == nil {
		cfg.Catalog = DefaultCatalog()
	}
	if cfg.Rand == nil {
		cfg.Rand = sim.NewRand(0)
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}

	ing := &Ingestor{
		catalog:      cfg.Catalog,
		rng:          cfg.Rand,
		recorder:     cfg.Recorder,
		logger:       cfg.Logger,
		historyLimit: cfg.HistoryLimit,
		now:          cfg.Now,
	}
	ing.instances = ing.generateFleet()

	ing.logger.Info().Int("instances", len(ing.instances)).Msg("simulated cloud fleet generated")
	return ing
}

func (i *Ingestor) generateFleet() []Instance {
	var (
		fleet []Instance
		num   int
	)
	now := i.now()

	for _, provider := range Providers {
		types := i.catalog[provider]
		regions := Regions[provider]
		if len(types) == 0 {
			continue
		}

		count := i.rng.IntRange(5, 10)
		for range count {
			t := types[i.rng.Pick(len(types))]
			fleet = append(fleet, Instance{
				ID:           fmt.Sprintf("%s-%04d", provider, num),
				Provider:     provider,
				InstanceType: t.Name,
				Region:       regions[i.rng.Pick(len(regions))],
				ResourceType: resourceType(t.Name, num),
				Specs:        t,
				CreatedAt:    now.AddDate(0, 0, -i.rng.IntRange(1, 90)),
				Profile:      profiles[i.rng.Pick(len(profiles))],
			})
			num++
		}
	}
	return fleet
}

func resourceType(instanceType string, num int) string {
	lower := strings.ToLower(instanceType)
	switch {
	case strings.Contains(lower, "gpu"), strings.Contains(lower, "p3"), strings.Contains(lower, "a2"):
		return "ml-inference"
	case num%5 == 0:
		return "k8s-node"
	default:
		return "vm"
	}
}

// Instances returns the fleet, optionally narrowed to one provider.
func (i *Ingestor) Instances(provider Provider) []Instance {
	out := make([]Instance, 0, len(i.instances))
	for _, inst := range i.instances {
		if provider == "" || inst.Provider == provider {
			out = append(out, inst)
		}
	}
	return out
}

// Instance returns one instance by ID.
func (i *Ingestor) Instance(id string) (Instance, error) {
	for _, inst := range i.instances {
		if inst.ID == id {
			return inst, nil
		}
	}
	return Instance{}, ErrInstanceNotFound
}

// Collect samples every instance, or just id when it is non-empty.
func (i *Ingestor) Collect(id string) ([]Metric, error) {
	targets := i.instances
	if id != "" {
		inst, err := i.Instance(id)
		if err != nil {
			return nil, err
		}
		targets = []Instance{inst}
	}

	now := i.now()
	metrics := make([]Metric, 0, len(targets))
	for _, inst := range targets {
		base := profileBase[inst.Profile]
		m := Metric{
			InstanceID:      inst.ID,
			Provider:        inst.Provider,
			ResourceType:    inst.ResourceType,
			InstanceType:    inst.InstanceType,
			Region:          inst.Region,
			CPUUtil:         round2(sim.Clamp(i.rng.Gauss(base[0], 5), 0, 100)),
			MemoryUtil:      round2(sim.Clamp(i.rng.Gauss(base[1], 3), 0, 100)),
			DiskIOPS:        round2(i.rng.Uniform(50, 500)),
			NetworkInBytes:  math.Round(i.rng.Uniform(1e6, 1e9)),
			NetworkOutBytes: math.Round(i.rng.Uniform(5e5, 5e8)),
			Timestamp:       now,
		}
		metrics = append(metrics, m)

		if i.recorder != nil {
			i.recorder.InstanceUtilization(m.InstanceID, string(m.Provider), m.InstanceType, m.CPUUtil, m.MemoryUtil)
		}
	}

	i.mu.Lock()
	i.history = append(i.history, metrics...)
	if over := len(i.history) - i.historyLimit; over > 0 {
		i.history = slices.Delete(i.history, 0, over)
	}
	i.mu.Unlock()

	return metrics, nil
}

// History returns up to limit of the most recent samples, oldest first.
func (i *Ingestor) History(limit int) []Metric {
	i.mu.Lock()
	defer i.mu.Unlock()

	start := 0
	if limit > 0 && len(i.history) > limit {
		start = len(i.history) - limit
	}
	return slices.Clone(i.history[start:])
}

// Idle samples the fleet and returns instances below cpuThreshold, least busy
// first.
func (i *Ingestor) Idle(cpuThreshold float64) []IdleInstance {
	metrics, _ := i.Collect("")
	return i.idleFrom(metrics, cpuThreshold)
}

func (i *Ingestor) idleFrom(metrics []Metric, cpuThreshold float64) []IdleInstance {
	now := i.now()
	idle := []IdleInstance{}
	for _, m := range metrics {
		if m.CPUUtil >= cpuThreshold {
			continue
		}
		inst, err := i.Instance(m.InstanceID)
		if err != nil {
			continue
		}
		idle = append(idle, IdleInstance{
			Metric:      m,
			Specs:       inst.Specs,
			DaysRunning: int(now.Sub(inst.CreatedAt).Hours() / 24),
		})
	}
	sort.SliceStable(idle, func(a, b int) bool { return idle[a].CPUUtil < idle[b].CPUUtil })
	return idle
}

// Opportunities samples the fleet and returns rightsizing opportunities,
// largest savings first.
func (i *Ingestor) Opportunities() []Opportunity {
	metrics, _ := i.Collect("")
	return i.opportunitiesFrom(metrics)
}

func (i *Ingestor) opportunitiesFrom(metrics []Metric) []Opportunity {
	opps := []Opportunity{}
	for _, m := range metrics {
		if opp, ok := i.opportunityFor(m); ok {
			opps = append(opps, opp)
		}
	}
	sort.SliceStable(opps, func(a, b int) bool {
		return opps[a].EstimatedMonthlySavings.GreaterThan(opps[b].EstimatedMonthlySavings)
	})

	if i.recorder != nil {
		total, _ := totalSavings(opps).Float64()
		i.recorder.PotentialSavings(total)
	}
	return opps
}

// opportunityFor suggests the first type in catalog order that costs less
// than 70% of the current one, for instances low on both CPU and memory.
func (i *Ingestor) opportunityFor(m Metric) (Opportunity, bool) {
	if m.CPUUtil >= OpportunityCPU || m.MemoryUtil >= OpportunityMemory {
		return Opportunity{}, false
	}
	current, ok := i.catalog.Lookup(m.Provider, m.InstanceType)
	if !ok {
		return Opportunity{}, false
	}

	ceiling := current.CostPerHour.Mul(cheaperFactor)
	for _, alt := range i.catalog[m.Provider] {
		if !alt.CostPerHour.LessThan(ceiling) || alt.VCPU < 1 || alt.MemoryGB < 1 {
			continue
		}
		confidence := "medium"
		if m.CPUUtil < CPUIdleThreshold {
			confidence = "high"
		}
		return Opportunity{
			InstanceID:              m.InstanceID,
			Provider:                m.Provider,
			CurrentType:             current.Name,
			RecommendedType:         alt.Name,
			CurrentCPUUtil:          m.CPUUtil,
			CurrentMemoryUtil:       m.MemoryUtil,
			CurrentCostPerHour:      current.CostPerHour,
			RecommendedCostPerHour:  alt.CostPerHour,
			EstimatedMonthlySavings: monthly(current.CostPerHour.Sub(alt.CostPerHour), hoursPerMonth),
			Confidence:              confidence,
		}, true
	}
	return Opportunity{}, false
}

// Summary samples the fleet and aggregates it per provider.
func (i *Ingestor) Summary() Summary {
	metrics, _ := i.Collect("")
	return i.summaryFrom(metrics)
}

func (i *Ingestor) summaryFrom(metrics []Metric) Summary {
	s := Summary{
		TotalInstances: len(i.instances),
		ByProvider:     make(map[Provider]ProviderStats),
		Timestamp:      i.now(),
	}

	for _, provider := range Providers {
		var cpu, mem float64
		count := 0
		for _, m := range metrics {
			if m.Provider != provider {
				continue
			}
			cpu += m.CPUUtil
			mem += m.MemoryUtil
			count++
		}
		if count == 0 {
			continue
		}
		s.ByProvider[provider] = ProviderStats{
			InstanceCount:  count,
			AvgCPUUtil:     round2(cpu / float64(count)),
			AvgMemoryUtil:  round2(mem / float64(count)),
			TotalInstances: len(i.Instances(provider)),
		}
	}

	for _, m := range metrics {
		if m.CPUUtil < CPUIdleThreshold {
			s.IdleCount++
		}
		if m.CPUUtil > CPUHighThreshold {
			s.OverutilizedCount++
		}
	}
	return s
}

// CostSummary prices the fleet at on-demand rates.
func (i *Ingestor) CostSummary() CostSummary {
	hours := decimal.NewFromInt(billingHoursPerMonth)
	total := decimal.Zero
	byProvider := make(map[Provider]ProviderCost)

	for _, inst := range i.instances {
		pc := byProvider[inst.Provider]
		pc.Instances++
		pc.HourlyCost = pc.HourlyCost.Add(inst.Specs.CostPerHour)
		byProvider[inst.Provider] = pc
		total = total.Add(inst.Specs.CostPerHour)
	}
	for p, pc := range byProvider {
		pc.MonthlyCost = pc.HourlyCost.Mul(hours).Round(2)
		pc.HourlyCost = pc.HourlyCost.Round(2)
		byProvider[p] = pc
	}

	return CostSummary{
		TotalInstances:          len(i.instances),
		EstimatedHourlyCost:     total.Round(2),
		EstimatedMonthlyCost:    total.Mul(hours).Round(2),
		ByProvider:              byProvider,
		PotentialMonthlySavings: totalSavings(i.Opportunities()),
		Timestamp:               i.now(),
	}
}

func monthly(hourly decimal.Decimal, hours int64) decimal.Decimal {
	return hourly.Mul(decimal.NewFromInt(hours)).Round(2)
}

func totalSavings(opps []Opportunity) decimal.Decimal {
	total := decimal.Zero
	for _, o := range opps {
		total = total.Add(o.EstimatedMonthlySavings)
	}
	return total.Round(2)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
