// Package faults holds the failure injection control plane used to degrade the
// mock inference backend on demand.
package faults

import (
	"fmt"
	"sync"
	"time"
)

// Kind identifies which part of the inference path a fault targets.
type Kind string

const (
	KindLatency     Kind = "latency"
	KindError       Kind = "error"
	KindDrift       Kind = "drift"
	KindCorrectness Kind = "correctness"
)

// Severity scales the injected fault.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

var severityMultipliers = map[Severity]float64{
	SeverityLow:    1.5,
	SeverityMedium: 3.0,
	SeverityHigh:   10.0,
}

// ParseKind validates a fault kind supplied by a caller.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindLatency, KindError, KindDrift, KindCorrectness:
		return k, nil
	}
	return "", fmt.Errorf("unknown failure type: %q", s)
}

// ParseSeverity validates a severity supplied by a caller.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if _, ok := severityMultipliers[sev]; !ok {
		return "", fmt.Errorf("unknown severity: %q", s)
	}
	return sev, nil
}

// Multiplier returns the scaling factor for the severity.
func (s Severity) Multiplier() float64 {
	if m, ok := severityMultipliers[s]; ok {
		return m
	}
	return severityMultipliers[SeverityMedium]
}

// Config is a snapshot of the active fault configuration.
type Config struct {
	LatencyMultiplier   float64 `json:"latency_multiplier"`
	ErrorRate           float64 `json:"error_rate"`
	DriftEnabled        bool    `json:"drift_enabled"`
	CorrectnessFlipRate float64 `json:"correctness_flip_rate"`
}

// DefaultConfig is the healthy, fault-free configuration.
func DefaultConfig() Config {
	return Config{LatencyMultiplier: 1}
}

// Active reports whether any fault is in effect.
func (c Config) Active() bool {
	return c != DefaultConfig()
}

// Injection describes an applied fault.
type Injection struct {
	Injected   Kind      `json:"injected"`
	Severity   Severity  `json:"severity"`
	Multiplier float64   `json:"multiplier"`
	Timestamp  time.Time `json:"timestamp"`
}

// Injector owns the fault configuration. Readers take a full snapshot so a
// concurrent Inject never exposes a half-applied change.
type Injector struct {
	mu  sync.RWMutex
	cfg Config
	now func() time.Time
}

// NewInjector creates an injector in the fault-free state.
func NewInjector() *Injector {
	return &Injector{cfg: DefaultConfig(), now: time.Now}
}

// Snapshot returns a copy of the current configuration.
func (i *Injector) Snapshot() Config {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.cfg
}

// Update applies fn to the configuration under the write lock and returns the
// resulting snapshot. Every mutation goes through here.
func (i *Injector) Update(fn func(*Config)) Config {
	i.mu.Lock()
	defer i.mu.Unlock()
	fn(&i.cfg)
	return i.cfg
}

// Inject activates a fault of the given kind scaled by severity.
func (i *Injector) Inject(kind Kind, severity Severity) Injection {
	m := severity.Multiplier()
	rate := min(0.3*m/3, 1)

	i.Update(func(c *Config) {
		switch kind {
		case KindLatency:
			c.LatencyMultiplier = m
		case KindError:
			c.ErrorRate = rate
		case KindDrift:
			c.DriftEnabled = true
		case KindCorrectness:
			c.CorrectnessFlipRate = rate
		}
	})

	return Injection{
		Injected:   kind,
		Severity:   severity,
		Multiplier: m,
		Timestamp:  i.now().UTC(),
	}
}

// Clear resets every fault to its default.
func (i *Injector) Clear() {
	i.Update(func(c *Config) {
		*c = DefaultConfig()
	})
}
