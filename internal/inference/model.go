// Package inference provides the simulated model-serving backend that health
// checks probe. Its behaviour is degraded on demand through a faults.Injector.
package inference

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/inferguard/inferguard/internal/faults"
	"github.com/inferguard/inferguard/internal/sim"
)

// ErrSimulatedFailure is returned when an injected error fires.
var ErrSimulatedFailure = errors.New("simulated inference error")

// Labels produced by the mock classifier.
const (
	LabelMalware    = "malware"
	LabelBenign     = "benign"
	LabelSuspicious = "suspicious"
	LabelCorrupted  = "corrupted"
)

// Prediction is a single inference response.
type Prediction struct {
	SampleID     string  `json:"sample_id"`
	Label        string  `json:"label"`
	Confidence   float64 `json:"confidence"`
	LatencyMs    float64 `json:"latency_ms"`
	ModelVersion string  `json:"model_version"`
}

// Health is a point-in-time status of the model backend.
type Health struct {
	Status       string        `json:"status"`
	ModelVersion string        `json:"model_version"`
	Endpoint     string        `json:"endpoint"`
	CacheSize    int           `json:"cache_size"`
	FailureMode  faults.Config `json:"failure_mode"`
	Timestamp    time.Time     `json:"timestamp"`
}

// CacheClearResult reports the outcome of ClearCache.
type CacheClearResult struct {
	Status         string    `json:"status"`
	EntriesRemoved int       `json:"entries_removed"`
	Timestamp      time.Time `json:"timestamp"`
}

var knownSamples = map[string]Prediction{
	"test_sample_1": {Label: LabelMalware, Confidence: 0.95},
	"test_sample_2": {Label: LabelBenign, Confidence: 0.88},
	"test_sample_3": {Label: LabelSuspicious, Confidence: 0.72},
}

// Config holds configuration for the mock model.
type Config struct {
	Endpoint      string
	Version       string
	BaseLatency   time.Duration
	LatencyJitter time.Duration
	MinLatency    time.Duration
	BaselineSize  int
	Faults        *faults.Injector
	Cache         Cache
	Rand          *sim.Rand
	Logger        zerolog.Logger
}

// DefaultConfig returns the stock mock backend settings.
func DefaultConfig() Config {
	return Config{
		Endpoint:      "mock://local",
		Version:       "v1.2.3",
		BaseLatency:   50 * time.Millisecond,
		LatencyJitter: 10 * time.Millisecond,
		MinLatency:    10 * time.Millisecond,
		BaselineSize:  1000,
	}
}

// MockModel simulates a threat-detection classifier.
type MockModel struct {
	endpoint      string
	baseLatency   time.Duration
	latencyJitter time.Duration
	minLatency    time.Duration
	faults        *faults.Injector
	cache         Cache
	rng           *sim.Rand
	logger        zerolog.Logger
	baseline      []float64

	mu      sync.RWMutex
	version string
}

// NewMockModel creates a mock model. Zero-valued fields fall back to DefaultConfig.
func NewMockModel(cfg Config) *MockModel {
	def := DefaultConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.Version == "" {
		cfg.Version = def.Version
	}
	if cfg.BaseLatency == 0 {
		cfg.BaseLatency = def.BaseLatency
	}
	if cfg.LatencyJitter == 0 {
		cfg.LatencyJitter = def.LatencyJitter
	}
	if cfg.MinLatency == 0 {
		cfg.MinLatency = def.MinLatency
	}
	if cfg.BaselineSize == 0 {
		cfg.BaselineSize = def.BaselineSize
	}
	if cfg.Faults == nil {
		cfg.Faults = faults.NewInjector()
	}
	if cfg.Cache == nil {
		cfg.Cache = NewMemoryCache()
	}
	if cfg.Rand == nil {
		cfg.Rand = sim.NewRand(0)
	}

	return &MockModel{
		endpoint:      cfg.Endpoint,
		baseLatency:   cfg.BaseLatency,
		latencyJitter: cfg.LatencyJitter,
		minLatency:    cfg.MinLatency,
		faults:        cfg.Faults,
		cache:         cfg.Cache,
		rng:           cfg.Rand,
		logger:        cfg.Logger,
		baseline:      cfg.Rand.Normal(0.5, 0.1, cfg.BaselineSize),
		version:       cfg.Version,
	}
}

// Infer classifies a sample, honouring the active fault configuration.
func (m *MockModel) Infer(ctx context.Context, sampleID string) (Prediction, error) {
	fc := m.faults.Snapshot()
	start := time.Now()

	delay := time.Duration(float64(m.baseLatency)*fc.LatencyMultiplier +
		m.rng.Gauss(0, float64(m.latencyJitter)))
	delay = max(delay, m.minLatency)

	timer := time.NewTimer(delay)
	select {
	case <-ctx.Done():
		timer.Stop()
		return Prediction{}, ctx.Err()
	case <-timer.C:
	}

	if m.rng.Float64() < fc.ErrorRate {
		return Prediction{}, ErrSimulatedFailure
	}

	pred := m.predict(ctx, sampleID)
	if m.rng.Float64() < fc.CorrectnessFlipRate {
		pred.Label = LabelCorrupted
	}
	pred.LatencyMs = float64(time.Since(start).Microseconds()) / 1000
	pred.ModelVersion = m.ModelVersion()

	return pred, nil
}

func (m *MockModel) predict(ctx context.Context, sampleID string) Prediction {
	if p, ok, err := m.cache.Get(ctx, sampleID); err == nil && ok {
		return p
	} else if err != nil {
		m.logger.Warn().Err(err).Str("sample_id", sampleID).Msg("prediction cache read failed")
	}

	p, ok := knownSamples[sampleID]
	if !ok {
		p = hashedPrediction(sampleID)
	}
	p.SampleID = sampleID

	if err := m.cache.Set(ctx, sampleID, p); err != nil {
		m.logger.Warn().Err(err).Str("sample_id", sampleID).Msg("prediction cache write failed")
	}
	return p
}

// hashedPrediction gives unknown samples a stable label.
func hashedPrediction(sampleID string) Prediction {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sampleID))
	bucket := int(h.Sum32() % 100)

	label := LabelBenign
	switch {
	case bucket < 20:
		label = LabelMalware
	case bucket < 40:
		label = LabelSuspicious
	}
	return Prediction{
		Label:      label,
		Confidence: 0.7 + float64(bucket%30)/100,
	}
}

// PredictionDistribution samples n confidence scores from the live model.
func (m *MockModel) PredictionDistribution(n int) []float64 {
	if m.faults.Snapshot().DriftEnabled {
		return m.rng.Normal(0.7, 0.15, n)
	}
	return m.rng.Normal(0.5, 0.1, n)
}

// BaselineDistribution returns a copy of the reference confidence scores.
func (m *MockModel) BaselineDistribution() []float64 {
	out := make([]float64, len(m.baseline))
	copy(out, m.baseline)
	return out
}

// ClearCache drops every cached prediction.
func (m *MockModel) ClearCache(ctx context.Context) (CacheClearResult, error) {
	n, err := m.cache.Clear(ctx)
	if err != nil {
		return CacheClearResult{}, err
	}
	return CacheClearResult{
		Status:         "cache_cleared",
		EntriesRemoved: n,
		Timestamp:      time.Now().UTC(),
	}, nil
}

// CacheSize reports the number of cached predictions.
func (m *MockModel) CacheSize(ctx context.Context) int {
	n, err := m.cache.Size(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("prediction cache size failed")
		return 0
	}
	return n
}

// Health reports the model status and the fault configuration in effect.
func (m *MockModel) Health(ctx context.Context) Health {
	fc := m.faults.Snapshot()
	status := "healthy"
	if fc.ErrorRate >= 0.5 {
		status = "degraded"
	}
	return Health{
		Status:       status,
		ModelVersion: m.ModelVersion(),
		Endpoint:     m.endpoint,
		CacheSize:    m.CacheSize(ctx),
		FailureMode:  fc,
		Timestamp:    time.Now().UTC(),
	}
}

// ModelVersion returns the version currently being served.
func (m *MockModel) ModelVersion() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// SetModelVersion switches the served version.
func (m *MockModel) SetModelVersion(v string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.version = v
}

// Faults exposes the injector the model reads from.
func (m *MockModel) Faults() *faults.Injector {
	return m.faults
}
