package checks_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferguard/inferguard/internal/checks"
	"github.com/inferguard/inferguard/internal/faults"
	"github.com/inferguard/inferguard/internal/inference"
	"github.com/inferguard/inferguard/internal/sim"
)

type fakeModel struct {
	delay    time.Duration
	err      error
	labels   map[string]string
	current  []float64
	baseline []float64
}

func (f *fakeModel) Infer(_ context.Context, sampleID string) (inference.Prediction, error) {
	time.Sleep(f.delay)
	if f.err != nil {
		return inference.Prediction{}, f.err
	}
	return inference.Prediction{SampleID: sampleID, Label: f.labels[sampleID], ModelVersion: "v9"}, nil
}

func (f *fakeModel) PredictionDistribution(int) []float64 { return f.current }
func (f *fakeModel) BaselineDistribution() []float64       { return f.baseline }

type flakyModel struct {
	fakeModel
	failing string
}

func (f *flakyModel) Infer(ctx context.Context, sampleID string) (inference.Prediction, error) {
	if sampleID == f.failing {
		return inference.Prediction{}, inference.ErrSimulatedFailure
	}
	return f.fakeModel.Infer(ctx, sampleID)
}

type panicModel struct{ fakeModel }

func (p *panicModel) Infer(context.Context, string) (inference.Prediction, error) {
	panic("backend exploded")
}

func perfectLabels() map[string]string {
	return map[string]string{
		"test_sample_1": inference.LabelMalware,
		"test_sample_2": inference.LabelBenign,
		"test_sample_3": inference.LabelSuspicious,
	}
}

func newMockRunner(inj *faults.Injector, driftSamples int) *checks.Runner {
	model := inference.NewMockModel(inference.Config{Faults: inj, Rand: sim.NewRand(11)})
	return checks.NewRunner(checks.Config{
		Model:        model,
		Faults:       inj,
		Rand:         sim.NewRand(12),
		Logger:       zerolog.Nop(),
		DriftSamples: driftSamples,
	})
}

func TestParseKind(t *testing.T) {
	for _, k := range checks.Kinds {
		got, err := checks.ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	_, err := checks.ParseKind("vibes")
	assert.Error(t, err)
}

func TestRunner_UnknownKind(t *testing.T) {
	r := checks.NewRunner(checks.Config{Model: &fakeModel{}})

	res := r.Run(context.Background(), checks.Kind("vibes"), 0)

	assert.False(t, res.Passed)
	assert.Equal(t, checks.ErrUnknownKind, res.Error)
}

func TestRunner_Latency(t *testing.T) {
	tests := []struct {
		name      string
		delay     time.Duration
		threshold float64
		passed    bool
	}{
		{name: "fast model passes", delay: time.Millisecond, threshold: 200, passed: true},
		{name: "slow model fails", delay: 30 * time.Millisecond, threshold: 10, passed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := checks.NewRunner(checks.Config{Model: &fakeModel{delay: tt.delay, labels: perfectLabels()}})

			res := r.Run(context.Background(), checks.KindLatency, tt.threshold)

			assert.Equal(t, tt.passed, res.Passed)
			assert.Equal(t, "Latency Check", res.CheckName)
			assert.Equal(t, tt.threshold, res.Details["threshold_ms"])
			assert.Equal(t, "v9", res.Details["model_version"])
			assert.Empty(t, res.Error)
		})
	}
}

func TestRunner_LatencyInferenceError(t *testing.T) {
	r := checks.NewRunner(checks.Config{Model: &fakeModel{delay: 5 * time.Millisecond, err: errors.New("boom")}})

	res := r.Run(context.Background(), checks.KindLatency, 0)

	assert.False(t, res.Passed)
	assert.Equal(t, "boom", res.Error)
	assert.GreaterOrEqual(t, res.LatencyMs, 5.0)
	assert.Equal(t, 200.0, res.Details["threshold_ms"])
}

func TestRunner_PanicIsFolded(t *testing.T) {
	r := checks.NewRunner(checks.Config{Model: &panicModel{}})

	res := r.Run(context.Background(), checks.KindLatency, 0)

	assert.False(t, res.Passed)
	assert.Contains(t, res.Error, "backend exploded")
}

func TestRunner_LatencyFaultDeterminism(t *testing.T) {
	inj := faults.NewInjector()
	r := newMockRunner(inj, 0)
	ctx := context.Background()

	inj.Update(func(c *faults.Config) { c.LatencyMultiplier = 10 })
	res := r.Run(ctx, checks.KindLatency, 200)
	assert.False(t, res.Passed)
	assert.Greater(t, res.ResultValue, 200.0)
}

func TestRunner_InjectHighLatencyThenClear(t *testing.T) {
	inj := faults.NewInjector()
	r := newMockRunner(inj, 0)
	ctx := context.Background()

	inj.Inject(faults.KindLatency, faults.SeverityHigh)
	assert.False(t, r.Run(ctx, checks.KindLatency, 0).Passed)

	inj.Clear()
	assert.True(t, r.Run(ctx, checks.KindLatency, 0).Passed)
}

func TestRunner_CorrectnessAllKnownSamples(t *testing.T) {
	r := newMockRunner(faults.NewInjector(), 0)

	res := r.Run(context.Background(), checks.KindCorrectness, 0)

	assert.True(t, res.Passed)
	assert.Equal(t, 1.0, res.ResultValue)
	assert.Equal(t, 1.0, res.Details["accuracy"])
	assert.Equal(t, 0.95, res.Details["accuracy_threshold"])
	assert.Equal(t, 3, res.Details["correct"])
	assert.Equal(t, 3, res.Details["total"])
	samples, ok := res.Details["sample_results"].([]checks.SampleResult)
	require.True(t, ok)
	assert.Len(t, samples, 3)
}

func TestRunner_CorrectnessWithFlips(t *testing.T) {
	inj := faults.NewInjector()
	inj.Update(func(c *faults.Config) { c.CorrectnessFlipRate = 1 })
	r := newMockRunner(inj, 0)

	res := r.Run(context.Background(), checks.KindCorrectness, 0)

	assert.False(t, res.Passed)
	assert.Equal(t, 0.0, res.ResultValue)
}

func TestRunner_CorrectnessInferenceErrors(t *testing.T) {
	r := checks.NewRunner(checks.Config{Model: &fakeModel{err: inference.ErrSimulatedFailure}})

	res := r.Run(context.Background(), checks.KindCorrectness, 0)

	assert.False(t, res.Passed)
	assert.Equal(t, inference.ErrSimulatedFailure.Error(), res.Error)
	samples := res.Details["sample_results"].([]checks.SampleResult)
	assert.Equal(t, "error", samples[0].Actual)
}

func TestRunner_CorrectnessSingleErrorFailsAboveThreshold(t *testing.T) {
	model := &flakyModel{fakeModel: fakeModel{labels: perfectLabels()}, failing: "test_sample_3"}
	r := checks.NewRunner(checks.Config{Model: model})

	res := r.Run(context.Background(), checks.KindCorrectness, 0.5)

	assert.False(t, res.Passed, "an inference error fails the check even when accuracy clears the threshold")
	assert.InDelta(t, 2.0/3.0, res.ResultValue, 1e-9)
	assert.Equal(t, inference.ErrSimulatedFailure.Error(), res.Error)
	samples := res.Details["sample_results"].([]checks.SampleResult)
	require.Len(t, samples, 3)
	assert.True(t, samples[0].Correct)
	assert.Equal(t, "error", samples[2].Actual)
}

func TestRunner_IgnoresCallerCancellation(t *testing.T) {
	r := newMockRunner(faults.NewInjector(), 0)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	res := r.Run(ctx, checks.KindLatency, 0)

	assert.True(t, res.Passed, res.Error)
	assert.Empty(t, res.Error)
	assert.Greater(t, res.LatencyMs, 5.0)

	cancelled, stop := context.WithCancel(context.Background())
	stop()
	res = r.Run(cancelled, checks.KindCorrectness, 0)
	assert.True(t, res.Passed, res.Error)
}

func TestRunner_Drift(t *testing.T) {
	t.Run("identical distributions pass", func(t *testing.T) {
		dist := []float64{0.1, 0.2, 0.3, 0.4, 0.5}
		r := checks.NewRunner(checks.Config{Model: &fakeModel{current: dist, baseline: dist}})

		res := r.Run(context.Background(), checks.KindDrift, 0)

		assert.True(t, res.Passed)
		assert.Equal(t, 0.0, res.ResultValue)
		assert.Equal(t, false, res.Details["drift_detected"])
	})

	t.Run("shifted distribution fails", func(t *testing.T) {
		r := checks.NewRunner(checks.Config{Model: &fakeModel{
			current:  []float64{0.6, 0.7, 0.8, 0.9},
			baseline: []float64{0.1, 0.2, 0.3, 0.4},
		}})

		res := r.Run(context.Background(), checks.KindDrift, 0)

		assert.False(t, res.Passed)
		assert.Equal(t, 1.0, res.ResultValue)
		assert.Equal(t, true, res.Details["drift_detected"])
		assert.InDelta(t, 0.5, res.Details["mean_shift"], 1e-9)
	})

	t.Run("injected drift is detected", func(t *testing.T) {
		inj := faults.NewInjector()
		r := newMockRunner(inj, 1000)
		ctx := context.Background()

		assert.True(t, r.Run(ctx, checks.KindDrift, 0).Passed)

		inj.Inject(faults.KindDrift, faults.SeverityMedium)
		res := r.Run(ctx, checks.KindDrift, 0)
		assert.False(t, res.Passed)
		assert.Greater(t, res.Details["mean_shift"], 0.1)
	})
}

func TestRunner_Resource(t *testing.T) {
	inj := faults.NewInjector()
	r := newMockRunner(inj, 0)
	ctx := context.Background()

	res := r.Run(ctx, checks.KindResource, 0)
	cpu := res.Details["cpu_utilization"].(float64)
	mem := res.Details["memory_utilization"].(float64)
	assert.Equal(t, max(cpu, mem), res.ResultValue)
	assert.Equal(t, 80.0, res.Details["cpu_threshold"])
	assert.Equal(t, 80.0, res.Details["memory_threshold"])
	assert.InDelta(t, 300, res.Details["disk_iops"], 200)

	// An impossible threshold always fails.
	res = r.Run(ctx, checks.KindResource, 0.0001)
	assert.False(t, res.Passed)
	assert.Equal(t, false, res.Details["cpu_ok"])
}

func TestRunner_ResourceAmplifiedByLatencyFault(t *testing.T) {
	inj := faults.NewInjector()
	inj.Inject(faults.KindLatency, faults.SeverityHigh)
	r := newMockRunner(inj, 0)

	var total float64
	for i := 0; i < 50; i++ {
		total += r.Run(context.Background(), checks.KindResource, 0).Details["cpu_utilization"].(float64)
	}

	assert.InDelta(t, 67.5, total/50, 6)
}
