package inference_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferguard/inferguard/internal/faults"
	"github.com/inferguard/inferguard/internal/inference"
	"github.com/inferguard/inferguard/internal/sim"
)

func newTestModel(inj *faults.Injector) *inference.MockModel {
	return inference.NewMockModel(inference.Config{
		BaseLatency:   time.Millisecond,
		LatencyJitter: time.Microsecond,
		MinLatency:    time.Millisecond,
		Faults:        inj,
		Rand:          sim.NewRand(42),
	})
}

func TestMockModel_InferKnownSamples(t *testing.T) {
	model := newTestModel(faults.NewInjector())
	ctx := context.Background()

	tests := []struct {
		sample     string
		label      string
		confidence float64
	}{
		{"test_sample_1", inference.LabelMalware, 0.95},
		{"test_sample_2", inference.LabelBenign, 0.88},
		{"test_sample_3", inference.LabelSuspicious, 0.72},
	}

	for _, tt := range tests {
		t.Run(tt.sample, func(t *testing.T) {
			pred, err := model.Infer(ctx, tt.sample)
			require.NoError(t, err)
			assert.Equal(t, tt.label, pred.Label)
			assert.Equal(t, tt.confidence, pred.Confidence)
			assert.Equal(t, "v1.2.3", pred.ModelVersion)
			assert.Positive(t, pred.LatencyMs)
		})
	}
}

func TestMockModel_InferUnknownSampleIsStable(t *testing.T) {
	model := newTestModel(faults.NewInjector())
	ctx := context.Background()

	first, err := model.Infer(ctx, "binary-0xdeadbeef")
	require.NoError(t, err)
	second, err := model.Infer(ctx, "binary-0xdeadbeef")
	require.NoError(t, err)

	assert.Equal(t, first.Label, second.Label)
	assert.Contains(t, []string{inference.LabelMalware, inference.LabelSuspicious, inference.LabelBenign}, first.Label)
	assert.GreaterOrEqual(t, first.Confidence, 0.7)
	assert.Less(t, first.Confidence, 1.0)
}

func TestMockModel_InjectedErrors(t *testing.T) {
	inj := faults.NewInjector()
	inj.Inject(faults.KindError, faults.SeverityHigh)
	model := newTestModel(inj)

	_, err := model.Infer(context.Background(), "test_sample_1")

	assert.ErrorIs(t, err, inference.ErrSimulatedFailure)
}

func TestMockModel_CorrectnessFlip(t *testing.T) {
	inj := faults.NewInjector()
	inj.Update(func(c *faults.Config) { c.CorrectnessFlipRate = 1 })
	model := newTestModel(inj)

	pred, err := model.Infer(context.Background(), "test_sample_2")

	require.NoError(t, err)
	assert.Equal(t, inference.LabelCorrupted, pred.Label)
}

func TestMockModel_LatencyMultiplier(t *testing.T) {
	inj := faults.NewInjector()
	model := inference.NewMockModel(inference.Config{
		BaseLatency:   5 * time.Millisecond,
		LatencyJitter: time.Microsecond,
		Faults:        inj,
		Rand:          sim.NewRand(7),
	})
	inj.Inject(faults.KindLatency, faults.SeverityHigh)

	start := time.Now()
	_, err := model.Infer(context.Background(), "test_sample_1")

	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 45*time.Millisecond)
}

func TestMockModel_InferHonoursContext(t *testing.T) {
	inj := faults.NewInjector()
	inj.Inject(faults.KindLatency, faults.SeverityHigh)
	model := inference.NewMockModel(inference.Config{Faults: inj, Rand: sim.NewRand(1)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := model.Infer(ctx, "test_sample_1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMockModel_Distributions(t *testing.T) {
	inj := faults.NewInjector()
	model := newTestModel(inj)

	assert.Len(t, model.BaselineDistribution(), 1000)
	assert.Len(t, model.PredictionDistribution(250), 250)

	inj.Inject(faults.KindDrift, faults.SeverityMedium)
	drifted := model.PredictionDistribution(2000)
	var sum float64
	for _, v := range drifted {
		sum += v
	}
	assert.InDelta(t, 0.7, sum/float64(len(drifted)), 0.02)
}

func TestMockModel_BaselineIsCopied(t *testing.T) {
	model := newTestModel(faults.NewInjector())

	b := model.BaselineDistribution()
	b[0] = 99

	assert.NotEqual(t, 99.0, model.BaselineDistribution()[0])
}

func TestMockModel_ClearCache(t *testing.T) {
	model := newTestModel(faults.NewInjector())
	ctx := context.Background()

	for _, s := range []string{"test_sample_1", "test_sample_2", "other"} {
		_, err := model.Infer(ctx, s)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, model.CacheSize(ctx))

	res, err := model.ClearCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cache_cleared", res.Status)
	assert.Equal(t, 3, res.EntriesRemoved)
	assert.Equal(t, 0, model.CacheSize(ctx))
}

func TestMockModel_Health(t *testing.T) {
	inj := faults.NewInjector()
	model := newTestModel(inj)
	ctx := context.Background()

	h := model.Health(ctx)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "mock://local", h.Endpoint)

	inj.Inject(faults.KindError, faults.SeverityHigh)
	h = model.Health(ctx)
	assert.Equal(t, "degraded", h.Status)
	assert.Equal(t, 1.0, h.FailureMode.ErrorRate)
}

func TestMockModel_SetModelVersion(t *testing.T) {
	model := newTestModel(faults.NewInjector())

	model.SetModelVersion("v1.2.2")

	assert.Equal(t, "v1.2.2", model.ModelVersion())
}
