package remediation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferguard/inferguard/internal/checks"
	"github.com/inferguard/inferguard/internal/faults"
	"github.com/inferguard/inferguard/internal/inference"
	"github.com/inferguard/inferguard/internal/remediation"
	"github.com/inferguard/inferguard/internal/sim"
)

type fakeModel struct {
	mu        sync.Mutex
	version   string
	clearErrs []error
	clears    int
}

func (f *fakeModel) ModelVersion() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version
}

func (f *fakeModel) SetModelVersion(v string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.version = v
}

func (f *fakeModel) ClearCache(context.Context) (inference.CacheClearResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	if len(f.clearErrs) > 0 {
		err := f.clearErrs[0]
		f.clearErrs = f.clearErrs[1:]
		if err != nil {
			return inference.CacheClearResult{}, err
		}
	}
	return inference.CacheClearResult{Status: "cache_cleared", Timestamp: time.Now()}, nil
}

func newRemediator(model remediation.Model, inj *faults.Injector, retryDelay time.Duration) *remediation.Remediator {
	return remediation.NewRemediator(remediation.Config{
		Model:         model,
		Faults:        inj,
		Audit:         remediation.NewAuditLog(0),
		Logger:        zerolog.Nop(),
		RestartDelay:  time.Millisecond,
		RollbackDelay: time.Millisecond,
		RetryDelay:    retryDelay,
	})
}

func ptr(v int64) *int64 { return &v }

func TestParseStrategy(t *testing.T) {
	for _, s := range remediation.Strategies {
		got, err := remediation.ParseStrategy(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := remediation.ParseStrategy("reboot_universe")
	assert.ErrorIs(t, err, remediation.ErrUnknownStrategy)
}

func TestRemediate_RestartServiceClearsFaults(t *testing.T) {
	inj := faults.NewInjector()
	inj.Inject(faults.KindLatency, faults.SeverityHigh)
	r := newRemediator(&fakeModel{version: "v1.2.3"}, inj, time.Millisecond)

	res := r.Remediate(context.Background(), remediation.StrategyRestartService, ptr(7), false)

	assert.True(t, res.Success)
	assert.Equal(t, true, res.Details["restart_completed"])
	assert.Equal(t, "docker restart inference-service", res.Details["command"])
	assert.Equal(t, faults.DefaultConfig(), inj.Snapshot())
	assert.Positive(t, res.DurationSeconds)
}

func TestRemediate_ClearCache(t *testing.T) {
	model := inference.NewMockModel(inference.Config{
		BaseLatency: time.Millisecond,
		Rand:        sim.NewRand(3),
	})
	ctx := context.Background()
	_, err := model.Infer(ctx, "test_sample_1")
	require.NoError(t, err)
	r := newRemediator(model, model.Faults(), time.Millisecond)

	res := r.Remediate(ctx, remediation.StrategyClearCache, nil, false)

	assert.True(t, res.Success)
	assert.Equal(t, "cache_cleared", res.Details["status"])
	assert.Equal(t, 1, res.Details["entries_removed"])
	assert.Equal(t, 0, model.CacheSize(ctx))
}

func TestRemediate_ScaleHint(t *testing.T) {
	r := newRemediator(&fakeModel{}, faults.NewInjector(), time.Millisecond)

	res := r.Remediate(context.Background(), remediation.StrategyScaleHint, nil, false)

	assert.True(t, res.Success)
	assert.Equal(t, 3, res.Details["target_replicas"])
	assert.Equal(t, "kubectl scale deployment inference-service --replicas=3", res.Details["kubectl_command"])
	assert.Equal(t, true, res.Details["recommendation_logged"])
}

func TestRemediate_RollbackModel(t *testing.T) {
	inj := faults.NewInjector()
	inj.Inject(faults.KindCorrectness, faults.SeverityHigh)
	model := &fakeModel{version: "v1.2.3"}
	r := newRemediator(model, inj, time.Millisecond)

	res := r.Remediate(context.Background(), remediation.StrategyRollbackModel, ptr(1), false)

	assert.True(t, res.Success)
	assert.Equal(t, "v1.2.2", model.ModelVersion())
	assert.Equal(t, "v1.2.2", res.Details["new_version"])
	assert.False(t, inj.Snapshot().Active())
}

func TestRemediate_RollbackWithoutPreviousVersionUsesFallback(t *testing.T) {
	model := &fakeModel{version: "v2.0.0"}
	r := newRemediator(model, faults.NewInjector(), time.Millisecond)

	res := r.Remediate(context.Background(), remediation.StrategyRollbackModel, nil, false)

	assert.True(t, res.Success, res.Error)
	assert.Equal(t, remediation.DefaultRollbackFallback, model.ModelVersion())
	assert.Equal(t, true, res.Details["fallback_target"])
	assert.Equal(t, "v2.0.0", res.Details["previous_version"])
}

func TestRemediate_RepeatedRollbacksKeepSucceeding(t *testing.T) {
	model := &fakeModel{version: "v1.2.3"}
	r := remediation.NewRemediator(remediation.Config{
		Model:            model,
		Faults:           faults.NewInjector(),
		Logger:           zerolog.Nop(),
		RollbackDelay:    time.Millisecond,
		RollbackFallback: "v1.1.9",
	})
	ctx := context.Background()

	var versions []string
	for range 4 {
		res := r.Remediate(ctx, remediation.StrategyRollbackModel, nil, false)
		require.True(t, res.Success, res.Error)
		versions = append(versions, model.ModelVersion())
	}
	assert.Equal(t, []string{"v1.2.2", "v1.2.1", "v1.2.0", "v1.1.9"}, versions)

	res := r.Remediate(ctx, remediation.StrategyRollbackModel, nil, true)
	assert.True(t, res.Success, res.Error)
	assert.Equal(t, "v1.1.8", res.Details["target_version"])
}

func TestRemediate_DryRunHasNoSideEffects(t *testing.T) {
	for _, version := range []string{"v1.2.3", "v1.2.0", "nightly"} {
		for _, strategy := range remediation.Strategies {
			t.Run(version+"/"+string(strategy), func(t *testing.T) {
				dryRunHasNoSideEffects(t, version, strategy)
			})
		}
	}
}

func dryRunHasNoSideEffects(t *testing.T, version string, strategy remediation.Strategy) {
	t.Helper()
	inj := faults.NewInjector()
	inj.Inject(faults.KindLatency, faults.SeverityHigh)
	inj.Inject(faults.KindDrift, faults.SeverityLow)
	before := inj.Snapshot()

	model := inference.NewMockModel(inference.Config{
		BaseLatency:   time.Millisecond,
		LatencyJitter: time.Microsecond,
		Faults:        faults.NewInjector(),
		Rand:          sim.NewRand(5),
		Version:       version,
	})
	ctx := context.Background()
	_, err := model.Infer(ctx, "test_sample_2")
	require.NoError(t, err)

	r := newRemediator(model, inj, time.Millisecond)
	res := r.Remediate(ctx, strategy, ptr(3), true)

	assert.True(t, res.Success, res.Error)
	assert.True(t, res.DryRun)
	assert.NotEmpty(t, res.Details["message"])
	assert.Equal(t, before, inj.Snapshot())
	assert.Equal(t, version, model.ModelVersion())
	assert.Equal(t, 1, model.CacheSize(ctx))
}

func TestRemediate_UnknownStrategy(t *testing.T) {
	r := newRemediator(&fakeModel{}, faults.NewInjector(), time.Millisecond)

	res := r.Remediate(context.Background(), remediation.Strategy("reboot_universe"), nil, false)

	assert.False(t, res.Success)
	assert.Equal(t, "unknown remediation strategy: reboot_universe", res.Error)
	assert.Equal(t, 1, r.Audit().Len())
}

func TestRemediate_PanicBecomesFailedResult(t *testing.T) {
	// A nil fault clearer panics inside the restart strategy.
	r := remediation.NewRemediator(remediation.Config{
		Model:        &fakeModel{},
		RestartDelay: time.Millisecond,
		Logger:       zerolog.Nop(),
	})

	res := r.Remediate(context.Background(), remediation.StrategyRestartService, nil, false)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "remediation panicked")
	require.Equal(t, 1, r.Audit().Len())
	assert.False(t, r.Audit().Recent(1)[0].Success)
}

func TestRemediate_AuditsEveryCall(t *testing.T) {
	r := newRemediator(&fakeModel{version: "v1.0.1"}, faults.NewInjector(), time.Millisecond)
	ctx := context.Background()

	r.Remediate(ctx, remediation.StrategyScaleHint, ptr(1), true)
	r.Remediate(ctx, remediation.StrategyRollbackModel, ptr(2), false)
	r.Remediate(ctx, remediation.Strategy("nope"), nil, false)

	entries := r.Audit().Recent(10)
	require.Len(t, entries, 3)
	assert.Equal(t, remediation.StrategyScaleHint, entries[0].Strategy)
	assert.True(t, entries[0].DryRun)
	assert.Equal(t, int64(2), *entries[1].IncidentID)
	assert.True(t, entries[1].Success)
	assert.Nil(t, entries[2].IncidentID)
	assert.NotEmpty(t, entries[2].Error)
}

func TestRemediate_IgnoresCallerCancellation(t *testing.T) {
	inj := faults.NewInjector()
	inj.Inject(faults.KindError, faults.SeverityHigh)
	r := newRemediator(&fakeModel{}, inj, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := r.Remediate(ctx, remediation.StrategyRestartService, nil, false)

	assert.True(t, res.Success)
	assert.False(t, inj.Snapshot().Active())
}

func TestAutoRemediate_AlwaysFailing(t *testing.T) {
	boom := errors.New("cache backend unavailable")
	model := &fakeModel{clearErrs: []error{boom, boom, boom, boom}}
	r := newRemediator(model, faults.NewInjector(), 20*time.Millisecond)

	start := time.Now()
	results := r.AutoRemediate(context.Background(), ptr(9), checks.KindDrift, remediation.StrategyClearCache, 3, false)
	elapsed := time.Since(start)

	require.Len(t, results, 3)
	for _, res := range results {
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "cache backend unavailable")
	}
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
	assert.Equal(t, 3, model.clears)
	assert.Equal(t, 3, r.Audit().Len())
}

func TestAutoRemediate_StopsOnFirstSuccess(t *testing.T) {
	model := &fakeModel{clearErrs: []error{errors.New("transient"), nil}}
	r := newRemediator(model, faults.NewInjector(), time.Millisecond)

	results := r.AutoRemediate(context.Background(), ptr(9), checks.KindDrift, remediation.StrategyClearCache, 3, false)

	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.True(t, results[1].Success)
}

func TestAutoRemediate_ImmediateSuccess(t *testing.T) {
	r := newRemediator(&fakeModel{}, faults.NewInjector(), time.Hour)

	results := r.AutoRemediate(context.Background(), nil, checks.KindResource, remediation.StrategyScaleHint, 3, false)

	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
}

func TestAutoRemediate_DefaultRetries(t *testing.T) {
	r := newRemediator(&fakeModel{version: "v1.0.0"}, faults.NewInjector(), time.Millisecond)

	results := r.AutoRemediate(context.Background(), nil, checks.KindCorrectness, remediation.StrategyRollbackModel, 0, false)

	assert.Len(t, results, 3)
}

func TestPreviousPatchVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "v1.2.3", want: "v1.2.2"},
		{in: "3.4.10", want: "v3.4.9"},
		{in: "v1.2.0", wantErr: true},
		{in: "latest", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := remediation.PreviousPatchVersion(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
