package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferguard/inferguard/internal/app"
	"github.com/inferguard/inferguard/internal/checks"
	"github.com/inferguard/inferguard/internal/config"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Model.Seed = 42
	cfg.Model.BaseLatency = 2 * time.Millisecond
	cfg.Infra.Seed = 7
	cfg.Checks.DriftSamples = 200
	return cfg
}

func TestNew_InMemory(t *testing.T) {
	ctx := context.Background()

	a, err := app.New(ctx, testConfig(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	defs, err := a.Checks.List(ctx)
	require.NoError(t, err)
	assert.Len(t, defs, 4)

	assert.Empty(t, a.Readiness(), "in-memory storage has no external dependencies")
	assert.NotEmpty(t, a.Ingestor.Instances(""))
	assert.Equal(t, "v1.2.3", a.Model.Health(ctx).ModelVersion)
}

func TestNew_SkipsSeeding(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.SeedDefaults = false

	a, err := app.New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	defs, err := a.Checks.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestNew_UnreachableRedisFallsBack(t *testing.T) {
	cfg := testConfig()
	cfg.Redis.Addr = "127.0.0.1:1"

	a, err := app.New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Empty(t, a.Readiness())
	out := a.Monitor.RunAdHoc(context.Background(), checks.KindCorrectness, 0)
	assert.True(t, out.Passed)
}

func TestApp_MetricsAndScheduler(t *testing.T) {
	ctx := context.Background()
	a, err := app.New(ctx, testConfig(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	_, err = a.Monitor.RunCheck(ctx, 2, 0)
	require.NoError(t, err)

	families, err := a.Registry.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["health_check_runs_total"])
	assert.True(t, names["go_goroutines"])

	sched := a.NewScheduler()
	n, err := sched.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
