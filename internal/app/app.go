// Package app assembles the InferGuard services from configuration. The API
// server and the worker share the same component graph.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/inferguard/inferguard/internal/api/handler"
	"github.com/inferguard/inferguard/internal/checks"
	"github.com/inferguard/inferguard/internal/config"
	"github.com/inferguard/inferguard/internal/database"
	"github.com/inferguard/inferguard/internal/faults"
	"github.com/inferguard/inferguard/internal/healthcheck"
	"github.com/inferguard/inferguard/internal/incident"
	"github.com/inferguard/inferguard/internal/inference"
	"github.com/inferguard/inferguard/internal/infra"
	"github.com/inferguard/inferguard/internal/metrics"
	"github.com/inferguard/inferguard/internal/monitor"
	"github.com/inferguard/inferguard/internal/remediation"
	"github.com/inferguard/inferguard/internal/scheduler"
	"github.com/inferguard/inferguard/internal/sim"
)

// App holds the wired services.
type App struct {
	Config   config.Config
	Logger   zerolog.Logger
	Registry *prometheus.Registry

	Faults     *faults.Injector
	Model      *inference.MockModel
	Recorder   *metrics.Recorder
	Checks     *healthcheck.Service
	Incidents  *incident.Manager
	Remediator *remediation.Remediator
	Monitor    *monitor.Service
	Ingestor   *infra.Ingestor
	Engine     *infra.Engine

	pool  *pgxpool.Pool
	redis *redis.Client
}

// New connects the configured backends and builds every service. Close
// releases the connections.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	checkRepo, incidentRepo, err := a.openStorage(ctx)
	if err != nil {
		return nil, err
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Recorder = metrics.NewRecorder()
	if err := a.Recorder.Register(a.Registry); err != nil {
		a.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	cache := a.openCache(ctx)

	a.Faults = faults.NewInjector()
	a.Model = inference.NewMockModel(inference.Config{
		Endpoint:    cfg.Model.Endpoint,
		Version:     cfg.Model.Version,
		BaseLatency: cfg.Model.BaseLatency,
		Faults:      a.Faults,
		Cache:       cache,
		Rand:        sim.NewRand(cfg.Model.Seed),
		Logger:      logger.With().Str("component", "model").Logger(),
	})

	a.Checks = healthcheck.NewService(healthcheck.ServiceConfig{
		Repository: checkRepo,
		Logger:     logger,
	})
	if cfg.Storage.SeedDefaults {
		created, err := a.Checks.Seed(ctx, healthcheck.DefaultDefinitions())
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("seed health checks: %w", err)
		}
		logger.Info().Int("created", created).Msg("health check definitions seeded")
	}

	a.Remediator = remediation.NewRemediator(remediation.Config{
		Model:            a.Model,
		Faults:           a.Faults,
		Audit:            remediation.NewAuditLog(cfg.Remediation.AuditCapacity),
		Logger:           logger.With().Str("component", "remediation").Logger(),
		ServiceName:      cfg.Remediation.ServiceName,
		RestartDelay:     cfg.Remediation.RestartDelay,
		RollbackDelay:    cfg.Remediation.RollbackDelay,
		RetryDelay:       cfg.Remediation.RetryDelay,
		MaxRetries:       cfg.Remediation.MaxRetries,
		CurrentReplicas:  cfg.Remediation.CurrentReplicas,
		TargetReplicas:   cfg.Remediation.TargetReplicas,
		RollbackFallback: cfg.Remediation.RollbackFallback,
	})

	a.Incidents = incident.NewManager(incident.ManagerConfig{
		Incidents:  incidentRepo,
		Checks:     checkRepo,
		Remediator: a.Remediator,
		Recorder:   a.Recorder,
		Logger:     logger,
	})

	runner := checks.NewRunner(checks.Config{
		Model:           a.Model,
		Faults:          a.Faults,
		Rand:            sim.NewRand(deriveSeed(cfg.Model.Seed)),
		Logger:          logger.With().Str("component", "checks").Logger(),
		DriftSamples:    cfg.Checks.DriftSamples,
		MemoryThreshold: cfg.Checks.MemoryThreshold,
	})
	a.Monitor = monitor.NewService(monitor.ServiceConfig{
		Checks:    a.Checks,
		Incidents: a.Incidents,
		Runner:    runner,
		Recorder:  a.Recorder,
		Logger:    logger,
	})

	a.Ingestor = infra.NewIngestor(infra.IngestorConfig{
		Rand:         sim.NewRand(cfg.Infra.Seed),
		Recorder:     a.Recorder,
		Logger:       logger.With().Str("component", "infra").Logger(),
		HistoryLimit: cfg.Infra.HistoryLimit,
	})
	a.Engine = infra.NewEngine(infra.EngineConfig{Ingestor: a.Ingestor, Logger: logger})

	return a, nil
}

func (a *App) openStorage(ctx context.Context) (healthcheck.Repository, incident.Repository, error) {
	cfg := a.Config
	if cfg.Storage.Driver != config.StoragePostgres {
		a.Logger.Warn().Msg("using in-memory storage, data is lost on restart")
		return healthcheck.NewInMemoryRepository(), incident.NewInMemoryRepository(), nil
	}

	if cfg.Storage.AutoMigrate {
		if err := database.Migrate(cfg.Database, a.Logger); err != nil {
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	a.pool = pool
	a.Logger.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("database", cfg.Database.Database).
		Msg("database connected")

	return healthcheck.NewPostgresRepository(pool), incident.NewPostgresRepository(pool), nil
}

// openCache returns a Redis cache when one is configured and reachable, and
// falls back to the in-process cache otherwise.
func (a *App) openCache(ctx context.Context) inference.Cache {
	cfg := a.Config.Redis
	if cfg.Addr == "" {
		return inference.NewMemoryCache()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		a.Logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis unavailable, using in-process prediction cache")
		_ = client.Close()
		return inference.NewMemoryCache()
	}

	a.redis = client
	a.Logger.Info().Str("addr", cfg.Addr).Msg("redis prediction cache connected")
	return inference.NewRedisCache(inference.RedisCacheConfig{
		Client: client,
		Prefix: cfg.Prefix,
		TTL:    cfg.TTL,
	})
}

// Readiness returns the dependency probes for the readiness endpoint.
func (a *App) Readiness() []handler.ReadinessCheck {
	var out []handler.ReadinessCheck
	if a.pool != nil {
		out = append(out, handler.ReadinessCheck{Name: "database", Check: a.pool.Ping})
	}
	if a.redis != nil {
		out = append(out, handler.ReadinessCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return a.redis.Ping(ctx).Err() },
		})
	}
	return out
}

// NewScheduler builds a scheduler over the enabled check definitions.
func (a *App) NewScheduler() *scheduler.Scheduler {
	return scheduler.New(scheduler.Config{
		Definitions: a.Checks,
		Runner:      a.Monitor,
		Logger:      a.Logger,
	})
}

// Close releases database and cache connections.
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return errors.Join(errs...)
}

func deriveSeed(seed uint64) uint64 {
	if seed == 0 {
		return 0
	}
	return seed + 1
}
