// Package main provides the entrypoint for the InferGuard background worker.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/inferguard/inferguard/internal/api/response"
	"github.com/inferguard/inferguard/internal/app"
	"github.com/inferguard/inferguard/internal/config"
	"github.com/inferguard/inferguard/internal/telemetry"
	"github.com/inferguard/inferguard/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "inferguard-worker"

	configPath := flag.String("config", "", "path to YAML config file (default $INFERGUARD_CONFIG)")
	schedule := flag.Bool("schedule", false, "run the cron scheduler in this process")
	flag.Parse()

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	log = log.Level(cfg.Level())
	log.Info().Str("build_time", BuildTime).Msg("starting InferGuard worker")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.App.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	services, err := app.New(ctx, *cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize services")
		return
	}
	defer func() {
		if closeErr := services.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close connections")
		}
	}()

	sweepCfg := worker.DefaultSweepConfig()
	sweepCfg.Concurrency = cfg.Checks.SweepWorkers
	sweep := worker.NewSweepJob(worker.SweepJobConfig{
		Config:    sweepCfg,
		Logger:    log.With().Str("component", "sweep").Logger(),
		Checks:    services.Checks,
		Runner:    services.Monitor,
		Collector: services.Ingestor,
	})
	dispatcher := worker.NewDispatcher(worker.DispatcherConfig{
		Sweep:      sweep,
		Runner:     services.Monitor,
		Remediator: services.Incidents,
		Collector:  services.Ingestor,
		Logger:     log,
	})

	// Worker also exposes health and metrics endpoints for Cloud Run
	router := chi.NewRouter()
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]any{
			"status":  "healthy",
			"version": Version,
			"sweeps":  sweep.MetricsSnapshot(),
		})
	})
	router.Handle("/metrics", promhttp.HandlerFor(services.Registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	sched := services.NewScheduler()
	if *schedule {
		scheduled, syncErr := sched.Sync(ctx)
		if syncErr != nil {
			log.Error().Err(syncErr).Msg("failed to schedule health checks")
			return
		}
		sched.Start()
		log.Info().Int("checks", scheduled).Msg("health check scheduler started")
	}

	if cfg.PubSub.ProjectID != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSub.ProjectID,
			SubscriptionName: cfg.PubSub.SubscriptionName,
			Dispatcher:       dispatcher,
			Logger:           log.With().Str("component", "pubsub").Logger(),
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to create pubsub handler")
			return
		}
		defer func() {
			if closeErr := handler.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close pubsub client")
			}
		}()

		go func() {
			if err := handler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("pubsub receive stopped")
				cancel()
			}
		}()
	} else {
		log.Warn().Msg("PUBSUB_PROJECT_ID not set, job subscription disabled")
	}

	// Wait for interrupt signal or a fatal receive error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if *schedule {
		sched.Stop(shutdownCtx)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
