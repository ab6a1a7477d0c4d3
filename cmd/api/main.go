// Package main provides the entrypoint for the InferGuard API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/inferguard/inferguard/internal/api"
	"github.com/inferguard/inferguard/internal/api/middleware"
	"github.com/inferguard/inferguard/internal/app"
	"github.com/inferguard/inferguard/internal/config"
	"github.com/inferguard/inferguard/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const (
	serviceName     = "inferguard-api"
	shutdownTimeout = 30 * time.Second
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (default $INFERGUARD_CONFIG)")
	flag.Parse()

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, log); err != nil {
		log.Error().Err(err).Msg("api exited")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, log zerolog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	log = log.Level(cfg.Level())
	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.App.Env).
		Str("storage", cfg.Storage.Driver).
		Msg("starting InferGuard API")

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.App.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(flushCtx); err != nil {
			log.Error().Err(err).Msg("failed to flush telemetry")
		}
	}()
	if tp.Enabled() {
		log.Info().Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).Msg("exporting traces and metrics")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		return fmt.Errorf("http metrics: %w", err)
	}

	services, err := app.New(ctx, *cfg, log)
	if err != nil {
		return fmt.Errorf("init services: %w", err)
	}
	defer func() {
		if err := services.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close connections")
		}
	}()

	// Scheduled checks run in the API process unless a worker owns them.
	sched := services.NewScheduler()
	if cfg.Scheduler.Enabled {
		n, err := sched.Sync(ctx)
		if err != nil {
			return fmt.Errorf("schedule health checks: %w", err)
		}
		sched.Start()
		log.Info().Int("checks", n).Msg("health check scheduler started")
	}

	// Auto-remediation holds a request across several retry delays, hence
	// the long write timeout.
	server := &http.Server{
		Addr: ":" + cfg.App.Port,
		Handler: api.NewRouter(api.RouterConfig{
			Version:           Version,
			BuildTime:         BuildTime,
			Logger:            log,
			RequireTLS:        cfg.App.RequireTLS,
			Metrics:           httpMetrics,
			Gatherer:          services.Registry,
			Checks:            services.Checks,
			Monitor:           services.Monitor,
			Faults:            services.Faults,
			Model:             services.Model,
			Incidents:         services.Incidents,
			Remediator:        services.Incidents,
			Audit:             services.Remediator.Audit(),
			DefaultMaxRetries: cfg.Remediation.MaxRetries,
			Fleet:             services.Ingestor,
			Rightsizer:        services.Engine,
			Readiness:         services.Readiness(),
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if cfg.Scheduler.Enabled {
		sched.Stop(shutdownCtx)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}
