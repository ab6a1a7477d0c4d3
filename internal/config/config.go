// Package config loads service settings from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/inferguard/inferguard/internal/database"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config is the complete service configuration.
type Config struct {
	App         AppConfig         `yaml:"app"`
	Storage     StorageConfig     `yaml:"storage"`
	Database    database.Config   `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	PubSub      PubSubConfig      `yaml:"pubsub"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Model       ModelConfig       `yaml:"model"`
	Checks      ChecksConfig      `yaml:"checks"`
	Remediation RemediationConfig `yaml:"remediation"`
	Infra       InfraConfig       `yaml:"infra"`
}

// AppConfig controls the HTTP listener and logging.
type AppConfig struct {
	Port     string `yaml:"port"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
	// RequireTLS rejects requests a proxy forwarded over plain HTTP.
	RequireTLS bool `yaml:"require_tls"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver       string `yaml:"driver"`
	AutoMigrate  bool   `yaml:"auto_migrate"`
	SeedDefaults bool   `yaml:"seed_defaults"`
}

// RedisConfig configures the prediction cache. An empty Addr keeps the cache
// in process.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRatio  float64 `yaml:"sample_ratio"`
}

// PubSubConfig configures the worker's job subscription.
type PubSubConfig struct {
	ProjectID        string `yaml:"project_id"`
	SubscriptionName string `yaml:"subscription"`
}

// SchedulerConfig controls periodic check execution.
type SchedulerConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ModelConfig configures the simulated inference backend.
type ModelConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	Version     string        `yaml:"version"`
	BaseLatency time.Duration `yaml:"base_latency"`
	Seed        uint64        `yaml:"seed"`
}

// ChecksConfig tunes the health checks.
type ChecksConfig struct {
	DriftSamples    int     `yaml:"drift_samples"`
	MemoryThreshold float64 `yaml:"memory_threshold"`
	SweepWorkers    int     `yaml:"sweep_workers"`
}

// RemediationConfig tunes the remediator.
type RemediationConfig struct {
	ServiceName     string        `yaml:"service_name"`
	RestartDelay    time.Duration `yaml:"restart_delay"`
	RollbackDelay   time.Duration `yaml:"rollback_delay"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	MaxRetries      int           `yaml:"max_retries"`
	AuditCapacity   int           `yaml:"audit_capacity"`
	CurrentReplicas int           `yaml:"current_replicas"`
	TargetReplicas  int           `yaml:"target_replicas"`

	// RollbackFallback is the rollback target when none can be derived
	// from the running model version.
	RollbackFallback string `yaml:"rollback_fallback"`
}

// InfraConfig configures the simulated cloud fleet.
type InfraConfig struct {
	Seed         uint64 `yaml:"seed"`
	HistoryLimit int    `yaml:"history_limit"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		App: AppConfig{
			Port:     "8080",
			Env:      "development",
			LogLevel: "info",
		},
		Storage: StorageConfig{
			Driver:       StorageMemory,
			AutoMigrate:  true,
			SeedDefaults: true,
		},
		Database: database.DefaultConfig(),
		Redis: RedisConfig{
			Prefix: "inferguard:prediction:",
			TTL:    time.Hour,
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: "localhost:4317",
		},
		PubSub: PubSubConfig{
			SubscriptionName: "inferguard-jobs",
		},
		Scheduler: SchedulerConfig{Enabled: true},
		Model: ModelConfig{
			Endpoint:    "mock://local",
			Version:     "v1.2.3",
			BaseLatency: 50 * time.Millisecond,
		},
		Checks: ChecksConfig{
			DriftSamples:    100,
			MemoryThreshold: 80,
			SweepWorkers:    4,
		},
		Remediation: RemediationConfig{
			ServiceName:     "inference-service",
			RestartDelay:    2 * time.Second,
			RollbackDelay:   time.Second,
			RetryDelay:      5 * time.Second,
			MaxRetries:      3,
			AuditCapacity:   1000,
			CurrentReplicas: 1,
			TargetReplicas:  3,
		},
		Infra: InfraConfig{
			HistoryLimit: 10000,
		},
	}
}

// Load reads path when it is non-empty, then applies environment overrides.
// An empty path falls back to INFERGUARD_CONFIG.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("INFERGUARD_CONFIG")
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if err := c.Database.Validate(); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, fmt.Errorf("storage driver must be %q or %q, got %q",
			StorageMemory, StoragePostgres, c.Storage.Driver))
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.App.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.App.LogLevel))
	}
	if c.Remediation.MaxRetries < 1 {
		errs = append(errs, errors.New("remediation max_retries must be at least 1"))
	}
	if c.Remediation.AuditCapacity < 1 {
		errs = append(errs, errors.New("remediation audit_capacity must be at least 1"))
	}
	if r := c.Telemetry.SampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("telemetry sample_ratio must be within [0, 1], got %v", r))
	}
	if c.Checks.SweepWorkers < 1 {
		errs = append(errs, errors.New("checks sweep_workers must be at least 1"))
	}

	return errors.Join(errs...)
}

// Level returns the parsed log level, defaulting to info.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(c.App.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.App.Port, "APP_PORT")
	setString(&cfg.App.Env, "APP_ENV")
	setString(&cfg.App.LogLevel, "LOG_LEVEL")
	setBool(&cfg.App.RequireTLS, "REQUIRE_TLS")

	setString(&cfg.Storage.Driver, "STORAGE_DRIVER")
	setBool(&cfg.Storage.AutoMigrate, "STORAGE_AUTO_MIGRATE")
	setBool(&cfg.Storage.SeedDefaults, "STORAGE_SEED_DEFAULTS")
	database.ApplyEnv(&cfg.Database)

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setDuration(&cfg.Redis.TTL, "REDIS_TTL")

	setBool(&cfg.Telemetry.Enabled, "OTEL_ENABLED")
	setString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setFloat(&cfg.Telemetry.SampleRatio, "OTEL_TRACES_SAMPLER_ARG")

	setString(&cfg.PubSub.ProjectID, "PUBSUB_PROJECT_ID")
	setString(&cfg.PubSub.SubscriptionName, "PUBSUB_SUBSCRIPTION")

	setBool(&cfg.Scheduler.Enabled, "SCHEDULER_ENABLED")

	setString(&cfg.Model.Endpoint, "MODEL_ENDPOINT")
	setString(&cfg.Model.Version, "MODEL_VERSION")
	setDuration(&cfg.Model.BaseLatency, "MODEL_BASE_LATENCY")
	if v, err := strconv.ParseUint(os.Getenv("MODEL_SEED"), 10, 64); err == nil {
		cfg.Model.Seed = v
	}

	setInt(&cfg.Checks.DriftSamples, "CHECKS_DRIFT_SAMPLES")
	setInt(&cfg.Checks.SweepWorkers, "CHECKS_SWEEP_WORKERS")
	setFloat(&cfg.Checks.MemoryThreshold, "CHECKS_MEMORY_THRESHOLD")

	setString(&cfg.Remediation.ServiceName, "REMEDIATION_SERVICE_NAME")
	setDuration(&cfg.Remediation.RestartDelay, "REMEDIATION_RESTART_DELAY")
	setDuration(&cfg.Remediation.RollbackDelay, "REMEDIATION_ROLLBACK_DELAY")
	setDuration(&cfg.Remediation.RetryDelay, "REMEDIATION_RETRY_DELAY")
	setInt(&cfg.Remediation.MaxRetries, "REMEDIATION_MAX_RETRIES")
	setInt(&cfg.Remediation.AuditCapacity, "REMEDIATION_AUDIT_CAPACITY")
	setString(&cfg.Remediation.RollbackFallback, "REMEDIATION_ROLLBACK_FALLBACK")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		*dst = v
	}
}

func setFloat(dst *float64, key string) {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		*dst = v
	}
}
