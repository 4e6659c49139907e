package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// WorkerConfig configures the offline worker process (cmd/worker).
//
// These values are deployment-provided; every field has a default that makes local runs work
// against an origin on localhost:8080.
type WorkerConfig struct {
	Port     string `env:"PORT" envDefault:"8081"`
	ClientID string `env:"WORKER_ID" envDefault:"worker-local"`

	// AppOrigin is the application's own origin; requests to other origins are passed
	// through unless their host is allow-listed.
	AppOrigin   string        `env:"APP_ORIGIN" envDefault:"http://localhost:8081"`
	UpstreamURL string        `env:"UPSTREAM_URL" envDefault:"http://localhost:8080"`
	Version     string        `env:"WORKER_VERSION" envDefault:"1.0.0"`
	AllowHosts  []string      `env:"ALLOWED_EXTERNAL_HOSTS" envSeparator:"," envDefault:"maps.googleapis.com,fonts.googleapis.com,fonts.gstatic.com,cdnjs.cloudflare.com"`
	HTTPTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"10s"`

	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"memory"`
	DatabaseURL    string `env:"DATABASE_URL"`
	SQLitePath     string `env:"SQLITE_PATH" envDefault:"pbp-cache.db"`

	KVBackend string `env:"KV_BACKEND" envDefault:"memory"`
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`

	NotifyBackend string   `env:"NOTIFY_BACKEND" envDefault:"memory"`
	KafkaBrokers  []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	KafkaTopic    string   `env:"KAFKA_TOPIC" envDefault:"pbp-client-messages"`

	SyncInterval         time.Duration `env:"SYNC_INTERVAL" envDefault:"15s"`
	PeriodicSyncInterval time.Duration `env:"PERIODIC_SYNC_INTERVAL" envDefault:"1h"`

	DemoEmail    string `env:"DEMO_EMAIL" envDefault:"demo@palmbeachpass.com"`
	DemoPassword string `env:"DEMO_PASSWORD" envDefault:"demo123"`
	MapsEnabled  bool   `env:"MAPS_ENABLED" envDefault:"true"`
}

// OriginConfig configures the origin API process (cmd/api).
type OriginConfig struct {
	Port           string `env:"PORT" envDefault:"8080"`
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"memory"`
	DatabaseURL    string `env:"DATABASE_URL"`
	KVBackend      string `env:"KV_BACKEND" envDefault:"memory"`
	RedisAddr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	// StaticDir, when set, is served at the root (index.html, data/passes.json, ...).
	StaticDir      string `env:"STATIC_DIR"`
	CatalogVersion string `env:"CATALOG_VERSION" envDefault:"1.0.0"`
}

// LoadWorkerConfigFromEnv parses and validates WorkerConfig.
func LoadWorkerConfigFromEnv() (WorkerConfig, error) {
	var cfg WorkerConfig
	if err := env.Parse(&cfg); err != nil {
		return WorkerConfig{}, fmt.Errorf("parse env: %w", err)
	}
	if err := validateOrigin("APP_ORIGIN", cfg.AppOrigin); err != nil {
		return WorkerConfig{}, err
	}
	if err := validateOrigin("UPSTREAM_URL", cfg.UpstreamURL); err != nil {
		return WorkerConfig{}, err
	}
	if strings.TrimSpace(cfg.Version) == "" {
		return WorkerConfig{}, fmt.Errorf("WORKER_VERSION must be non-empty")
	}
	if cfg.SyncInterval <= 0 || cfg.PeriodicSyncInterval <= 0 {
		return WorkerConfig{}, fmt.Errorf("SYNC_INTERVAL and PERIODIC_SYNC_INTERVAL must be positive durations")
	}
	switch cfg.StorageBackend {
	case "memory", "sqlite":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return WorkerConfig{}, fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND=postgres")
		}
	default:
		return WorkerConfig{}, fmt.Errorf("STORAGE_BACKEND must be memory|sqlite|postgres, got %q", cfg.StorageBackend)
	}
	switch cfg.KVBackend {
	case "memory", "redis":
	default:
		return WorkerConfig{}, fmt.Errorf("KV_BACKEND must be memory|redis, got %q", cfg.KVBackend)
	}
	switch cfg.NotifyBackend {
	case "memory", "kafka":
	default:
		return WorkerConfig{}, fmt.Errorf("NOTIFY_BACKEND must be memory|kafka, got %q", cfg.NotifyBackend)
	}
	return cfg, nil
}

// LoadOriginConfigFromEnv parses and validates OriginConfig.
func LoadOriginConfigFromEnv() (OriginConfig, error) {
	var cfg OriginConfig
	if err := env.Parse(&cfg); err != nil {
		return OriginConfig{}, fmt.Errorf("parse env: %w", err)
	}
	switch cfg.StorageBackend {
	case "memory":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return OriginConfig{}, fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND=postgres")
		}
	default:
		return OriginConfig{}, fmt.Errorf("STORAGE_BACKEND must be memory|postgres, got %q", cfg.StorageBackend)
	}
	switch cfg.KVBackend {
	case "memory", "redis":
	default:
		return OriginConfig{}, fmt.Errorf("KV_BACKEND must be memory|redis, got %q", cfg.KVBackend)
	}
	return cfg, nil
}

func validateOrigin(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s must be an absolute URL: %w", name, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
	}
	return nil
}
