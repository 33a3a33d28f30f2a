// Package bootstrap wires the runtime's layers together into a running
// Service the way the teacher's per-component bootstrap packages do
// (components/crm/internal/bootstrap, components/onboarding/internal/bootstrap):
// a flat env-tagged Config, an InitServersWithOptions DI entry point,
// and a Service/Run lifecycle.
package bootstrap

import (
	"fmt"
	"os"
	"time"

	"github.com/LerianStudio/midaz-flow/pkg/menv"
	"github.com/LerianStudio/midaz-flow/pkg/mretry"
	"gopkg.in/yaml.v3"
)

// StorageDriver selects the EventStore/SnapshotStore backing pair.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"
	StorageEmbedded StorageDriver = "embedded"
	StoragePostgres StorageDriver = "postgres"
	StorageSQLite   StorageDriver = "sqlite"
)

// SnapshotDriver optionally overrides just the SnapshotStore half of
// whatever StorageDriver selected, for deployments that want a
// document-shaped snapshot archive (internal/adapters/mongodb) beside
// an EventStore that has no such thing of its own.
type SnapshotDriver string

const SnapshotMongoDB SnapshotDriver = "mongodb"

// CheckpointDriver optionally overrides the checkpoint.Store half of
// whatever StorageDriver selected, for deployments that want offsets in
// redis beside an EventStore/SnapshotStore pair that has its own
// checkpoint table (e.g. postgres) or none at all (memory).
type CheckpointDriver string

const CheckpointRedis CheckpointDriver = "redis"

// BusDriver selects the EventBus transport.
type BusDriver string

const (
	BusMemory   BusDriver = "memory"
	BusRabbitMQ BusDriver = "rabbitmq"
)

// Config is the flat, env-tagged configuration struct every field of
// which can also be supplied by a `run-standalone --config <path>`
// YAML file (spec §6); YAML values are loaded first and environment
// variables win over them, the same layering order the teacher's
// InitLocalEnvConfig + SetConfigFromEnvVars combination produces when
// a component reads both a `.env` file and the process environment.
type Config struct {
	EnvName  string `env:"ENV_NAME" yaml:"env_name"`
	LogLevel string `env:"LOG_LEVEL" yaml:"log_level"`

	StorageDriver string `env:"STORAGE_DRIVER" yaml:"storage_driver"`
	DataDir       string `env:"DATA_DIR" yaml:"data_dir"`
	PostgresDSN   string `env:"POSTGRES_DSN" yaml:"postgres_dsn"`
	MongoURI      string `env:"MONGO_URI" yaml:"mongo_uri"`
	MongoDatabase string `env:"MONGO_DATABASE" yaml:"mongo_database"`
	RedisAddr     string `env:"REDIS_ADDR" yaml:"redis_addr"`

	// SnapshotDriver, when set to "mongodb", swaps just the SnapshotStore
	// half of OpenStorage's result for internal/adapters/mongodb.Store
	// regardless of StorageDriver.
	SnapshotDriver string `env:"SNAPSHOT_DRIVER" yaml:"snapshot_driver"`

	// CheckpointDriver, when set to "redis", swaps just the
	// checkpoint.Store half of OpenStorage's result for
	// internal/adapters/redis.Store regardless of StorageDriver.
	CheckpointDriver string `env:"CHECKPOINT_DRIVER" yaml:"checkpoint_driver"`

	BusDriver   string `env:"BUS_DRIVER" yaml:"bus_driver"`
	RabbitMQURL string `env:"RABBITMQ_URL" yaml:"rabbitmq_url"`

	ServerAddress string `env:"SERVER_ADDRESS" yaml:"server_address"`
	HTTPAddress   string `env:"HTTP_ADDRESS" yaml:"http_address"`

	SnapshotReadEnabled  bool `env:"SNAPSHOT_READ_ENABLED" yaml:"snapshot_read_enabled"`
	SnapshotWriteEnabled bool `env:"SNAPSHOT_WRITE_ENABLED" yaml:"snapshot_write_enabled"`

	RetryMaxRetries          int     `env:"RETRY_MAX_RETRIES" yaml:"retry_max_retries"`
	RetryInitialBackoffMS    int     `env:"RETRY_INITIAL_BACKOFF_MS" yaml:"retry_initial_backoff_ms"`
	RetryMaxBackoffMS        int     `env:"RETRY_MAX_BACKOFF_MS" yaml:"retry_max_backoff_ms"`
	RetryJitterFactorPercent int     `env:"RETRY_JITTER_FACTOR_PERCENT" yaml:"retry_jitter_factor_percent"`

	OffloadThresholdBytes int `env:"OFFLOAD_THRESHOLD_BYTES" yaml:"offload_threshold_bytes"`

	// EditionSubscribersJSON carries the subscriber routing-key table
	// of spec §6 (`edition-aware subscription configuration`) as a JSON
	// blob, the same "JSON config blob in an env var" convention the
	// teacher uses for plugin/feature toggles it doesn't want a typed
	// field per entry for.
	EditionSubscribersJSON string `env:"EDITION_SUBSCRIBERS_JSON" yaml:"edition_subscribers_json"`
}

// Default returns a Config with the same production-safe defaults the
// teacher's components fall back to absent an override (in-memory
// storage and bus drivers, listen addresses, snapshot toggles, retry
// budgets).
func Default() Config {
	return Config{
		EnvName:                  "development",
		LogLevel:                 "info",
		StorageDriver:            string(StorageMemory),
		MongoDatabase:            "midazflow",
		BusDriver:                string(BusMemory),
		ServerAddress:            ":50051",
		HTTPAddress:              ":3000",
		SnapshotReadEnabled:      true,
		SnapshotWriteEnabled:     true,
		RetryMaxRetries:          5,
		RetryInitialBackoffMS:    10,
		RetryMaxBackoffMS:        1000,
		RetryJitterFactorPercent: 25,
	}
}

// LoadFromFile layers a YAML config file's values over whatever is
// already set on cfg (every key present in the file is applied,
// including explicit false or 0 values; keys absent from the file keep
// cfg's current value; a subsequent LoadFromEnv call still wins over
// both).
func LoadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("bootstrap: read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("bootstrap: parse config file %s: %w", path, err)
	}

	return nil
}

// LoadFromEnv overlays environment variables on top of cfg.
func LoadFromEnv(cfg *Config) error {
	return menv.Load(cfg)
}

// RetryConfig builds an mretry.Config from the flat millisecond/percent
// fields env vars can express cleanly.
func (c Config) RetryConfig() mretry.Config {
	cfg := mretry.Config{
		MaxRetries:     c.RetryMaxRetries,
		InitialBackoff: time.Duration(c.RetryInitialBackoffMS) * time.Millisecond,
		MaxBackoff:     time.Duration(c.RetryMaxBackoffMS) * time.Millisecond,
		JitterFactor:   float64(c.RetryJitterFactorPercent) / 100,
	}

	if cfg.MaxRetries == 0 {
		return mretry.DefaultConfig()
	}

	return cfg
}
