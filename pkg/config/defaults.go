package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/imgloader/internal/bytesize"
	"github.com/marmos91/imgloader/pkg/store"
)

// DefaultMaxConcurrent is the number of retrievals allowed to run at once.
const DefaultMaxConcurrent = 4

// ApplyDefaults fills in zero values with defaults.
// Explicitly set values are left alone.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyServerDefaults(&cfg.Server)
	applyLoaderDefaults(&cfg.Loader)
	applyFetchDefaults(&cfg.Fetch)
	applyStoreDefaults(&cfg.Store)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	// Enabled with no sampling would export nothing.
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = []string{"cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"}
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Path == "" {
		cfg.Path = "/metrics"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	// Writes wait on origin retrievals, so allow at least one fetch timeout.
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 120 * time.Second
	}
	if cfg.MaxBatchSize == 0 {
		cfg.MaxBatchSize = 500
	}
}

func applyLoaderDefaults(cfg *LoaderConfig) {
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.MemoryMaxEntries == 0 {
		cfg.MemoryMaxEntries = 1024
	}
	if cfg.MemoryMaxBytes == 0 {
		cfg.MemoryMaxBytes = 256 * bytesize.MiB
	}
	if cfg.PersistTimeout == 0 {
		cfg.PersistTimeout = 10 * time.Second
	}
}

func applyFetchDefaults(cfg *FetchConfig) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 20 * bytesize.MiB
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "imgloader/1.0"
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = 5
	}
}

func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Type == "" {
		cfg.Type = store.TypeBadger
	}
	cfg.Type = strings.ToLower(cfg.Type)
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	if cfg.Badger.Path == "" {
		cfg.Badger.Path = filepath.Join(getDataDir(), "badger")
	}
	if cfg.Badger.GCInterval == 0 {
		cfg.Badger.GCInterval = 10 * time.Minute
	}

	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = filepath.Join(getDataDir(), "images.db")
	}

	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = 5432
	}
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = "disable"
	}
	if cfg.Postgres.MaxOpenConns == 0 {
		cfg.Postgres.MaxOpenConns = 10
	}
	if cfg.Postgres.MaxIdleConns == 0 {
		cfg.Postgres.MaxIdleConns = 2
	}

	if cfg.S3.Region == "" {
		cfg.S3.Region = "us-east-1"
	}

	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = appName + ":"
	}
}

// GetDefaultConfig returns a Config with all defaults applied.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
