package config

import (
	"github.com/marmos91/imgloader/internal/logger"
	"github.com/marmos91/imgloader/internal/telemetry"
	"github.com/marmos91/imgloader/pkg/api"
	"github.com/marmos91/imgloader/pkg/cache"
	"github.com/marmos91/imgloader/pkg/fetch"
	"github.com/marmos91/imgloader/pkg/loader"
)

// LoggerConfig returns the logger settings.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Output: c.Logging.Output,
	}
}

// TracingConfig returns the OpenTelemetry settings for the given version.
func (c *Config) TracingConfig(version string) telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Telemetry.Enabled,
		ServiceName:    appName,
		ServiceVersion: version,
		Endpoint:       c.Telemetry.Endpoint,
		Insecure:       c.Telemetry.Insecure,
		SampleRate:     c.Telemetry.SampleRate,
	}
}

// ProfilingConfig returns the Pyroscope settings for the given version.
func (c *Config) ProfilingConfig(version string) telemetry.ProfilingConfig {
	return telemetry.ProfilingConfig{
		Enabled:        c.Telemetry.Profiling.Enabled,
		ServiceName:    appName,
		ServiceVersion: version,
		Endpoint:       c.Telemetry.Profiling.Endpoint,
		ProfileTypes:   c.Telemetry.Profiling.ProfileTypes,
	}
}

// FetchConfig returns the origin client settings.
func (c *Config) FetchConfig() fetch.Config {
	return fetch.Config{
		Timeout:             c.Fetch.Timeout,
		MaxBytes:            int64(c.Fetch.MaxBytes),
		UserAgent:           c.Fetch.UserAgent,
		MaxRedirects:        c.Fetch.MaxRedirects,
		AllowAnyContentType: c.Fetch.AllowAnyContentType,
	}
}

// CacheConfig returns the tiered cache settings.
func (c *Config) CacheConfig() cache.Config {
	persister := cache.DefaultPersisterConfig()
	persister.Timeout = c.Loader.PersistTimeout

	return cache.Config{
		MemoryMaxEntries: c.Loader.MemoryMaxEntries,
		MemoryMaxBytes:   int64(c.Loader.MemoryMaxBytes),
		Persister:        persister,
	}
}

// SchedulerConfig returns the loader settings. A retrieval may spend the
// whole fetch timeout on the origin after a durable lookup, so the task
// budget is twice the fetch timeout.
func (c *Config) SchedulerConfig() loader.Config {
	cfg := loader.DefaultConfig()
	cfg.MaxConcurrent = c.Loader.MaxConcurrent
	if c.Fetch.Timeout > 0 {
		cfg.TaskTimeout = 2 * c.Fetch.Timeout
	}
	return cfg
}

// APIConfig returns the HTTP server settings. The metrics handler is left
// for the caller to fill in.
func (c *Config) APIConfig() api.Config {
	cfg := api.Config{
		BindAddress:     c.Server.BindAddress,
		Port:            c.Server.Port,
		ReadTimeout:     c.Server.ReadTimeout,
		WriteTimeout:    c.Server.WriteTimeout,
		IdleTimeout:     c.Server.IdleTimeout,
		MaxBatchSize:    c.Server.MaxBatchSize,
		PreloadOnScrape: c.Loader.PreloadOnScrape,
	}
	if c.Metrics.Enabled {
		cfg.MetricsPath = c.Metrics.Path
	}
	return cfg
}
