package commands

import (
	"context"
	"fmt"
	"net/http"

	"github.com/marmos91/imgloader/internal/logger"
	"github.com/marmos91/imgloader/pkg/apiclient"
	"github.com/marmos91/imgloader/pkg/cache"
	"github.com/marmos91/imgloader/pkg/config"
	"github.com/marmos91/imgloader/pkg/fetch"
	"github.com/marmos91/imgloader/pkg/loader"
	"github.com/marmos91/imgloader/pkg/metrics"
	"github.com/marmos91/imgloader/pkg/store"
)

// loadConfig loads the config file and applies the --log-level override.
func loadConfig() (*config.Config, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	if err := logger.Init(cfg.LoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// initMetrics creates the Prometheus registry when metrics are enabled and
// returns the exposition handler, or nil.
func initMetrics(cfg *config.Config) http.Handler {
	if !cfg.Metrics.Enabled {
		logger.Info("Metrics collection disabled")
		return nil
	}
	metrics.InitRegistry()
	logger.Info("Metrics enabled", "path", cfg.Metrics.Path)
	return metrics.Handler()
}

// buildLoader opens the durable store and wires the cache, origin client
// and scheduler. Metrics sinks are nil unless initMetrics ran first.
func buildLoader(ctx context.Context, cfg *config.Config) (*loader.Loader, error) {
	durable, err := config.CreateStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if durable != nil {
		durable = store.Instrument(durable, cfg.Store.Type, metrics.NewStoreMetrics())
	}

	c := cache.New(cfg.CacheConfig(), durable, metrics.NewCacheMetrics())
	f := fetch.New(cfg.FetchConfig())
	l := loader.New(cfg.SchedulerConfig(), c, f, metrics.NewLoaderMetrics())

	logger.Info("Loader ready",
		logger.KeyMaxConcurrent, cfg.Loader.MaxConcurrent,
		logger.StoreType(cfg.Store.Type),
		"memory_max_entries", cfg.Loader.MemoryMaxEntries,
		"memory_max_bytes", cfg.Loader.MemoryMaxBytes.String(),
	)
	return l, nil
}

func newClient() *apiclient.Client {
	return apiclient.New(serverURL)
}

func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
