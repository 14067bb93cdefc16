package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/imgloader/internal/logger"
	"github.com/marmos91/imgloader/internal/telemetry"
	"github.com/marmos91/imgloader/pkg/api"
	"github.com/marmos91/imgloader/pkg/api/handlers"
	"github.com/marmos91/imgloader/pkg/config"
	"github.com/marmos91/imgloader/pkg/metrics"
	"github.com/marmos91/imgloader/pkg/scrape"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/imgloader/pkg/metrics/prometheus"
)

var (
	pidFile   string
	noScrape  bool
	watchConf bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the imgloader HTTP API in the foreground.

The server loads images on demand through a scheduler that runs at most
loader.max_concurrent retrievals at once, and caches them in memory and in
the durable store selected by store.type.

Examples:
  # Start with the default config
  imgloader serve

  # Start with a custom config file
  imgloader serve --config /etc/imgloader/config.yaml

  # Override settings from the environment
  IMGLOADER_LOADER_MAX_CONCURRENT=8 IMGLOADER_STORE_TYPE=redis imgloader serve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&pidFile, "pid-file", "", "Write the process ID to this file")
	serveCmd.Flags().BoolVar(&noScrape, "no-scrape", false, "Disable the page scraping endpoint")
	serveCmd.Flags().BoolVar(&watchConf, "watch-config", true, "Apply logging changes from the config file without restarting")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, cfg.TracingConfig(Version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("Telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(cfg.ProfilingConfig(Version))
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("Profiling shutdown error", logger.Err(err))
		}
	}()

	logger.Info("Starting imgloader", "version", Version, "commit", Commit)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}

	apiCfg := cfg.APIConfig()
	apiCfg.MetricsHandler = initMetrics(cfg)

	l, err := buildLoader(ctx, cfg)
	if err != nil {
		return err
	}

	var scraper handlers.Scraper
	if !noScrape {
		scraper = scrape.NewDefault(cfg.FetchConfig())
	}

	deps := api.Deps{
		Loader:    l,
		Scraper:   scraper,
		StoreType: cfg.Store.Type,
	}
	if hm := metrics.NewHTTPMetrics(); hm != nil {
		deps.Metrics = hm
	}
	server := api.NewServer(apiCfg, deps)

	if watchConf && (GetConfigFile() != "" || config.DefaultConfigExists()) {
		if err := config.Watch(GetConfigFile(), applyReload); err != nil {
			logger.Warn("Config watch disabled", logger.Err(err))
		}
	}

	if pidFile != "" {
		if err := os.WriteFile(pidFile, fmt.Appendf(nil, "%d", os.Getpid()), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	var serveErr error
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()
		serveErr = <-serverDone
	case serveErr = <-serverDone:
		if serveErr != nil {
			logger.Error("Server failed", logger.Err(serveErr))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := l.Close(shutdownCtx); err != nil {
		logger.Error("Loader shutdown error", logger.Err(err))
		serveErr = errors.Join(serveErr, err)
	}

	logger.Info("Server stopped")
	return serveErr
}

// applyReload applies the settings that can change while running.
func applyReload(cfg *config.Config) {
	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	logger.SetLevel(level)
	logger.SetFormat(cfg.Logging.Format)
}
