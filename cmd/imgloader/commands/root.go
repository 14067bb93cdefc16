// Package commands implements the imgloader CLI.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/imgloader/cmd/imgloader/commands/config"
	"github.com/marmos91/imgloader/internal/cli/output"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile      string
	serverURL    string
	outputFormat string
	logLevel     string
)

const defaultServerURL = "http://localhost:8080"

var rootCmd = &cobra.Command{
	Use:   "imgloader",
	Short: "imgloader - prioritized image retrieval with a tiered cache",
	Long: `imgloader retrieves images by URL with bounded concurrency, per-URL
deduplication and three priority classes, caching them as data URLs in
memory and in a durable store.

Run "imgloader serve" to start the HTTP API. The remaining commands either
talk to a running server (--server) or, like "fetch", run a loader in
process.

Use "imgloader [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	defaultServer := os.Getenv("IMGLOADER_SERVER")
	if defaultServer == "" {
		defaultServer = defaultServerURL
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/imgloader/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "imgloader server URL (env IMGLOADER_SERVER)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging.level (DEBUG|INFO|WARN|ERROR)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(preloadCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(config.Cmd)
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}

// printer returns a stdout printer for the --output flag.
func printer() (*output.Printer, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return output.StdoutPrinter(format), nil
}
