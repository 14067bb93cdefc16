package config

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/marmos91/imgloader/pkg/config"
	"github.com/marmos91/imgloader/pkg/store"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Check the configuration file for syntax errors and invalid values, then
print a summary and any warnings.

Examples:
  imgloader config validate
  imgloader config validate --config /etc/imgloader/config.yaml`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(configPath(cmd))
	if err != nil {
		return err
	}
	printValidation(cmd.OutOrStdout(), displayPath(cmd), cfg)
	return nil
}

// warnings lists settings that are valid but probably unintended.
func warnings(cfg *config.Config) []string {
	var w []string
	switch cfg.Store.Type {
	case store.TypeNone:
		w = append(w, "Durable store disabled - images are only cached in memory")
	case store.TypeMemory:
		w = append(w, "Durable store is in-memory - cached images are lost on restart")
	}
	if cfg.Loader.MemoryMaxEntries == 0 && cfg.Loader.MemoryMaxBytes == 0 {
		w = append(w, "Memory cache is unbounded")
	}
	if cfg.Fetch.AllowAnyContentType {
		w = append(w, "Non-image responses are accepted")
	}
	if cfg.Logging.Level == "DEBUG" {
		w = append(w, "Debug logging enabled - may impact performance")
	}
	return w
}

func printValidation(out io.Writer, path string, cfg *config.Config) {
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", path)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if w := warnings(cfg); len(w) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, msg := range w {
			_, _ = fmt.Fprintf(out, "  - %s\n", msg)
		}
	}

	_, _ = fmt.Fprintf(out, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(out, "  Store type:      %s\n", cfg.Store.Type)
	_, _ = fmt.Fprintf(out, "  Max concurrent:  %d\n", cfg.Loader.MaxConcurrent)
	_, _ = fmt.Fprintf(out, "  Listen address:  %s\n", cfg.Server.Addr())
	_, _ = fmt.Fprintf(out, "  Fetch timeout:   %s\n", cfg.Fetch.Timeout)
	_, _ = fmt.Fprintf(out, "  Log level:       %s\n", cfg.Logging.Level)
}
