package config

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/imgloader/internal/cli/prompt"
	"github.com/marmos91/imgloader/pkg/config"
	"github.com/marmos91/imgloader/pkg/store"
)

var (
	initForce       bool
	initInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file",
	Long: `Write a configuration file with default values.

By default the file is created at $XDG_CONFIG_HOME/imgloader/config.yaml.
Use --config to choose another path and --interactive to pick the durable
store and scheduler settings through prompts.

Examples:
  imgloader config init
  imgloader config init --config /etc/imgloader/config.yaml --force
  imgloader config init --interactive`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
	initCmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "Choose settings interactively")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := displayPath(cmd)

	if !initInteractive {
		if err := config.InitConfigToPath(path, initForce); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		printNextSteps(cmd.OutOrStdout(), path)
		return nil
	}

	if !initForce && fileExists(path) {
		ok, err := prompt.Confirm(fmt.Sprintf("%s exists. Overwrite", path), false)
		if err != nil || !ok {
			if err == nil || prompt.IsAborted(err) {
				return nil
			}
			return err
		}
	}

	cfg := config.GetDefaultConfig()
	if err := promptConfig(cfg); err != nil {
		if prompt.IsAborted(err) {
			return nil
		}
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := config.SaveConfig(cfg, path); err != nil {
		return err
	}
	printNextSteps(cmd.OutOrStdout(), path)
	return nil
}

var storeOptions = []prompt.SelectOption{
	{Label: "BadgerDB", Value: store.TypeBadger, Description: "Embedded key-value store on local disk"},
	{Label: "SQLite", Value: store.TypeSQLite, Description: "Single database file on local disk"},
	{Label: "PostgreSQL", Value: store.TypePostgres, Description: "Shared database server"},
	{Label: "S3", Value: store.TypeS3, Description: "S3 or S3-compatible object storage"},
	{Label: "Redis", Value: store.TypeRedis, Description: "Shared Redis server, entries may expire"},
	{Label: "Memory", Value: store.TypeMemory, Description: "Process memory, lost on restart"},
	{Label: "None", Value: store.TypeNone, Description: "Memory cache only"},
}

var levelOptions = []prompt.SelectOption{
	{Label: "INFO", Value: "INFO"},
	{Label: "DEBUG", Value: "DEBUG"},
	{Label: "WARN", Value: "WARN"},
	{Label: "ERROR", Value: "ERROR"},
}

func promptConfig(cfg *config.Config) error {
	var err error
	if cfg.Store.Type, err = prompt.Select("Durable store", storeOptions); err != nil {
		return err
	}

	s := &cfg.Store
	switch s.Type {
	case store.TypeBadger:
		s.Badger.Path, err = prompt.Input("Badger directory", s.Badger.Path)
	case store.TypeSQLite:
		s.SQLite.Path, err = prompt.Input("SQLite file", s.SQLite.Path)
	case store.TypePostgres:
		err = promptAll(
			field("PostgreSQL host", &s.Postgres.Host, "localhost"),
			field("Database", &s.Postgres.Database, "imgloader"),
			field("User", &s.Postgres.User, "imgloader"),
		)
	case store.TypeS3:
		err = promptAll(
			field("Bucket", &s.S3.Bucket, ""),
			field("Region", &s.S3.Region, s.S3.Region),
			field("Endpoint (empty for AWS)", &s.S3.Endpoint, ""),
		)
	case store.TypeRedis:
		s.Redis.Addr, err = prompt.Input("Redis address", "localhost:6379")
	}
	if err != nil {
		return err
	}

	n, err := prompt.InputWithValidation("Max concurrent retrievals",
		strconv.Itoa(cfg.Loader.MaxConcurrent), validatePositive)
	if err != nil {
		return err
	}
	cfg.Loader.MaxConcurrent, _ = strconv.Atoi(n)

	cfg.Logging.Level, err = prompt.Select("Log level", levelOptions)
	return err
}

type inputField struct {
	label string
	dst   *string
	def   string
}

func field(label string, dst *string, def string) inputField {
	return inputField{label: label, dst: dst, def: def}
}

func promptAll(fields ...inputField) error {
	for _, f := range fields {
		v, err := prompt.Input(f.label, f.def)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	return nil
}

func validatePositive(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fmt.Errorf("enter a positive number")
	}
	return nil
}

func printNextSteps(out io.Writer, path string) {
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", path)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Review the durable store settings under 'store'")
	_, _ = fmt.Fprintf(out, "  2. Check it with: imgloader config validate --config %s\n", path)
	_, _ = fmt.Fprintf(out, "  3. Start the server with: imgloader serve --config %s\n", path)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
