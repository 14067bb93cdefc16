package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/imgloader/internal/bytesize"
)

// appName names the config directory and the environment variable prefix.
const appName = "imgloader"

// Config represents the imgloader configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (IMGLOADER_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics controls Prometheus metrics collection
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Server configures the HTTP API
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Loader configures scheduling and the memory tier
	Loader LoaderConfig `mapstructure:"loader" yaml:"loader"`

	// Fetch configures origin requests
	Fetch FetchConfig `mapstructure:"fetch" yaml:"fetch"`

	// Store selects and configures the durable tier
	Store StoreConfig `mapstructure:"store" yaml:"store"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format: text or json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled turns on span export. Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector endpoint (host:port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure disables TLS towards the collector
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate is the fraction of traces sampled (0.0 to 1.0)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server URL
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes lists the profiles to collect (cpu, alloc_objects, inuse_space, goroutines, ...)
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig controls Prometheus metrics.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Path is the HTTP path the API server exposes metrics on
	Path string `mapstructure:"path" validate:"omitempty,startswith=/" yaml:"path"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	// BindAddress is the interface to listen on. Empty listens on all interfaces.
	BindAddress string `mapstructure:"bind_address" validate:"omitempty,ip|hostname" yaml:"bind_address"`

	// Port is the HTTP port. Default: 8080
	Port int `mapstructure:"port" validate:"min=1,max=65535" yaml:"port"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// MaxBatchSize caps the number of URLs accepted by preload and cancel requests
	MaxBatchSize int `mapstructure:"max_batch_size" validate:"gte=1" yaml:"max_batch_size"`
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.BindAddress, c.Port)
}

// LoaderConfig configures the scheduler and the memory tier.
type LoaderConfig struct {
	// MaxConcurrent bounds simultaneously running retrievals. Default: 4
	MaxConcurrent int `mapstructure:"max_concurrent" validate:"min=1,max=256" yaml:"max_concurrent"`

	// MemoryMaxEntries caps the number of entries in the memory tier. 0 means unbounded.
	MemoryMaxEntries int `mapstructure:"memory_max_entries" validate:"gte=0" yaml:"memory_max_entries"`

	// MemoryMaxBytes caps the total size of memory-tier entries. 0 means unbounded.
	MemoryMaxBytes bytesize.ByteSize `mapstructure:"memory_max_bytes" yaml:"memory_max_bytes"`

	// PersistTimeout bounds each asynchronous durable-tier write
	PersistTimeout time.Duration `mapstructure:"persist_timeout" yaml:"persist_timeout"`

	// PreloadOnScrape queues every URL a scrape discovers at low priority
	PreloadOnScrape bool `mapstructure:"preload_on_scrape" yaml:"preload_on_scrape"`
}

// FetchConfig configures how images are requested from their origin.
type FetchConfig struct {
	// Timeout bounds a whole retrieval including the body read. Default: 30s
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// MaxBytes rejects bodies larger than this. Default: 20MiB
	MaxBytes bytesize.ByteSize `mapstructure:"max_bytes" yaml:"max_bytes"`

	// UserAgent is sent with every request
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`

	// MaxRedirects is the number of redirects followed. Default: 5
	MaxRedirects int `mapstructure:"max_redirects" validate:"gte=0,lte=20" yaml:"max_redirects"`

	// AllowAnyContentType accepts non-image responses
	AllowAnyContentType bool `mapstructure:"allow_any_content_type" yaml:"allow_any_content_type"`
}

// StoreConfig selects the durable tier backend.
type StoreConfig struct {
	// Type is one of none, memory, badger, sqlite, postgres, s3, redis. Default: badger
	Type string `mapstructure:"type" validate:"required,oneof=none memory badger sqlite postgres s3 redis" yaml:"type"`

	// OpenTimeout bounds the wait for a network backend to become reachable at startup
	OpenTimeout time.Duration `mapstructure:"open_timeout" yaml:"open_timeout"`

	Badger   BadgerStoreConfig   `mapstructure:"badger" yaml:"badger"`
	SQLite   SQLiteStoreConfig   `mapstructure:"sqlite" yaml:"sqlite"`
	Postgres PostgresStoreConfig `mapstructure:"postgres" yaml:"postgres"`
	S3       S3StoreConfig       `mapstructure:"s3" yaml:"s3"`
	Redis    RedisStoreConfig    `mapstructure:"redis" yaml:"redis"`
}

// BadgerStoreConfig configures the embedded BadgerDB store.
type BadgerStoreConfig struct {
	Path       string        `mapstructure:"path" yaml:"path"`
	TTL        time.Duration `mapstructure:"ttl" yaml:"ttl"`
	GCInterval time.Duration `mapstructure:"gc_interval" yaml:"gc_interval"`
	SyncWrites bool          `mapstructure:"sync_writes" yaml:"sync_writes"`
}

// SQLiteStoreConfig configures the SQLite store.
type SQLiteStoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// PostgresStoreConfig configures the PostgreSQL store.
type PostgresStoreConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
	Database        string        `mapstructure:"database" yaml:"database"`
	User            string        `mapstructure:"user" yaml:"user"`
	Password        string        `mapstructure:"password" yaml:"password,omitempty"`
	SSLMode         string        `mapstructure:"sslmode" validate:"omitempty,oneof=disable require verify-ca verify-full" yaml:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// S3StoreConfig configures the S3 store.
type S3StoreConfig struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url" yaml:"endpoint"`
	KeyPrefix       string `mapstructure:"key_prefix" yaml:"key_prefix"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
	ForcePathStyle  bool   `mapstructure:"force_path_style" yaml:"force_path_style"`
}

// RedisStoreConfig configures the Redis store.
type RedisStoreConfig struct {
	Addr      string        `mapstructure:"addr" validate:"omitempty,hostname_port" yaml:"addr"`
	Username  string        `mapstructure:"username" yaml:"username,omitempty"`
	Password  string        `mapstructure:"password" yaml:"password,omitempty"`
	DB        int           `mapstructure:"db" validate:"gte=0" yaml:"db"`
	KeyPrefix string        `mapstructure:"key_prefix" yaml:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl"`
	PoolSize  int           `mapstructure:"pool_size" yaml:"pool_size"`
}

// Load loads configuration from file, environment, and defaults.
//
// A missing config file is not an error: defaults plus environment
// overrides are returned.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := bindDefaults(v); err != nil {
		return nil, err
	}
	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	return decode(v)
}

// MustLoad loads configuration, failing with instructions when an explicitly
// named config file does not exist.
func MustLoad(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  imgloader config init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as YAML.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return writeConfigFile(path, data)
}

func writeConfigFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	// 0600: the file may hold database and object store credentials.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures env handling and the config file location.
// Example override: IMGLOADER_LOADER_MAX_CONCURRENT=8
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix(strings.ToUpper(appName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// bindDefaults registers every key of the default config with viper.
// AutomaticEnv only consults the environment for keys viper already knows,
// so without this an env var could not override a key absent from the file.
func bindDefaults(v *viper.Viper) error {
	data, err := yaml.Marshal(GetDefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("failed to decode defaults: %w", err)
	}
	setDefaults(v, "", tree)

	// Credentials are omitted from the marshaled defaults.
	for _, key := range secretKeys {
		v.SetDefault(key, "")
	}
	return nil
}

var secretKeys = []string{
	"store.postgres.password",
	"store.s3.access_key_id",
	"store.s3.secret_access_key",
	"store.redis.username",
	"store.redis.password",
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// byteSizeDecodeHook converts strings like "64Mi" and plain numbers to bytesize.ByteSize.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "30s" to time.Duration. Bare
// integers are taken as nanoseconds.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/imgloader, falling back to
// ~/.config/imgloader and finally the current directory.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", appName)
}

// getDataDir returns the directory for embedded store files:
// $XDG_CACHE_HOME/imgloader or the OS cache dir.
func getDataDir() string {
	if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
		return filepath.Join(xdgCache, appName)
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appName)
	}
	return filepath.Join(dir, appName)
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
