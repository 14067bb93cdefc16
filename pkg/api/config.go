package api

import (
	"net"
	"net/http"
	"strconv"
	"time"
)

// Config configures the HTTP API server.
type Config struct {
	// BindAddress is the interface to listen on. Empty means all.
	BindAddress string

	// Port is the TCP port. Default: 8080
	Port int

	// ReadTimeout bounds reading a request, body included. Default: 10s
	ReadTimeout time.Duration

	// WriteTimeout bounds writing a response. Image loads wait for the
	// origin, so this should exceed the fetch timeout. Default: 60s
	WriteTimeout time.Duration

	// IdleTimeout bounds keep-alive idle time. Default: 120s
	IdleTimeout time.Duration

	// MaxBatchSize caps the URLs accepted by preload and cancel. Default: 500
	MaxBatchSize int

	// PreloadOnScrape preloads scraped images even when the request does
	// not ask for it.
	PreloadOnScrape bool

	// MetricsPath serves MetricsHandler when both are set.
	MetricsPath    string
	MetricsHandler http.Handler
}

// applyDefaults fills in zero values. It is idempotent with the defaults
// applied during config loading so servers built directly in tests work.
func (c *Config) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 60 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 120 * time.Second
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = 500
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(c.Port))
}
