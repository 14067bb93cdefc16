// Package metrics owns the Prometheus registry and hands out metric sinks
// for the cache, loader, durable store and HTTP API.
//
// Every constructor returns nil until InitRegistry is called. Consumers
// accept a nil sink and skip collection entirely, so metrics cost nothing
// when disabled.
//
// The Prometheus implementations live in pkg/metrics/prometheus and
// register themselves on import:
//
//	import _ "github.com/marmos91/imgloader/pkg/metrics/prometheus"
//
//	metrics.InitRegistry()
//	c := cache.New(cfg, durable, metrics.NewCacheMetrics())
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry creates the process registry with Go runtime and process
// collectors. Calling it again is a no-op.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()

	if registry != nil {
		return registry
	}
	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// Handler serves the registry in the Prometheus exposition format. It
// returns 404 when metrics are disabled.
func Handler() http.Handler {
	reg := GetRegistry()
	if reg == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Reset drops the registry. Tests use it to start from a clean state.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	registry = nil
}
