package metrics

import (
	"github.com/marmos91/imgloader/pkg/cache"
)

// NewCacheMetrics returns a Prometheus-backed cache.Metrics, or nil when
// metrics are disabled.
//
//	metrics.InitRegistry()
//	c := cache.New(cfg, durable, metrics.NewCacheMetrics())
func NewCacheMetrics() cache.Metrics {
	if !IsEnabled() || newPrometheusCacheMetrics == nil {
		return nil
	}
	return newPrometheusCacheMetrics()
}

// newPrometheusCacheMetrics is set by pkg/metrics/prometheus. The
// indirection keeps this package free of an import cycle.
var newPrometheusCacheMetrics func() cache.Metrics

// RegisterCacheMetricsConstructor is called by pkg/metrics/prometheus
// during package initialization.
func RegisterCacheMetricsConstructor(constructor func() cache.Metrics) {
	newPrometheusCacheMetrics = constructor
}
