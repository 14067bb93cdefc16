package metrics

import (
	"github.com/marmos91/imgloader/pkg/loader"
)

// NewLoaderMetrics returns a Prometheus-backed loader.Metrics, or nil when
// metrics are disabled.
func NewLoaderMetrics() loader.Metrics {
	if !IsEnabled() || newPrometheusLoaderMetrics == nil {
		return nil
	}
	return newPrometheusLoaderMetrics()
}

var newPrometheusLoaderMetrics func() loader.Metrics

// RegisterLoaderMetricsConstructor is called by pkg/metrics/prometheus
// during package initialization.
func RegisterLoaderMetricsConstructor(constructor func() loader.Metrics) {
	newPrometheusLoaderMetrics = constructor
}
