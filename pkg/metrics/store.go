package metrics

import (
	"github.com/marmos91/imgloader/pkg/store"
)

// NewStoreMetrics returns a Prometheus-backed store.Metrics for use with
// store.Instrument, or nil when metrics are disabled.
//
//	s = store.Instrument(s, cfg.Type, metrics.NewStoreMetrics())
func NewStoreMetrics() store.Metrics {
	if !IsEnabled() || newPrometheusStoreMetrics == nil {
		return nil
	}
	return newPrometheusStoreMetrics()
}

var newPrometheusStoreMetrics func() store.Metrics

// RegisterStoreMetricsConstructor is called by pkg/metrics/prometheus
// during package initialization.
func RegisterStoreMetricsConstructor(constructor func() store.Metrics) {
	newPrometheusStoreMetrics = constructor
}
