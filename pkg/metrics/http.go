package metrics

import "time"

// HTTPMetrics receives API request observations. pkg/api accepts any value
// with this method set.
type HTTPMetrics interface {
	// ObserveRequest records a served request. route is the matched route
	// pattern, not the raw path, to keep label cardinality bounded.
	ObserveRequest(method, route string, status int, duration time.Duration)

	// RecordInFlight adjusts the number of requests being served.
	RecordInFlight(delta int)
}

// NewHTTPMetrics returns a Prometheus-backed HTTPMetrics, or nil when
// metrics are disabled.
func NewHTTPMetrics() HTTPMetrics {
	if !IsEnabled() || newPrometheusHTTPMetrics == nil {
		return nil
	}
	return newPrometheusHTTPMetrics()
}

var newPrometheusHTTPMetrics func() HTTPMetrics

// RegisterHTTPMetricsConstructor is called by pkg/metrics/prometheus
// during package initialization.
func RegisterHTTPMetricsConstructor(constructor func() HTTPMetrics) {
	newPrometheusHTTPMetrics = constructor
}
