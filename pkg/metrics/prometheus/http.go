package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/imgloader/pkg/metrics"
)

// httpMetrics is the Prometheus implementation of metrics.HTTPMetrics.
type httpMetrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
}

// NewHTTPMetrics returns the API sink for the current registry, or nil when
// metrics are disabled.
func NewHTTPMetrics() *httpMetrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}

	return once(reg, "http", func() *httpMetrics {
		f := promauto.With(reg)
		return &httpMetrics{
			requests: f.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "http_requests_total",
					Help:      "API requests by method, route and status code",
				},
				[]string{"method", "route", "code"},
			),
			requestDuration: f.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "http_request_duration_milliseconds",
					Help:      "API request duration in milliseconds",
					Buckets:   durationBuckets,
				},
				[]string{"method", "route"},
			),
			inFlight: f.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "API requests being served",
			}),
		}
	})
}

func (m *httpMetrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds() * 1000)
}

func (m *httpMetrics) RecordInFlight(delta int) {
	if m == nil {
		return
	}
	m.inFlight.Add(float64(delta))
}
