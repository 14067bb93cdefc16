package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/imgloader/pkg/loader"
	"github.com/marmos91/imgloader/pkg/metrics"
)

// loaderMetrics is the Prometheus implementation of loader.Metrics.
type loaderMetrics struct {
	loads             *prometheus.CounterVec
	retrievals        *prometheus.CounterVec
	retrievalDuration *prometheus.HistogramVec
	queueWait         *prometheus.HistogramVec
	fetches           *prometheus.CounterVec
	fetchDuration     prometheus.Histogram
	fetchBytes        prometheus.Histogram
	canceled          prometheus.Counter
	queueLength       prometheus.Gauge
	active            prometheus.Gauge
}

// NewLoaderMetrics returns the loader sink for the current registry, or nil
// when metrics are disabled.
func NewLoaderMetrics() *loaderMetrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}

	return once(reg, "loader", func() *loaderMetrics {
		f := promauto.With(reg)
		return &loaderMetrics{
			loads: f.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "loader_requests_total",
					Help:      "Load and preload requests by outcome and priority",
				},
				[]string{"outcome", "priority"},
			),
			retrievals: f.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "loader_retrievals_total",
					Help:      "Finished retrievals by source (durable, network, error)",
				},
				[]string{"source", "priority"},
			),
			retrievalDuration: f.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "loader_retrieval_duration_milliseconds",
					Help:      "Time from admission to result in milliseconds",
					Buckets:   durationBuckets,
				},
				[]string{"source"},
			),
			queueWait: f.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "loader_queue_wait_milliseconds",
					Help:      "Time a retrieval waited for admission in milliseconds",
					Buckets:   durationBuckets,
				},
				[]string{"priority"},
			),
			fetches: f.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "fetch_requests_total",
					Help:      "Origin requests by status class (2xx, 4xx, 5xx, transport)",
				},
				[]string{"class"},
			),
			fetchDuration: f.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_milliseconds",
				Help:      "Duration of origin requests in milliseconds",
				Buckets:   durationBuckets,
			}),
			fetchBytes: f.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_bytes",
				Help:      "Size of images fetched from origins",
				Buckets:   sizeBuckets,
			}),
			canceled: f.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "loader_canceled_total",
				Help:      "Queued retrievals removed before admission",
			}),
			queueLength: f.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "loader_queue_length",
				Help:      "Retrievals waiting for admission",
			}),
			active: f.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "loader_active",
				Help:      "Retrievals currently admitted",
			}),
		}
	})
}

func (m *loaderMetrics) RecordLoad(outcome string, p loader.Priority) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(outcome, p.String()).Inc()
}

func (m *loaderMetrics) ObserveRetrieval(source string, p loader.Priority, queued, duration time.Duration) {
	if m == nil {
		return
	}
	m.retrievals.WithLabelValues(source, p.String()).Inc()
	m.retrievalDuration.WithLabelValues(source).Observe(duration.Seconds() * 1000)
	m.queueWait.WithLabelValues(p.String()).Observe(queued.Seconds() * 1000)
}

func (m *loaderMetrics) ObserveFetch(status int, bytes int, duration time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(statusClass(status)).Inc()
	m.fetchDuration.Observe(duration.Seconds() * 1000)
	if bytes > 0 {
		m.fetchBytes.Observe(float64(bytes))
	}
}

func (m *loaderMetrics) RecordCanceled(n int) {
	if m == nil {
		return
	}
	m.canceled.Add(float64(n))
}

func (m *loaderMetrics) RecordScheduler(queued, active int) {
	if m == nil {
		return
	}
	m.queueLength.Set(float64(queued))
	m.active.Set(float64(active))
}

// statusClass maps an HTTP status to "2xx".."5xx", or "transport" for 0.
func statusClass(status int) string {
	if status < http.StatusContinue || status > 599 {
		return "transport"
	}
	return strconv.Itoa(status/100) + "xx"
}
