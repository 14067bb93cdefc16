package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/imgloader/pkg/cache"
	"github.com/marmos91/imgloader/pkg/metrics"
)

// cacheMetrics is the Prometheus implementation of cache.Metrics.
type cacheMetrics struct {
	lookups        *prometheus.CounterVec
	lookupDuration *prometheus.HistogramVec
	persists       *prometheus.CounterVec
	persistDur     prometheus.Histogram
	persistBytes   prometheus.Histogram
	persistDropped prometheus.Counter
	persistPending prometheus.Gauge
	evictions      prometheus.Counter
	memoryEntries  prometheus.Gauge
	memoryBytes    prometheus.Gauge
}

// NewCacheMetrics returns the cache sink for the current registry, or nil
// when metrics are disabled.
func NewCacheMetrics() *cacheMetrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}

	return once(reg, "cache", func() *cacheMetrics {
		f := promauto.With(reg)
		return &cacheMetrics{
			lookups: f.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "cache_lookups_total",
					Help:      "Cache lookups by tier and result",
				},
				[]string{"tier", "result"}, // tier: memory, durable; result: hit, miss
			),
			lookupDuration: f.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "cache_lookup_duration_milliseconds",
					Help:      "Duration of cache lookups in milliseconds",
					Buckets:   durationBuckets,
				},
				[]string{"tier"},
			),
			persists: f.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "cache_persist_operations_total",
					Help:      "Durable writes by status",
				},
				[]string{"status"},
			),
			persistDur: f.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cache_persist_duration_milliseconds",
				Help:      "Duration of durable writes in milliseconds",
				Buckets:   durationBuckets,
			}),
			persistBytes: f.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cache_persist_bytes",
				Help:      "Size of entries written to the durable tier",
				Buckets:   sizeBuckets,
			}),
			persistDropped: f.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_persist_dropped_total",
				Help:      "Durable writes dropped because the persist queue was full",
			}),
			persistPending: f.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_persist_pending",
				Help:      "Durable writes queued or in progress",
			}),
			evictions: f.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_evictions_total",
				Help:      "Memory tier entries evicted to honour the entry or byte bound",
			}),
			memoryEntries: f.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_memory_entries",
				Help:      "Entries in the memory tier",
			}),
			memoryBytes: f.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_memory_bytes",
				Help:      "Summed entry size in the memory tier",
			}),
		}
	})
}

func (m *cacheMetrics) ObserveLookup(tier cache.Tier, hit bool, duration time.Duration) {
	if m == nil {
		return
	}

	result := "miss"
	if hit {
		result = "hit"
	}
	m.lookups.WithLabelValues(string(tier), result).Inc()
	m.lookupDuration.WithLabelValues(string(tier)).Observe(duration.Seconds() * 1000)
}

func (m *cacheMetrics) ObservePersist(success bool, bytes int, duration time.Duration) {
	if m == nil {
		return
	}

	status := "success"
	if !success {
		status = "error"
	}
	m.persists.WithLabelValues(status).Inc()
	m.persistDur.Observe(duration.Seconds() * 1000)
	if success && bytes > 0 {
		m.persistBytes.Observe(float64(bytes))
	}
}

func (m *cacheMetrics) RecordDropped() {
	if m == nil {
		return
	}
	m.persistDropped.Inc()
}

func (m *cacheMetrics) RecordEviction() {
	if m == nil {
		return
	}
	m.evictions.Inc()
}

func (m *cacheMetrics) RecordMemory(entries int, bytes int64) {
	if m == nil {
		return
	}
	m.memoryEntries.Set(float64(entries))
	m.memoryBytes.Set(float64(bytes))
}

func (m *cacheMetrics) RecordPersistQueue(pending int) {
	if m == nil {
		return
	}
	m.persistPending.Set(float64(pending))
}
