package prometheus

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/imgloader/pkg/metrics"
	"github.com/marmos91/imgloader/pkg/store"
)

// storeMetrics is the Prometheus implementation of store.Metrics.
type storeMetrics struct {
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
}

// NewStoreMetrics returns the durable store sink for the current registry,
// or nil when metrics are disabled.
func NewStoreMetrics() *storeMetrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}

	return once(reg, "store", func() *storeMetrics {
		f := promauto.With(reg)
		return &storeMetrics{
			operations: f.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "store_operations_total",
					Help:      "Durable store operations by backend, operation and status",
				},
				[]string{"store_type", "operation", "status"}, // status: success, not_found, error
			),
			operationDuration: f.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "store_operation_duration_milliseconds",
					Help:      "Duration of durable store operations in milliseconds",
					Buckets:   durationBuckets,
				},
				[]string{"store_type", "operation"},
			),
			bytesTransferred: f.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "store_bytes_total",
					Help:      "Entry bytes read from or written to the durable store",
				},
				[]string{"store_type", "operation"},
			),
		}
	})
}

func (m *storeMetrics) ObserveOperation(storeType, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}

	status := statusLabel(err)
	if errors.Is(err, store.ErrNotFound) {
		status = "not_found"
	}
	m.operations.WithLabelValues(storeType, operation, status).Inc()
	m.operationDuration.WithLabelValues(storeType, operation).Observe(duration.Seconds() * 1000)
}

func (m *storeMetrics) RecordBytes(storeType, operation string, bytes int) {
	if m == nil || bytes <= 0 {
		return
	}
	m.bytesTransferred.WithLabelValues(storeType, operation).Add(float64(bytes))
}
