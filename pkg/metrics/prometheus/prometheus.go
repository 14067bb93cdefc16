// Package prometheus implements the pkg/metrics sinks on client_golang.
//
// Importing it registers the constructors with pkg/metrics. Each sink is
// created once per registry, so repeated constructor calls share
// collectors instead of failing on duplicate registration.
package prometheus

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/imgloader/pkg/cache"
	"github.com/marmos91/imgloader/pkg/loader"
	"github.com/marmos91/imgloader/pkg/metrics"
	"github.com/marmos91/imgloader/pkg/store"
)

const namespace = "imgloader"

// Latency buckets in milliseconds, from memory hits to slow origins.
var durationBuckets = []float64{0.1, 0.5, 1, 5, 10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

// Size buckets in bytes, from icons to large photos.
var sizeBuckets = []float64{
	1024,     // 1KB
	16384,    // 16KB
	65536,    // 64KB
	262144,   // 256KB
	1048576,  // 1MB
	4194304,  // 4MB
	16777216, // 16MB
}

func init() {
	metrics.RegisterCacheMetricsConstructor(func() cache.Metrics { return NewCacheMetrics() })
	metrics.RegisterLoaderMetricsConstructor(func() loader.Metrics { return NewLoaderMetrics() })
	metrics.RegisterStoreMetricsConstructor(func() store.Metrics { return NewStoreMetrics() })
	metrics.RegisterHTTPMetricsConstructor(func() metrics.HTTPMetrics { return NewHTTPMetrics() })
}

var (
	instancesMu sync.Mutex
	instances   = map[*prometheus.Registry]map[string]any{}
)

// once returns the sink named name for reg, building it on first use.
func once[T any](reg *prometheus.Registry, name string, build func() T) T {
	instancesMu.Lock()
	defer instancesMu.Unlock()

	byName, ok := instances[reg]
	if !ok {
		byName = map[string]any{}
		instances[reg] = byName
	}
	if v, ok := byName[name]; ok {
		return v.(T)
	}
	v := build()
	byName[name] = v
	return v
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
