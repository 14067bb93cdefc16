package cache

import "time"

// Metrics receives cache observations. A nil Metrics disables collection.
//
// pkg/metrics returns a Prometheus-backed implementation when metrics are
// enabled and nil otherwise.
type Metrics interface {
	// ObserveLookup records a lookup against tier. Durable lookups are
	// only observed after a memory miss.
	ObserveLookup(tier Tier, hit bool, duration time.Duration)

	// ObservePersist records a finished durable write.
	ObservePersist(success bool, bytes int, duration time.Duration)

	// RecordDropped records a durable write dropped on a full queue.
	RecordDropped()

	// RecordEviction records a memory entry evicted to honour a bound.
	RecordEviction()

	// RecordMemory records the current memory tier footprint.
	RecordMemory(entries int, bytes int64)

	// RecordPersistQueue records the number of writes not yet finished.
	RecordPersistQueue(pending int)
}
