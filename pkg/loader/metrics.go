package loader

import "time"

// Load outcomes reported to Metrics.
const (
	OutcomeMemory    = "memory"    // answered from the memory tier
	OutcomeJoined    = "joined"    // shared an in-flight retrieval
	OutcomeScheduled = "scheduled" // started a new retrieval
	OutcomeInvalid   = "invalid"
	OutcomeClosed    = "closed"
)

// Metrics receives loader observations. A nil Metrics disables collection.
type Metrics interface {
	// RecordLoad counts a Load or Preload by how it was resolved.
	RecordLoad(outcome string, p Priority)

	// ObserveRetrieval records a finished retrieval. source is "durable",
	// "network" or "error".
	ObserveRetrieval(source string, p Priority, queued, duration time.Duration)

	// ObserveFetch records an origin request. status is 0 for transport
	// failures.
	ObserveFetch(status int, bytes int, duration time.Duration)

	// RecordCanceled counts queued retrievals removed before admission.
	RecordCanceled(n int)

	// RecordScheduler records the wait list length and admitted count.
	RecordScheduler(queued, active int)
}
