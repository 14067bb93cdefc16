package logger

import (
	"log/slog"
	"time"
)

// Standard field keys for structured logging.
// Use these keys consistently so logs can be aggregated and queried.
const (
	// Tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Request
	KeyRequestID = "request_id"
	KeyClientIP  = "client_ip"
	KeyMethod    = "method"
	KeyPath      = "path"
	KeyStatus    = "status" // HTTP status of an origin response or API reply

	// Retrieval
	KeyURL         = "url"
	KeyPriority    = "priority"
	KeyTaskID      = "task_id"
	KeyContentType = "content_type"
	KeyBytes       = "bytes"
	KeyCount       = "count"
	KeyAttempt     = "attempt"

	// Cache
	KeyTier      = "tier" // memory, durable, network
	KeyCacheHit  = "cache_hit"
	KeyEvicted   = "evicted"
	KeyEntries   = "entries"
	KeyStoreType = "store_type"
	KeyBucket    = "bucket"
	KeyKey       = "key"

	// Scheduler
	KeyQueueLength   = "queue_length"
	KeyActive        = "active"
	KeyMaxConcurrent = "max_concurrent"

	// Metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyOperation  = "operation"
	KeyComponent  = "component"
)

// TraceID returns a slog.Attr for an OpenTelemetry trace id
func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

// SpanID returns a slog.Attr for an OpenTelemetry span id
func SpanID(id string) slog.Attr { return slog.String(KeySpanID, id) }

// URL returns a slog.Attr for an image URL
func URL(u string) slog.Attr { return slog.String(KeyURL, u) }

// Priority returns a slog.Attr for a scheduling priority name
func Priority(p string) slog.Attr { return slog.String(KeyPriority, p) }

// TaskID returns a slog.Attr for a retrieval task id
func TaskID(id string) slog.Attr { return slog.String(KeyTaskID, id) }

// Tier returns a slog.Attr naming the cache tier that served a request
func Tier(t string) slog.Attr { return slog.String(KeyTier, t) }

// Status returns a slog.Attr for an HTTP status code
func Status(code int) slog.Attr { return slog.Int(KeyStatus, code) }

// Bytes returns a slog.Attr for a payload size
func Bytes(n int) slog.Attr { return slog.Int(KeyBytes, n) }

// StoreType returns a slog.Attr for the durable store backend
func StoreType(t string) slog.Attr { return slog.String(KeyStoreType, t) }

// DurationMs returns a slog.Attr for a duration in milliseconds
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Elapsed returns a duration_ms attr measured from start
func Elapsed(start time.Time) slog.Attr { return DurationMs(Duration(start)) }

// Err returns a slog.Attr for an error. A nil error yields an empty attr
// which the handlers drop.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Operation returns a slog.Attr for a sub-operation name
func Operation(op string) slog.Attr { return slog.String(KeyOperation, op) }

// Component returns a slog.Attr naming the emitting component
func Component(name string) slog.Attr { return slog.String(KeyComponent, name) }

// ClientIP returns a slog.Attr for a client address
func ClientIP(ip string) slog.Attr { return slog.String(KeyClientIP, ip) }
