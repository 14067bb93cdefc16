package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys. Image keys use the "image." prefix, everything else
// follows the OpenTelemetry semantic conventions where one exists.
const (
	AttrClientIP = "client.address"

	AttrImageURL      = "image.url"
	AttrImagePriority = "image.priority"
	AttrImageBytes    = "image.bytes"
	AttrImageMIME     = "image.mime_type"
	AttrTaskID        = "image.task_id"

	AttrCacheHit  = "cache.hit"
	AttrCacheTier = "cache.tier"

	AttrQueueLength = "scheduler.queue_length"
	AttrActive      = "scheduler.active"

	AttrStoreType = "store.type"
	AttrHTTPCode  = "http.response.status_code"
)

// Span names.
const (
	SpanLoad        = "loader.load"
	SpanRetrieve    = "loader.retrieve"
	SpanFetch       = "fetch.get"
	SpanCacheLookup = "cache.lookup"
	SpanPersist     = "cache.persist"
	SpanScrape      = "scrape.page"
)

// ClientIP returns an attribute for the caller's address.
func ClientIP(ip string) attribute.KeyValue { return attribute.String(AttrClientIP, ip) }

// ImageURL returns an attribute for the image cache key.
func ImageURL(url string) attribute.KeyValue { return attribute.String(AttrImageURL, url) }

// Priority returns an attribute for the scheduling class.
func Priority(p string) attribute.KeyValue { return attribute.String(AttrImagePriority, p) }

// Bytes returns an attribute for a payload size.
func Bytes(n int) attribute.KeyValue { return attribute.Int(AttrImageBytes, n) }

// MIMEType returns an attribute for an image media type.
func MIMEType(mime string) attribute.KeyValue { return attribute.String(AttrImageMIME, mime) }

// TaskID returns an attribute for a retrieval task id.
func TaskID(id string) attribute.KeyValue { return attribute.String(AttrTaskID, id) }

// CacheHit returns an attribute for a cache lookup outcome.
func CacheHit(hit bool) attribute.KeyValue { return attribute.Bool(AttrCacheHit, hit) }

// CacheTier returns an attribute naming the tier that answered.
func CacheTier(tier string) attribute.KeyValue { return attribute.String(AttrCacheTier, tier) }

// StoreType returns an attribute for the durable store backend.
func StoreType(t string) attribute.KeyValue { return attribute.String(AttrStoreType, t) }

// HTTPStatus returns an attribute for an origin response code.
func HTTPStatus(code int) attribute.KeyValue { return attribute.Int(AttrHTTPCode, code) }

// Scheduler returns attributes describing the scheduler at admission time.
func Scheduler(queueLength, active int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrQueueLength, queueLength),
		attribute.Int(AttrActive, active),
	}
}

// StartImageSpan starts a span for an operation on one image.
func StartImageSpan(ctx context.Context, name, url string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{ImageURL(url)}, attrs...)
	return StartSpan(ctx, name, trace.WithAttributes(all...))
}

// StartCacheSpan starts a span for a cache tier operation.
func StartCacheSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "cache."+operation, trace.WithAttributes(attrs...))
}
