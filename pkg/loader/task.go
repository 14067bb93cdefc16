package loader

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/imgloader/internal/logger"
	"github.com/marmos91/imgloader/internal/telemetry"
	"github.com/marmos91/imgloader/pkg/cache"
	"github.com/marmos91/imgloader/pkg/fetch"
)

// Retrieval sources reported to Metrics.
const (
	sourceDurable = "durable"
	sourceNetwork = "network"
	sourceError   = "error"
)

// run executes an admitted call and releases its slot.
//
// The retrieval runs on its own context, bounded by TaskTimeout: the Load
// that triggered it may give up without cancelling work other waiters, or
// the cache, still want.
func (l *Loader) run(c *call) {
	defer l.wg.Done()

	taskID := uuid.NewString()
	admitted := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.TaskTimeout)
	defer cancel()

	ctx, span := telemetry.StartImageSpan(ctx, telemetry.SpanRetrieve, c.key,
		telemetry.Priority(c.priority.String()), telemetry.TaskID(taskID))
	defer span.End()

	lc := logger.NewLogContext("").
		WithImage(c.key, c.priority.String()).
		WithTask(taskID).
		WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, lc)

	logger.DebugCtx(ctx, "Retrieval started", "queued_ms", float64(admitted.Sub(c.created).Microseconds())/1000)

	entry, source, err := l.retrieve(ctx, c.key)
	if err != nil {
		telemetry.RecordError(ctx, err)
	} else {
		span.SetAttributes(telemetry.CacheTier(source), telemetry.Bytes(entry.Size()))
	}

	if l.metrics != nil {
		l.metrics.ObserveRetrieval(source, c.priority, admitted.Sub(c.created), time.Since(admitted))
	}

	l.finish(ctx, c, entry, err, admitted)
}

// retrieve resolves key from the durable tier or the origin. A successful
// fetch is written to memory before retrieve returns.
func (l *Loader) retrieve(ctx context.Context, key string) (cache.Entry, string, error) {
	if e, ok := l.cache.GetDurable(ctx, key); ok {
		return e, sourceDurable, nil
	}

	start := time.Now()
	res, err := l.fetcher.Fetch(ctx, key)
	if err != nil {
		if l.metrics != nil {
			l.metrics.ObserveFetch(fetch.StatusCode(err), 0, time.Since(start))
		}
		return "", sourceError, &NetworkError{URL: key, StatusCode: fetch.StatusCode(err), Err: err}
	}
	if l.metrics != nil {
		l.metrics.ObserveFetch(res.StatusCode, len(res.Body), time.Since(start))
	}

	e := cache.NewEntry(res.MediaType, res.Body)
	l.cache.Put(key, e)

	logger.DebugCtx(ctx, "Image fetched",
		logger.Status(res.StatusCode),
		logger.KeyContentType, res.MediaType,
		logger.Bytes(len(res.Body)),
		logger.Elapsed(start))
	return e, sourceNetwork, nil
}

// finish unregisters c, frees its slot, admits the next calls and publishes
// the result.
func (l *Loader) finish(ctx context.Context, c *call, e cache.Entry, err error, admitted time.Time) {
	l.mu.Lock()
	l.inflight.remove(c)
	l.sched.release()
	waiters := c.waiters
	if err != nil {
		l.failed++
	} else {
		l.completed++
	}
	l.drainLocked()
	l.mu.Unlock()

	c.settle(e, err)

	switch {
	case err == nil:
		logger.DebugCtx(ctx, "Retrieval complete", logger.Bytes(e.Size()), logger.Elapsed(admitted), "waiters", waiters)
	case waiters == 0:
		// Nobody is waiting: a preload or an abandoned load.
		logger.DebugCtx(ctx, "Background retrieval failed", logger.Err(err))
	default:
		logger.WarnCtx(ctx, "Retrieval failed", logger.Err(err), "waiters", waiters)
	}
}
