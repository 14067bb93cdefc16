// Package loader schedules image retrievals with bounded concurrency,
// priority ordering and per-URL deduplication on top of the tiered cache.
//
// A Load resolves in this order: memory tier hit, join of an in-flight
// retrieval for the same URL, or a new retrieval queued by priority. At
// most MaxConcurrent retrievals run at once; queued work is admitted most
// urgent class first, oldest first within a class, and admitted work is
// never preempted.
package loader

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/marmos91/imgloader/internal/logger"
	"github.com/marmos91/imgloader/internal/telemetry"
	"github.com/marmos91/imgloader/pkg/cache"
	"github.com/marmos91/imgloader/pkg/fetch"
)

// DefaultMaxConcurrent bounds simultaneous retrievals.
const DefaultMaxConcurrent = 4

// Fetcher retrieves an image from its origin.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Result, error)
}

// Config configures a Loader.
type Config struct {
	// MaxConcurrent bounds admitted retrievals. Zero means DefaultMaxConcurrent.
	MaxConcurrent int

	// TaskTimeout bounds one retrieval, durable lookup and fetch included.
	TaskTimeout time.Duration
}

// DefaultConfig returns the defaults used for zero fields.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: DefaultMaxConcurrent,
		TaskTimeout:   60 * time.Second,
	}
}

// Stats is a snapshot of loader state.
type Stats struct {
	MemoryCacheSize int `json:"memory_cache_size"`
	QueueLength     int `json:"queue_length"`
	ActiveCount     int `json:"active_count"`
	MaxConcurrent   int `json:"max_concurrent"`

	InFlight int              `json:"in_flight"`
	Queued   map[Priority]int `json:"queued_by_priority,omitempty"`

	Requests  int64 `json:"requests"`
	Joined    int64 `json:"dedup_joins"`
	Started   int64 `json:"retrievals_started"`
	Completed int64 `json:"retrievals_completed"`
	Failed    int64 `json:"retrievals_failed"`
	Canceled  int64 `json:"canceled"`

	Cache cache.Stats `json:"cache"`
}

// Loader is the entry point for image retrieval. It is safe for concurrent
// use. Create one with New and release it with Close.
type Loader struct {
	cfg     Config
	cache   *cache.Cache
	fetcher Fetcher
	metrics Metrics

	// mu makes the memory check, the in-flight lookup and the queue
	// submission a single step.
	mu       sync.Mutex
	inflight *inflight
	sched    *scheduler
	closed   bool

	requests  int64
	joined    int64
	started   int64
	completed int64
	failed    int64
	canceled  int64

	wg sync.WaitGroup
}

// New creates a Loader over c, fetching misses with f. m may be nil.
func New(cfg Config, c *cache.Cache, f Fetcher, m Metrics) *Loader {
	def := DefaultConfig()
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = def.TaskTimeout
	}

	return &Loader{
		cfg:      cfg,
		cache:    c,
		fetcher:  f,
		metrics:  m,
		inflight: newInflight(),
		sched:    newScheduler(cfg.MaxConcurrent),
	}
}

// Load returns the entry for key, retrieving it if needed.
//
// Invalid keys fail with *InvalidKeyError before any state changes. Origin
// failures surface as *NetworkError. If ctx ends first, Load returns
// ctx.Err() but the retrieval carries on and its result is still cached.
func (l *Loader) Load(ctx context.Context, key string, p Priority) (cache.Entry, error) {
	if err := ValidateKey(key); err != nil {
		l.recordLoad(OutcomeInvalid, p)
		return "", err
	}
	if !p.Valid() {
		p = Normal
	}

	ctx, span := telemetry.StartImageSpan(ctx, telemetry.SpanLoad, key, telemetry.Priority(p.String()))
	defer span.End()

	e, c, outcome, err := l.start(key, p, true)
	l.recordLoad(outcome, p)
	span.SetAttributes(telemetry.CacheHit(outcome == OutcomeMemory))
	switch {
	case err != nil:
		return "", err
	case c == nil:
		return e, nil
	}

	e, err = c.wait(ctx)
	if err != nil {
		telemetry.RecordError(ctx, err)
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			l.abandon(c)
		}
		return "", err
	}
	return e, nil
}

// start makes the memory/join/submit decision for key under mu. It returns
// either a memory entry or the call to wait on.
func (l *Loader) start(key string, p Priority, wait bool) (cache.Entry, *call, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return "", nil, OutcomeClosed, ErrClosed
	}
	l.requests++

	if e, ok := l.cache.GetMemory(key); ok {
		return e, nil, OutcomeMemory, nil
	}

	c, created := l.inflight.joinOrCreate(key, p)
	if wait {
		c.waiters++
	}
	if !created {
		l.joined++
		if l.sched.promote(key, p) {
			logger.Debug("Raised queued retrieval priority", logger.URL(key), logger.Priority(p.String()))
		}
		return "", c, OutcomeJoined, nil
	}

	l.started++
	l.sched.submit(c)
	l.drainLocked()
	return "", c, OutcomeScheduled, nil
}

// abandon drops a waiter that stopped waiting.
func (l *Loader) abandon(c *call) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c.waiters > 0 {
		c.waiters--
	}
}

// drainLocked admits queued calls while capacity remains.
func (l *Loader) drainLocked() {
	for {
		c := l.sched.next()
		if c == nil {
			break
		}
		l.wg.Add(1)
		go l.run(c)
	}
	if l.metrics != nil {
		l.metrics.RecordScheduler(l.sched.queued(), l.sched.active)
	}
}

// Preload schedules Low priority retrievals for keys not already in memory
// and returns how many new retrievals it queued. Nothing waits on them;
// invalid keys and failures are only logged.
func (l *Loader) Preload(keys ...string) int {
	n := 0
	for _, key := range keys {
		if err := ValidateKey(key); err != nil {
			l.recordLoad(OutcomeInvalid, Low)
			logger.Debug("Skipping preload", logger.Err(err))
			continue
		}
		if l.cache.Contains(key) {
			continue
		}

		_, _, outcome, err := l.start(key, Low, false)
		l.recordLoad(outcome, Low)
		if errors.Is(err, ErrClosed) {
			break
		}
		if outcome == OutcomeScheduled {
			n++
		}
	}
	if n > 0 {
		logger.Debug("Preload queued", logger.KeyCount, n)
	}
	return n
}

// CancelPending removes queued retrievals for keys that have not been
// admitted yet. Their waiters receive ErrCanceled. Admitted retrievals run
// to completion and are cached. It returns the number removed.
func (l *Loader) CancelPending(keys ...string) int {
	l.mu.Lock()
	var canceled []*call
	for _, key := range keys {
		c, ok := l.sched.cancel(key)
		if !ok {
			continue
		}
		l.inflight.remove(c)
		canceled = append(canceled, c)
	}
	l.canceled += int64(len(canceled))
	if l.metrics != nil && len(canceled) > 0 {
		l.metrics.RecordCanceled(len(canceled))
		l.metrics.RecordScheduler(l.sched.queued(), l.sched.active)
	}
	l.mu.Unlock()

	for _, c := range canceled {
		c.settle("", ErrCanceled)
	}
	if len(canceled) > 0 {
		logger.Debug("Canceled pending retrievals", logger.KeyCount, len(canceled))
	}
	return len(canceled)
}

// IsCached reports whether key is in the memory tier.
func (l *Loader) IsCached(key string) bool {
	return l.cache.Contains(key)
}

// GetCached returns the memory tier entry for key without touching the
// durable tier or the network.
func (l *Loader) GetCached(key string) (cache.Entry, bool) {
	return l.cache.Peek(key)
}

// ClearMemoryCache drops the memory tier. The durable tier and in-flight
// retrievals are untouched.
func (l *Loader) ClearMemoryCache() {
	l.cache.ClearMemory()
}

// Stats returns a snapshot of queue, concurrency and cache counters.
func (l *Loader) Stats() Stats {
	l.mu.Lock()
	s := Stats{
		QueueLength:   l.sched.queued(),
		ActiveCount:   l.sched.active,
		MaxConcurrent: l.sched.max,
		InFlight:      l.inflight.len(),
		Queued:        l.sched.queuedByPriority(),
		Requests:      l.requests,
		Joined:        l.joined,
		Started:       l.started,
		Completed:     l.completed,
		Failed:        l.failed,
		Canceled:      l.canceled,
	}
	l.mu.Unlock()

	s.Cache = l.cache.Stats()
	s.MemoryCacheSize = s.Cache.MemoryEntries
	return s
}

// Healthcheck reports whether the loader accepts work and its durable tier
// is reachable.
func (l *Loader) Healthcheck(ctx context.Context) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return l.cache.Healthcheck(ctx)
}

// Close stops accepting loads, fails queued retrievals with ErrClosed and
// waits for admitted ones and pending durable writes, bounded by ctx. The
// cache is closed last.
func (l *Loader) Close(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	queued := l.sched.drain()
	for _, c := range queued {
		l.inflight.remove(c)
	}
	active := l.sched.active
	l.mu.Unlock()

	for _, c := range queued {
		c.settle("", ErrClosed)
	}
	logger.Info("Loader stopping", "queued_dropped", len(queued), logger.KeyActive, active)

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		logger.Warn("Timed out waiting for active retrievals", logger.Err(err))
	}

	if cerr := l.cache.Close(ctx); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}

func (l *Loader) recordLoad(outcome string, p Priority) {
	if l.metrics != nil {
		l.metrics.RecordLoad(outcome, p)
	}
}
