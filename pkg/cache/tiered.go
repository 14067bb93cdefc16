// Package cache implements the two-level image cache: a bounded in-memory
// LRU in front of an optional durable store.
//
// Reads consult memory first and fall back to the durable tier, promoting
// hits into memory. Writes update memory synchronously and reach the
// durable tier asynchronously on a best-effort basis; durable failures are
// logged and never returned to callers.
package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/imgloader/internal/logger"
	"github.com/marmos91/imgloader/internal/telemetry"
	"github.com/marmos91/imgloader/pkg/store"
)

// Config configures a Cache.
type Config struct {
	// MemoryMaxEntries caps the memory tier entry count. Zero is unbounded.
	MemoryMaxEntries int

	// MemoryMaxBytes caps the summed size of memory entries. Zero is unbounded.
	MemoryMaxBytes int64

	Persister PersisterConfig
}

// Stats is a snapshot of cache counters.
type Stats struct {
	MemoryEntries int   `json:"memory_entries"`
	MemoryBytes   int64 `json:"memory_bytes"`

	MemoryHits  int64 `json:"memory_hits"`
	DurableHits int64 `json:"durable_hits"`
	Misses      int64 `json:"misses"`
	Evictions   int64 `json:"evictions"`

	Durable        bool  `json:"durable"`
	DurableErrors  int64 `json:"durable_errors"`
	PersistPending int   `json:"persist_pending"`
	Persisted      int64 `json:"persisted"`
	PersistFailed  int64 `json:"persist_failed"`
	PersistDropped int64 `json:"persist_dropped"`
}

// Cache is the tiered image cache. It is safe for concurrent use.
type Cache struct {
	memory    *Memory
	durable   store.Store
	persister *persister
	metrics   Metrics

	memoryHits    atomic.Int64
	durableHits   atomic.Int64
	misses        atomic.Int64
	evictions     atomic.Int64
	durableErrors atomic.Int64

	closeOnce sync.Once
	closed    atomic.Bool
}

// New creates a Cache. durable may be nil, in which case the cache is
// memory only. m may be nil.
func New(cfg Config, durable store.Store, m Metrics) *Cache {
	c := &Cache{
		durable: durable,
		metrics: m,
	}
	c.memory = NewMemory(cfg.MemoryMaxEntries, cfg.MemoryMaxBytes, c.onEvict)
	if durable != nil {
		c.persister = newPersister(durable, cfg.Persister, m)
	}
	return c
}

func (c *Cache) onEvict(key string, e Entry) {
	c.evictions.Add(1)
	if c.metrics != nil {
		c.metrics.RecordEviction()
	}
	logger.Debug("Memory entry evicted", logger.URL(key), logger.Bytes(e.Size()))
}

// Get looks key up in memory, then in the durable tier. The returned Tier
// names the level that answered; it is TierNone on a miss.
//
// A durable read error is treated as a miss.
func (c *Cache) Get(ctx context.Context, key string) (Entry, Tier, bool) {
	if e, ok := c.GetMemory(key); ok {
		return e, TierMemory, true
	}
	if e, ok := c.GetDurable(ctx, key); ok {
		return e, TierDurable, true
	}
	return "", TierNone, false
}

// GetMemory looks key up in the memory tier only, marking it recently used.
func (c *Cache) GetMemory(key string) (Entry, bool) {
	start := time.Now()
	e, ok := c.memory.Get(key)
	if ok {
		c.memoryHits.Add(1)
	}
	c.observe(TierMemory, ok, start)
	return e, ok
}

// GetDurable looks key up in the durable tier and promotes a hit into
// memory. A lookup that finds nothing, including with no durable tier
// configured, counts as a miss.
func (c *Cache) GetDurable(ctx context.Context, key string) (Entry, bool) {
	e, ok := c.getDurable(ctx, key)
	if ok {
		c.durableHits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return e, ok
}

func (c *Cache) getDurable(ctx context.Context, key string) (Entry, bool) {
	if c.durable == nil {
		return "", false
	}

	ctx, span := telemetry.StartCacheSpan(ctx, "lookup",
		telemetry.ImageURL(key), telemetry.CacheTier(string(TierDurable)))
	defer span.End()

	start := time.Now()
	value, err := c.durable.Get(ctx, key)
	if err != nil {
		c.observe(TierDurable, false, start)
		span.SetAttributes(telemetry.CacheHit(false))
		if !errors.Is(err, store.ErrNotFound) {
			c.durableErrors.Add(1)
			perr := &PersistenceError{Op: "get", Key: key, Err: err}
			telemetry.RecordError(ctx, perr)
			logger.WarnCtx(ctx, "Durable read failed", logger.URL(key), logger.Err(perr))
		}
		return "", false
	}

	e := Entry(value)
	if !e.Valid() {
		c.observe(TierDurable, false, start)
		c.durableErrors.Add(1)
		logger.WarnCtx(ctx, "Ignoring malformed durable entry", logger.URL(key), logger.Bytes(e.Size()))
		return "", false
	}

	c.observe(TierDurable, true, start)
	span.SetAttributes(telemetry.CacheHit(true), telemetry.Bytes(e.Size()))

	// Promote without writing back: the durable tier already has it.
	c.memory.Add(key, e)
	c.recordMemory()
	logger.DebugCtx(ctx, "Promoted durable entry", logger.URL(key), logger.Tier(string(TierDurable)))
	return e, true
}

// Put stores e under key in memory and schedules a durable write.
func (c *Cache) Put(key string, e Entry) {
	c.memory.Add(key, e)
	c.recordMemory()
	if c.persister != nil {
		c.persister.enqueue(key, e)
	}
}

// Peek returns the memory entry for key without consulting the durable tier
// or touching recency.
func (c *Cache) Peek(key string) (Entry, bool) {
	return c.memory.Peek(key)
}

// Contains reports whether the memory tier holds key.
func (c *Cache) Contains(key string) bool {
	return c.memory.Contains(key)
}

// Len returns the memory tier entry count.
func (c *Cache) Len() int {
	return c.memory.Len()
}

// Bytes returns the memory tier footprint.
func (c *Cache) Bytes() int64 {
	return c.memory.Bytes()
}

// ClearMemory drops every memory entry. The durable tier and pending
// durable writes are untouched.
func (c *Cache) ClearMemory() {
	n := c.memory.Len()
	c.memory.Purge()
	c.recordMemory()
	logger.Info("Memory cache cleared", logger.KeyEntries, n)
}

// HasDurable reports whether a durable tier is configured.
func (c *Cache) HasDurable() bool {
	return c.durable != nil
}

// Healthcheck checks the durable tier, if any.
func (c *Cache) Healthcheck(ctx context.Context) error {
	if c.durable == nil {
		return nil
	}
	return c.durable.Healthcheck(ctx)
}

// Flush waits for every scheduled durable write to finish or ctx to end.
func (c *Cache) Flush(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.persister == nil {
		return nil
	}
	return c.persister.flush(ctx)
}

// Close drains pending durable writes, bounded by ctx, then closes the
// durable store.
func (c *Cache) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if c.persister != nil {
			err = c.persister.close(ctx)
		}
		if c.durable != nil {
			if cerr := c.durable.Close(); cerr != nil && !errors.Is(cerr, store.ErrStoreClosed) {
				err = errors.Join(err, cerr)
			}
		}
	})
	return err
}

// Stats returns a snapshot of counters.
func (c *Cache) Stats() Stats {
	s := Stats{
		MemoryEntries: c.memory.Len(),
		MemoryBytes:   c.memory.Bytes(),
		MemoryHits:    c.memoryHits.Load(),
		DurableHits:   c.durableHits.Load(),
		Misses:        c.misses.Load(),
		Evictions:     c.evictions.Load(),
		Durable:       c.durable != nil,
		DurableErrors: c.durableErrors.Load(),
	}
	if c.persister != nil {
		ps := c.persister.stats()
		s.PersistPending = ps.Pending
		s.Persisted = ps.Completed
		s.PersistFailed = ps.Failed
		s.PersistDropped = ps.Dropped
	}
	return s
}

func (c *Cache) observe(tier Tier, hit bool, start time.Time) {
	if c.metrics != nil {
		c.metrics.ObserveLookup(tier, hit, time.Since(start))
	}
}

func (c *Cache) recordMemory() {
	if c.metrics != nil {
		c.metrics.RecordMemory(c.memory.Len(), c.memory.Bytes())
	}
}
