package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/marmos91/imgloader/internal/logger"
	"github.com/marmos91/imgloader/internal/telemetry"
	"github.com/marmos91/imgloader/pkg/store"
)

// PersisterConfig configures the asynchronous durable writer.
type PersisterConfig struct {
	// Workers is the number of concurrent durable writes.
	Workers int

	// QueueSize bounds the number of keys waiting for a worker. Writes
	// beyond it are dropped.
	QueueSize int

	// Timeout bounds each durable write.
	Timeout time.Duration
}

// DefaultPersisterConfig returns the defaults used by New.
func DefaultPersisterConfig() PersisterConfig {
	return PersisterConfig{
		Workers:   2,
		QueueSize: 1024,
		Timeout:   10 * time.Second,
	}
}

// PersisterStats reports durable writer counters.
type PersisterStats struct {
	Pending     int
	Completed   int64
	Failed      int64
	Dropped     int64
	LastError   error
	LastErrorAt time.Time
}

// persister writes entries to the durable tier in the background.
//
// Writes for one key are serialized and coalesced: while a key waits or is
// being written, a newer Put replaces the value still to be written, so the
// durable tier converges on the most recent entry.
type persister struct {
	store   store.Store
	cfg     PersisterConfig
	metrics Metrics

	queue chan string

	mu      sync.Mutex
	pending map[string]Entry    // latest value not yet handed to a worker
	writing map[string]struct{} // keys a worker is writing now
	idle    []chan struct{}     // closed when pending and writing are both empty
	closed  bool

	completed   int64
	failed      int64
	dropped     int64
	lastError   error
	lastErrorAt time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newPersister(s store.Store, cfg PersisterConfig, m Metrics) *persister {
	def := DefaultPersisterConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	p := &persister{
		store:   s,
		cfg:     cfg,
		metrics: m,
		queue:   make(chan string, cfg.QueueSize),
		pending: make(map[string]Entry),
		writing: make(map[string]struct{}),
		stopCh:  make(chan struct{}),
	}

	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	logger.Debug("Durable writer started", "workers", cfg.Workers, "queue_size", cfg.QueueSize)
	return p
}

// enqueue schedules a durable write of e under key. It never blocks.
func (p *persister) enqueue(key string, e Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	if _, ok := p.pending[key]; ok {
		p.pending[key] = e
		return
	}

	p.pending[key] = e
	if _, busy := p.writing[key]; busy {
		// The worker writing key picks up the new value when it finishes.
		return
	}

	select {
	case p.queue <- key:
		p.recordQueueLocked()
	default:
		delete(p.pending, key)
		p.dropped++
		p.notifyIdleLocked()
		if p.metrics != nil {
			p.metrics.RecordDropped()
		}
		logger.Warn("Durable write dropped",
			logger.URL(key),
			logger.Err(&PersistenceError{Op: "enqueue", Key: key, Err: errQueueFull}))
	}
}

func (p *persister) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			p.drain()
			return
		case key := <-p.queue:
			p.process(key)
		}
	}
}

// drain writes whatever is still queued after stop.
func (p *persister) drain() {
	for {
		select {
		case key := <-p.queue:
			p.process(key)
		default:
			return
		}
	}
}

// process writes the latest value for key, then keeps going while newer
// values arrived during the write.
func (p *persister) process(key string) {
	for {
		p.mu.Lock()
		e, ok := p.pending[key]
		if !ok {
			p.notifyIdleLocked()
			p.mu.Unlock()
			return
		}
		delete(p.pending, key)
		p.writing[key] = struct{}{}
		p.mu.Unlock()

		err := p.write(key, e)

		p.mu.Lock()
		delete(p.writing, key)
		if err != nil {
			p.failed++
			p.lastError = err
			p.lastErrorAt = time.Now()
		} else {
			p.completed++
		}
		p.recordQueueLocked()
		p.mu.Unlock()
	}
}

func (p *persister) write(key string, e Entry) error {
	// Detached from any caller: the write outlives the load that produced it.
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()

	ctx, span := telemetry.StartImageSpan(ctx, telemetry.SpanPersist, key, telemetry.Bytes(e.Size()))
	defer span.End()

	start := time.Now()
	err := p.store.Put(ctx, key, string(e))
	if p.metrics != nil {
		p.metrics.ObservePersist(err == nil, e.Size(), time.Since(start))
	}

	if err != nil {
		perr := &PersistenceError{Op: "put", Key: key, Err: err}
		telemetry.RecordError(ctx, perr)
		logger.Warn("Durable write failed", logger.URL(key), logger.Elapsed(start), logger.Err(perr))
		return perr
	}

	logger.Debug("Durable write complete", logger.URL(key), logger.Bytes(e.Size()), logger.Elapsed(start))
	return nil
}

// outstandingLocked is the number of writes not yet finished.
func (p *persister) outstandingLocked() int {
	return len(p.pending) + len(p.writing)
}

func (p *persister) notifyIdleLocked() {
	if p.outstandingLocked() != 0 {
		return
	}
	for _, ch := range p.idle {
		close(ch)
	}
	p.idle = nil
}

func (p *persister) recordQueueLocked() {
	if p.metrics != nil {
		p.metrics.RecordPersistQueue(p.outstandingLocked())
	}
}

// flush waits until every enqueued write has finished or ctx is done.
func (p *persister) flush(ctx context.Context) error {
	p.mu.Lock()
	if p.outstandingLocked() == 0 {
		p.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	p.idle = append(p.idle, ch)
	p.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops accepting writes, lets workers drain the queue and waits for
// them until ctx is done.
func (p *persister) close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Debug("Durable writer stopped")
		return nil
	case <-ctx.Done():
		p.mu.Lock()
		n := p.outstandingLocked()
		p.mu.Unlock()
		logger.Warn("Durable writer stop timed out", "pending", n)
		return errors.Join(ErrClosed, ctx.Err())
	}
}

func (p *persister) stats() PersisterStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PersisterStats{
		Pending:     p.outstandingLocked(),
		Completed:   p.completed,
		Failed:      p.failed,
		Dropped:     p.dropped,
		LastError:   p.lastError,
		LastErrorAt: p.lastErrorAt,
	}
}
