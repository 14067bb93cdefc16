package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/imgloader/pkg/store"
	"github.com/marmos91/imgloader/pkg/store/memory"
)

const keyA = "https://x/a.png"

var pngEntry = NewEntry("image/png", []byte("\x89PNG\r\n\x1a\n"))

// flakyStore wraps a memory store and fails reads or writes on demand.
type flakyStore struct {
	*memory.Store

	mu       sync.Mutex
	getErr   error
	putErr   error
	putBlock chan struct{}
	puts     []string
}

func newFlakyStore() *flakyStore {
	return &flakyStore{Store: memory.New()}
}

func (s *flakyStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	err := s.getErr
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	return s.Store.Get(ctx, key)
}

func (s *flakyStore) Put(ctx context.Context, key, value string) error {
	s.mu.Lock()
	err, block := s.putErr, s.putBlock
	s.puts = append(s.puts, value)
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	return s.Store.Put(ctx, key, value)
}

func (s *flakyStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.puts)
}

func flush(t *testing.T, c *Cache) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Flush(ctx))
}

func closeCache(t *testing.T, c *Cache) {
	t.Cleanup(func() { _ = c.Close(context.Background()) })
}

func TestCacheMemoryOnly(t *testing.T) {
	c := New(Config{}, nil, nil)
	closeCache(t, c)

	_, tier, ok := c.Get(context.Background(), keyA)
	assert.False(t, ok)
	assert.Equal(t, TierNone, tier)

	c.Put(keyA, pngEntry)
	e, tier, ok := c.Get(context.Background(), keyA)
	require.True(t, ok)
	assert.Equal(t, TierMemory, tier)
	assert.Equal(t, pngEntry, e)
	assert.False(t, c.HasDurable())

	s := c.Stats()
	assert.Equal(t, int64(1), s.MemoryHits)
	assert.Equal(t, int64(1), s.Misses)
	assert.False(t, s.Durable)
}

func TestCachePutWritesThrough(t *testing.T) {
	durable := memory.New()
	c := New(Config{}, durable, nil)
	closeCache(t, c)

	c.Put(keyA, pngEntry)
	assert.True(t, c.Contains(keyA), "memory is updated synchronously")

	flush(t, c)
	got, err := durable.Get(context.Background(), keyA)
	require.NoError(t, err)
	assert.Equal(t, string(pngEntry), got)
	assert.Equal(t, int64(1), c.Stats().Persisted)
}

func TestCacheDurableHitPromotes(t *testing.T) {
	durable := memory.New()
	require.NoError(t, durable.Put(context.Background(), keyA, string(pngEntry)))

	c := New(Config{}, durable, nil)
	closeCache(t, c)
	assert.False(t, c.Contains(keyA))

	e, tier, ok := c.Get(context.Background(), keyA)
	require.True(t, ok)
	assert.Equal(t, TierDurable, tier)
	assert.Equal(t, pngEntry, e)
	assert.True(t, c.Contains(keyA))

	_, tier, _ = c.Get(context.Background(), keyA)
	assert.Equal(t, TierMemory, tier)

	s := c.Stats()
	assert.Equal(t, int64(1), s.DurableHits)
	assert.Equal(t, int64(1), s.MemoryHits)
}

func TestCacheDurableReadErrorIsMiss(t *testing.T) {
	durable := newFlakyStore()
	durable.getErr = errors.New("disk on fire")

	c := New(Config{}, durable, nil)
	closeCache(t, c)

	_, tier, ok := c.Get(context.Background(), keyA)
	assert.False(t, ok)
	assert.Equal(t, TierNone, tier)
	assert.Equal(t, int64(1), c.Stats().DurableErrors)
}

func TestCacheIgnoresMalformedDurableEntry(t *testing.T) {
	durable := memory.New()
	require.NoError(t, durable.Put(context.Background(), keyA, "not a data url"))

	c := New(Config{}, durable, nil)
	closeCache(t, c)

	_, _, ok := c.Get(context.Background(), keyA)
	assert.False(t, ok)
	assert.False(t, c.Contains(keyA))
}

func TestCacheDurableWriteFailureIsSwallowed(t *testing.T) {
	durable := newFlakyStore()
	durable.putErr = errors.New("read-only filesystem")

	c := New(Config{}, durable, nil)
	closeCache(t, c)

	c.Put(keyA, pngEntry)
	flush(t, c)

	e, ok := c.Peek(keyA)
	require.True(t, ok)
	assert.Equal(t, pngEntry, e)

	s := c.Stats()
	assert.Equal(t, int64(1), s.PersistFailed)
	assert.Zero(t, s.PersistPending)

	var perr *PersistenceError
	require.True(t, errors.As(c.persister.stats().LastError, &perr))
	assert.Equal(t, "put", perr.Op)
	assert.Equal(t, keyA, perr.Key)
}

func TestCacheCoalescesWritesPerKey(t *testing.T) {
	durable := newFlakyStore()
	durable.putBlock = make(chan struct{})

	c := New(Config{Persister: PersisterConfig{Workers: 4}}, durable, nil)
	closeCache(t, c)

	first := NewEntry("image/png", []byte("1"))
	c.Put(keyA, first)
	require.Eventually(t, func() bool { return durable.putCount() == 1 }, time.Second, time.Millisecond)

	// While the first write is blocked, later values replace each other.
	c.Put(keyA, NewEntry("image/png", []byte("2")))
	last := NewEntry("image/png", []byte("3"))
	c.Put(keyA, last)

	close(durable.putBlock)
	flush(t, c)

	assert.Equal(t, 2, durable.putCount())
	got, err := durable.Store.Get(context.Background(), keyA)
	require.NoError(t, err)
	assert.Equal(t, string(last), got)
}

func TestCacheDropsWritesWhenQueueFull(t *testing.T) {
	durable := newFlakyStore()
	durable.putBlock = make(chan struct{})

	c := New(Config{Persister: PersisterConfig{Workers: 1, QueueSize: 1}}, durable, nil)
	closeCache(t, c)

	c.Put("https://x/1.png", pngEntry)
	require.Eventually(t, func() bool { return durable.putCount() == 1 }, time.Second, time.Millisecond)

	c.Put("https://x/2.png", pngEntry) // queued
	c.Put("https://x/3.png", pngEntry) // dropped

	assert.Equal(t, int64(1), c.Stats().PersistDropped)
	assert.True(t, c.Contains("https://x/3.png"), "memory tier is unaffected by drops")

	close(durable.putBlock)
	flush(t, c)
	assert.Equal(t, 2, durable.putCount())
}

func TestCacheClearMemoryKeepsDurable(t *testing.T) {
	durable := memory.New()
	c := New(Config{}, durable, nil)
	closeCache(t, c)

	c.Put(keyA, pngEntry)
	flush(t, c)
	c.ClearMemory()

	assert.Zero(t, c.Len())
	assert.Zero(t, c.Bytes())

	_, tier, ok := c.Get(context.Background(), keyA)
	require.True(t, ok)
	assert.Equal(t, TierDurable, tier)
	assert.Zero(t, c.Stats().Evictions)
}

func TestCacheCountsEvictions(t *testing.T) {
	c := New(Config{MemoryMaxEntries: 1}, nil, nil)
	closeCache(t, c)

	c.Put("https://x/1.png", pngEntry)
	c.Put("https://x/2.png", pngEntry)

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestCacheCloseDrainsAndClosesStore(t *testing.T) {
	durable := memory.New()
	c := New(Config{}, durable, nil)

	c.Put(keyA, pngEntry)
	require.NoError(t, c.Close(context.Background()))
	require.NoError(t, c.Close(context.Background()))

	_, err := durable.Get(context.Background(), keyA)
	assert.ErrorIs(t, err, store.ErrStoreClosed)
	assert.ErrorIs(t, c.Flush(context.Background()), ErrClosed)
}

func TestEntry(t *testing.T) {
	assert.True(t, pngEntry.Valid())
	assert.Equal(t, "image/png", pngEntry.MediaType())

	mt, data, err := pngEntry.Decode()
	require.NoError(t, err)
	assert.Equal(t, "image/png", mt)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), data)

	assert.False(t, Entry("https://x/a.png").Valid())
}
