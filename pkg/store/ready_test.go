package store_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/imgloader/pkg/store"
	"github.com/marmos91/imgloader/pkg/store/memory"
)

// flakyStore fails Healthcheck until it has been called failures+1 times.
type flakyStore struct {
	*memory.Store
	failures int32
	calls    atomic.Int32
}

func (f *flakyStore) Healthcheck(ctx context.Context) error {
	if f.calls.Add(1) <= f.failures {
		return errors.New("connection refused")
	}
	return f.Store.Healthcheck(ctx)
}

func TestWaitReadyRetries(t *testing.T) {
	s := &flakyStore{Store: memory.New(), failures: 2}

	require.NoError(t, store.WaitReady(t.Context(), s, "flaky", 5*time.Second))
	assert.Equal(t, int32(3), s.calls.Load())
}

func TestWaitReadyGivesUp(t *testing.T) {
	s := &flakyStore{Store: memory.New(), failures: 1 << 30}

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	start := time.Now()
	err := store.WaitReady(ctx, s, "flaky", 300*time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "flaky store not ready")
	assert.NotErrorIs(t, err, context.DeadlineExceeded, "gave up on its own timeout")
	assert.Less(t, elapsed, 2*time.Second)
	assert.Less(t, s.calls.Load(), int32(20), "retries are spaced by backoff")
}

func TestWaitReadyStopsOnClosed(t *testing.T) {
	s := memory.New()
	require.NoError(t, s.Close())

	start := time.Now()
	err := store.WaitReady(t.Context(), s, "memory", 10*time.Second)
	assert.ErrorIs(t, err, store.ErrStoreClosed)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitReadyWithoutTimeout(t *testing.T) {
	assert.NoError(t, store.WaitReady(t.Context(), memory.New(), "memory", 0))
}
