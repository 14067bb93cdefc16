package loader

import (
	"context"
	"time"

	"github.com/marmos91/imgloader/pkg/cache"
)

// call is one retrieval shared by every Load for the same key.
type call struct {
	key      string
	priority Priority // most urgent priority requested so far
	created  time.Time

	// waiters counts Load calls blocked on the result. Preloads do not wait.
	waiters int

	done  chan struct{}
	entry cache.Entry
	err   error
}

func newCall(key string, p Priority) *call {
	return &call{
		key:      key,
		priority: p,
		created:  time.Now(),
		done:     make(chan struct{}),
	}
}

// settle publishes the result. It must be called exactly once.
func (c *call) settle(e cache.Entry, err error) {
	c.entry, c.err = e, err
	close(c.done)
}

// wait blocks until the call settles or ctx is done. Giving up does not
// affect the retrieval.
func (c *call) wait(ctx context.Context) (cache.Entry, error) {
	select {
	case <-c.done:
		return c.entry, c.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// inflight maps keys to their unsettled call. Callers hold Loader.mu.
type inflight struct {
	calls map[string]*call
}

func newInflight() *inflight {
	return &inflight{calls: make(map[string]*call)}
}

// joinOrCreate returns the call for key, registering a new one when none is
// pending. created reports whether the caller must schedule it.
func (r *inflight) joinOrCreate(key string, p Priority) (c *call, created bool) {
	if c, ok := r.calls[key]; ok {
		return c, false
	}
	c = newCall(key, p)
	r.calls[key] = c
	return c, true
}

// remove unregisters c. A newer call for the same key is left alone.
func (r *inflight) remove(c *call) {
	if cur, ok := r.calls[c.key]; ok && cur == c {
		delete(r.calls, c.key)
	}
}

func (r *inflight) len() int {
	return len(r.calls)
}
