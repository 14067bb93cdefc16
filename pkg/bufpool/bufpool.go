// Package bufpool recycles scratch byte slices used while reading image
// bodies and base64-encoding them into data URLs.
//
// Slices come from one of three size classes. Requests above the largest
// class are allocated directly and never pooled, so a single huge image
// does not pin its buffer for the life of the process.
//
//	buf := bufpool.Get(n)
//	defer bufpool.Put(buf)
package bufpool

import (
	"sync"
)

// Default size classes.
const (
	DefaultSmallSize  = 32 << 10  // icons, thumbnails, copy buffers
	DefaultMediumSize = 512 << 10 // typical photos
	DefaultLargeSize  = 4 << 20   // large images and their base64 form
)

// Config sets the size classes of a Pool. Zero fields take the defaults.
type Config struct {
	SmallSize  int
	MediumSize int
	LargeSize  int
}

// Pool hands out byte slices by size class. It is safe for concurrent use.
type Pool struct {
	classes [3]class
}

type class struct {
	size int
	pool sync.Pool
}

// NewPool creates a Pool.
func NewPool(cfg Config) *Pool {
	sizes := [3]int{cfg.SmallSize, cfg.MediumSize, cfg.LargeSize}
	defaults := [3]int{DefaultSmallSize, DefaultMediumSize, DefaultLargeSize}

	p := &Pool{}
	for i := range p.classes {
		size := sizes[i]
		if size <= 0 {
			size = defaults[i]
		}
		p.classes[i].size = size
		p.classes[i].pool.New = func() any {
			buf := make([]byte, size)
			return &buf
		}
	}
	return p
}

// Get returns a slice of length size. Its capacity is the size class it
// came from, or exactly size when no class is large enough.
func (p *Pool) Get(size int) []byte {
	for i := range p.classes {
		c := &p.classes[i]
		if size <= c.size {
			buf := *c.pool.Get().(*[]byte)
			return buf[:size]
		}
	}
	return make([]byte, size)
}

// Put returns buf to its class. Slices whose capacity matches no class are
// left to the garbage collector. buf must not be used afterwards.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}
	for i := range p.classes {
		c := &p.classes[i]
		if cap(buf) == c.size {
			full := buf[:c.size]
			c.pool.Put(&full)
			return
		}
	}
}

var global = NewPool(Config{})

// Get returns a slice of length size from the shared pool.
func Get(size int) []byte {
	return global.Get(size)
}

// Put returns a slice obtained from Get to the shared pool.
func Put(buf []byte) {
	global.Put(buf)
}
