package bufpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSizeClasses(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantCap int
	}{
		{"Zero", 0, DefaultSmallSize},
		{"Thumbnail", 4 << 10, DefaultSmallSize},
		{"SmallBoundary", DefaultSmallSize, DefaultSmallSize},
		{"Photo", DefaultSmallSize + 1, DefaultMediumSize},
		{"Large", 1 << 20, DefaultLargeSize},
		{"Oversized", DefaultLargeSize + 1, DefaultLargeSize + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := Get(tt.size)
			defer Put(buf)

			assert.Len(t, buf, tt.size)
			assert.Equal(t, tt.wantCap, cap(buf))
		})
	}
}

func TestCustomConfig(t *testing.T) {
	p := NewPool(Config{SmallSize: 16, MediumSize: 64})

	assert.Equal(t, 16, cap(p.Get(10)))
	assert.Equal(t, 64, cap(p.Get(17)))
	assert.Equal(t, DefaultLargeSize, cap(p.Get(65)))
}

func TestPutRestoresFullLength(t *testing.T) {
	p := NewPool(Config{SmallSize: 16, MediumSize: 64, LargeSize: 256})

	buf := p.Get(3)
	copy(buf, "abc")
	p.Put(buf)

	again := p.Get(16)
	require.Len(t, again, 16)
}

func TestPutIgnoresForeignSlices(t *testing.T) {
	assert.NotPanics(t, func() {
		Put(nil)
		Put(make([]byte, 100))
		Put(make([]byte, 0, DefaultLargeSize*2))
	})
}

func TestConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				size := (i*100 + j) * 97 % (2 * DefaultMediumSize)
				buf := Get(size)
				for k := range buf {
					buf[k] = byte(i)
				}
				Put(buf)
			}
		}()
	}
	wg.Wait()
}
