package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sized(n int) Entry {
	return Entry(strings.Repeat("x", n))
}

func TestMemoryUnbounded(t *testing.T) {
	m := NewMemory(0, 0, nil)
	for i := 0; i < 1000; i++ {
		m.Add(string(rune('a'+i%26))+strings.Repeat("k", i), sized(10))
	}
	assert.Equal(t, 1000, m.Len())
	assert.Equal(t, int64(10000), m.Bytes())
}

func TestMemoryEntryCap(t *testing.T) {
	var evicted []string
	m := NewMemory(2, 0, func(key string, _ Entry) { evicted = append(evicted, key) })

	m.Add("a", sized(1))
	m.Add("b", sized(1))
	_, ok := m.Get("a") // a becomes most recent
	require.True(t, ok)
	m.Add("c", sized(1))

	assert.Equal(t, []string{"b"}, evicted)
	assert.True(t, m.Contains("a"))
	assert.True(t, m.Contains("c"))
	assert.Equal(t, int64(2), m.Bytes())
}

func TestMemoryByteCap(t *testing.T) {
	var evicted []string
	m := NewMemory(0, 100, func(key string, _ Entry) { evicted = append(evicted, key) })

	m.Add("a", sized(40))
	m.Add("b", sized(40))
	m.Add("c", sized(40))

	assert.Equal(t, []string{"a"}, evicted)
	assert.Equal(t, int64(80), m.Bytes())
	assert.Equal(t, []string{"b", "c"}, m.Keys())
}

func TestMemoryKeepsOversizedLatest(t *testing.T) {
	m := NewMemory(0, 100, nil)
	m.Add("a", sized(10))
	m.Add("huge", sized(500))

	assert.True(t, m.Contains("huge"))
	assert.False(t, m.Contains("a"))
	assert.Equal(t, int64(500), m.Bytes())
}

func TestMemoryReplaceAdjustsBytes(t *testing.T) {
	m := NewMemory(0, 0, nil)
	m.Add("a", sized(10))
	m.Add("a", sized(30))

	assert.Equal(t, 1, m.Len())
	assert.Equal(t, int64(30), m.Bytes())
}

func TestMemoryPeekDoesNotTouchRecency(t *testing.T) {
	var evicted []string
	m := NewMemory(2, 0, func(key string, _ Entry) { evicted = append(evicted, key) })
	m.Add("a", sized(1))
	m.Add("b", sized(1))

	_, ok := m.Peek("a")
	require.True(t, ok)
	m.Add("c", sized(1))

	assert.Equal(t, []string{"a"}, evicted)
}

func TestMemoryPurgeIsNotEviction(t *testing.T) {
	evictions := 0
	m := NewMemory(0, 0, func(string, Entry) { evictions++ })
	m.Add("a", sized(5))
	m.Add("b", sized(5))

	assert.True(t, m.Remove("a"))
	m.Purge()

	assert.Zero(t, evictions)
	assert.Zero(t, m.Len())
	assert.Zero(t, m.Bytes())
}
