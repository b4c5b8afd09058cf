package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type evictLog struct {
	mu   sync.Mutex
	keys []string
}

func (l *evictLog) record(key string, _ string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
}

func TestLRU_Basic(t *testing.T) {
	log := &evictLog{}
	c := NewLRU[string](3, log.record)

	c.Put("key1", "value1")
	c.Put("key2", "value2")
	c.Put("key3", "value3")
	assert.Equal(t, 3, c.Len())

	value, found := c.Get("key1")
	require.True(t, found)
	assert.Equal(t, "value1", value)

	c.Put("key4", "value4")
	assert.Equal(t, 3, c.Len())

	_, found = c.Get("key2")
	assert.False(t, found, "key2 was least recently used")
	assert.Equal(t, []string{"key2"}, log.keys)
	assert.Equal(t, []string{"key4", "key1", "key3"}, c.Keys())
}

func TestLRU_Remove(t *testing.T) {
	log := &evictLog{}
	c := NewLRU[string](2, log.record)

	c.Put("a", "1")
	assert.True(t, c.Remove("a"))
	assert.False(t, c.Remove("a"))
	assert.Equal(t, []string{"a"}, log.keys)
	assert.Equal(t, 0, c.Len())
}

func TestLRU_EvictOldest(t *testing.T) {
	log := &evictLog{}
	c := NewLRU[string](3, log.record)

	assert.False(t, c.EvictOldest())

	c.Put("a", "1")
	c.Put("b", "2")
	c.Get("a")

	assert.True(t, c.EvictOldest())
	assert.Equal(t, []string{"b"}, log.keys)
	assert.Equal(t, []string{"a"}, c.Keys())
}

func TestLRU_ReplaceEvictsOldValue(t *testing.T) {
	var old []string
	c := NewLRU[string](2, func(_ string, v string) { old = append(old, v) })

	c.Put("a", "first")
	c.Put("a", "second")

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "second", v)
	assert.Equal(t, []string{"first"}, old)
	assert.Equal(t, 1, c.Len())
}

func TestLRU_Clear(t *testing.T) {
	log := &evictLog{}
	c := NewLRU[string](4, log.record)

	c.Put("a", "1")
	c.Put("b", "2")
	c.Clear()

	assert.Equal(t, 0, c.Len())
	assert.ElementsMatch(t, []string{"a", "b"}, log.keys)
	assert.Empty(t, c.Keys())
}

func TestLRU_Stats(t *testing.T) {
	c := NewLRU[string](2, nil)

	c.Put("key1", "value1")
	c.Put("key2", "value2")

	c.Get("key1")
	c.Get("key1")
	c.Get("key3")
	c.Get("key4")

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, 50.0, stats.HitRate)
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, 2, stats.Capacity)
}

func TestLRU_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewLRU[int](0, nil).Capacity())
	assert.Equal(t, DefaultCapacity, NewLRU[int](-3, nil).Capacity())
}

func TestLRU_EvictCallbackMayReenter(t *testing.T) {
	var c *LRU[int]
	c = NewLRU[int](1, func(key string, _ int) {
		// Callbacks run outside the lock
		_ = c.Len()
	})

	c.Put("a", 1)
	c.Put("b", 2)
	assert.Equal(t, []string{"b"}, c.Keys())
}

func TestLRU_Concurrent(t *testing.T) {
	c := NewLRU[int](8, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", (i+j)%20)
				c.Put(key, j)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 8)
}

func BenchmarkLRU_Operations(b *testing.B) {
	c := NewLRU[string](1000, nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("key%d", i%1000)
		c.Put(key, "value")
		c.Get(key)
	}
}
