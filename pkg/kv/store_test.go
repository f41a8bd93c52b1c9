package kv

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStore_GetSet(t *testing.T) {
	s := New[string, int]()

	s.Set("foo", 42)
	val, ok := s.Get("foo")
	assert.True(t, ok)
	assert.Equal(t, 42, val)

	_, ok = s.Get("bar")
	assert.False(t, ok)
}

func TestStore_Delete(t *testing.T) {
	s := New[string, string]()
	s.Set("key", "value")

	removed, ok := s.Delete("key")
	assert.True(t, ok)
	assert.Equal(t, "value", removed)

	_, ok = s.Get("key")
	assert.False(t, ok)

	_, ok = s.Delete("key")
	assert.False(t, ok)
}

func TestStore_GetOrSet(t *testing.T) {
	s := New[string, *sync.Mutex]()

	first, existed := s.GetOrSet("teacher-1", func() *sync.Mutex { return &sync.Mutex{} })
	assert.False(t, existed)

	second, existed := s.GetOrSet("teacher-1", func() *sync.Mutex { return &sync.Mutex{} })
	assert.True(t, existed)
	assert.Same(t, first, second)
}

func TestStore_GetOrSetConcurrent(t *testing.T) {
	s := New[string, int]()
	var created atomic.Int32

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.GetOrSet("k", func() int {
				created.Add(1)
				return 7
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, 1, s.Len())
}

func TestStore_ValuesAndDrain(t *testing.T) {
	s := New[string, int]()
	s.Set("a", 1)
	s.Set("b", 2)

	assert.ElementsMatch(t, []int{1, 2}, s.Values())

	drained := s.Drain()
	assert.ElementsMatch(t, []int{1, 2}, drained)
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Values())
}
