package legacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItWorks(t *testing.T) {
	m := New[int, string]()
	m.Insert(5, "Hello")
	m.Insert(3, "World")
	m.Insert(2, "!")

	v, ok := m.Get(5)
	require.True(t, ok)
	assert.Equal(t, "Hello", v)

	_, ok = m.Get(4)
	assert.False(t, ok)

	v, ok = m.Get(3)
	require.True(t, ok)
	assert.Equal(t, "World", v)

	v, ok = m.Get(2)
	require.True(t, ok)
	assert.Equal(t, "!", v)
}

func TestEmpty(t *testing.T) {
	m := New[string, int]()
	_, ok := m.Get("x")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestAscendingAndDescending(t *testing.T) {
	m := New[int, int]()
	for _, k := range []int{10, 20, 30, 5, 1, 25, 15} {
		m.Insert(k, k*2)
	}
	for _, k := range []int{10, 20, 30, 5, 1, 25, 15} {
		v, ok := m.Get(k)
		require.True(t, ok, "key %d", k)
		assert.Equal(t, k*2, v)
	}
	for _, k := range []int{0, 2, 11, 21, 31} {
		_, ok := m.Get(k)
		assert.False(t, ok, "key %d", k)
	}
	assert.Equal(t, 7, m.Len())
}

func TestReinsert(t *testing.T) {
	m := New[int, string]()
	m.Insert(1, "a")
	m.Insert(2, "b")
	m.Insert(1, "c")

	v, _ := m.Get(1)
	assert.Equal(t, "c", v)
	assert.Equal(t, 2, m.Len())
}

func TestBufferWraps(t *testing.T) {
	m := New[int, int]()
	for k := range Capacity + 1 {
		m.Insert(k, k)
	}

	// Key 0 shares its slot with the last insert.
	v, ok := m.Get(0)
	require.True(t, ok)
	assert.Equal(t, Capacity, v)

	v, _ = m.Get(Capacity)
	assert.Equal(t, Capacity, v)
}
