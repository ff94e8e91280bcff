package hintcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGet(t *testing.T) {
	c, err := New[string](128)
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Put("a", 17)
	c.Wait()

	pos, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 17, pos)

	c.Put("a", 23)
	c.Wait()
	pos, ok = c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 23, pos)

	hits, misses := c.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
}

func TestForget(t *testing.T) {
	c, err := New[int](128)
	require.NoError(t, err)
	defer c.Close()

	c.Put(5, 1)
	c.Wait()
	c.Forget(5)
	c.Wait()

	_, ok := c.Get(5)
	assert.False(t, ok)
}

func TestInvalidSize(t *testing.T) {
	_, err := New[int](0)
	assert.ErrorIs(t, err, ErrInvalidSize)
}
