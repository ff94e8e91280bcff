package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniqueInts(t *testing.T) {
	rng := NewRNG(1)
	keys := rng.UniqueInts(500, 1000)
	require.Len(t, keys, 500)

	seen := make(map[int]bool)
	for _, k := range keys {
		assert.False(t, seen[k], "duplicate %d", k)
		assert.GreaterOrEqual(t, k, 0)
		assert.Less(t, k, 1000)
		seen[k] = true
	}

	assert.Panics(t, func() { rng.UniqueInts(10, 5) })
}

func TestRuns(t *testing.T) {
	runs := NewRNG(2).Runs(3, 4, 100)
	require.Len(t, runs, 3)
	for _, run := range runs {
		require.Len(t, run, 4)
		for i := 1; i < len(run); i++ {
			assert.Equal(t, run[i-1]+1, run[i])
		}
	}
}

func TestReset(t *testing.T) {
	rng := NewRNG(42)
	first := rng.Perm(10)
	rng.Reset()
	assert.Equal(t, first, rng.Perm(10))
	assert.Equal(t, int64(42), rng.Seed())
}

func TestZipfSkew(t *testing.T) {
	rng := NewRNG(3)
	counts := make([]int, 10)
	for range 2000 {
		counts[rng.Zipf(10, 1.5)]++
	}
	assert.Greater(t, counts[0], counts[9])
	assert.Equal(t, 0, NewRNG(1).Zipf(1, 1))
}

func TestSorted(t *testing.T) {
	in := []int{3, 1, 2}
	assert.Equal(t, []int{1, 2, 3}, Sorted(in))
	assert.Equal(t, []int{3, 1, 2}, in)
}
