package tree

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/packedmap/internal/key"
)

func TestBuildRejectsBadShapes(t *testing.T) {
	_, err := Build[int](0, 4, 0)
	require.Error(t, err)
	_, err = Build[int](6, 4, 0)
	require.Error(t, err)
	_, err = Build[int](4, 0, 0)
	require.Error(t, err)
	_, err = Build[int](4, 4, -1)
	require.Error(t, err)
}

func TestLayoutReachability(t *testing.T) {
	for _, leaves := range []int{1, 2, 4, 8, 16, 32, 64, 128, 1024, 4096} {
		tr, err := Build[int](leaves, 4, 8)
		require.NoError(t, err, "leaves=%d", leaves)
		require.Equal(t, 2*leaves-1, tr.NodeCount())

		seen := make([]int, tr.NodeCount())
		var order []int32
		var walk func(n int32)
		walk = func(n int32) {
			seen[n]++
			nd := tr.nodes[n]
			if nd.isLeaf() {
				assert.Equal(t, nilNode, nd.left)
				assert.Equal(t, nilNode, nd.right)
				order = append(order, nd.leaf)
				return
			}
			walk(nd.left)
			walk(nd.right)
		}
		walk(0)

		for i, c := range seen {
			assert.Equal(t, 1, c, "leaves=%d node %d", leaves, i)
		}
		require.Len(t, order, leaves)
		for i, ord := range order {
			assert.Equal(t, int32(i), ord, "leaves in block order")
		}
	}
}

func TestLayoutIsVanEmdeBoas(t *testing.T) {
	// Height 4 splits into an upper tree of 2 levels followed by four
	// contiguous lower trees of 2 levels each.
	tr, err := Build[int](8, 1, 0)
	require.NoError(t, err)

	root := tr.nodes[0]
	assert.Equal(t, int32(1), root.left)
	assert.Equal(t, int32(2), root.right)

	for i, p := range []int32{1, 2} {
		nd := tr.nodes[p]
		base := int32(3 + 6*i)
		assert.Equal(t, base, nd.left)
		assert.Equal(t, base+3, nd.right)
		assert.Equal(t, base+1, tr.nodes[nd.left].left)
		assert.Equal(t, base+2, tr.nodes[nd.left].right)
	}
}

func TestPivots(t *testing.T) {
	tr, err := Build[int](8, 1, 0)
	require.NoError(t, err)

	assert.Equal(t, int32(4), tr.nodes[0].pivot)
	assert.Equal(t, int32(2), tr.nodes[1].pivot)
	assert.Equal(t, int32(6), tr.nodes[2].pivot)
}

func TestRoute(t *testing.T) {
	tr, err := Build[int](8, 4, 16)
	require.NoError(t, err)

	// All thresholds except leaf 0 start at Supremum.
	assert.Equal(t, 0, tr.Route(key.Of(1000)))
	assert.Equal(t, 0, tr.Route(key.Infimum[int]()))
	assert.Equal(t, 7, tr.Route(key.Supremum[int]()))

	for leaf := 1; leaf < 8; leaf++ {
		tr.SetThreshold(leaf, key.Of(leaf*10))
	}

	tests := []struct {
		k    int
		want int
	}{
		{-5, 0}, {0, 0}, {9, 0}, {10, 1}, {15, 1}, {39, 3}, {40, 4}, {69, 6}, {70, 7}, {1 << 20, 7},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tr.Route(key.Of(tt.k)), "route %d", tt.k)
	}
}

func TestThresholds(t *testing.T) {
	tr, err := Build[string](4, 2, 0)
	require.NoError(t, err)

	tr.SetThreshold(0, key.Of("x"))
	assert.True(t, tr.Threshold(0).IsInfimum())

	tr.LowerThreshold(2, key.Of("m"))
	assert.Equal(t, key.Of("m"), tr.Threshold(2))
	tr.LowerThreshold(2, key.Of("z"))
	assert.Equal(t, key.Of("m"), tr.Threshold(2))
	tr.LowerThreshold(2, key.Of("c"))
	assert.Equal(t, key.Of("c"), tr.Threshold(2))

	tr.SetThreshold(2, key.Supremum[string]())
	assert.True(t, tr.Threshold(2).IsSupremum())
}

func TestBlocks(t *testing.T) {
	tr, err := Build[int](4, 8, 32)
	require.NoError(t, err)

	start, length := tr.Block(0)
	assert.Equal(t, 32, start)
	assert.Equal(t, 8, length)

	start, _ = tr.Block(3)
	assert.Equal(t, 56, start)

	assert.Equal(t, 0, tr.LeafOf(0))
	assert.Equal(t, 0, tr.LeafOf(39))
	assert.Equal(t, 1, tr.LeafOf(40))
	assert.Equal(t, 3, tr.LeafOf(63))
	assert.Equal(t, 3, tr.LeafOf(1000))
}

func TestFormat(t *testing.T) {
	tr, err := Build[int](2, 4, 0)
	require.NoError(t, err)

	out := tr.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "branch #0 pivot=leaf 1 threshold=+inf", lines[0])
	assert.Equal(t, "  leaf 0 [0,4) threshold=-inf", lines[1])
	assert.Equal(t, "  leaf 1 [4,8) threshold=+inf", lines[2])
}
