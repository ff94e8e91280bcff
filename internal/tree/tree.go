package tree

import (
	"cmp"
	"fmt"
	"io"
	"math/bits"
	"strings"
	"sync/atomic"

	"github.com/hupe1980/packedmap/internal/conv"
	"github.com/hupe1980/packedmap/internal/key"
)

const nilNode int32 = -1

type node struct {
	left  int32
	right int32
	// leaf is the ordinal of a leaf node, nilNode for branches.
	leaf int32
	// pivot is the leftmost leaf ordinal of the right subtree.
	pivot int32
}

func (n *node) isLeaf() bool { return n.leaf != nilNode }

// Tree is a static vEB-ordered routing tree over consecutive uniform blocks.
type Tree[T cmp.Ordered] struct {
	nodes      []node
	thresholds []atomic.Pointer[key.Key[T]]
	base       int
	blockSize  int
}

// Build lays out a tree with leafCount leaves (a power of two) whose blocks of
// blockSize cells start at cell base.
func Build[T cmp.Ordered](leafCount, blockSize, base int) (*Tree[T], error) {
	if leafCount < 1 || leafCount&(leafCount-1) != 0 {
		return nil, fmt.Errorf("tree: leaf count %d is not a power of two", leafCount)
	}
	if blockSize < 1 {
		return nil, fmt.Errorf("tree: block size %d must be positive", blockSize)
	}
	if base < 0 {
		return nil, fmt.Errorf("tree: negative base %d", base)
	}
	if _, err := conv.IntToInt32(2*leafCount - 1); err != nil {
		return nil, fmt.Errorf("tree: %d leaves: %w", leafCount, err)
	}

	height := bits.TrailingZeros(uint(leafCount)) + 1
	b := &builder{nodes: make([]node, 0, 2*leafCount-1)}
	root, leaves := b.layout(height)
	if root != 0 || len(leaves) != leafCount {
		return nil, fmt.Errorf("tree: layout produced root %d with %d leaves", root, len(leaves))
	}

	for ord, idx := range leaves {
		b.nodes[idx].leaf = int32(ord)
	}
	b.assignPivots(root)

	t := &Tree[T]{
		nodes:      b.nodes,
		thresholds: make([]atomic.Pointer[key.Key[T]], leafCount),
		base:       base,
		blockSize:  blockSize,
	}

	inf, sup := key.Infimum[T](), key.Supremum[T]()
	t.thresholds[0].Store(&inf)
	for i := 1; i < leafCount; i++ {
		t.thresholds[i].Store(&sup)
	}

	return t, nil
}

type builder struct {
	nodes []node
}

func (b *builder) alloc() int32 {
	b.nodes = append(b.nodes, node{left: nilNode, right: nilNode, leaf: nilNode, pivot: nilNode})
	return int32(len(b.nodes) - 1)
}

// layout appends a perfect subtree of height h and returns its root and its
// bottom level, left to right.
func (b *builder) layout(h int) (int32, []int32) {
	switch h {
	case 1:
		n := b.alloc()
		return n, []int32{n}
	case 2:
		r := b.alloc()
		l, rr := b.alloc(), b.alloc()
		b.nodes[r].left, b.nodes[r].right = l, rr
		return r, []int32{l, rr}
	}

	upper := nextPow2((h + 1) / 2)
	if upper > h-1 {
		upper = h - 1
	}
	lower := h - upper

	root, top := b.layout(upper)
	bottom := make([]int32, 0, len(top)<<lower)
	for _, p := range top {
		l, lb := b.layout(lower)
		r, rb := b.layout(lower)
		b.nodes[p].left, b.nodes[p].right = l, r
		bottom = append(bottom, lb...)
		bottom = append(bottom, rb...)
	}

	return root, bottom
}

// assignPivots returns the leftmost leaf of the subtree at n.
func (b *builder) assignPivots(n int32) int32 {
	nd := &b.nodes[n]
	if nd.isLeaf() {
		return nd.leaf
	}
	leftmost := b.assignPivots(nd.left)
	b.nodes[n].pivot = b.assignPivots(b.nodes[n].right)
	return leftmost
}

func nextPow2(v int) int {
	if v <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(v-1))
}

// LeafCount returns the number of leaves.
func (t *Tree[T]) LeafCount() int { return len(t.thresholds) }

// NodeCount returns the number of arena nodes.
func (t *Tree[T]) NodeCount() int { return len(t.nodes) }

// BlockSize returns the number of cells per leaf.
func (t *Tree[T]) BlockSize() int { return t.blockSize }

// Route returns the leaf whose block a scan for k should start in.
func (t *Tree[T]) Route(k key.Key[T]) int {
	n := &t.nodes[0]
	for !n.isLeaf() {
		if key.Compare(k, t.Threshold(int(n.pivot))) >= 0 {
			n = &t.nodes[n.right]
		} else {
			n = &t.nodes[n.left]
		}
	}
	return int(n.leaf)
}

// Block returns the first cell and the length of a leaf's block.
func (t *Tree[T]) Block(leaf int) (start, length int) {
	return t.base + leaf*t.blockSize, t.blockSize
}

// LeafOf returns the leaf whose block contains pos, clamped to the valid range.
func (t *Tree[T]) LeafOf(pos int) int {
	l := (pos - t.base) / t.blockSize
	switch {
	case pos < t.base:
		return 0
	case l >= len(t.thresholds):
		return len(t.thresholds) - 1
	default:
		return l
	}
}

// Threshold returns the routing threshold of a leaf.
func (t *Tree[T]) Threshold(leaf int) key.Key[T] {
	return *t.thresholds[leaf].Load()
}

// SetThreshold replaces the threshold of a leaf. Leaf 0 stays at Infimum.
func (t *Tree[T]) SetThreshold(leaf int, k key.Key[T]) {
	if leaf == 0 {
		return
	}
	if key.Compare(t.Threshold(leaf), k) == 0 {
		return
	}
	t.thresholds[leaf].Store(&k)
}

// LowerThreshold sets the threshold of a leaf to k if k is smaller.
func (t *Tree[T]) LowerThreshold(leaf int, k key.Key[T]) {
	if leaf == 0 {
		return
	}
	for {
		cur := t.thresholds[leaf].Load()
		if key.Compare(k, *cur) >= 0 {
			return
		}
		if t.thresholds[leaf].CompareAndSwap(cur, &k) {
			return
		}
	}
}

// Format writes an indented rendering of the tree.
func (t *Tree[T]) Format(w io.Writer) error {
	return t.format(w, 0, 0)
}

func (t *Tree[T]) format(w io.Writer, n int32, depth int) error {
	nd := &t.nodes[n]
	indent := strings.Repeat("  ", depth)

	if nd.isLeaf() {
		start, length := t.Block(int(nd.leaf))
		_, err := fmt.Fprintf(w, "%sleaf %d [%d,%d) threshold=%s\n",
			indent, nd.leaf, start, start+length, t.Threshold(int(nd.leaf)))
		return err
	}

	if _, err := fmt.Fprintf(w, "%sbranch #%d pivot=leaf %d threshold=%s\n",
		indent, n, nd.pivot, t.Threshold(int(nd.pivot))); err != nil {
		return err
	}
	if err := t.format(w, nd.left, depth+1); err != nil {
		return err
	}
	return t.format(w, nd.right, depth+1)
}

func (t *Tree[T]) String() string {
	var sb strings.Builder
	_ = t.Format(&sb)
	return sb.String()
}
