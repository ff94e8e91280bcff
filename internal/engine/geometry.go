package engine

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/hupe1980/packedmap/internal/cell"
	"github.com/hupe1980/packedmap/internal/conv"
)

// Geometry describes how the cell array is partitioned.
type Geometry struct {
	// Total is the number of allocated cells.
	Total int
	// ActiveStart is the first cell of the active range.
	ActiveStart int
	// ActiveSize is the number of cells in the active range (Total/2).
	ActiveSize int
	// BlockSize is the number of cells per leaf block.
	BlockSize int
	// LeafCount is the number of leaf blocks.
	LeafCount int
}

// ActiveEnd returns the first cell after the active range.
func (g Geometry) ActiveEnd() int { return g.ActiveStart + g.ActiveSize }

// InActive reports whether pos lies in the active range.
func (g Geometry) InActive(pos int) bool {
	return pos >= g.ActiveStart && pos < g.ActiveEnd()
}

func (g Geometry) String() string {
	return fmt.Sprintf("cells=%d active=[%d,%d) blocks=%dx%d",
		g.Total, g.ActiveStart, g.ActiveEnd(), g.LeafCount, g.BlockSize)
}

// loadFactor is the inverse of the target density: the envelope is
// provisioned so the expected keys fill an eighth of the allocation.
const loadFactor = 8

// Layout sizes the cell array for n expected keys. The allocation rounds
// log2(8n) up to a power of two so the tree height splits evenly; when that
// double-exponential size exceeds cell.MaxCells it falls back to the next
// power of two of 8n.
func Layout(n int) (Geometry, error) {
	if n < 1 {
		return Geometry{}, &InvalidCapacityError{Requested: n, cause: errors.New("expected key count must be positive")}
	}

	want, err := conv.MulInt(n, loadFactor)
	if err != nil {
		return Geometry{}, &InvalidCapacityError{Requested: n, cause: err}
	}

	exp := ceilLog2(want)
	total := 0
	if e := nextPow2(exp); e < bits.UintSize-1 && 1<<e <= cell.MaxCells {
		total = 1 << e
	} else if exp < bits.UintSize-1 {
		total = 1 << exp
	}
	if total == 0 || total > cell.MaxCells {
		return Geometry{}, &InvalidCapacityError{
			Requested: n,
			cause:     fmt.Errorf("needs more than %d cells", cell.MaxCells),
		}
	}

	active := total / 2
	block := 1 << (bits.Len(uint(bits.TrailingZeros(uint(active)))) - 1)

	return Geometry{
		Total:       total,
		ActiveStart: total / 4,
		ActiveSize:  active,
		BlockSize:   block,
		LeafCount:   active / block,
	}, nil
}

func ceilLog2(v int) int {
	if v <= 1 {
		return 0
	}
	return bits.Len(uint(v - 1))
}

func nextPow2(v int) int {
	if v <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(v-1))
}
