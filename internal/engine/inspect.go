package engine

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"runtime"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/packedmap/internal/cell"
)

// ErrCorrupt is wrapped by Validate failures that are not single-cell
// version mismatches.
var ErrCorrupt = errors.New("engine: invariant violated")

// CellState is a raw view of one cell.
type CellState[K cmp.Ordered, V any] struct {
	Pos     int
	Active  bool
	Version uint32
	Marker  cell.Marker
	Entry   *cell.Entry[K, V]
	Pending *cell.Entry[K, V]
}

// Cells returns the raw state of every cell. The result is not a consistent
// snapshot while writers are active.
func (e *Engine[K, V]) Cells() []CellState[K, V] {
	out := make([]CellState[K, V], e.cells.Len())
	for pos := range out {
		st := e.cells.Peek(pos)
		out[pos] = CellState[K, V]{
			Pos:     pos,
			Active:  e.geo.InActive(pos),
			Version: st.Version,
			Marker:  st.Marker,
			Entry:   st.Entry,
			Pending: st.Pending,
		}
	}
	return out
}

// Occupancy returns the positions of all occupied cells.
func (e *Engine[K, V]) Occupancy() *roaring.Bitmap {
	bm := roaring.New()
	for pos := 0; pos < e.cells.Len(); pos++ {
		if e.cells.Peek(pos).Entry != nil {
			bm.Add(uint32(pos))
		}
	}
	return bm
}

// All yields the stored pairs in ascending key order. Under concurrent
// mutation a key may be missed, but never yielded twice or out of order.
func (e *Engine[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		var (
			last K
			seen bool
		)
		for pos := e.geo.ActiveStart; pos < e.geo.ActiveEnd(); pos++ {
			snap, err := e.loadEventually(pos)
			if err != nil {
				return
			}
			if !snap.Occupied() {
				continue
			}
			k := snap.Entry.Key
			if seen && cmp.Compare(k, last) <= 0 {
				continue
			}
			last, seen = k, true
			if !yield(k, snap.Entry.Value) {
				return
			}
		}
	}
}

func (e *Engine[K, V]) loadEventually(pos int) (cell.Snapshot[K, V], error) {
	for {
		snap, err := e.load(pos)
		if !errors.Is(err, errBusy) {
			return snap, err
		}
		runtime.Gosched()
	}
}

// Validate checks the structural invariants of a quiescent engine: every
// marker is Empty with the cell's version, buffers are unoccupied, occupied
// active cells are strictly increasing, the key count matches and leaf 0 is
// routed from Infimum.
func (e *Engine[K, V]) Validate() error {
	var (
		prev    *cell.Entry[K, V]
		prevPos int
		count   int64
	)

	for pos := 0; pos < e.cells.Len(); pos++ {
		st := e.cells.Peek(pos)

		if st.Marker.Tag() != cell.Empty {
			return fmt.Errorf("%w: cell %d still holds marker %s", ErrCorrupt, pos, st.Marker)
		}
		if st.Marker.Version() != st.Version {
			return &cell.InvariantError{Position: pos, CellVersion: st.Version, MarkerVersion: st.Marker.Version()}
		}
		if st.Entry == nil {
			continue
		}
		if !e.geo.InActive(pos) {
			return fmt.Errorf("%w: buffer cell %d is occupied by %v", ErrCorrupt, pos, st.Entry.Key)
		}
		if prev != nil && cmp.Compare(prev.Key, st.Entry.Key) >= 0 {
			return fmt.Errorf("%w: key %v at %d is not above %v at %d",
				ErrCorrupt, st.Entry.Key, pos, prev.Key, prevPos)
		}
		prev, prevPos = st.Entry, pos
		count++
	}

	if n := e.count.Load(); n != count {
		return fmt.Errorf("%w: %d occupied cells but %d keys counted", ErrCorrupt, count, n)
	}
	if !e.tree.Threshold(0).IsInfimum() {
		return fmt.Errorf("%w: leaf 0 threshold is %s", ErrCorrupt, e.tree.Threshold(0))
	}

	return nil
}
