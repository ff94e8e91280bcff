package engine

import (
	"cmp"
	"errors"
	"runtime"

	"github.com/hupe1980/packedmap/internal/cell"
	"github.com/hupe1980/packedmap/internal/key"
)

// staleSpins bounds how often a stale cell is re-read before the whole
// operation restarts.
const staleSpins = 64

// load reads the cell at pos, re-reading while it is claimed.
func (e *Engine[K, V]) load(pos int) (cell.Snapshot[K, V], error) {
	for i := 0; ; i++ {
		snap, err := e.cells.Load(pos)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, cell.ErrStale) {
			e.cfg.logger.Error("cell protocol violated", "position", pos, "error", err)
			return snap, err
		}
		e.stats.staleReads.Add(1)
		if i >= staleSpins {
			return snap, errBusy
		}
		runtime.Gosched()
	}
}

// window is the result of routing and scanning for one key. recs holds the
// snapshots of consecutive cells starting at recs[0].Pos.
type window[K cmp.Ordered, V any] struct {
	recs  []cell.Snapshot[K, V]
	leaf  int
	found int // index of the cell holding the key, or -1
	pred  int // index of the last cell with a smaller key, or -1
	stop  int // index of the first cell with a larger key, or -1 at the active end
}

// proof returns the snapshots that establish the window: from the
// predecessor witness (or the start of the active range) to the stop cell.
func (w *window[K, V]) proof() []cell.Snapshot[K, V] {
	if w.pred >= 0 {
		return w.recs[w.pred:]
	}
	return w.recs
}

// locate routes k to a leaf and scans forward from its block start. When the
// scan finds no key at or below k the route was based on a stale threshold,
// so the scan restarts further left, doubling the distance each time.
func (e *Engine[K, V]) locate(k K) (*window[K, V], error) {
	leaf := e.tree.Route(key.Of(k))

	step := 1
	for {
		w, err := e.scan(k, leaf)
		if err != nil {
			return nil, err
		}
		if w.found >= 0 || w.pred >= 0 || leaf == 0 {
			return w, nil
		}
		leaf = max(leaf-step, 0)
		step *= 2
	}
}

func (e *Engine[K, V]) scan(k K, leaf int) (*window[K, V], error) {
	start, length := e.tree.Block(leaf)
	end := e.geo.ActiveEnd()

	w := &window[K, V]{
		recs:  make([]cell.Snapshot[K, V], 0, 2*length),
		leaf:  leaf,
		found: -1,
		pred:  -1,
		stop:  -1,
	}

	first := -1
	for pos := start; pos < end; pos++ {
		snap, err := e.load(pos)
		if err != nil {
			return nil, err
		}
		w.recs = append(w.recs, snap)
		if !snap.Occupied() {
			continue
		}

		if first < 0 && pos < start+length {
			first = len(w.recs) - 1
		}

		c := cmp.Compare(snap.Entry.Key, k)
		if c == 0 {
			w.found = len(w.recs) - 1
			break
		}
		if c > 0 {
			w.stop = len(w.recs) - 1
			break
		}
		w.pred = len(w.recs) - 1
	}

	if first >= 0 {
		e.tree.SetThreshold(leaf, key.Of(w.recs[first].Entry.Key))
	}

	return w, nil
}

// unchanged reports whether every snapshot except the one at skip still
// matches its cell.
func (e *Engine[K, V]) unchanged(recs []cell.Snapshot[K, V], skip int) bool {
	for _, r := range recs {
		if r.Pos == skip {
			continue
		}
		if !e.cells.Unchanged(r) {
			return false
		}
	}
	return true
}
