package engine

import (
	"cmp"
	"context"
	"time"

	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/packedmap/internal/cell"
	"github.com/hupe1980/packedmap/internal/conv"
	"github.com/hupe1980/packedmap/internal/key"
)

// hintScanLimit bounds the cells read past a window to find the threshold of
// a leaf whose block lost all its keys.
const hintScanLimit = 64

// rebalance claims a window grown from anchor until its occupancy fits the
// density envelope, spreads the occupants evenly towards the right edge and
// releases the window. With insert set, the occupancy counts the pending key
// and the slot at its rank is left empty.
func (e *Engine[K, V]) rebalance(ctx context.Context, anchor int, k K, insert bool) (err error) {
	if err := e.cfg.resources.AcquireRebalance(ctx); err != nil {
		return err
	}
	defer e.cfg.resources.ReleaseRebalance()

	info := RebalanceInfo{Insert: insert}
	began := time.Now()
	defer func() {
		if !isTransient(err) {
			info.Duration = time.Since(began)
			info.Err = err
			e.cfg.observer.OnRebalance(info)
		}
	}()

	claims, lo, occupied, err := e.claimWindow(anchor, insert)
	if err != nil {
		return err
	}

	moved := e.redistribute(claims, lo, k, insert)
	e.refreshThresholds(claims, lo)

	for i := range claims {
		claims[i].Release()
	}

	info.Lo, info.Width, info.Occupied, info.Moved = lo, len(claims), occupied, moved

	e.stats.rebalances.Add(1)
	e.stats.moves.Add(int64(moved))

	e.cfg.logger.Debug("rebalanced window",
		"anchor", anchor,
		"lo", lo,
		"hi", lo+len(claims)-1,
		"moved", moved,
		"insert", insert,
	)

	return nil
}

// claimWindow grows a window from anchor, rightwards until the end of the
// active range and then leftwards, claiming each cell as it joins. It returns
// the claims in ascending position order, the first position and the
// occupancy that was admitted.
func (e *Engine[K, V]) claimWindow(anchor int, insert bool) ([]cell.Claim[K, V], int, int, error) {
	start, end := e.geo.ActiveStart, e.geo.ActiveEnd()

	right := make([]cell.Claim[K, V], 0, 4*e.geo.BlockSize)
	var left []cell.Claim[K, V]

	abort := func() {
		for i := range right {
			right[i].Abort()
		}
		for i := range left {
			left[i].Abort()
		}
	}

	occupied := 0
	if insert {
		occupied = 1
	}

	lo, hi := anchor, anchor-1
grow:
	for {
		var pos int
		switch {
		case hi+1 < end:
			hi++
			pos = hi
		case lo-1 >= start:
			lo--
			pos = lo
		case insert:
			abort()
			return nil, 0, 0, ErrCapacity
		default:
			// Without a pending key the whole range is spread as is.
			break grow
		}

		snap, err := e.load(pos)
		if err != nil {
			abort()
			return nil, 0, 0, err
		}
		aux, err := conv.IntToUint32(pos)
		if err != nil {
			abort()
			return nil, 0, 0, err
		}
		c, err := e.cells.Claim(snap, cell.Move, aux, nil)
		if err != nil {
			abort()
			return nil, 0, 0, errConflict
		}
		if pos == lo && pos != anchor {
			left = append(left, c)
		} else {
			right = append(right, c)
		}

		if snap.Occupied() {
			occupied++
		}
		if e.table.Admits(occupied, hi-lo+1) {
			break
		}
	}

	claims := make([]cell.Claim[K, V], 0, len(left)+len(right))
	for i := len(left) - 1; i >= 0; i-- {
		claims = append(claims, left[i])
	}
	claims = append(claims, right...)

	return claims, lo, occupied, nil
}

// redistribute spreads the occupants of a claimed window evenly, aligned to
// its right edge. With insert set, one extra slot is reserved at the rank of k.
// It returns the number of relocated occupants.
func (e *Engine[K, V]) redistribute(claims []cell.Claim[K, V], lo int, k K, insert bool) int {
	w := len(claims)

	occ := bitset.New(uint(w))
	for i := range claims {
		if claims[i].Entry() != nil {
			occ.Set(uint(i))
		}
	}

	n := int(occ.Count())
	entries := make([]*cell.Entry[K, V], 0, n)
	src := make([]int, 0, n)
	for i, ok := occ.NextSet(0); ok; i, ok = occ.NextSet(i + 1) {
		entries = append(entries, claims[i].Entry())
		src = append(src, int(i))
	}

	slots := n
	rank := n
	if insert {
		slots = n + 1
		rank = 0
		for rank < n && cmp.Less(entries[rank].Key, k) {
			rank++
		}
	}
	if slots == 0 {
		return 0
	}

	dst := make([]int, n)
	for i := range entries {
		s := i
		if i >= rank {
			s = i + 1
		}
		dst[i] = w - 1 - (slots-1-s)*w/slots
	}

	moved := 0
	move := func(i int) {
		claims[src[i]].Retarget(lo + dst[i])
		claims[dst[i]].Write(entries[i])
		claims[src[i]].Write(nil)
		moved++
	}

	// Right movers from the right, left movers from the left, so no occupant
	// is overwritten before it has been moved.
	for i := n - 1; i >= 0; i-- {
		if dst[i] > src[i] {
			move(i)
		}
	}
	for i := 0; i < n; i++ {
		if dst[i] < src[i] {
			move(i)
		}
	}

	return moved
}

// refreshThresholds recomputes the hints of the leaves whose block starts
// inside the claimed window.
func (e *Engine[K, V]) refreshThresholds(claims []cell.Claim[K, V], lo int) {
	hi := lo + len(claims) - 1

	for leaf := e.tree.LeafOf(lo); leaf < e.tree.LeafCount(); leaf++ {
		start, _ := e.tree.Block(leaf)
		if start > hi {
			break
		}
		if start < lo {
			continue
		}

		if k, ok := firstKey(claims[start-lo:]); ok {
			e.tree.SetThreshold(leaf, key.Of(k))
			continue
		}
		if k, ok, known := e.firstKeyAfter(hi + 1); known {
			if ok {
				e.tree.SetThreshold(leaf, key.Of(k))
			} else {
				e.tree.SetThreshold(leaf, key.Supremum[K]())
			}
		}
	}
}

func firstKey[K cmp.Ordered, V any](claims []cell.Claim[K, V]) (K, bool) {
	for i := range claims {
		if ent := claims[i].Current(); ent != nil {
			return ent.Key, true
		}
	}
	var zero K
	return zero, false
}

// firstKeyAfter returns the first key at or after pos. known is false when the
// answer could not be established within hintScanLimit validated reads.
func (e *Engine[K, V]) firstKeyAfter(pos int) (k K, ok, known bool) {
	end := e.geo.ActiveEnd()
	for i := 0; pos < end; pos, i = pos+1, i+1 {
		if i >= hintScanLimit {
			return k, false, false
		}
		snap, err := e.cells.Load(pos)
		if err != nil {
			return k, false, false
		}
		if snap.Occupied() {
			return snap.Entry.Key, true, true
		}
	}
	return k, false, true
}
