package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/packedmap/internal/cell"
	"github.com/hupe1980/packedmap/internal/key"
	"github.com/hupe1980/packedmap/internal/retry"
)

// Find returns the value stored under k.
func (e *Engine[K, V]) Find(ctx context.Context, k K) (V, bool, error) {
	v, _, ok, err := e.FindAt(ctx, k)
	return v, ok, err
}

// FindAt is Find that also returns the position k was read from, or -1.
func (e *Engine[K, V]) FindAt(ctx context.Context, k K) (V, int, bool, error) {
	e.stats.finds.Add(1)

	var (
		value V
		pos   = -1
	)
	err := e.run(ctx, "find", func() error {
		w, err := e.locate(k)
		if err != nil {
			return err
		}
		if w.found >= 0 {
			rec := w.recs[w.found]
			value, pos = rec.Entry.Value, rec.Pos
			return nil
		}
		if !e.unchanged(w.proof(), -1) {
			return errConflict
		}
		return nil
	})

	return value, pos, pos >= 0, err
}

// Probe performs one validated read of pos and returns its value when the
// cell holds k. A miss says nothing about whether k is stored elsewhere.
func (e *Engine[K, V]) Probe(pos int, k K) (V, bool) {
	var zero V
	if !e.geo.InActive(pos) {
		return zero, false
	}
	snap, err := e.cells.Load(pos)
	if err != nil || !snap.Occupied() || cmp.Compare(snap.Entry.Key, k) != 0 {
		return zero, false
	}
	e.stats.finds.Add(1)
	return snap.Entry.Value, true
}

// relocateLimit bounds how often one attempt re-routes after a rebalance it
// ran itself before the conflict is handed to the retry policy.
const relocateLimit = 4

// Add stores value under k. An existing key is updated in place. It reports
// true on success; capacity exhaustion and contention surface as errors.
func (e *Engine[K, V]) Add(ctx context.Context, k K, value V) (bool, error) {
	if _, err := e.Upsert(ctx, k, value); err != nil {
		return false, err
	}
	return true, nil
}

// Upsert is Add that reports whether k was newly inserted rather than
// updated.
func (e *Engine[K, V]) Upsert(ctx context.Context, k K, value V) (bool, error) {
	entry := &cell.Entry[K, V]{Key: k, Value: value}

	inserted := false
	err := e.run(ctx, "add", func() error {
		for pass := 0; ; pass++ {
			w, err := e.locate(k)
			if err != nil {
				return err
			}

			if w.found >= 0 {
				c, err := e.cells.Claim(w.recs[w.found], cell.Insert, 0, entry)
				if err != nil {
					return errConflict
				}
				c.Commit(entry)
				e.stats.updates.Add(1)
				return nil
			}

			target, anchor := e.target(w)
			if anchor >= 0 {
				if pass >= relocateLimit {
					return errRestructured
				}
				if err := e.rebalance(ctx, anchor, k, true); err != nil {
					return err
				}
				continue
			}

			snap := w.recs[target]
			c, err := e.cells.Claim(snap, cell.Insert, 0, entry)
			if err != nil {
				return errConflict
			}
			if !e.unchanged(w.proof(), snap.Pos) {
				c.Abort()
				return errConflict
			}
			c.Commit(entry)

			e.tree.LowerThreshold(e.tree.LeafOf(snap.Pos), key.Of(k))
			e.count.Add(1)
			e.stats.inserts.Add(1)
			inserted = true
			return nil
		}
	})

	return inserted, err
}

// target picks the cell a new key should go to. It returns the index of that
// cell in w.recs, or an anchor position when the neighbourhood is full and a
// rebalance has to make room first.
func (e *Engine[K, V]) target(w *window[K, V]) (idx, anchor int) {
	if w.pred >= 0 {
		p := w.recs[w.pred].Pos
		if p+1 >= e.geo.ActiveEnd() {
			return -1, p
		}
		next := w.pred + 1
		if w.recs[next].Occupied() {
			return -1, w.recs[next].Pos
		}
		return next, -1
	}

	// No predecessor: the scan started at the active start.
	switch {
	case w.stop < 0:
		return 0, -1
	case w.stop == 0:
		return -1, w.recs[0].Pos
	default:
		return w.stop - 1, -1
	}
}

// Delete removes k. It reports whether k was present.
func (e *Engine[K, V]) Delete(ctx context.Context, k K) (bool, error) {
	removed := false
	err := e.run(ctx, "delete", func() error {
		w, err := e.locate(k)
		if err != nil {
			return err
		}

		if w.found < 0 {
			if !e.unchanged(w.proof(), -1) {
				return errConflict
			}
			return nil
		}

		snap := w.recs[w.found]
		c, err := e.cells.Claim(snap, cell.Delete, 0, snap.Entry)
		if err != nil {
			return errConflict
		}
		c.Clear()

		e.count.Add(-1)
		e.stats.deletes.Add(1)
		removed = true
		return nil
	})

	return removed, err
}

// Rebalance restores the density envelope around the cell k occupies or
// would be inserted at, without reserving room for an insertion. It is a
// no-op when that cell's window already fits.
func (e *Engine[K, V]) Rebalance(ctx context.Context, k K) error {
	return e.run(ctx, "rebalance", func() error {
		w, err := e.locate(k)
		if err != nil {
			return err
		}
		anchor := w.recs[0].Pos
		switch {
		case w.found >= 0:
			anchor = w.recs[w.found].Pos
		case w.pred >= 0:
			anchor = min(w.recs[w.pred].Pos+1, e.geo.ActiveEnd()-1)
		}
		return e.rebalance(ctx, anchor, k, false)
	})
}

// run executes op under the retry policy. errBusy, errConflict and
// errRestructured restart the operation; a rebalance an attempt completes
// itself does not.
func (e *Engine[K, V]) run(ctx context.Context, name string, op func() error) error {
	p := e.cfg.retry
	p.Throttle = e.cfg.resources.WaitRetry
	p.OnRetry = func(err error, _ time.Duration) {
		e.stats.restarts.Add(1)
		e.cfg.observer.OnRestart(name, err)
	}

	err := retry.Do(ctx, p, func(int) error {
		err := op()
		if isTransient(err) {
			return retry.Again(err)
		}
		return err
	})

	if errors.Is(err, retry.ErrExhausted) {
		e.cfg.logger.Warn("operation abandoned after contention", "op", name, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrContention, name, err)
	}
	return err
}

func isTransient(err error) bool {
	return errors.Is(err, errBusy) || errors.Is(err, errConflict) || errors.Is(err, errRestructured)
}
