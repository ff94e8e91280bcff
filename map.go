package packedmap

import (
	"cmp"
	"context"
	"iter"
	"sync/atomic"
	"time"

	"github.com/hupe1980/packedmap/internal/engine"
	"github.com/hupe1980/packedmap/internal/hintcache"
	"github.com/hupe1980/packedmap/internal/resource"
	"github.com/hupe1980/packedmap/internal/retry"
)

// Map is a concurrent ordered map backed by a packed memory array.
type Map[K cmp.Ordered, V any] struct {
	eng     *engine.Engine[K, V]
	hints   *hintcache.Cache[K] // nil unless WithLookupCache is set
	rc      *resource.Controller
	logger  *Logger
	metrics MetricsCollector
	closed  atomic.Bool
}

// New creates a map provisioned for expectedKeys keys. The array never
// grows: inserts beyond what the provisioned size can hold fail with
// ErrCapacity.
func New[K cmp.Ordered, V any](expectedKeys int, optFns ...Option) (*Map[K, V], error) {
	o := applyOptions(optFns)

	rc := resource.NewController(resource.Config{
		MemoryLimitBytes:        o.memoryLimit,
		MaxConcurrentRebalances: o.maxConcurrentRebalances,
		RetriesPerSec:           o.retriesPerSec,
		RetryBurst:              o.retryBurst,
	})

	eng, err := engine.New[K, V](expectedKeys,
		engine.WithLogger(o.logger.Logger),
		engine.WithObserver(observer{metrics: o.metricsCollector, logger: o.logger}),
		engine.WithResourceController(rc),
		engine.WithRetryPolicy(retry.Policy{
			MaxRetries:      o.maxRetries,
			InitialInterval: o.initialInterval,
			MaxInterval:     o.maxInterval,
		}),
	)
	if err != nil {
		err = translateError(err)
		o.logger.Error("create failed", "expected_keys", expectedKeys, "error", err)
		return nil, err
	}

	m := &Map[K, V]{
		eng:     eng,
		rc:      rc,
		logger:  o.logger,
		metrics: o.metricsCollector,
	}

	if o.lookupCacheSize > 0 {
		hints, err := hintcache.New[K](o.lookupCacheSize)
		if err != nil {
			eng.Close()
			return nil, err
		}
		m.hints = hints
	}

	geo := eng.Geometry()
	o.logger.Info("map created",
		"expected_keys", expectedKeys,
		"capacity", geo.ActiveSize,
		"reserved_bytes", eng.ReservedBytes(),
	)

	return m, nil
}

// Find returns the value stored under k.
func (m *Map[K, V]) Find(ctx context.Context, k K) (V, bool, error) {
	start := time.Now()
	v, found, err := m.find(ctx, k)
	m.metrics.RecordFind(time.Since(start), found, err)
	m.logger.LogFind(ctx, k, found, err)
	return v, found, err
}

func (m *Map[K, V]) find(ctx context.Context, k K) (V, bool, error) {
	var zero V
	if m.closed.Load() {
		return zero, false, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}

	if m.hints != nil {
		if pos, ok := m.hints.Get(k); ok {
			if v, ok := m.eng.Probe(pos, k); ok {
				return v, true, nil
			}
			m.hints.Forget(k)
		}
	}

	v, pos, found, err := m.eng.FindAt(ctx, k)
	if err != nil {
		return zero, false, translateError(err)
	}
	if found && m.hints != nil {
		m.hints.Put(k, pos)
	}
	return v, found, nil
}

// Add stores value under k. An existing key keeps its cell and gets the new
// value. It reports true on success; a full map returns ErrCapacity.
func (m *Map[K, V]) Add(ctx context.Context, k K, value V) (bool, error) {
	if _, err := m.upsert(ctx, k, value); err != nil {
		return false, err
	}
	return true, nil
}

// Upsert is Add that reports whether k was newly inserted rather than
// updated in place.
func (m *Map[K, V]) Upsert(ctx context.Context, k K, value V) (bool, error) {
	return m.upsert(ctx, k, value)
}

func (m *Map[K, V]) upsert(ctx context.Context, k K, value V) (bool, error) {
	start := time.Now()

	var (
		inserted bool
		err      error
	)
	if m.closed.Load() {
		err = ErrClosed
	} else {
		inserted, err = m.eng.Upsert(ctx, k, value)
		err = translateError(err)
	}

	m.metrics.RecordAdd(time.Since(start), inserted, err)
	m.logger.LogAdd(ctx, k, inserted, err)
	return inserted, err
}

// Delete removes k. It reports whether k was present.
func (m *Map[K, V]) Delete(ctx context.Context, k K) (bool, error) {
	start := time.Now()

	var (
		removed bool
		err     error
	)
	if m.closed.Load() {
		err = ErrClosed
	} else {
		removed, err = m.eng.Delete(ctx, k)
		err = translateError(err)
		if m.hints != nil {
			m.hints.Forget(k)
		}
	}

	m.metrics.RecordDelete(time.Since(start), removed, err)
	m.logger.LogDelete(ctx, k, removed, err)
	return removed, err
}

// Rebalance spreads out the window around the cell k occupies or would be
// inserted at, if that window is denser than its envelope allows.
func (m *Map[K, V]) Rebalance(ctx context.Context, k K) error {
	if m.closed.Load() {
		return ErrClosed
	}
	return translateError(m.eng.Rebalance(ctx, k))
}

// Len returns the number of stored keys.
func (m *Map[K, V]) Len() int { return m.eng.Len() }

// Capacity returns the number of cells in the active range.
func (m *Map[K, V]) Capacity() int { return m.eng.Geometry().ActiveSize }

// All yields the stored pairs in ascending key order.
//
// While writers are active a concurrently moved key may be skipped, but no
// key is yielded twice or out of order.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return m.eng.All()
}

// Close releases the memory reservation and the lookup cache. The map must
// not be used concurrently with Close; later calls return ErrClosed.
func (m *Map[K, V]) Close() error {
	if m == nil || !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.eng.Close()
	if m.hints != nil {
		m.hints.Close()
	}
	return nil
}
