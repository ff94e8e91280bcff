package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/btree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/packedmap/internal/key"
	"github.com/hupe1980/packedmap/internal/resource"
	"github.com/hupe1980/packedmap/testutil"
)

func newEngine[K int | string, V any](t *testing.T, n int, opts ...Option) *Engine[K, V] {
	t.Helper()
	e, err := New[K, V](n, opts...)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestLayout(t *testing.T) {
	tests := []struct {
		n    int
		want Geometry
	}{
		{1, Geometry{Total: 16, ActiveStart: 4, ActiveSize: 8, BlockSize: 2, LeafCount: 4}},
		{4, Geometry{Total: 256, ActiveStart: 64, ActiveSize: 128, BlockSize: 4, LeafCount: 32}},
		{100, Geometry{Total: 65536, ActiveStart: 16384, ActiveSize: 32768, BlockSize: 8, LeafCount: 4096}},
		{10000, Geometry{Total: 131072, ActiveStart: 32768, ActiveSize: 65536, BlockSize: 16, LeafCount: 4096}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.n), func(t *testing.T) {
			got, err := Layout(tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLayoutErrors(t *testing.T) {
	for _, n := range []int{0, -3, 1 << 40} {
		_, err := Layout(n)
		var ierr *InvalidCapacityError
		require.ErrorAs(t, err, &ierr, "n=%d", n)
		assert.Equal(t, n, ierr.Requested)
	}
}

func TestMemoryBudget(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1024})
	_, err := New[int, int](100, WithResourceController(rc))
	require.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
	assert.Equal(t, int64(0), rc.MemoryUsage())

	rc = resource.NewController(resource.Config{MemoryLimitBytes: 1 << 30})
	e, err := New[int, int](100, WithResourceController(rc))
	require.NoError(t, err)
	assert.Equal(t, e.ReservedBytes(), rc.MemoryUsage())
	e.Close()
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

type restartCounter struct {
	NoopObserver
	mu  sync.Mutex
	ops []string
}

func (r *restartCounter) OnRestart(op string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func TestUncontendedRebalancesDoNotRestart(t *testing.T) {
	ctx := t.Context()
	obs := &restartCounter{}
	rc := resource.NewController(resource.Config{RetriesPerSec: 1, RetryBurst: 1})
	e := newEngine[int, int](t, 64, WithObserver(obs), WithResourceController(rc))

	start := time.Now()
	for k := 40; k >= 1; k-- {
		inserted, err := e.Upsert(ctx, k, k)
		require.NoError(t, err)
		require.True(t, inserted)
	}

	st := e.Stats()
	assert.Greater(t, st.Rebalances, int64(0))
	assert.Equal(t, int64(0), st.Restarts)
	assert.Empty(t, obs.ops)
	assert.Less(t, time.Since(start), time.Second)
	require.NoError(t, e.Validate())
}

func TestHelloWorld(t *testing.T) {
	ctx := t.Context()
	e := newEngine[int, string](t, 4)

	for _, kv := range []struct {
		k int
		v string
	}{{5, "Hello"}, {3, "World"}, {2, "!"}} {
		ok, err := e.Add(ctx, kv.k, kv.v)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	v, ok, err := e.Find(ctx, 5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Hello", v)

	_, ok, err = e.Find(ctx, 4)
	require.NoError(t, err)
	assert.False(t, ok)

	v, _, _ = e.Find(ctx, 3)
	assert.Equal(t, "World", v)
	v, _, _ = e.Find(ctx, 2)
	assert.Equal(t, "!", v)

	require.NoError(t, e.Validate())
	assert.Equal(t, 3, e.Len())
}

func TestReverseInsertsLeaveGaps(t *testing.T) {
	ctx := t.Context()
	e := newEngine[int, int](t, 4)

	for k := 4; k >= 1; k-- {
		_, err := e.Add(ctx, k, k*10)
		require.NoError(t, err)
		require.NoError(t, e.Validate())
	}

	var keys []int
	for _, c := range e.Cells() {
		if c.Entry == nil {
			continue
		}
		require.True(t, c.Active)
		keys = append(keys, c.Entry.Key)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, keys)
	assert.GreaterOrEqual(t, e.Stats().Rebalances, int64(2))

	var got []int
	for k, v := range e.All() {
		assert.Equal(t, k*10, v)
		got = append(got, k)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, got)
}

func TestOverwrite(t *testing.T) {
	ctx := t.Context()
	e := newEngine[string, int](t, 16)

	ok, err := e.Add(ctx, "k", 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Add(ctx, "k", 2)
	require.NoError(t, err)
	assert.True(t, ok)

	inserted, err := e.Upsert(ctx, "k", 3)
	require.NoError(t, err)
	assert.False(t, inserted)

	v, found, err := e.Find(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 3, v)
	assert.Equal(t, 1, e.Len())
	assert.Equal(t, int64(1), e.Stats().Inserts)
	assert.Equal(t, int64(2), e.Stats().Updates)
	assert.Equal(t, int64(1), e.Stats().Updates)
}

func TestDelete(t *testing.T) {
	ctx := t.Context()
	e := newEngine[int, int](t, 32)

	for k := range 20 {
		_, err := e.Add(ctx, k, k)
		require.NoError(t, err)
	}

	for k := 0; k < 20; k += 2 {
		removed, err := e.Delete(ctx, k)
		require.NoError(t, err)
		assert.True(t, removed)
	}

	removed, err := e.Delete(ctx, 4)
	require.NoError(t, err)
	assert.False(t, removed)

	for k := range 20 {
		_, found, err := e.Find(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, k%2 == 1, found, "key %d", k)
	}

	require.NoError(t, e.Validate())
	assert.Equal(t, 10, e.Len())
}

type intItem struct{ k, v int }

func (a intItem) Less(b btree.Item) bool { return a.k < b.(intItem).k }

func TestAgainstBTree(t *testing.T) {
	ctx := t.Context()
	rng := testutil.NewRNG(42)

	const n = 500
	e := newEngine[int, int](t, n)
	oracle := btree.New(8)

	for i := range 4 * n {
		k := rng.Intn(2 * n)
		switch rng.Intn(4) {
		case 0:
			removed, err := e.Delete(ctx, k)
			require.NoError(t, err)
			assert.Equal(t, oracle.Delete(intItem{k: k}) != nil, removed, "delete %d", k)
		default:
			if oracle.Len() >= n {
				continue
			}
			inserted, err := e.Upsert(ctx, k, i)
			require.NoError(t, err)
			assert.Equal(t, oracle.ReplaceOrInsert(intItem{k: k, v: i}) == nil, inserted, "add %d", k)
		}

		if i%200 == 0 {
			require.NoError(t, e.Validate())
		}
	}

	require.NoError(t, e.Validate())
	require.Equal(t, oracle.Len(), e.Len())

	var want []intItem
	oracle.Ascend(func(it btree.Item) bool {
		want = append(want, it.(intItem))
		return true
	})
	var got []intItem
	for k, v := range e.All() {
		got = append(got, intItem{k: k, v: v})
	}
	assert.Equal(t, want, got)

	for k := range 2 * n {
		v, found, err := e.Find(ctx, k)
		require.NoError(t, err)
		it := oracle.Get(intItem{k: k})
		require.Equal(t, it != nil, found, "find %d", k)
		if found {
			assert.Equal(t, it.(intItem).v, v)
		}
	}
}

type recordingObserver struct {
	NoopObserver
	mu    sync.Mutex
	infos []RebalanceInfo
}

func (o *recordingObserver) OnRebalance(info RebalanceInfo) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.infos = append(o.infos, info)
}

func TestRebalanceWindowsRespectDensity(t *testing.T) {
	ctx := t.Context()
	obs := &recordingObserver{}
	e := newEngine[int, int](t, 64, WithObserver(obs))
	rng := testutil.NewRNG(7)

	for range 200 {
		_, err := e.Add(ctx, rng.Intn(10_000), 0)
		require.NoError(t, err)
	}
	require.NoError(t, e.Validate())

	require.NotEmpty(t, obs.infos)
	for _, info := range obs.infos {
		require.NoError(t, info.Err)
		assert.True(t, e.Table().Admits(info.Occupied, info.Width),
			"window [%d,+%d) with %d occupants", info.Lo, info.Width, info.Occupied)
		assert.GreaterOrEqual(t, info.Lo, e.Geometry().ActiveStart)
		assert.LessOrEqual(t, info.Lo+info.Width, e.Geometry().ActiveEnd())
	}
}

func TestRebalanceOccupancyAfterInsert(t *testing.T) {
	ctx := t.Context()
	var e *Engine[int, int]
	checked := 0

	obs := &windowChecker{check: func(info RebalanceInfo) {
		occ := e.Occupancy()
		lo, hi := uint32(info.Lo), uint32(info.Lo+info.Width-1)
		n := occ.Rank(hi)
		if lo > 0 {
			n -= occ.Rank(lo - 1)
		}
		// The pending key is not stored yet.
		assert.Equal(t, info.Occupied-1, int(n))
		checked++
	}}
	e = newEngine[int, int](t, 16, WithObserver(obs))

	for k := 100; k > 0; k -= 3 {
		_, err := e.Add(ctx, k, k)
		require.NoError(t, err)
	}
	assert.Positive(t, checked)
}

type windowChecker struct {
	NoopObserver
	check func(RebalanceInfo)
}

func (w *windowChecker) OnRebalance(info RebalanceInfo) { w.check(info) }

func TestCapacity(t *testing.T) {
	ctx := t.Context()
	e := newEngine[int, int](t, 1)
	active := e.Geometry().ActiveSize

	var capErr error
	added := 0
	for k := range 4 * active {
		_, err := e.Add(ctx, k, k)
		if err != nil {
			capErr = err
			break
		}
		added++
	}

	require.ErrorIs(t, capErr, ErrCapacity)
	assert.LessOrEqual(t, added, active)
	require.NoError(t, e.Validate())

	for k := range added {
		_, found, err := e.Find(ctx, k)
		require.NoError(t, err)
		assert.True(t, found)
	}
}

func TestExplicitRebalanceSpreadsKeys(t *testing.T) {
	ctx := t.Context()
	e := newEngine[int, int](t, 4)

	for k := range 6 {
		_, err := e.Add(ctx, k, k)
		require.NoError(t, err)
	}
	// Ascending inserts pack into consecutive cells.
	before := e.Occupancy()
	assert.Equal(t, uint64(6), before.GetCardinality())

	// The run itself fits its window.
	require.NoError(t, e.Rebalance(ctx, 3))
	assert.Equal(t, before.ToArray(), e.Occupancy().ToArray())

	// The empty cells after it do not.
	require.NoError(t, e.Rebalance(ctx, 100))
	require.NoError(t, e.Validate())

	after := e.Occupancy().ToArray()
	require.Len(t, after, 6)
	assert.Greater(t, after[5]-after[0], uint32(5))
}

func TestStaleThresholdsDoNotBreakRouting(t *testing.T) {
	ctx := t.Context()
	e := newEngine[int, int](t, 128)
	rng := testutil.NewRNG(3)

	keys := make(map[int]bool)
	for range 300 {
		k := rng.Intn(100_000)
		_, err := e.Add(ctx, k, k)
		require.NoError(t, err)
		keys[k] = true
	}

	// Scramble the routing hints.
	for leaf := 1; leaf < e.Tree().LeafCount(); leaf++ {
		e.Tree().SetThreshold(leaf, key.Of(rng.Intn(100_000)))
	}

	for k := range keys {
		v, found, err := e.Find(ctx, k)
		require.NoError(t, err)
		require.True(t, found, "key %d", k)
		assert.Equal(t, k, v)
	}
	for range 200 {
		k := rng.Intn(100_000)
		_, found, err := e.Find(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, keys[k], found)
	}

	for leaf := 1; leaf < e.Tree().LeafCount(); leaf++ {
		e.Tree().SetThreshold(leaf, key.Of(rng.Intn(100_000)))
	}
	for range 100 {
		k := rng.Intn(100_000)
		_, err := e.Add(ctx, k, k)
		require.NoError(t, err)
	}
	require.NoError(t, e.Validate())
}

func TestCanceledContext(t *testing.T) {
	e := newEngine[int, int](t, 8)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, _, err := e.Find(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
	_, err = e.Add(ctx, 1, 1)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, e.Len())
}

func TestConcurrentDisjointWriters(t *testing.T) {
	const (
		workers = 8
		perW    = 200
	)
	e := newEngine[int, int](t, workers*perW)

	g, ctx := errgroup.WithContext(t.Context())
	for w := range workers {
		g.Go(func() error {
			for i := range perW {
				k := i*workers + w
				if _, err := e.Add(ctx, k, -k); err != nil {
					return err
				}
				if _, found, err := e.Find(ctx, k); err != nil || !found {
					return fmt.Errorf("read-your-write failed for %d: %v", k, err)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.NoError(t, e.Validate())
	require.Equal(t, workers*perW, e.Len())

	prev := -1
	for k, v := range e.All() {
		assert.Equal(t, prev+1, k)
		assert.Equal(t, -k, v)
		prev = k
	}
}

func TestConcurrentOverlappingWriters(t *testing.T) {
	const (
		workers = 6
		keys    = 300
	)
	e := newEngine[int, int](t, keys)

	g, ctx := errgroup.WithContext(t.Context())
	for w := range workers {
		g.Go(func() error {
			rng := testutil.NewRNG(int64(w))
			for range keys {
				k := rng.Intn(keys)
				if _, err := e.Add(ctx, k, w); err != nil {
					return err
				}
				if rng.Intn(5) == 0 {
					if _, err := e.Delete(ctx, rng.Intn(keys)); err != nil {
						return err
					}
				}
				if _, _, err := e.Find(ctx, rng.Intn(keys)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.NoError(t, e.Validate())

	n := 0
	for k, v := range e.All() {
		assert.Less(t, k, keys)
		assert.Less(t, v, workers)
		n++
	}
	assert.Equal(t, e.Len(), n)
}

func TestFindAtAndProbe(t *testing.T) {
	ctx := t.Context()
	e := newEngine[int, string](t, 16)

	for i := range 10 {
		_, err := e.Add(ctx, i*10, fmt.Sprint(i))
		require.NoError(t, err)
	}

	v, pos, ok, err := e.FindAt(ctx, 40)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "4", v)
	assert.True(t, e.Geometry().InActive(pos))

	got, ok := e.Probe(pos, 40)
	require.True(t, ok)
	assert.Equal(t, "4", got)

	_, ok = e.Probe(pos, 41)
	assert.False(t, ok)
	_, ok = e.Probe(0, 40)
	assert.False(t, ok, "buffer cells are never probed")

	_, pos, ok, err = e.FindAt(ctx, 45)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, -1, pos)
}
