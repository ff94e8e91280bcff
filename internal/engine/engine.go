package engine

import (
	"cmp"
	"log/slog"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"

	"github.com/hupe1980/packedmap/internal/cell"
	"github.com/hupe1980/packedmap/internal/density"
	"github.com/hupe1980/packedmap/internal/resource"
	"github.com/hupe1980/packedmap/internal/tree"
)

// Engine is a concurrent packed memory array keyed by K.
type Engine[K cmp.Ordered, V any] struct {
	geo   Geometry
	cells *cell.Store[K, V]
	tree  *tree.Tree[K]
	table *density.Table
	cfg   config

	reserved int64

	_     cpu.CacheLinePad
	count atomic.Int64
	_     cpu.CacheLinePad
	stats counters
}

// New provisions an engine for expectedKeys keys.
func New[K cmp.Ordered, V any](expectedKeys int, opts ...Option) (*Engine[K, V], error) {
	cfg := config{observer: NoopObserver{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	if cfg.observer == nil {
		cfg.observer = NoopObserver{}
	}

	geo, err := Layout(expectedKeys)
	if err != nil {
		return nil, err
	}

	reserved := int64(geo.Total)*int64(unsafe.Sizeof(cellFootprint[K, V]{})) +
		int64(2*geo.LeafCount)*nodeFootprint
	if err := cfg.resources.AcquireMemory(reserved); err != nil {
		return nil, err
	}

	table, err := density.New(geo.ActiveSize)
	if err != nil {
		cfg.resources.ReleaseMemory(reserved)
		return nil, err
	}

	t, err := tree.Build[K](geo.LeafCount, geo.BlockSize, geo.ActiveStart)
	if err != nil {
		cfg.resources.ReleaseMemory(reserved)
		return nil, err
	}

	cells, err := cell.NewStore[K, V](geo.Total)
	if err != nil {
		cfg.resources.ReleaseMemory(reserved)
		return nil, err
	}

	cfg.logger.Debug("packed memory array provisioned",
		"expected_keys", expectedKeys,
		"cells", geo.Total,
		"active_start", geo.ActiveStart,
		"active_size", geo.ActiveSize,
		"block_size", geo.BlockSize,
		"leaves", geo.LeafCount,
		"reserved_bytes", reserved,
	)

	return &Engine[K, V]{
		geo:      geo,
		cells:    cells,
		tree:     t,
		table:    table,
		cfg:      cfg,
		reserved: reserved,
	}, nil
}

// cellFootprint mirrors the per-cell memory of a Store.
type cellFootprint[K, V any] struct {
	version uint32
	marker  uint64
	entry   *cell.Entry[K, V]
	pending *cell.Entry[K, V]
}

// nodeFootprint approximates one tree node plus its share of a threshold.
const nodeFootprint = 24

// Close returns the memory reservation. The engine must not be used after.
func (e *Engine[K, V]) Close() {
	e.cfg.resources.ReleaseMemory(e.reserved)
	e.reserved = 0
}

// Geometry returns the array layout.
func (e *Engine[K, V]) Geometry() Geometry { return e.geo }

// Len returns the number of stored keys.
func (e *Engine[K, V]) Len() int { return int(e.count.Load()) }

// ReservedBytes returns the bytes reserved against the memory budget.
func (e *Engine[K, V]) ReservedBytes() int64 { return e.reserved }

// Table returns the density envelope.
func (e *Engine[K, V]) Table() *density.Table { return e.table }

// Tree returns the routing tree.
func (e *Engine[K, V]) Tree() *tree.Tree[K] { return e.tree }

// Resources returns the resource controller, which may be nil.
func (e *Engine[K, V]) Resources() *resource.Controller { return e.cfg.resources }

type counters struct {
	finds      atomic.Int64
	inserts    atomic.Int64
	updates    atomic.Int64
	deletes    atomic.Int64
	rebalances atomic.Int64
	moves      atomic.Int64
	restarts   atomic.Int64
	staleReads atomic.Int64
}

// Stats is a point-in-time copy of the engine counters.
type Stats struct {
	Finds      int64
	Inserts    int64
	Updates    int64
	Deletes    int64
	Rebalances int64
	Moves      int64
	Restarts   int64
	StaleReads int64
}

// Stats returns the engine counters.
func (e *Engine[K, V]) Stats() Stats {
	return Stats{
		Finds:      e.stats.finds.Load(),
		Inserts:    e.stats.inserts.Load(),
		Updates:    e.stats.updates.Load(),
		Deletes:    e.stats.deletes.Load(),
		Rebalances: e.stats.rebalances.Load(),
		Moves:      e.stats.moves.Load(),
		Restarts:   e.stats.restarts.Load(),
		StaleReads: e.stats.staleReads.Load(),
	}
}
