package cell

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"
)

const (
	// releaseSpins and releaseGrace bound the wait for a release to publish
	// the version after its marker.
	releaseSpins = 128
	releaseGrace = 10 * time.Millisecond
)

// Entry is an immutable key/value occupant.
type Entry[K, V any] struct {
	Key   K
	Value V
}

type cell[K, V any] struct {
	version atomic.Uint32
	marker  atomic.Uint64
	entry   atomic.Pointer[Entry[K, V]]
	// pending is the payload of an Insert or Delete claim, kept for dumps.
	pending atomic.Pointer[Entry[K, V]]
}

// Store is a fixed-size array of cells.
type Store[K, V any] struct {
	cells []cell[K, V]
}

// NewStore allocates n cells, each at version 1 with marker Empty(1).
func NewStore[K, V any](n int) (*Store[K, V], error) {
	if n < 1 || n > MaxCells {
		return nil, fmt.Errorf("cell: store size %d out of range [1, %d]", n, MaxCells)
	}

	s := &Store[K, V]{cells: make([]cell[K, V], n)}
	for i := range s.cells {
		s.cells[i].version.Store(1)
		s.cells[i].marker.Store(uint64(Pack(1, Empty, 0)))
	}

	return s, nil
}

// Len returns the number of cells.
func (s *Store[K, V]) Len() int { return len(s.cells) }

// Snapshot is a validated view of one cell.
type Snapshot[K, V any] struct {
	Pos    int
	Marker Marker
	Entry  *Entry[K, V]
}

// Occupied reports whether the cell held an occupant.
func (s Snapshot[K, V]) Occupied() bool { return s.Entry != nil }

// Load performs a validated read of the cell at pos.
func (s *Store[K, V]) Load(pos int) (Snapshot[K, V], error) {
	c := &s.cells[pos]

	m1 := Marker(c.marker.Load())
	ver := c.version.Load()
	e := c.entry.Load()
	m2 := Marker(c.marker.Load())

	if m1 != m2 || m1.Tag() != Empty {
		return Snapshot[K, V]{}, ErrStale
	}

	mv := m1.Version()
	if mv != ver {
		// A release stores the marker before it publishes the version.
		if mv-ver == 2 && c.releasing(m1, ver) {
			return Snapshot[K, V]{}, ErrStale
		}
		return Snapshot[K, V]{}, &InvariantError{Position: pos, CellVersion: ver, MarkerVersion: mv}
	}

	return Snapshot[K, V]{Pos: pos, Marker: m1, Entry: e}, nil
}

// releasing reports whether a cell seen with marker m and version ver is in
// the middle of a release, that is whether the version or the marker moves
// on within a bounded wait. A cell stuck in that state is out of sync.
func (c *cell[K, V]) releasing(m Marker, ver uint32) bool {
	moved := func() bool {
		return c.version.Load() != ver || Marker(c.marker.Load()) != m
	}
	for range releaseSpins {
		if moved() {
			return true
		}
		runtime.Gosched()
	}
	time.Sleep(releaseGrace)
	return moved()
}

// Unchanged reports whether the cell still carries the marker word it was
// read with. Since every transition bumps the version, an identical word
// means an identical occupant.
func (s *Store[K, V]) Unchanged(snap Snapshot[K, V]) bool {
	return Marker(s.cells[snap.Pos].marker.Load()) == snap.Marker
}

// Claim takes ownership of the cell described by snap. It fails with
// ErrClaimed when the cell changed since snap was taken.
func (s *Store[K, V]) Claim(snap Snapshot[K, V], tag Tag, aux uint32, pending *Entry[K, V]) (Claim[K, V], error) {
	v := snap.Marker.Version()
	c := &s.cells[snap.Pos]

	if !c.marker.CompareAndSwap(uint64(snap.Marker), uint64(Pack(v+1, tag, aux))) {
		return Claim[K, V]{}, ErrClaimed
	}
	if pending != nil {
		c.pending.Store(pending)
	}

	return Claim[K, V]{store: s, pos: snap.Pos, version: v + 1, tag: tag, entry: snap.Entry}, nil
}

// State is a raw, unvalidated view of a cell for diagnostics.
type State[K, V any] struct {
	Version uint32
	Marker  Marker
	Entry   *Entry[K, V]
	Pending *Entry[K, V]
}

// Peek returns the raw state of the cell at pos without validation.
func (s *Store[K, V]) Peek(pos int) State[K, V] {
	c := &s.cells[pos]
	return State[K, V]{
		Version: c.version.Load(),
		Marker:  Marker(c.marker.Load()),
		Entry:   c.entry.Load(),
		Pending: c.pending.Load(),
	}
}
