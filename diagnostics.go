package packedmap

import (
	"fmt"
	"io"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/packedmap/internal/cell"
	"github.com/hupe1980/packedmap/internal/dump"
)

// Layout describes how the cell array is divided.
type Layout struct {
	// Cells is the total allocation.
	Cells int
	// ActiveStart is the first cell that may hold a key.
	ActiveStart int
	// ActiveSize is the number of cells that may hold keys.
	ActiveSize int
	// BlockSize is the number of cells owned by one tree leaf.
	BlockSize int
	// Leaves is the number of tree leaves.
	Leaves int
}

// Layout returns the array layout.
func (m *Map[K, V]) Layout() Layout {
	g := m.eng.Geometry()
	return Layout{
		Cells:       g.Total,
		ActiveStart: g.ActiveStart,
		ActiveSize:  g.ActiveSize,
		BlockSize:   g.BlockSize,
		Leaves:      g.LeafCount,
	}
}

// DensityBound is one row of the density envelope: a window of up to
// MaxCells cells must hold between Lower and Upper of them occupied.
type DensityBound struct {
	MaxCells int
	Lower    float64
	Upper    float64
}

// DensityBounds returns the density envelope, smallest windows first.
func (m *Map[K, V]) DensityBounds() []DensityBound {
	rows := m.eng.Table().Rows()
	out := make([]DensityBound, len(rows))
	for i, r := range rows {
		out[i] = DensityBound{MaxCells: r.MaxItemCount, Lower: r.Lower.Float(), Upper: r.Upper.Float()}
	}
	return out
}

// Stats is a point-in-time copy of the map counters.
type Stats struct {
	Keys          int
	Finds         int64
	Inserts       int64
	Updates       int64
	Deletes       int64
	Rebalances    int64
	Moves         int64
	Restarts      int64
	StaleReads    int64
	HintHits      int64
	HintMisses    int64
	ReservedBytes int64
}

// Stats returns the map counters.
func (m *Map[K, V]) Stats() Stats {
	s := m.eng.Stats()
	out := Stats{
		Keys:          m.eng.Len(),
		Finds:         s.Finds,
		Inserts:       s.Inserts,
		Updates:       s.Updates,
		Deletes:       s.Deletes,
		Rebalances:    s.Rebalances,
		Moves:         s.Moves,
		Restarts:      s.Restarts,
		StaleReads:    s.StaleReads,
		ReservedBytes: m.rc.MemoryUsage(),
	}
	if m.hints != nil {
		out.HintHits, out.HintMisses = m.hints.Stats()
	}
	return out
}

// Entry is a key/value pair held by a cell.
type Entry[K, V any] struct {
	Key   K
	Value V
}

// CellState is a raw view of one cell.
type CellState[K, V any] struct {
	Pos     int
	Active  bool
	Version uint32
	// Marker is the formatted marker word, e.g. "Empty(3)" or "Move(4, ->17)".
	Marker string
	// Entry is the occupant, nil for an empty cell.
	Entry *Entry[K, V]
	// Pending is the payload of an insert or delete in progress.
	Pending *Entry[K, V]
}

// Cells returns the raw state of every cell. The result is not a consistent
// snapshot while writers are active.
func (m *Map[K, V]) Cells() []CellState[K, V] {
	raw := m.eng.Cells()
	out := make([]CellState[K, V], len(raw))
	for i, c := range raw {
		out[i] = CellState[K, V]{
			Pos:     c.Pos,
			Active:  c.Active,
			Version: c.Version,
			Marker:  c.Marker.String(),
			Entry:   publicEntry(c.Entry),
			Pending: publicEntry(c.Pending),
		}
	}
	return out
}

func publicEntry[K, V any](e *cell.Entry[K, V]) *Entry[K, V] {
	if e == nil {
		return nil
	}
	return &Entry[K, V]{Key: e.Key, Value: e.Value}
}

// Occupancy returns the positions of all occupied cells.
func (m *Map[K, V]) Occupancy() *roaring.Bitmap {
	return m.eng.Occupancy()
}

// Validate checks the structural invariants of a quiescent map. It returns
// an *ErrInvariantViolation for a cell whose version and marker disagree and
// an error wrapping ErrCorrupt for any other violation.
func (m *Map[K, V]) Validate() error {
	err := translateError(m.eng.Validate())
	if err != nil {
		m.logger.Error("validation failed", "error", err)
	}
	return err
}

// TreeString renders the routing tree, one node per line.
func (m *Map[K, V]) TreeString() string {
	return m.eng.Tree().String()
}

// Compression selects the codec of a dump.
type Compression uint8

const (
	CompressionNone Compression = Compression(dump.CompressionNone)
	CompressionZSTD Compression = Compression(dump.CompressionZSTD)
	CompressionLZ4  Compression = Compression(dump.CompressionLZ4)
)

func (c Compression) String() string { return dump.Compression(c).String() }

// ParseCompression maps "none", "zstd" or "lz4" to a Compression.
func ParseCompression(s string) (Compression, error) {
	c, err := dump.ParseCompression(s)
	return Compression(c), err
}

// DumpOption configures Dump.
type DumpOption func(*dump.Options)

// DumpCompressed compresses the dump with c.
func DumpCompressed(c Compression) DumpOption {
	return func(o *dump.Options) {
		o.Compression = dump.Compression(c)
	}
}

// DumpZSTDLevel sets the zstd level (1-22) of a compressed dump.
func DumpZSTDLevel(level int) DumpOption {
	return func(o *dump.Options) {
		o.ZSTDLevel = level
	}
}

// DumpOccupiedOnly omits empty, unclaimed cells.
func DumpOccupiedOnly() DumpOption {
	return func(o *dump.Options) {
		o.OnlyOccupied = true
	}
}

// Dump writes every cell as one row of a text table to w.
func (m *Map[K, V]) Dump(w io.Writer, optFns ...DumpOption) error {
	var o dump.Options
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}

	g := m.eng.Geometry()
	h := dump.Header{
		Cells:       g.Total,
		ActiveStart: g.ActiveStart,
		ActiveEnd:   g.ActiveEnd(),
		LeafCount:   g.LeafCount,
		BlockSize:   g.BlockSize,
		Keys:        m.eng.Len(),
	}

	raw := m.eng.Cells()
	rows := make([]dump.Row, len(raw))
	for i, c := range raw {
		r := dump.Row{Pos: c.Pos, Active: c.Active, Version: c.Version, Marker: c.Marker.String()}
		if c.Entry != nil {
			r.Key, r.Value = fmt.Sprint(c.Entry.Key), fmt.Sprint(c.Entry.Value)
		}
		if c.Pending != nil {
			r.Pending = fmt.Sprintf("%v=%v", c.Pending.Key, c.Pending.Value)
		}
		rows[i] = r
	}

	return dump.Write(w, h, rows, o)
}
