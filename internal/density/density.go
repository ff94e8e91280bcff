// Package density holds the PMA occupancy envelope: for every window size
// class 2^i the fraction of occupied cells must stay within [Lower, Upper].
// Upper falls linearly from 1 at the smallest class to 1/2 at the largest,
// Lower rises from 1/8 to 1/4.
package density

import (
	"fmt"
	"math/bits"
)

// Ratio is an exact non-negative fraction.
type Ratio struct {
	Num int64
	Den int64
}

func (r Ratio) String() string { return fmt.Sprintf("%d/%d", r.Num, r.Den) }

// Float returns r as a float64, for display.
func (r Ratio) Float() float64 { return float64(r.Num) / float64(r.Den) }

// Row is the occupancy range of one window size class.
type Row struct {
	MaxItemCount int
	Lower        Ratio
	Upper        Ratio
}

// Admits reports whether occupied/count lies within the row.
func (r Row) Admits(occupied, count int) bool {
	o, c := int64(occupied), int64(count)
	return r.Lower.Num*c <= o*r.Lower.Den && o*r.Upper.Den <= r.Upper.Num*c
}

// Table is the density envelope for an active range of a fixed size.
type Table struct {
	rows []Row
}

// New builds the table for an active range of activeSize cells, which must be
// a power of two of at least 2.
func New(activeSize int) (*Table, error) {
	if activeSize < 2 || activeSize&(activeSize-1) != 0 {
		return nil, fmt.Errorf("density: active size %d is not a power of two >= 2", activeSize)
	}

	d := int64(bits.TrailingZeros(uint(activeSize)))
	rows := make([]Row, d)

	if d == 1 {
		rows[0] = Row{MaxItemCount: 2, Lower: Ratio{1, 8}, Upper: Ratio{1, 1}}
		return &Table{rows: rows}, nil
	}

	span := d - 1
	for i := int64(1); i <= d; i++ {
		rows[i-1] = Row{
			MaxItemCount: 1 << i,
			Lower:        Ratio{Num: span + (i - 1), Den: 8 * span},
			Upper:        Ratio{Num: 2*span - (i - 1), Den: 2 * span},
		}
	}

	return &Table{rows: rows}, nil
}

// Rows returns a copy of the table rows, smallest class first.
func (t *Table) Rows() []Row {
	out := make([]Row, len(t.rows))
	copy(out, t.rows)
	return out
}

// Len returns the number of size classes.
func (t *Table) Len() int { return len(t.rows) }

// RowFor returns the row of the smallest class whose MaxItemCount is at least
// count. Counts beyond the largest class map to the largest row.
func (t *Table) RowFor(count int) Row {
	if count <= 2 {
		return t.rows[0]
	}
	i := bits.Len(uint(count-1)) - 1
	if i >= len(t.rows) {
		i = len(t.rows) - 1
	}
	return t.rows[i]
}

// Admits reports whether a window of count cells with occupied cells in use
// satisfies its size class.
func (t *Table) Admits(occupied, count int) bool {
	return t.RowFor(count).Admits(occupied, count)
}
