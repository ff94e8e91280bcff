package cell

import "fmt"

// Tag identifies the pending mutation of a claimed cell.
type Tag uint8

const (
	// Empty means no mutation is in flight.
	Empty Tag = iota
	// Move holds the cell for a rebalance; aux is the destination position.
	Move
	// Insert writes a new occupant.
	Insert
	// Delete removes the occupant.
	Delete
)

func (t Tag) String() string {
	switch t {
	case Empty:
		return "Empty"
	case Move:
		return "Move"
	case Insert:
		return "Insert"
	case Delete:
		return "Delete"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

const (
	auxBits = 29
	tagBits = 3

	auxMask = 1<<auxBits - 1
	tagMask = 1<<tagBits - 1
)

// MaxCells is the largest array a marker can address.
const MaxCells = 1 << auxBits

// Marker is the packed (version, tag, aux) word of a cell.
type Marker uint64

// Pack builds a marker word. aux is truncated to 29 bits.
func Pack(version uint32, tag Tag, aux uint32) Marker {
	return Marker(uint64(version)<<32 | uint64(tag&tagMask)<<auxBits | uint64(aux&auxMask))
}

// Version returns the marker version.
func (m Marker) Version() uint32 { return uint32(m >> 32) }

// Tag returns the marker tag.
func (m Marker) Tag() Tag { return Tag(m>>auxBits) & tagMask }

// Aux returns the auxiliary payload (the Move destination).
func (m Marker) Aux() uint32 { return uint32(m) & auxMask }

func (m Marker) String() string {
	if m.Tag() == Move {
		return fmt.Sprintf("%s(%d, ->%d)", m.Tag(), m.Version(), m.Aux())
	}
	return fmt.Sprintf("%s(%d)", m.Tag(), m.Version())
}
