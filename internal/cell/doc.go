// Package cell implements the versioned cell array behind the packed memory
// array and its single-cell mutation protocol.
//
// # Marker word
//
// Every cell carries a plain version counter and a marker. The marker is one
// atomic 64-bit word:
//
//	bits 63..32  version
//	bits 31..29  tag (Empty, Move, Insert, Delete)
//	bits 28..0   aux (Move destination)
//
// A quiescent cell has marker Empty(v) and version v. A writer claims the cell
// with a compare-and-swap from Empty(v) to tag(v+1); every terminal transition
// stores Empty(v+2) and then publishes version v+2. Because the version is part
// of the word, a word can never be reused while a reader may still hold it,
// so no marker memory is allocated or recycled.
//
// # Reads
//
// Load reads marker, version, occupant and marker again. The read is valid only
// if both marker reads are identical, the tag is Empty and the marker version
// equals the cell version.
package cell
