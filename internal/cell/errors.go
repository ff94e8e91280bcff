package cell

import (
	"errors"
	"fmt"
)

var (
	// ErrStale is returned when a read races an in-flight mutation.
	ErrStale = errors.New("cell: stale read")

	// ErrClaimed is returned when a claim loses the compare-and-swap.
	ErrClaimed = errors.New("cell: already claimed")

	// ErrInvariant is the sentinel wrapped by InvariantError.
	ErrInvariant = errors.New("cell: invariant violation")
)

// InvariantError reports a quiescent cell whose version disagrees with its
// marker in a way no in-flight transition explains.
type InvariantError struct {
	Position      int
	CellVersion   uint32
	MarkerVersion uint32
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("cell %d: version %d does not match marker version %d",
		e.Position, e.CellVersion, e.MarkerVersion)
}

func (e *InvariantError) Unwrap() error { return ErrInvariant }
