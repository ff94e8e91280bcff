package packedmap

import (
	"errors"
	"fmt"

	"github.com/hupe1980/packedmap/internal/cell"
	"github.com/hupe1980/packedmap/internal/engine"
	"github.com/hupe1980/packedmap/internal/resource"
)

var (
	// ErrContention is returned when an operation lost too many races in a
	// row and its retry budget ran out.
	ErrContention = errors.New("packedmap: contention retry budget exhausted")

	// ErrCapacity is returned when an insert does not fit into the
	// provisioned array.
	ErrCapacity = errors.New("packedmap: capacity exhausted")

	// ErrMemoryLimitExceeded is returned by New when the memory budget
	// rejects the allocation.
	ErrMemoryLimitExceeded = errors.New("packedmap: memory limit exceeded")

	// ErrCorrupt is returned by Validate when a structural invariant does not
	// hold.
	ErrCorrupt = errors.New("packedmap: structure corrupt")

	// ErrClosed is returned by operations on a closed map.
	ErrClosed = errors.New("packedmap: map is closed")
)

// ErrInvalidCapacity indicates an expected key count that cannot be
// provisioned.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidCapacity struct {
	Requested int
	cause     error
}

func (e *ErrInvalidCapacity) Error() string {
	return fmt.Sprintf("invalid capacity: %d", e.Requested)
}

func (e *ErrInvalidCapacity) Unwrap() error { return e.cause }

// ErrInvariantViolation indicates a cell whose version and marker disagree
// in a way no mutation in progress explains.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvariantViolation struct {
	Position      int
	CellVersion   uint32
	MarkerVersion uint32
	cause         error
}

func (e *ErrInvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation at cell %d: cell version %d, marker version %d",
		e.Position, e.CellVersion, e.MarkerVersion)
}

func (e *ErrInvariantViolation) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var ic *engine.InvalidCapacityError
	if errors.As(err, &ic) {
		return &ErrInvalidCapacity{Requested: ic.Requested, cause: err}
	}
	var iv *cell.InvariantError
	if errors.As(err, &iv) {
		return &ErrInvariantViolation{
			Position:      iv.Position,
			CellVersion:   iv.CellVersion,
			MarkerVersion: iv.MarkerVersion,
			cause:         err,
		}
	}

	switch {
	case errors.Is(err, engine.ErrContention):
		return fmt.Errorf("%w: %w", ErrContention, err)
	case errors.Is(err, engine.ErrCapacity):
		return fmt.Errorf("%w: %w", ErrCapacity, err)
	case errors.Is(err, resource.ErrMemoryLimitExceeded):
		return fmt.Errorf("%w: %w", ErrMemoryLimitExceeded, err)
	case errors.Is(err, engine.ErrCorrupt):
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	return err
}
