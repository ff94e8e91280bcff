package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacity is returned when a rebalance window would have to grow past
	// the active range.
	ErrCapacity = errors.New("engine: capacity exhausted")

	// ErrContention is returned when an operation is still contended after the
	// retry budget is spent.
	ErrContention = errors.New("engine: contention")

	errBusy         = errors.New("cell busy")
	errConflict     = errors.New("concurrent modification")
	errRestructured = errors.New("window rebalanced")
)

// InvalidCapacityError is returned by New for key counts that cannot be
// provisioned.
type InvalidCapacityError struct {
	Requested int
	cause     error
}

func (e *InvalidCapacityError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("engine: invalid capacity %d: %v", e.Requested, e.cause)
	}
	return fmt.Sprintf("engine: invalid capacity %d", e.Requested)
}

func (e *InvalidCapacityError) Unwrap() error { return e.cause }
