// Package resource governs the shared resources of a packed map.
//
//   - Memory: the cell array and routing tree are reserved against an
//     optional hard budget at construction (non-blocking, fail-fast).
//   - Rebalances: a weighted semaphore bounds how many windows may be
//     claimed at once, so overlapping rebalances queue instead of aborting
//     each other.
//   - Retries: an optional token bucket throttles the restart rate of
//     contended operations.
//
// All methods handle a nil Controller gracefully; they become no-ops.
package resource
