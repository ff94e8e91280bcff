// Package engine implements the packed memory array: a sorted array of
// versioned cells with reserved buffers on both sides, routed by a static
// vEB-ordered tree and kept within a density envelope by local rebalances.
//
// The engine orchestrates:
//   - Routing: tree descent to a leaf block, then a validated linear scan
//   - Find: read-only, linearizable at the validation of the scanned window
//   - Add: claim of the target cell, re-validation of its neighbourhood
//   - Delete: claim of the occupied cell and clear
//   - Rebalance: claim of a growing window, even redistribution, hint refresh
//
// There is no global lock. Every mutation goes through the claim protocol of
// package cell; contended operations restart under a bounded backoff.
package engine
