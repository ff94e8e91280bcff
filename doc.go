// Package packedmap provides a concurrent ordered key-value index backed by a
// packed memory array.
//
// Keys live in one sorted array with gaps. A static tree in van Emde Boas
// layout routes a key to a small block of cells, and inserts that run out of
// room redistribute a window of neighbouring cells until its density fits
// the envelope for its size.
//
// # Quick Start
//
//	ctx := context.Background()
//	m, _ := packedmap.New[int, string](1000)
//	defer m.Close()
//
//	m.Add(ctx, 5, "Hello")
//	v, ok, _ := m.Find(ctx, 5)
//
// # Concurrency
//
// Find, Add and Delete may be called from any number of goroutines. There is
// no global lock: every cell carries a versioned marker word and writers
// claim cells with a compare-and-swap. Operations that lose a race restart
// with exponential backoff; ErrContention is returned only when the retry
// budget is exhausted.
//
// # Capacity
//
// The array is sized once from the expected key count. The middle half of
// the allocation holds keys; the quarter on either side stays empty.
// ErrCapacity is returned when an insert cannot be made to fit.
//
// # Diagnostics
//
//	m.Validate()           // structural invariants of a quiescent map
//	m.Dump(os.Stdout)      // every cell as a text table
//	m.Occupancy()          // occupied positions as a roaring bitmap
//	fmt.Print(m.TreeString())
package packedmap
