// Package testutil provides workload helpers for packedmap tests and
// benchmarks.
//
// This package is intended for use in tests and benchmarks only.
//
// # Key Generation
//
//	rng := testutil.NewRNG(seed)
//	keys := rng.UniqueInts(1000, 1<<20) // distinct, random order
//	hot := rng.Zipf(1000, 1.2)           // skewed key choice
//	runs := rng.Runs(10, 50, 1<<20)      // clustered ascending runs
package testutil
