// Package conv provides checked integer conversions and arithmetic for the
// sizing code paths, where a requested key count flows into cell counts, byte
// budgets and 29-bit marker offsets.
//
// Hot paths whose bounds are established at construction (positions inside
// the cell array) use direct casts instead.
package conv
