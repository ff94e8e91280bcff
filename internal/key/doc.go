// Package key defines the totally ordered key domain used by the packed
// memory array: every user value sits strictly between two sentinels.
//
//	Infimum < Of(v) < Supremum
//
// Values compare with cmp.Compare, so NaN sorts before every other float.
package key
