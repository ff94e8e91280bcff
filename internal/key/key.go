package key

import (
	"cmp"
	"fmt"
)

type kind uint8

const (
	infimum kind = iota
	value
	supremum
)

// Key is a user key extended with the Infimum and Supremum sentinels.
// The zero Key is Infimum.
type Key[T cmp.Ordered] struct {
	kind kind
	v    T
}

// Infimum returns the key smaller than every other key.
func Infimum[T cmp.Ordered]() Key[T] { return Key[T]{kind: infimum} }

// Supremum returns the key larger than every other key.
func Supremum[T cmp.Ordered]() Key[T] { return Key[T]{kind: supremum} }

// Of wraps a user value.
func Of[T cmp.Ordered](v T) Key[T] { return Key[T]{kind: value, v: v} }

// IsValue reports whether k wraps a user value.
func (k Key[T]) IsValue() bool { return k.kind == value }

// IsInfimum reports whether k is the lower sentinel.
func (k Key[T]) IsInfimum() bool { return k.kind == infimum }

// IsSupremum reports whether k is the upper sentinel.
func (k Key[T]) IsSupremum() bool { return k.kind == supremum }

// Value returns the wrapped user value.
func (k Key[T]) Value() (T, bool) {
	return k.v, k.kind == value
}

// Compare returns -1, 0 or +1 depending on whether a is less than, equal to
// or greater than b.
func Compare[T cmp.Ordered](a, b Key[T]) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	if a.kind != value {
		return 0
	}
	return cmp.Compare(a.v, b.v)
}

// CompareValue compares k against the user value v without wrapping it.
func CompareValue[T cmp.Ordered](k Key[T], v T) int {
	switch k.kind {
	case infimum:
		return -1
	case supremum:
		return 1
	default:
		return cmp.Compare(k.v, v)
	}
}

// Less reports whether a sorts before b.
func Less[T cmp.Ordered](a, b Key[T]) bool { return Compare(a, b) < 0 }

func (k Key[T]) String() string {
	switch k.kind {
	case infimum:
		return "-inf"
	case supremum:
		return "+inf"
	default:
		return fmt.Sprint(k.v)
	}
}
