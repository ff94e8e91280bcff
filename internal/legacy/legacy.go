// Package legacy is the first prototype of the index: an unbalanced binary
// search tree whose leaves point into a fixed circular buffer of values.
//
// It has no concurrency support and no rebalancing. Once more than Capacity
// values have been inserted the buffer wraps and old slots are reused, so
// earlier keys may then report newer values. It is kept as a small oracle
// for tests of the packed map.
package legacy

import "cmp"

// Capacity is the size of the value buffer.
const Capacity = 32

const none = -1

type node[K cmp.Ordered] struct {
	key   K
	left  int
	right int
	// slot is the buffer index of a leaf, none for inner nodes.
	slot int
}

// Map is the prototype key/value index. The zero value is not usable; call
// New.
type Map[K cmp.Ordered, V any] struct {
	values [Capacity]V
	nodes  []node[K]
	root   int
	next   int
}

// New returns an empty map.
func New[K cmp.Ordered, V any]() *Map[K, V] {
	return &Map[K, V]{root: none}
}

// Get returns the value stored under k.
func (m *Map[K, V]) Get(k K) (V, bool) {
	var zero V

	n := m.root
	for n != none {
		nd := &m.nodes[n]
		if nd.slot != none {
			if nd.key == k {
				return m.values[nd.slot], true
			}
			return zero, false
		}
		if k < nd.key {
			n = nd.left
		} else {
			n = nd.right
		}
	}
	return zero, false
}

// Insert stores v under k. Re-inserting a key points it at a fresh slot.
func (m *Map[K, V]) Insert(k K, v V) {
	slot := m.next
	m.next = (m.next + 1) % Capacity
	m.values[slot] = v

	if m.root == none {
		m.root = m.leaf(k, slot)
		return
	}

	parent, n := none, m.root
	for {
		nd := m.nodes[n]
		if nd.slot == none {
			next := nd.right
			if k < nd.key {
				next = nd.left
			}
			if next == none {
				m.relink(n, k, m.leaf(k, slot))
				return
			}
			parent, n = n, next
			continue
		}

		if nd.key == k {
			m.nodes[n].slot = slot
			return
		}

		// Split the leaf: the inner node routes on the larger key.
		fresh := m.leaf(k, slot)
		lo, hi := n, fresh
		if k < nd.key {
			lo, hi = fresh, n
		}
		inner := m.inner(m.nodes[hi].key, lo, hi)
		if parent == none {
			m.root = inner
		} else {
			m.relink(parent, k, inner)
		}
		return
	}
}

// relink points the child of parent on k's side at child.
func (m *Map[K, V]) relink(parent int, k K, child int) {
	if k < m.nodes[parent].key {
		m.nodes[parent].left = child
	} else {
		m.nodes[parent].right = child
	}
}

// Len returns the number of distinct keys.
func (m *Map[K, V]) Len() int {
	n := 0
	for i := range m.nodes {
		if m.nodes[i].slot != none {
			n++
		}
	}
	return n
}

func (m *Map[K, V]) leaf(k K, slot int) int {
	m.nodes = append(m.nodes, node[K]{key: k, left: none, right: none, slot: slot})
	return len(m.nodes) - 1
}

func (m *Map[K, V]) inner(k K, left, right int) int {
	m.nodes = append(m.nodes, node[K]{key: k, left: left, right: right, slot: none})
	return len(m.nodes) - 1
}
