// Package hintcache remembers the cell a key was last found in.
//
// A hint is only a guess: cells move during rebalances, so callers must
// validate the cell before trusting it and Forget the hint when it is wrong.
package hintcache

import (
	"errors"
	"hash/maphash"
	"sync/atomic"

	"github.com/dgraph-io/ristretto/v2"
)

// ErrInvalidSize is returned by New for a non-positive capacity.
var ErrInvalidSize = errors.New("hintcache: size must be positive")

type hint[K comparable] struct {
	key K
	pos int
}

// Cache maps keys to cell positions.
type Cache[K comparable] struct {
	c    *ristretto.Cache[uint64, hint[K]]
	seed maphash.Seed

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache holding about size hints.
func New[K comparable](size int64) (*Cache[K], error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	c, err := ristretto.NewCache(&ristretto.Config[uint64, hint[K]]{
		NumCounters:        10 * size,
		MaxCost:            size,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}

	return &Cache[K]{c: c, seed: maphash.MakeSeed()}, nil
}

func (c *Cache[K]) hash(k K) uint64 {
	return maphash.Comparable(c.seed, k)
}

// Get returns the remembered position of k.
func (c *Cache[K]) Get(k K) (int, bool) {
	h, ok := c.c.Get(c.hash(k))
	if !ok || h.key != k {
		c.misses.Add(1)
		return 0, false
	}
	c.hits.Add(1)
	return h.pos, true
}

// Put remembers that k lives at pos. The write is buffered and may be
// dropped by the admission policy.
func (c *Cache[K]) Put(k K, pos int) {
	c.c.Set(c.hash(k), hint[K]{key: k, pos: pos}, 1)
}

// Forget drops the hint for k.
func (c *Cache[K]) Forget(k K) {
	c.c.Del(c.hash(k))
}

// Wait blocks until buffered writes are applied.
func (c *Cache[K]) Wait() {
	c.c.Wait()
}

// Stats returns cache statistics.
func (c *Cache[K]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Close stops the background workers of the cache.
func (c *Cache[K]) Close() {
	c.c.Close()
}
