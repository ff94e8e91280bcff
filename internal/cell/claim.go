package cell

// Claim is exclusive ownership of one cell. Exactly one of Commit, Clear,
// Abort or Release must be called; a second terminal call panics.
type Claim[K, V any] struct {
	store   *Store[K, V]
	pos     int
	version uint32
	tag     Tag
	entry   *Entry[K, V]
	done    bool
}

// Pos returns the claimed position.
func (c *Claim[K, V]) Pos() int { return c.pos }

// Entry returns the occupant the cell held when it was claimed.
func (c *Claim[K, V]) Entry() *Entry[K, V] { return c.entry }

// Current returns the occupant the cell holds now, including writes made
// through the claim.
func (c *Claim[K, V]) Current() *Entry[K, V] {
	return c.store.cells[c.pos].entry.Load()
}

// Retarget rewrites the Move destination of a held cell.
func (c *Claim[K, V]) Retarget(dest int) {
	c.mustOwn()
	c.store.cells[c.pos].marker.Store(uint64(Pack(c.version, Move, uint32(dest))))
}

// Write replaces the occupant while keeping the cell claimed. Readers keep
// seeing the cell as stale until it is released.
func (c *Claim[K, V]) Write(e *Entry[K, V]) {
	c.mustOwn()
	c.store.cells[c.pos].entry.Store(e)
}

// Commit installs e as the occupant and releases the cell.
func (c *Claim[K, V]) Commit(e *Entry[K, V]) {
	c.Write(e)
	c.release()
}

// Clear removes the occupant and releases the cell.
func (c *Claim[K, V]) Clear() {
	c.Write(nil)
	c.release()
}

// Abort restores the occupant seen at claim time and releases the cell.
func (c *Claim[K, V]) Abort() {
	c.Write(c.entry)
	c.release()
}

// Release publishes the current occupant.
func (c *Claim[K, V]) Release() {
	c.mustOwn()
	c.release()
}

func (c *Claim[K, V]) mustOwn() {
	if c.done || c.store == nil {
		panic("cell: claim already released")
	}
}

func (c *Claim[K, V]) release() {
	cl := &c.store.cells[c.pos]
	next := c.version + 1

	cl.pending.Store(nil)
	cl.marker.Store(uint64(Pack(next, Empty, 0)))
	cl.version.Store(next)
	c.done = true
}
