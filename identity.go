package joinery

import (
	"fmt"
	"sync/atomic"
)

// Generation counts how often an index has been recycled. A fresh index starts at
// generation zero; every Free bumps the generation, so a reused index hands out a
// new generation and all identities referring to the old one become stale.
//
// The counter is fixed-width. After 2^32 free/reuse cycles of a single index a
// stale identity could alias a live one again. This is an accepted long-run bound
// of the design, not something the allocator guards against.
type Generation = uint32

// Identity is a generational index: a recycled Index plus the Generation it was
// allocated under. Identities with a superseded generation are stale; operations
// on them report a soft miss instead of failing.
type Identity struct {
	index Index
	gen   Generation
}

func (id Identity) Index() Index {
	return id.index
}

func (id Identity) Generation() Generation {
	return id.gen
}

func (id Identity) String() string {
	return fmt.Sprintf("%d@%d", id.index, id.gen)
}

// Allocator issues and recycles identities and tracks which ones are alive.
//
// Allocate, Free and Merge need exclusive access, the same way mutating a masked
// storage does. AllocateAtomic, FreeAtomic and IsAlive are safe to call
// concurrently with each other and with any read of the allocator; identities
// created by AllocateAtomic are immediately alive and visible to Live, they are
// merely tracked on a slower path until the next Merge folds them in.
type Allocator struct {
	_ noCopy

	generations []Generation
	alive       *BitSet
	raised      *AtomicBitSet
	killed      *AtomicBitSet
	free        indexCache
	indexLen    atomic.Uint32
}

func NewAllocator() *Allocator {
	return &Allocator{
		alive:  NewBitSet(),
		raised: NewAtomicBitSet(),
		killed: NewAtomicBitSet(),
	}
}

// Allocate returns a fresh identity. Requires exclusive access.
func (a *Allocator) Allocate() Identity {
	index, ok := a.free.pop()
	if !ok {
		index = a.indexLen.Load()
		a.indexLen.Store(index + 1)
		a.ensureGenerations(index + 1)
	}

	a.alive.Add(index)

	return Identity{index: index, gen: a.generations[index]}
}

// AllocateAtomic returns a fresh identity without requiring exclusive access.
//
// The new identity is published through the atomic raised set as a single step,
// so a concurrent Live mask never observes a half-allocated index.
func (a *Allocator) AllocateAtomic() Identity {
	index, ok := a.free.popAtomic()
	if !ok {
		index = a.indexLen.Add(1) - 1
	}

	a.raised.Add(index)

	return Identity{index: index, gen: a.generation(index)}
}

// Free kills the identity if it is the live one for its index. Returns false if
// the identity is already dead, which includes a stale generation. Requires
// exclusive access.
func (a *Allocator) Free(id Identity) bool {
	if !a.IsAlive(id) {
		return false
	}

	a.alive.Remove(id.index)
	a.raised.Remove(id.index)
	a.killed.Remove(id.index)

	a.ensureGenerations(id.index + 1)
	a.generations[id.index]++
	a.free.push(id.index)

	return true
}

// FreeAtomic marks the identity to be killed on the next Merge. Until then it
// stays alive. Returns false if the identity is already dead.
func (a *Allocator) FreeAtomic(id Identity) bool {
	if !a.IsAlive(id) {
		return false
	}

	a.killed.Add(id.index)
	return true
}

// IsAlive reports whether the identity is the current live one for its index.
func (a *Allocator) IsAlive(id Identity) bool {
	live, ok := a.At(id.index)
	return ok && live == id
}

// At returns the live identity for the given index, if there is one.
func (a *Allocator) At(index Index) (Identity, bool) {
	if !a.alive.Contains(index) && !a.raised.Contains(index) {
		return Identity{}, false
	}

	return Identity{index: index, gen: a.generation(index)}, true
}

// Live returns the mask of all currently alive indexes. Joinable.
func (a *Allocator) Live() Mask {
	return Or(a.alive, a.raised)
}

// Merge folds all atomic operations since the last Merge into the fast path:
// atomically allocated identities move into the plain alive set, and identities
// marked by FreeAtomic actually die. The killed identities are appended to the
// given slice and returned, so callers can sweep their storages.
//
// Requires exclusive access.
func (a *Allocator) Merge(killed []Identity) []Identity {
	a.ensureGenerations(a.indexLen.Load())

	it := a.raised.Iter()
	for index, ok := it.Next(); ok; index, ok = it.Next() {
		a.alive.Add(index)
	}
	a.raised.Clear()

	it = a.killed.Iter()
	for index, ok := it.Next(); ok; index, ok = it.Next() {
		if !a.alive.Remove(index) {
			continue
		}

		killed = append(killed, Identity{index: index, gen: a.generations[index]})
		a.generations[index]++
		a.free.push(index)
	}
	a.killed.Clear()

	return killed
}

func (a *Allocator) generation(index Index) Generation {
	if int(index) >= len(a.generations) {
		return 0
	}

	return a.generations[index]
}

func (a *Allocator) ensureGenerations(n Index) {
	for int(n) > len(a.generations) {
		a.generations = append(a.generations, 0)
	}
}

// indexCache is the free pool. Pushes require exclusive access; pops come in an
// exclusive and an atomic flavour. The atomic pop only ever decrements the
// length, so it can safely race with other atomic pops while the backing slice
// stays untouched.
type indexCache struct {
	indexes []Index
	n       atomic.Int64
}

func (c *indexCache) push(index Index) {
	c.truncate()
	c.indexes = append(c.indexes, index)
	c.n.Store(int64(len(c.indexes)))
}

func (c *indexCache) pop() (Index, bool) {
	c.truncate()
	if len(c.indexes) == 0 {
		return 0, false
	}

	index := c.indexes[len(c.indexes)-1]
	c.indexes = c.indexes[:len(c.indexes)-1]
	c.n.Store(int64(len(c.indexes)))

	return index, true
}

func (c *indexCache) popAtomic() (Index, bool) {
	for {
		n := c.n.Load()
		if n == 0 {
			return 0, false
		}

		if c.n.CompareAndSwap(n, n-1) {
			return c.indexes[n-1], true
		}
	}
}

// truncate drops entries already consumed by atomic pops.
func (c *indexCache) truncate() {
	c.indexes = c.indexes[:c.n.Load()]
}
