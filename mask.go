package joinery

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// Index identifies a slot in index-keyed storage. Low-valued and recycled, so it is
// suitable as a direct offset into contiguous arrays.
type Index = uint32

// Mask is the read side of a set of indexes. Iteration is strictly ascending and
// visits every member exactly once.
//
// A mask is constrained if it is known to cover a finite set of indexes. Joining
// only unconstrained masks would iterate the whole index space, which is almost
// always a mistake.
type Mask interface {
	Contains(index Index) bool
	Iter() MaskIter
	Constrained() bool
}

// MaskIter produces the member indexes of a Mask in ascending order.
type MaskIter interface {
	Next() (Index, bool)
}

// BitSet is a sparse set of indexes backed by a roaring bitmap.
//
// BitSet is not safe for concurrent mutation; see AtomicBitSet for the variant
// that supports concurrent Add.
type BitSet struct {
	bits *roaring.Bitmap
}

func NewBitSet() *BitSet {
	return &BitSet{bits: roaring.New()}
}

func (b *BitSet) Add(index Index) {
	b.bits.Add(index)
}

// Remove clears the bit and reports whether it was previously set.
func (b *BitSet) Remove(index Index) bool {
	return b.bits.CheckedRemove(index)
}

func (b *BitSet) Contains(index Index) bool {
	return b.bits.Contains(index)
}

func (b *BitSet) Len() int {
	return int(b.bits.GetCardinality())
}

func (b *BitSet) Clear() {
	b.bits.Clear()
}

func (b *BitSet) Constrained() bool {
	return true
}

func (b *BitSet) Iter() MaskIter {
	return &bitSetIter{it: b.bits.Iterator()}
}

type bitSetIter struct {
	it roaring.IntPeekable
}

func (b *bitSetIter) Next() (Index, bool) {
	if !b.it.HasNext() {
		return 0, false
	}

	return b.it.Next(), true
}

// And returns the lazy intersection of the given masks.
func And(first Mask, rest ...Mask) Mask {
	mask := first
	for _, other := range rest {
		mask = andMask{a: mask, b: other}
	}

	return mask
}

// Or returns the lazy union of the given masks.
func Or(first Mask, rest ...Mask) Mask {
	mask := first
	for _, other := range rest {
		mask = orMask{a: mask, b: other}
	}

	return mask
}

// Not inverts a mask. The result is unconstrained: it cannot drive iteration on
// its own, only narrow another mask in an intersection.
func Not(mask Mask) Mask {
	return notMask{inner: mask}
}

// All is the mask containing every index. Unconstrained.
var All Mask = allMask{}

type andMask struct {
	a, b Mask
}

func (m andMask) Contains(index Index) bool {
	return m.a.Contains(index) && m.b.Contains(index)
}

func (m andMask) Constrained() bool {
	return m.a.Constrained() || m.b.Constrained()
}

func (m andMask) Iter() MaskIter {
	// drive iteration from a constrained side so we never walk the whole space
	if !m.a.Constrained() && m.b.Constrained() {
		return filterIter{driver: m.b.Iter(), filter: m.a}
	}

	return filterIter{driver: m.a.Iter(), filter: m.b}
}

type filterIter struct {
	driver MaskIter
	filter Mask
}

func (f filterIter) Next() (Index, bool) {
	for {
		index, ok := f.driver.Next()
		if !ok {
			return 0, false
		}

		if f.filter.Contains(index) {
			return index, true
		}
	}
}

type orMask struct {
	a, b Mask
}

func (m orMask) Contains(index Index) bool {
	return m.a.Contains(index) || m.b.Contains(index)
}

func (m orMask) Constrained() bool {
	return m.a.Constrained() && m.b.Constrained()
}

func (m orMask) Iter() MaskIter {
	it := &mergeIter{a: m.a.Iter(), b: m.b.Iter()}
	it.nextA, it.okA = it.a.Next()
	it.nextB, it.okB = it.b.Next()
	return it
}

// mergeIter merges two ascending streams, dropping duplicates.
type mergeIter struct {
	a, b         MaskIter
	nextA, nextB Index
	okA, okB     bool
}

func (m *mergeIter) Next() (Index, bool) {
	switch {
	case m.okA && m.okB && m.nextA == m.nextB:
		index := m.nextA
		m.nextA, m.okA = m.a.Next()
		m.nextB, m.okB = m.b.Next()
		return index, true

	case m.okA && (!m.okB || m.nextA < m.nextB):
		index := m.nextA
		m.nextA, m.okA = m.a.Next()
		return index, true

	case m.okB:
		index := m.nextB
		m.nextB, m.okB = m.b.Next()
		return index, true

	default:
		return 0, false
	}
}

type notMask struct {
	inner Mask
}

func (m notMask) Contains(index Index) bool {
	return !m.inner.Contains(index)
}

func (m notMask) Constrained() bool {
	return false
}

func (m notMask) Iter() MaskIter {
	panic("joinery: cannot iterate an inverted mask directly, intersect it with a constrained mask")
}

type allMask struct{}

func (allMask) Contains(Index) bool {
	return true
}

func (allMask) Constrained() bool {
	return false
}

func (allMask) Iter() MaskIter {
	panic("joinery: cannot iterate the universal mask, intersect it with a constrained mask")
}
