package joinery

import (
	"iter"
)

// Joinable is a source that can take part in a join: it opens into a presence
// mask plus a fetch function. The fetch function must only be called with
// indexes contained in the mask; joins uphold this by construction, because they
// only visit indexes of the mask intersection.
type Joinable[T any] interface {
	open() (Mask, func(Index) T)
}

// open implements Joinable for a masked storage, yielding read pointers.
func (m *MaskedStorage[T]) open() (Mask, func(Index) *T) {
	return m.mask, m.storage.Get
}

// Mut adapts a masked storage to join with mutation intent: fetched pointers go
// through GetMut, so Flagged storages record the visit. At most one handle per
// index is ever live, since a join visits each index exactly once.
func Mut[T any](m *MaskedStorage[T]) Joinable[*T] {
	return mutJoin[T]{m: m}
}

type mutJoin[T any] struct {
	m *MaskedStorage[T]
}

func (j mutJoin[T]) open() (Mask, func(Index) *T) {
	return j.m.mask, j.m.storage.GetMut
}

// Keys joins a bare mask, yielding the indexes themselves. Use this to iterate
// an allocator's live set or a flagged storage's modified set alongside other
// sources.
func Keys(mask Mask) Joinable[Index] {
	return keysJoin{mask: mask}
}

type keysJoin struct {
	mask Mask
}

func (j keysJoin) open() (Mask, func(Index) Index) {
	return j.mask, func(index Index) Index { return index }
}

// Option carries a value that may be absent, for Maybe joins.
type Option[T any] struct {
	Value T
	Ok    bool
}

// Maybe turns a joinable into one that matches every index, yielding an absent
// Option where the source has no value. A Maybe source never constrains the
// intersection, so a join needs at least one other constrained operand.
func Maybe[T any](j Joinable[T]) Joinable[Option[T]] {
	return maybeJoin[T]{inner: j}
}

type maybeJoin[T any] struct {
	inner Joinable[T]
}

func (j maybeJoin[T]) open() (Mask, func(Index) Option[T]) {
	mask, get := j.inner.open()

	return All, func(index Index) Option[T] {
		if !mask.Contains(index) {
			return Option[T]{}
		}

		return Option[T]{Value: get(index), Ok: true}
	}
}

// Join iterates the exact intersection of the source's mask in ascending index
// order, yielding each member index with its fetched value exactly once.
//
// Panics if the source is fully unconstrained (for example a lone Maybe), since
// that join would cover the whole index space; JoinUnconstrained skips the check.
func Join[T any](j Joinable[T]) iter.Seq2[Index, T] {
	mask, get := j.open()
	if !mask.Constrained() {
		panic("joinery: cannot iterate an unconstrained join")
	}

	return joinSeq(mask, get)
}

// JoinUnconstrained is Join without the constrained-mask check. Constraint
// detection is conservative; this is the escape hatch for when it is in the way.
func JoinUnconstrained[T any](j Joinable[T]) iter.Seq2[Index, T] {
	mask, get := j.open()
	return joinSeq(mask, get)
}

func joinSeq[T any](mask Mask, get func(Index) T) iter.Seq2[Index, T] {
	return func(yield func(Index, T) bool) {
		it := mask.Iter()
		for index, ok := it.Next(); ok; index, ok = it.Next() {
			if !yield(index, get(index)) {
				return
			}
		}
	}
}

// Tup2 through Tup4 are the row types of multi-source joins.
type Tup2[A, B any] struct {
	A A
	B B
}

type Tup3[A, B, C any] struct {
	A A
	B B
	C C
}

type Tup4[A, B, C, D any] struct {
	A A
	B B
	C C
	D D
}

// Tuple2 aggregates two joinables into one whose mask is the intersection of
// both. Tuples nest: a tuple is itself joinable.
func Tuple2[A, B any](a Joinable[A], b Joinable[B]) Joinable[Tup2[A, B]] {
	return tuple2[A, B]{a: a, b: b}
}

type tuple2[A, B any] struct {
	a Joinable[A]
	b Joinable[B]
}

func (t tuple2[A, B]) open() (Mask, func(Index) Tup2[A, B]) {
	maskA, getA := t.a.open()
	maskB, getB := t.b.open()

	return And(maskA, maskB), func(index Index) Tup2[A, B] {
		return Tup2[A, B]{A: getA(index), B: getB(index)}
	}
}

func Tuple3[A, B, C any](a Joinable[A], b Joinable[B], c Joinable[C]) Joinable[Tup3[A, B, C]] {
	return tuple3[A, B, C]{a: a, b: b, c: c}
}

type tuple3[A, B, C any] struct {
	a Joinable[A]
	b Joinable[B]
	c Joinable[C]
}

func (t tuple3[A, B, C]) open() (Mask, func(Index) Tup3[A, B, C]) {
	maskA, getA := t.a.open()
	maskB, getB := t.b.open()
	maskC, getC := t.c.open()

	return And(maskA, maskB, maskC), func(index Index) Tup3[A, B, C] {
		return Tup3[A, B, C]{A: getA(index), B: getB(index), C: getC(index)}
	}
}

func Tuple4[A, B, C, D any](a Joinable[A], b Joinable[B], c Joinable[C], d Joinable[D]) Joinable[Tup4[A, B, C, D]] {
	return tuple4[A, B, C, D]{a: a, b: b, c: c, d: d}
}

type tuple4[A, B, C, D any] struct {
	a Joinable[A]
	b Joinable[B]
	c Joinable[C]
	d Joinable[D]
}

func (t tuple4[A, B, C, D]) open() (Mask, func(Index) Tup4[A, B, C, D]) {
	maskA, getA := t.a.open()
	maskB, getB := t.b.open()
	maskC, getC := t.c.open()
	maskD, getD := t.d.open()

	return And(maskA, maskB, maskC, maskD), func(index Index) Tup4[A, B, C, D] {
		return Tup4[A, B, C, D]{A: getA(index), B: getB(index), C: getC(index), D: getD(index)}
	}
}

// Join2 visits the intersection of two sources.
func Join2[A, B any](a Joinable[A], b Joinable[B]) iter.Seq2[Index, Tup2[A, B]] {
	return Join(Tuple2(a, b))
}

// Join3 visits the intersection of three sources.
func Join3[A, B, C any](a Joinable[A], b Joinable[B], c Joinable[C]) iter.Seq2[Index, Tup3[A, B, C]] {
	return Join(Tuple3(a, b, c))
}

// Join4 visits the intersection of four sources.
func Join4[A, B, C, D any](a Joinable[A], b Joinable[B], c Joinable[C], d Joinable[D]) iter.Seq2[Index, Tup4[A, B, C, D]] {
	return Join(Tuple4(a, b, c, d))
}
