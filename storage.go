package joinery

import (
	"github.com/kamstrup/intmap"
)

// RawStorage stores values keyed by low-valued indexes. It keeps no record of
// which indexes are populated; that bookkeeping belongs to the caller, normally a
// MaskedStorage.
//
// Get and Remove must only be called on populated indexes, Insert only on empty
// ones. Violating that yields garbage values or corrupts internal bookkeeping.
// This is the one layer that trades safety for a branch-free hot path; do not use
// it directly unless you maintain your own presence mask.
type RawStorage[T any] interface {
	// Get returns a pointer to the value at a populated index. The pointer is
	// for reading; mutations through it bypass change tracking.
	Get(index Index) *T

	// GetMut returns a pointer to the value at a populated index, declaring the
	// intent to mutate it. Wrappers like Flagged hook this to record the write.
	GetMut(index Index) *T

	// Insert places a value at an empty index.
	Insert(index Index, value T)

	// Remove takes the value out of a populated index and returns it.
	Remove(index Index) T
}

// VecStorage keys values directly by index into one contiguous slice. Lookup is a
// single offset, at the cost of dead slots for sparse index sets. The right
// default for components that most identities carry.
type VecStorage[T any] struct {
	values []T
}

func NewVecStorage[T any]() *VecStorage[T] {
	return &VecStorage[T]{}
}

func (s *VecStorage[T]) Get(index Index) *T {
	return &s.values[index]
}

func (s *VecStorage[T]) GetMut(index Index) *T {
	return &s.values[index]
}

func (s *VecStorage[T]) Insert(index Index, value T) {
	if int(index) >= len(s.values) {
		grown := make([]T, int(index)+1, max(int(index)+1, 2*cap(s.values)))
		copy(grown, s.values)
		s.values = grown
	}

	s.values[index] = value
}

func (s *VecStorage[T]) Remove(index Index) T {
	value := s.values[index]

	var zero T
	s.values[index] = zero

	return value
}

// DenseStorage packs values contiguously and reaches them through an indirection
// table. Memory stays proportional to the number of live values; removal
// swap-moves the last value into the freed slot and patches the indirection for
// whichever index owned it.
type DenseStorage[T any] struct {
	slots   []Index // index -> position in values
	values  []T
	indexes []Index // position -> index, for the swap on remove
}

func NewDenseStorage[T any]() *DenseStorage[T] {
	return &DenseStorage[T]{}
}

func (s *DenseStorage[T]) Get(index Index) *T {
	return &s.values[s.slots[index]]
}

func (s *DenseStorage[T]) GetMut(index Index) *T {
	return &s.values[s.slots[index]]
}

func (s *DenseStorage[T]) Insert(index Index, value T) {
	if int(index) >= len(s.slots) {
		grown := make([]Index, int(index)+1, max(int(index)+1, 2*cap(s.slots)))
		copy(grown, s.slots)
		s.slots = grown
	}

	s.slots[index] = Index(len(s.values))
	s.values = append(s.values, value)
	s.indexes = append(s.indexes, index)
}

func (s *DenseStorage[T]) Remove(index Index) T {
	pos := s.slots[index]
	last := len(s.values) - 1

	value := s.values[pos]

	// move the tail value into the hole and fix its indirection
	moved := s.indexes[last]
	s.slots[moved] = pos
	s.values[pos] = s.values[last]
	s.indexes[pos] = moved

	var zero T
	s.values[last] = zero
	s.values = s.values[:last]
	s.indexes = s.indexes[:last]

	return value
}

// MapStorage keeps values in an int-keyed hash map. No per-index slot overhead at
// all, which makes it the right choice for components that only a handful of
// identities ever carry.
type MapStorage[T any] struct {
	values *intmap.Map[Index, *T]
}

func NewMapStorage[T any]() *MapStorage[T] {
	return &MapStorage[T]{
		values: intmap.New[Index, *T](8),
	}
}

func (s *MapStorage[T]) Get(index Index) *T {
	value, _ := s.values.Get(index)
	return value
}

func (s *MapStorage[T]) GetMut(index Index) *T {
	value, _ := s.values.Get(index)
	return value
}

func (s *MapStorage[T]) Insert(index Index, value T) {
	s.values.Put(index, &value)
}

func (s *MapStorage[T]) Remove(index Index) T {
	value, _ := s.values.Get(index)
	s.values.Del(index)
	return *value
}
