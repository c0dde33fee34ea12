package joinery

// MaskedStorage pairs a RawStorage with a presence bitset. The bit and the slot
// are always mutated together, which makes this the only safe entry point to raw
// storage: every accessor tests the bit first, and join iteration only visits
// indexes whose bit is set.
type MaskedStorage[T any] struct {
	mask    *BitSet
	storage RawStorage[T]
}

// NewMaskedStorage wraps the given raw storage. The storage must be empty.
func NewMaskedStorage[T any](storage RawStorage[T]) *MaskedStorage[T] {
	return &MaskedStorage[T]{
		mask:    NewBitSet(),
		storage: storage,
	}
}

// NewDenseMasked is the common case: a masked storage over packed dense slots.
func NewDenseMasked[T any]() *MaskedStorage[T] {
	return NewMaskedStorage[T](NewDenseStorage[T]())
}

// Mask exposes the presence bitset for joining. Callers must not mutate the
// storage while holding on to the mask's iterators.
func (m *MaskedStorage[T]) Mask() Mask {
	return m.mask
}

// Raw exposes the underlying storage. All presence preconditions of RawStorage
// apply; prefer the masked accessors.
func (m *MaskedStorage[T]) Raw() RawStorage[T] {
	return m.storage
}

func (m *MaskedStorage[T]) Contains(index Index) bool {
	return m.mask.Contains(index)
}

func (m *MaskedStorage[T]) Len() int {
	return m.mask.Len()
}

// Get returns a pointer to the value at index, or nil if the index is empty.
// The pointer is for reading; use GetMut when the value will be modified so that
// change tracking sees the write.
func (m *MaskedStorage[T]) Get(index Index) *T {
	if !m.mask.Contains(index) {
		return nil
	}

	return m.storage.Get(index)
}

// GetMut returns a mutable pointer to the value at index, or nil if the index is
// empty.
func (m *MaskedStorage[T]) GetMut(index Index) *T {
	if !m.mask.Contains(index) {
		return nil
	}

	return m.storage.GetMut(index)
}

// Insert places a value at index. If the index was already populated, the
// previous value is returned with ok set.
func (m *MaskedStorage[T]) Insert(index Index, value T) (previous T, ok bool) {
	if m.mask.Contains(index) {
		slot := m.storage.GetMut(index)
		previous, *slot = *slot, value
		return previous, true
	}

	m.mask.Add(index)
	m.storage.Insert(index, value)

	return previous, false
}

// Update writes the value only if it differs from the stored one, and only if the
// index is populated. Combined with a Flagged storage this avoids flagging
// changes when the new value equals the old one. Returns the previous value.
func Update[T comparable](m *MaskedStorage[T], index Index, value T) (previous T, ok bool) {
	if !m.mask.Contains(index) {
		return previous, false
	}

	previous = *m.storage.Get(index)

	if previous != value {
		*m.storage.GetMut(index) = value
	}

	return previous, true
}

// Remove takes the value out of the index, reporting whether it was present.
func (m *MaskedStorage[T]) Remove(index Index) (value T, ok bool) {
	if !m.mask.Remove(index) {
		return value, false
	}

	return m.storage.Remove(index), true
}

// Clear removes every value. Bit and slot are dropped together, per index, so
// the storage stays consistent even if a value's removal panics.
func (m *MaskedStorage[T]) Clear() {
	it := m.mask.Iter()
	for index, ok := it.Next(); ok; index, ok = it.Next() {
		m.storage.Remove(index)
	}

	m.mask.Clear()
}
