package joinery

// Flagged wraps a RawStorage and records which indexes have been touched through
// the mutation path. While tracking is enabled, GetMut, Insert and Remove set the
// index's bit in an atomic bitset, so flags can be recorded even from parallel
// joins without locking.
//
// Tracking starts disabled; turn it on with SetTrackModified.
type Flagged[T any] struct {
	storage  RawStorage[T]
	modified *AtomicBitSet
	tracking bool
}

func NewFlagged[T any](storage RawStorage[T]) *Flagged[T] {
	return &Flagged[T]{
		storage:  storage,
		modified: NewAtomicBitSet(),
	}
}

func (f *Flagged[T]) Get(index Index) *T {
	return f.storage.Get(index)
}

func (f *Flagged[T]) GetMut(index Index) *T {
	if f.tracking {
		f.modified.Add(index)
	}

	return f.storage.GetMut(index)
}

func (f *Flagged[T]) Insert(index Index, value T) {
	if f.tracking {
		f.modified.Add(index)
	}

	f.storage.Insert(index, value)
}

func (f *Flagged[T]) Remove(index Index) T {
	if f.tracking {
		f.modified.Add(index)
	}

	return f.storage.Remove(index)
}

func (f *Flagged[T]) SetTrackModified(track bool) {
	f.tracking = track
}

func (f *Flagged[T]) TrackingModified() bool {
	return f.tracking
}

// Modified returns the set of indexes flagged since the last ClearModified. The
// set is joinable like any other mask.
func (f *Flagged[T]) Modified() *AtomicBitSet {
	return f.modified
}

func (f *Flagged[T]) ClearModified() {
	f.modified.Clear()
}
