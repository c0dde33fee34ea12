package joinery

import (
	"reflect"
)

// World bundles an identity allocator, a resource container and the component
// storages registered with it. It is the convenience layer, every part of it
// can also be used on its own.
type World struct {
	entities  *Allocator
	resources *Resources

	// sweepers removes an index from every registered storage on Maintain.
	sweepers map[reflect.Type]func(Index)

	killed []Identity
}

func NewWorld() *World {
	return &World{
		entities:  NewAllocator(),
		resources: NewResources(),
		sweepers:  map[reflect.Type]func(Index){},
	}
}

func (w *World) Entities() *Allocator {
	return w.entities
}

func (w *World) Resources() *Resources {
	return w.resources
}

// Register adds a component storage for C to the world. The storage is also
// inserted into the resource container, so systems can declare access to
// *MaskedStorage[C] like any other resource. Registering the same component
// twice is a defect and panics.
func Register[C any](w *World, storage RawStorage[C]) *MaskedStorage[C] {
	typ := reflect.TypeFor[C]()
	if _, exists := w.sweepers[typ]; exists {
		panic("component " + typ.String() + " is already registered")
	}

	masked := NewMaskedStorage(storage)

	InsertResource(w.resources, masked)
	w.sweepers[typ] = func(index Index) {
		masked.Remove(index)
	}

	return masked
}

// StorageOf returns the registered storage for C. Panics if C was never
// registered.
func StorageOf[C any](w *World) *MaskedStorage[C] {
	guard := ReadResource[*MaskedStorage[C]](w.resources)
	defer guard.Release()

	return *guard.Value()
}

// Create allocates a fresh identity.
func (w *World) Create() Identity {
	return w.entities.Allocate()
}

// Delete frees the identity right away and drops its components from every
// registered storage. Returns false if the identity was already dead.
func (w *World) Delete(id Identity) bool {
	if !w.entities.Free(id) {
		return false
	}

	w.sweep(id.Index())

	return true
}

// DeleteDeferred marks the identity as killed without touching storages; the
// removal happens in the next Maintain. Safe to call from parallel sections.
func (w *World) DeleteDeferred(id Identity) bool {
	return w.entities.FreeAtomic(id)
}

// Maintain folds all atomically allocated and killed identities into the
// canonical allocator state and sweeps the components of everything that died
// since the last call.
func (w *World) Maintain() {
	w.killed = w.entities.Merge(w.killed[:0])

	for _, id := range w.killed {
		w.sweep(id.Index())
	}
}

func (w *World) sweep(index Index) {
	for _, remove := range w.sweepers {
		remove(index)
	}
}
