package joinery

import (
	"fmt"
	"reflect"
	"slices"
	"sync/atomic"
)

// BorrowViolation is the panic value raised when a resource guard request is
// incompatible with an outstanding guard. There is deliberately no waiting or
// queueing: the composition runner statically partitions resource access, so a
// violation at run time is a programming defect and must surface immediately
// instead of silently serializing.
type BorrowViolation struct {
	Type reflect.Type
	Op   string
}

func (b BorrowViolation) Error() string {
	return fmt.Sprintf("resource %s: %s", b.Type, b.Op)
}

// Resources is a container of singleton values keyed by their type. Reads are
// shared, writes exclusive, enforced by per-slot guard counters that fail fast
// on violation.
type Resources struct {
	_ noCopy

	slots map[reflect.Type]*resourceSlot
}

type resourceSlot struct {
	value any // always a *T

	// borrows: 0 free, n>0 outstanding readers, -1 exclusively held
	borrows atomic.Int32
}

func NewResources() *Resources {
	return &Resources{
		slots: map[reflect.Type]*resourceSlot{},
	}
}

// InsertResource stores the value as the singleton for its type, returning any
// previous value. Panics if the previous value is still borrowed.
func InsertResource[T any](rs *Resources, value T) (previous T, ok bool) {
	typ := reflect.TypeFor[T]()

	if slot, exists := rs.slots[typ]; exists {
		if slot.borrows.Load() != 0 {
			panic(BorrowViolation{Type: typ, Op: "replaced while borrowed"})
		}

		previous, ok = *slot.value.(*T), true
	}

	rs.slots[typ] = &resourceSlot{value: &value}

	return previous, ok
}

// RemoveResource takes the singleton for T out of the container. Panics if it
// is still borrowed.
func RemoveResource[T any](rs *Resources) (value T, ok bool) {
	typ := reflect.TypeFor[T]()

	slot, exists := rs.slots[typ]
	if !exists {
		return value, false
	}

	if slot.borrows.Load() != 0 {
		panic(BorrowViolation{Type: typ, Op: "removed while borrowed"})
	}

	delete(rs.slots, typ)

	return *slot.value.(*T), true
}

func HasResource[T any](rs *Resources) bool {
	_, exists := rs.slots[reflect.TypeFor[T]()]
	return exists
}

// ResourceOrInsert returns the singleton for T, calling factory to create it
// first if it is absent. Requires exclusive access to the container; the
// returned pointer is not guard-tracked.
func ResourceOrInsert[T any](rs *Resources, factory func() T) *T {
	typ := reflect.TypeFor[T]()

	if slot, exists := rs.slots[typ]; exists {
		return slot.value.(*T)
	}

	value := factory()
	rs.slots[typ] = &resourceSlot{value: &value}

	return &value
}

// ReadResource acquires a shared guard for T. Any number of read guards may be
// outstanding at once. Panics with BorrowViolation if the resource is
// exclusively held, and panics if the resource does not exist.
func ReadResource[T any](rs *Resources) Ref[T] {
	typ := reflect.TypeFor[T]()

	slot := rs.slot(typ)
	slot.acquireRead(typ)

	return Ref[T]{value: slot.value.(*T), slot: slot}
}

// WriteResource acquires the exclusive guard for T. Panics with
// BorrowViolation if any guard is outstanding, and panics if the resource does
// not exist.
func WriteResource[T any](rs *Resources) RefMut[T] {
	typ := reflect.TypeFor[T]()

	slot := rs.slot(typ)
	slot.acquireWrite(typ)

	return RefMut[T]{value: slot.value.(*T), slot: slot}
}

func (rs *Resources) slot(typ reflect.Type) *resourceSlot {
	slot, exists := rs.slots[typ]
	if !exists {
		panic(fmt.Sprintf("no such resource %s", typ))
	}

	return slot
}

func (s *resourceSlot) acquireRead(typ reflect.Type) {
	for {
		borrows := s.borrows.Load()
		if borrows < 0 {
			panic(BorrowViolation{Type: typ, Op: "read requested while exclusively held"})
		}

		if s.borrows.CompareAndSwap(borrows, borrows+1) {
			return
		}
	}
}

func (s *resourceSlot) acquireWrite(typ reflect.Type) {
	if !s.borrows.CompareAndSwap(0, -1) {
		panic(BorrowViolation{Type: typ, Op: "write requested while borrowed"})
	}
}

func (s *resourceSlot) release() {
	for {
		borrows := s.borrows.Load()

		next := borrows - 1
		if borrows < 0 {
			next = 0
		}

		if s.borrows.CompareAndSwap(borrows, next) {
			return
		}
	}
}

// Ref is a shared handle on a resource. The pointed-to value must not be
// mutated through it.
type Ref[T any] struct {
	value *T
	slot  *resourceSlot
}

func (r Ref[T]) Value() *T {
	return r.value
}

func (r Ref[T]) Release() {
	r.slot.release()
}

// RefMut is the exclusive handle on a resource.
type RefMut[T any] struct {
	value *T
	slot  *resourceSlot
}

func (r RefMut[T]) Value() *T {
	return r.value
}

func (r RefMut[T]) Release() {
	r.slot.release()
}

// Request names one resource with the intended access, for multi-guard
// acquisition. Build with R and W.
type Request struct {
	typ   reflect.Type
	write bool
}

// R requests shared access to T.
func R[T any]() Request {
	return Request{typ: reflect.TypeFor[T]()}
}

// W requests exclusive access to T.
func W[T any]() Request {
	return Request{typ: reflect.TypeFor[T](), write: true}
}

// Acquire takes all requested guards together. Acquisition happens in a fixed
// canonical order, sorted by type name, so two callers requesting overlapping
// sets always attempt the same order and failure behaviour stays deterministic
// rather than depending on declaration order.
func (rs *Resources) Acquire(requests ...Request) *GuardSet {
	ordered := slices.Clone(requests)
	slices.SortFunc(ordered, func(a, b Request) int {
		return compareTypes(a.typ, b.typ)
	})

	set := &GuardSet{values: map[reflect.Type]any{}}

	for _, req := range ordered {
		slot := rs.slot(req.typ)

		if req.write {
			slot.acquireWrite(req.typ)
		} else {
			slot.acquireRead(req.typ)
		}

		set.slots = append(set.slots, slot)
		set.values[req.typ] = slot.value
	}

	return set
}

// GuardSet holds the guards of one Acquire call.
type GuardSet struct {
	slots  []*resourceSlot
	values map[reflect.Type]any
}

// Release drops every guard in the set.
func (g *GuardSet) Release() {
	for _, slot := range g.slots {
		slot.release()
	}

	g.slots = nil
}

// Borrowed returns the value for T held by the guard set. Panics if T was not
// part of the acquire.
func Borrowed[T any](g *GuardSet) *T {
	value, ok := g.values[reflect.TypeFor[T]()]
	if !ok {
		panic(fmt.Sprintf("resource %s was not acquired", reflect.TypeFor[T]()))
	}

	return value.(*T)
}

func compareTypes(a, b reflect.Type) int {
	an, bn := a.PkgPath()+"."+a.String(), b.PkgPath()+"."+b.String()

	switch {
	case an < bn:
		return -1
	case an > bn:
		return 1
	default:
		return 0
	}
}
