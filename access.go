package joinery

import (
	"fmt"
	"reflect"
)

// Access declares which resources a system touches and how. It is the input to
// the static conflict check: two systems may run in parallel only if their
// accesses are disjoint in the read/write sense.
type Access struct {
	reads  map[reflect.Type]struct{}
	writes map[reflect.Type]struct{}
}

func NewAccess() *Access {
	return &Access{
		reads:  map[reflect.Type]struct{}{},
		writes: map[reflect.Type]struct{}{},
	}
}

// Reads marks T as read. A type already marked as written stays a write, a
// write access subsumes the read.
func Reads[T any](a *Access) *Access {
	return a.addRead(reflect.TypeFor[T]())
}

// Writes marks T as written, upgrading any previous read mark.
func Writes[T any](a *Access) *Access {
	return a.addWrite(reflect.TypeFor[T]())
}

func (a *Access) addRead(typ reflect.Type) *Access {
	if _, written := a.writes[typ]; !written {
		a.reads[typ] = struct{}{}
	}

	return a
}

func (a *Access) addWrite(typ reflect.Type) *Access {
	delete(a.reads, typ)
	a.writes[typ] = struct{}{}

	return a
}

// Union folds other into a, keeping the write-subsumes-read rule.
func (a *Access) Union(other *Access) *Access {
	for typ := range other.writes {
		a.addWrite(typ)
	}

	for typ := range other.reads {
		a.addRead(typ)
	}

	return a
}

// Conflicts reports whether a and other cannot safely run at the same time,
// returning one witnessing resource type.
func (a *Access) Conflicts(other *Access) (reflect.Type, bool) {
	for typ := range a.writes {
		if other.touches(typ) {
			return typ, true
		}
	}

	for typ := range other.writes {
		if _, read := a.reads[typ]; read {
			return typ, true
		}
	}

	return nil, false
}

func (a *Access) touches(typ reflect.Type) bool {
	if _, read := a.reads[typ]; read {
		return true
	}

	_, written := a.writes[typ]

	return written
}

// ConflictError reports two systems scheduled for parallel execution whose
// declared accesses collide on Resource.
type ConflictError struct {
	Resource reflect.Type
	First    string
	Second   string
}

func (c *ConflictError) Error() string {
	return fmt.Sprintf("systems %q and %q conflict on resource %s", c.First, c.Second, c.Resource)
}
