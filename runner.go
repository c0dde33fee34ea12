package joinery

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// System is one schedulable unit of work. Access declares up front which
// resources Run will touch; the Par combinator relies on that declaration to
// prove at construction time that its children never race.
type System interface {
	Name() string
	Access() *Access
	Run(pool Pool) error
}

// Sys builds a leaf system from a name, its declared access and a run
// function.
func Sys(name string, access *Access, run func(pool Pool) error) System {
	return &funcSystem{name: name, access: access, run: run}
}

type funcSystem struct {
	name   string
	access *Access
	run    func(pool Pool) error
}

func (f *funcSystem) Name() string {
	return f.name
}

func (f *funcSystem) Access() *Access {
	return f.access
}

func (f *funcSystem) Run(pool Pool) error {
	return f.run(pool)
}

// Seq composes systems to run one after the other. All of them run even if an
// earlier one fails, the errors are joined.
func Seq(systems ...System) System {
	return &seqSystem{systems: systems, access: unionOf(systems)}
}

type seqSystem struct {
	systems []System
	access  *Access
}

func (s *seqSystem) Name() string {
	return combinatorName("seq", s.systems)
}

func (s *seqSystem) Access() *Access {
	return s.access
}

func (s *seqSystem) Run(pool Pool) error {
	var errs []error

	for _, system := range s.systems {
		if err := system.Run(pool); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Par composes systems to run at the same time. Construction fails with a
// ConflictError if any two leaves reachable through different children declare
// colliding access, so a composition that builds successfully can be executed
// on any Pool without further checks.
func Par(systems ...System) (System, error) {
	for i := range systems {
		for j := i + 1; j < len(systems); j++ {
			for _, a := range leavesOf(systems[i]) {
				for _, b := range leavesOf(systems[j]) {
					if typ, conflict := a.Access().Conflicts(b.Access()); conflict {
						return nil, &ConflictError{
							Resource: typ,
							First:    a.Name(),
							Second:   b.Name(),
						}
					}
				}
			}
		}
	}

	return &parSystem{systems: systems, access: unionOf(systems)}, nil
}

// MustPar is Par for compositions known statically to be conflict free.
func MustPar(systems ...System) System {
	system, err := Par(systems...)
	if err != nil {
		panic(fmt.Sprintf("invalid parallel composition: %s", err))
	}

	return system
}

type parSystem struct {
	systems []System
	access  *Access
}

func (p *parSystem) Name() string {
	return combinatorName("par", p.systems)
}

func (p *parSystem) Access() *Access {
	return p.access
}

func (p *parSystem) Run(pool Pool) error {
	return runSplit(pool, p.systems)
}

// runSplit hands the systems to the pool as a balanced tree of binary joins.
func runSplit(pool Pool, systems []System) error {
	switch len(systems) {
	case 0:
		return nil

	case 1:
		return systems[0].Run(pool)

	default:
		mid := len(systems) / 2

		errA, errB := pool.Join(
			func() error { return runSplit(pool, systems[:mid]) },
			func() error { return runSplit(pool, systems[mid:]) },
		)

		return errors.Join(errA, errB)
	}
}

func unionOf(systems []System) *Access {
	access := NewAccess()

	for _, system := range systems {
		access.Union(system.Access())
	}

	return access
}

func combinatorName(kind string, systems []System) string {
	names := make([]string, len(systems))
	for idx, system := range systems {
		names[idx] = system.Name()
	}

	return kind + "(" + strings.Join(names, ", ") + ")"
}

// leafLister is implemented by the combinators so conflict checking sees
// through nesting. Any other System counts as a single leaf.
type leafLister interface {
	leaves() []System
}

func (s *seqSystem) leaves() []System {
	return flattenLeaves(s.systems)
}

func (p *parSystem) leaves() []System {
	return flattenLeaves(p.systems)
}

func flattenLeaves(systems []System) []System {
	var result []System
	for _, system := range systems {
		result = append(result, leavesOf(system)...)
	}

	return result
}

func leavesOf(system System) []System {
	if lister, ok := system.(leafLister); ok {
		return lister.leaves()
	}

	return []System{system}
}

// Pool decides how the two halves of a parallel split execute.
type Pool interface {
	// Join runs a and b to completion and returns their errors.
	Join(a, b func() error) (error, error)
}

// SerialPool runs both halves inline on the calling goroutine. Useful for
// deterministic debugging and as a baseline in benchmarks.
type SerialPool struct{}

func (SerialPool) Join(a, b func() error) (error, error) {
	return a(), b()
}

// WorkerPool runs the halves concurrently.
type WorkerPool struct{}

func (WorkerPool) Join(a, b func() error) (error, error) {
	var errA, errB error

	var group errgroup.Group
	group.Go(func() error {
		errA = a()
		return nil
	})

	errB = b()
	_ = group.Wait()

	return errA, errB
}
