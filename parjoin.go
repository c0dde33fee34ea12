package joinery

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ParJoin visits the join's intersection partitioned across workers. The member
// indexes are split into disjoint contiguous chunks whose union is the full
// intersection, so every index is visited by exactly one worker.
//
// Within a chunk indexes are visited in ascending order; there is no ordering
// between chunks. visit may be called concurrently and must only touch the
// fetched value and other state it owns. The first error stops the join and is
// returned after all workers finished.
//
// workers <= 0 uses one worker per CPU.
func ParJoin[T any](j Joinable[T], workers int, visit func(Index, T) error) error {
	mask, get := j.open()
	if !mask.Constrained() {
		panic("joinery: cannot iterate an unconstrained join")
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	// snapshot the intersection; partitioning a lazily merged mask would need
	// range splitting on every operand
	var indexes []Index

	it := mask.Iter()
	for index, ok := it.Next(); ok; index, ok = it.Next() {
		indexes = append(indexes, index)
	}

	if len(indexes) == 0 {
		return nil
	}

	chunk := (len(indexes) + workers - 1) / workers

	var group errgroup.Group

	for start := 0; start < len(indexes); start += chunk {
		part := indexes[start:min(start+chunk, len(indexes))]

		group.Go(func() error {
			for _, index := range part {
				if err := visit(index, get(index)); err != nil {
					return err
				}
			}

			return nil
		})
	}

	return group.Wait()
}

// ParJoin2 visits the intersection of two sources in parallel.
func ParJoin2[A, B any](a Joinable[A], b Joinable[B], workers int, visit func(Index, A, B) error) error {
	return ParJoin(Tuple2(a, b), workers, func(index Index, row Tup2[A, B]) error {
		return visit(index, row.A, row.B)
	})
}

// ParJoin3 visits the intersection of three sources in parallel.
func ParJoin3[A, B, C any](a Joinable[A], b Joinable[B], c Joinable[C], workers int, visit func(Index, A, B, C) error) error {
	return ParJoin(Tuple3(a, b, c), workers, func(index Index, row Tup3[A, B, C]) error {
		return visit(index, row.A, row.B, row.C)
	})
}
