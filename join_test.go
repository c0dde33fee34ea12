package joinery

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type Position struct {
	X, Y int
}

type Velocity struct {
	DX, DY int
}

type Health struct {
	HP int
}

func TestJoin_Single(t *testing.T) {
	positions := NewDenseMasked[Position]()

	positions.Insert(4, Position{X: 4})
	positions.Insert(1, Position{X: 1})
	positions.Insert(9, Position{X: 9})

	var visited []Index
	for index, pos := range Join(positions) {
		visited = append(visited, index)
		require.Equal(t, int(index), pos.X)
	}

	require.Equal(t, []Index{1, 4, 9}, visited)
}

func TestJoin_EarlyBreak(t *testing.T) {
	positions := NewDenseMasked[Position]()

	positions.Insert(1, Position{})
	positions.Insert(2, Position{})
	positions.Insert(3, Position{})

	count := 0
	for range Join(positions) {
		count++
		if count == 2 {
			break
		}
	}

	require.Equal(t, 2, count)
}

func TestJoin2_Intersection(t *testing.T) {
	positions := NewDenseMasked[Position]()
	velocities := NewDenseMasked[Velocity]()

	positions.Insert(1, Position{X: 1})
	positions.Insert(2, Position{X: 2})
	positions.Insert(3, Position{X: 3})

	velocities.Insert(2, Velocity{DX: 20})
	velocities.Insert(3, Velocity{DX: 30})
	velocities.Insert(4, Velocity{DX: 40})

	var visited []Index
	for index, row := range Join2(positions, velocities) {
		visited = append(visited, index)
		require.Equal(t, int(index), row.A.X)
		require.Equal(t, int(index)*10, row.B.DX)
	}

	require.Equal(t, []Index{2, 3}, visited)
}

func TestJoin_Mut(t *testing.T) {
	positions := NewDenseMasked[Position]()
	velocities := NewDenseMasked[Velocity]()

	positions.Insert(1, Position{X: 10})
	velocities.Insert(1, Velocity{DX: 5})

	for _, row := range Join2(Mut(positions), velocities) {
		row.A.X += row.B.DX
	}

	require.Equal(t, 15, positions.Get(1).X)
}

func TestJoin_Maybe(t *testing.T) {
	positions := NewDenseMasked[Position]()
	healths := NewDenseMasked[Health]()

	positions.Insert(1, Position{X: 1})
	positions.Insert(2, Position{X: 2})
	healths.Insert(2, Health{HP: 100})

	// Maybe does not narrow the intersection
	var visited []Index
	for index, row := range Join2(positions, Maybe(healths)) {
		visited = append(visited, index)

		if index == 2 {
			require.True(t, row.B.Ok)
			require.Equal(t, 100, row.B.Value.HP)
		} else {
			require.False(t, row.B.Ok)
		}
	}

	require.Equal(t, []Index{1, 2}, visited)
}

func TestJoin_MaybeAlonePanics(t *testing.T) {
	healths := NewDenseMasked[Health]()
	healths.Insert(1, Health{})

	require.Panics(t, func() { Join(Maybe(healths)) })
}

func TestJoin_Keys(t *testing.T) {
	a := NewAllocator()

	first := a.Allocate()
	second := a.Allocate()
	third := a.Allocate()
	require.True(t, a.Free(second))

	var visited []Index
	for index, key := range Join(Keys(a.Live())) {
		require.Equal(t, index, key)
		visited = append(visited, index)
	}

	require.Equal(t, []Index{first.Index(), third.Index()}, visited)
}

func TestJoin_WithoutMask(t *testing.T) {
	positions := NewDenseMasked[Position]()
	healths := NewDenseMasked[Health]()

	positions.Insert(1, Position{})
	positions.Insert(2, Position{})
	healths.Insert(2, Health{})

	// everything with a position but no health
	missing := And(positions.Mask(), Not(healths.Mask()))
	require.Equal(t, []Index{1}, collect(missing))
}

func TestJoin3AndJoin4(t *testing.T) {
	positions := NewDenseMasked[Position]()
	velocities := NewDenseMasked[Velocity]()
	healths := NewDenseMasked[Health]()
	names := NewDenseMasked[string]()

	for _, index := range []Index{1, 2, 3} {
		positions.Insert(index, Position{X: int(index)})
		velocities.Insert(index, Velocity{})
	}

	healths.Insert(2, Health{HP: 2})
	healths.Insert(3, Health{HP: 3})
	names.Insert(3, "three")

	var visited []Index
	for index, row := range Join3(positions, velocities, healths) {
		visited = append(visited, index)
		require.Equal(t, int(index), row.C.HP)
	}
	require.Equal(t, []Index{2, 3}, visited)

	visited = nil
	for index, row := range Join4(positions, velocities, healths, names) {
		visited = append(visited, index)
		require.Equal(t, "three", *row.D)
	}
	require.Equal(t, []Index{3}, visited)
}

func TestJoinUnconstrained(t *testing.T) {
	positions := NewDenseMasked[Position]()
	positions.Insert(1, Position{X: 1})

	var visited []Index
	for index := range JoinUnconstrained[*Position](positions) {
		visited = append(visited, index)
	}

	require.Equal(t, []Index{1}, visited)
}
