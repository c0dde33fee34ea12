package joinery

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAtomicBitSet(t *testing.T) {
	a := NewAtomicBitSet()

	require.True(t, a.IsEmpty())
	require.False(t, a.Contains(0))

	require.True(t, a.Add(17))
	require.False(t, a.Add(17))
	require.True(t, a.Contains(17))
	require.False(t, a.IsEmpty())

	require.True(t, a.Remove(17))
	require.False(t, a.Remove(17))
	require.False(t, a.Contains(17))
	require.True(t, a.IsEmpty())

	// removing from a page that was never allocated
	require.False(t, a.Remove(1_000_000))
}

func TestAtomicBitSet_IterAcrossPages(t *testing.T) {
	a := NewAtomicBitSet()

	// straddle word and page boundaries
	for _, index := range []Index{0, 63, 64, 4095, 4096, 70_000} {
		a.Add(index)
	}

	require.Equal(t, []Index{0, 63, 64, 4095, 4096, 70_000}, collect(a))
}

func TestAtomicBitSet_Clear(t *testing.T) {
	a := NewAtomicBitSet()

	a.Add(1)
	a.Add(10_000)

	a.Clear()
	require.True(t, a.IsEmpty())
	require.Nil(t, collect(a))

	// the page table survives a clear
	require.True(t, a.Add(10_000))
	require.Equal(t, []Index{10_000}, collect(a))
}

func TestAtomicBitSet_ConcurrentAdd(t *testing.T) {
	const goroutines = 8
	const perGoroutine = 5000

	a := NewAtomicBitSet()

	var wg sync.WaitGroup
	for g := range goroutines {
		wg.Add(1)

		go func() {
			defer wg.Done()

			// overlapping and disjoint ranges at once
			for i := range perGoroutine {
				a.Add(Index(i))
				a.Add(Index(g*perGoroutine + i))
			}
		}()
	}

	wg.Wait()

	require.Equal(t, goroutines*perGoroutine, len(collect(a)))

	for i := range goroutines * perGoroutine {
		require.True(t, a.Contains(Index(i)))
	}
}
