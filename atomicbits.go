package joinery

import (
	"math/bits"
	"sync"
	"sync/atomic"
)

const (
	wordBits  = 64
	pageWords = 64
	pageBits  = pageWords * wordBits // 4096 indexes per page
)

type bitPage [pageWords]atomic.Uint64

// AtomicBitSet is a sparse set of indexes that supports concurrent Add without
// external locking. Pages of 4096 bits are allocated lazily; the page table is
// swapped with copy-on-write so readers never block.
//
// Add and Contains may be called from any number of goroutines. Remove, Clear and
// iteration require the same exclusive access a caller would need for a plain
// BitSet: they give a consistent snapshot only while no concurrent Add runs.
type AtomicBitSet struct {
	pages atomic.Pointer[[]*bitPage]
	grow  sync.Mutex
}

func NewAtomicBitSet() *AtomicBitSet {
	return &AtomicBitSet{}
}

// Add sets the bit and reports whether it was newly set.
func (a *AtomicBitSet) Add(index Index) bool {
	page := a.page(int(index)/pageBits, true)
	word := &page[int(index)%pageBits/wordBits]
	mask := uint64(1) << (index % wordBits)

	return word.Or(mask)&mask == 0
}

// Remove clears the bit and reports whether it was previously set.
func (a *AtomicBitSet) Remove(index Index) bool {
	page := a.page(int(index)/pageBits, false)
	if page == nil {
		return false
	}

	word := &page[int(index)%pageBits/wordBits]
	mask := uint64(1) << (index % wordBits)

	return word.And(^mask)&mask != 0
}

func (a *AtomicBitSet) Contains(index Index) bool {
	page := a.page(int(index)/pageBits, false)
	if page == nil {
		return false
	}

	word := page[int(index)%pageBits/wordBits].Load()
	return word&(uint64(1)<<(index%wordBits)) != 0
}

func (a *AtomicBitSet) IsEmpty() bool {
	pages := a.pages.Load()
	if pages == nil {
		return true
	}

	for _, page := range *pages {
		if page == nil {
			continue
		}

		for idx := range page {
			if page[idx].Load() != 0 {
				return false
			}
		}
	}

	return true
}

// Clear zeroes all pages. The page table is kept so previously touched pages stay
// cheap to re-add.
func (a *AtomicBitSet) Clear() {
	pages := a.pages.Load()
	if pages == nil {
		return
	}

	for _, page := range *pages {
		if page == nil {
			continue
		}

		for idx := range page {
			page[idx].Store(0)
		}
	}
}

func (a *AtomicBitSet) Constrained() bool {
	return true
}

func (a *AtomicBitSet) Iter() MaskIter {
	pages := a.pages.Load()
	if pages == nil {
		return emptyIter{}
	}

	return &atomicBitIter{pages: *pages}
}

// page returns the page covering pageIdx, allocating it when create is set.
func (a *AtomicBitSet) page(pageIdx int, create bool) *bitPage {
	pages := a.pages.Load()
	if pages != nil && pageIdx < len(*pages) {
		if page := (*pages)[pageIdx]; page != nil {
			return page
		}
	}

	if !create {
		return nil
	}

	a.grow.Lock()
	defer a.grow.Unlock()

	// re-check under the lock, another goroutine may have grown the table
	pages = a.pages.Load()

	var table []*bitPage
	if pages != nil {
		table = *pages
	}

	if pageIdx >= len(table) {
		grown := make([]*bitPage, pageIdx+1)
		copy(grown, table)
		table = grown
	}

	if table[pageIdx] == nil {
		table[pageIdx] = new(bitPage)
	}

	// pages are shared between table generations, so writers holding an older
	// table still hit the same words
	a.pages.Store(&table)

	return table[pageIdx]
}

type atomicBitIter struct {
	pages []*bitPage
	page  int
	word  int // next word to load in the current page
	rest  uint64
}

func (it *atomicBitIter) Next() (Index, bool) {
	for {
		if it.rest != 0 {
			bit := bits.TrailingZeros64(it.rest)
			it.rest &= it.rest - 1
			return Index(it.page*pageBits + (it.word-1)*wordBits + bit), true
		}

		if it.page >= len(it.pages) {
			return 0, false
		}

		if it.pages[it.page] == nil || it.word >= pageWords {
			it.page++
			it.word = 0
			continue
		}

		it.rest = it.pages[it.page][it.word].Load()
		it.word++
	}
}

type emptyIter struct{}

func (emptyIter) Next() (Index, bool) {
	return 0, false
}
