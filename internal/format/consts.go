// Package format holds the layout constants shared by the heap, the page
// tables and the simulated physical memory: page geometry, word size, and
// the in-place node headers the allocators write into free memory.
package format

const (
	// PageSize is the size of a virtual page and of a physical frame.
	PageSize = 0x1000

	// PageShift converts between addresses and page/frame numbers.
	PageShift = 12

	// PageMask selects the offset within a page.
	PageMask = PageSize - 1

	// WordSize is the width of every word the allocators store in memory.
	WordSize = 8

	// EntriesPerTable is the number of 8-byte entries in one page table.
	EntriesPerTable = PageSize / WordSize

	// TableLevels is the depth of the page table hierarchy (x86_64 4-level paging).
	TableLevels = 4

	// TableIndexBits is the number of virtual address bits consumed per level.
	TableIndexBits = 9
)

// Free region node (free-list allocator). Written at the start of each free
// region:
//
//	0x00  size  (uint64) total bytes of the region, header included
//	0x08  next  (uint64) address of the next node, 0 at the end of the list
const (
	RegionNodeSizeOffset = 0x00
	RegionNodeNextOffset = 0x08

	// RegionNodeSize is the smallest region the free list can describe.
	RegionNodeSize = 16

	// RegionNodeAlign is the alignment every region node requires.
	RegionNodeAlign = 8
)

// Block node (fixed-size-block allocator). Written at the start of each free
// block of a size class:
//
//	0x00  next  (uint64) address of the next free block of the class, 0 at the end
const (
	BlockNodeNextOffset = 0x00
	BlockNodeSize       = 8
	BlockNodeAlign      = 8
)

// NilAddr terminates every in-memory list.
const NilAddr = 0
