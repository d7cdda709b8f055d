package alloc

import (
	"github.com/joshuapare/kheap/internal/buf"
	"github.com/joshuapare/kheap/internal/format"
)

// BumpAllocator hands out memory by advancing a cursor through the heap.
//
// Key characteristics:
//   - O(1) allocation: align the cursor, check the end, advance
//   - O(1) deallocation: only a live counter is decremented
//   - Zero memory overhead: no headers, no free lists
//   - Reclamation happens only when the live counter drops to zero, at which
//     point the cursor jumps back to the heap start
//
// Suited to workloads that drain the heap completely from time to time.
type BumpAllocator struct {
	heapStart uintptr
	heapEnd   uintptr

	// next is the address the next allocation starts searching from.
	next uintptr

	// allocations counts blocks handed out and not yet released.
	allocations int

	stats Stats
}

// NewBump creates an empty BumpAllocator. Call Init before use.
func NewBump() *BumpAllocator {
	return &BumpAllocator{}
}

// Init sets the heap bounds. The bump allocator never touches heap memory,
// so mem is ignored.
func (ba *BumpAllocator) Init(_ Memory, start, size uintptr) {
	end, ok := buf.AddOverflowSafe(start, size)
	if !ok {
		invariantf("bump: heap %#x+%#x wraps the address space", start, size)
	}
	ba.heapStart = start
	ba.heapEnd = end
	ba.next = start
	ba.allocations = 0
}

// Alloc bumps the cursor past an aligned block of size bytes.
func (ba *BumpAllocator) Alloc(size, align uintptr) (uintptr, error) {
	ba.stats.AllocCalls++

	allocStart, ok := format.AlignUpChecked(ba.next, align)
	if !ok {
		ba.stats.AllocFailures++
		return 0, ErrOutOfMemory
	}
	allocEnd, ok := buf.AddOverflowSafe(allocStart, size)
	if !ok || allocEnd > ba.heapEnd {
		ba.stats.AllocFailures++
		return 0, ErrOutOfMemory
	}

	ba.next = allocEnd
	ba.allocations++
	ba.stats.Live = ba.allocations
	return allocStart, nil
}

// Dealloc drops the live counter and resets the cursor once it reaches zero.
// The block itself is not reclaimed.
func (ba *BumpAllocator) Dealloc(_, _, _ uintptr) {
	ba.stats.DeallocCalls++
	if ba.allocations == 0 {
		invariantf("bump: dealloc with no live allocations")
	}
	ba.allocations--
	if ba.allocations == 0 {
		ba.next = ba.heapStart
	}
	ba.stats.Live = ba.allocations
}

// Next returns the current cursor.
func (ba *BumpAllocator) Next() uintptr { return ba.next }

// Heap returns the managed window.
func (ba *BumpAllocator) Heap() Region {
	return Region{Start: ba.heapStart, Size: ba.heapEnd - ba.heapStart}
}

// Stats returns a snapshot of the allocator counters.
func (ba *BumpAllocator) Stats() Stats { return ba.stats }

// Compile-time interface check
var _ Strategy = (*BumpAllocator)(nil)
