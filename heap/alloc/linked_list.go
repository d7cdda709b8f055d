package alloc

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/joshuapare/kheap/internal/buf"
	"github.com/joshuapare/kheap/internal/format"
)

// LinkedListAllocator keeps free memory as a singly linked list of regions.
// Each free region starts with a 16-byte node (size, next) written into the
// region itself. The list is in insertion order: freed blocks are pushed on
// the head, so the most recently freed region is tried first.
//
// Allocation is first fit over that order. The chosen region is unlinked and
// whatever is left behind the allocation goes back on the list as a new
// region. A remainder too small to carry a node would be lost, so regions
// that would leave one are skipped.
//
// Adjacent free regions are never merged.
type LinkedListAllocator struct {
	mem Memory

	// head is the sentinel: the address of the first node, or NilAddr.
	head uintptr

	heapStart uintptr
	heapEnd   uintptr

	stats Stats
}

// NewLinkedList creates an empty LinkedListAllocator. Call Init before use.
func NewLinkedList() *LinkedListAllocator {
	return &LinkedListAllocator{}
}

// Init turns the whole window into a single free region.
func (la *LinkedListAllocator) Init(mem Memory, start, size uintptr) {
	end, ok := buf.AddOverflowSafe(start, size)
	if !ok {
		invariantf("linked list: heap %#x+%#x wraps the address space", start, size)
	}
	if start == format.NilAddr {
		invariantf("linked list: heap cannot start at address zero")
	}
	la.mem = mem
	la.head = format.NilAddr
	la.heapStart = start
	la.heapEnd = end
	la.addFreeRegion(start, size)
}

// Alloc carves size bytes aligned to align out of the first region that fits.
func (la *LinkedListAllocator) Alloc(size, align uintptr) (uintptr, error) {
	la.stats.AllocCalls++

	size, align, ok := regionSizeAlign(size, align)
	if !ok {
		la.stats.AllocFailures++
		return 0, ErrOutOfMemory
	}

	region, regionSize, allocStart, found := la.findRegion(size, align)
	if !found {
		la.stats.AllocFailures++
		return 0, ErrOutOfMemory
	}

	allocEnd := allocStart + size
	if excess := region + regionSize - allocEnd; excess > 0 {
		la.stats.Splits++
		la.addFreeRegion(allocEnd, excess)
	}

	la.stats.Live++
	return allocStart, nil
}

// Dealloc pushes the block back on the list head as a new free region.
func (la *LinkedListAllocator) Dealloc(addr, size, align uintptr) {
	la.stats.DeallocCalls++

	regionSize, _, ok := regionSizeAlign(size, align)
	if !ok {
		invariantf("linked list: dealloc size %#x align %#x cannot come from Alloc", size, align)
	}
	if _, err := buf.CheckRange(addr, regionSize, la.heapStart, la.heapEnd); err != nil {
		invariantf("linked list: dealloc %#x outside heap: %v", addr, err)
	}

	la.addFreeRegion(addr, regionSize)
	la.stats.Live--
}

// regionSizeAlign adjusts a request so the block can later be turned back
// into a free region node: at least node-aligned and node-sized, with the
// size padded to a multiple of the alignment. ok is false if padding
// overflows.
func regionSizeAlign(size, align uintptr) (uintptr, uintptr, bool) {
	align = max(align, format.RegionNodeAlign)
	size, ok := format.AlignUpChecked(size, align)
	if !ok {
		return 0, 0, false
	}
	return max(size, format.RegionNodeSize), align, true
}

// addFreeRegion writes a node at addr and pushes it on the head of the list.
func (la *LinkedListAllocator) addFreeRegion(addr, size uintptr) {
	if format.AlignUp(addr, format.RegionNodeAlign) != addr {
		invariantf("linked list: region %#x is not node aligned", addr)
	}
	if size < format.RegionNodeSize {
		invariantf("linked list: region %#x of %d bytes cannot hold a node", addr, size)
	}

	la.mem.PutUint64(addr+format.RegionNodeSizeOffset, uint64(size))
	la.mem.PutUint64(addr+format.RegionNodeNextOffset, uint64(la.head))
	la.head = addr
}

// findRegion walks the list for the first region that can hold the request
// and unlinks it. Returns the region address and size and the aligned
// allocation start.
func (la *LinkedListAllocator) findRegion(size, align uintptr) (uintptr, uintptr, uintptr, bool) {
	prev := uintptr(format.NilAddr)
	for cur := la.head; cur != format.NilAddr; {
		curSize := la.nodeSize(cur)
		next := la.nodeNext(cur)

		if allocStart, ok := allocFromRegion(cur, curSize, size, align); ok {
			la.setNext(prev, next)
			return cur, curSize, allocStart, true
		}

		prev = cur
		cur = next
	}
	return 0, 0, 0, false
}

// allocFromRegion reports where an allocation would start inside the region,
// rejecting regions that are too small or would leave an unusable sliver.
func allocFromRegion(region, regionSize, size, align uintptr) (uintptr, bool) {
	allocStart, ok := format.AlignUpChecked(region, align)
	if !ok {
		return 0, false
	}
	allocEnd, ok := buf.AddOverflowSafe(allocStart, size)
	if !ok {
		return 0, false
	}

	regionEnd := region + regionSize
	if allocEnd > regionEnd {
		return 0, false
	}

	excess := regionEnd - allocEnd
	if excess > 0 && excess < format.RegionNodeSize {
		return 0, false
	}
	return allocStart, true
}

func (la *LinkedListAllocator) nodeSize(node uintptr) uintptr {
	return uintptr(la.mem.Uint64(node + format.RegionNodeSizeOffset))
}

func (la *LinkedListAllocator) nodeNext(node uintptr) uintptr {
	return uintptr(la.mem.Uint64(node + format.RegionNodeNextOffset))
}

// setNext points prev at next; a NilAddr prev is the sentinel head.
func (la *LinkedListAllocator) setNext(prev, next uintptr) {
	if prev == format.NilAddr {
		la.head = next
		return
	}
	la.mem.PutUint64(prev+format.RegionNodeNextOffset, uint64(next))
}

// Heap returns the managed window.
func (la *LinkedListAllocator) Heap() Region {
	return Region{Start: la.heapStart, Size: la.heapEnd - la.heapStart}
}

// Stats returns a snapshot of the allocator counters.
func (la *LinkedListAllocator) Stats() Stats { return la.stats }

// maxNodes bounds list walks so a corrupted cycle cannot spin forever.
func (la *LinkedListAllocator) maxNodes() int {
	return int((la.heapEnd-la.heapStart)/format.RegionNodeSize) + 1
}

// FreeRegions returns the free list in list order.
func (la *LinkedListAllocator) FreeRegions() []Region {
	var regions []Region
	limit := la.maxNodes()
	for cur := la.head; cur != format.NilAddr && len(regions) < limit; cur = la.nodeNext(cur) {
		regions = append(regions, Region{Start: cur, Size: la.nodeSize(cur)})
	}
	return regions
}

// FreeBytes returns the total size of all free regions.
func (la *LinkedListAllocator) FreeBytes() uintptr {
	var total uintptr
	for _, r := range la.FreeRegions() {
		total += r.Size
	}
	return total
}

// Validate walks the free list and checks that every node lies inside the
// heap, is node aligned, can hold its own header, and does not overlap any
// other node. It returns an error wrapping ErrCorruptFreeList on the first
// violation.
func (la *LinkedListAllocator) Validate() error {
	var regions []Region
	limit := la.maxNodes()
	for cur := la.head; cur != format.NilAddr; cur = la.nodeNext(cur) {
		if len(regions) >= limit {
			return errors.Wrapf(ErrCorruptFreeList, "more than %d nodes, list has a cycle", limit)
		}
		if cur%format.RegionNodeAlign != 0 {
			return errors.Wrapf(ErrCorruptFreeList, "node %#x is not %d-byte aligned", cur, format.RegionNodeAlign)
		}
		if !la.Heap().Contains(cur) {
			return errors.Wrapf(ErrCorruptFreeList, "node %#x outside heap", cur)
		}
		size := la.nodeSize(cur)
		if size < format.RegionNodeSize {
			return errors.Wrapf(ErrCorruptFreeList, "node %#x size %d smaller than header", cur, size)
		}
		if _, err := buf.CheckRange(cur, size, la.heapStart, la.heapEnd); err != nil {
			return errors.Wrapf(ErrCorruptFreeList, "node %#x: %v", cur, err)
		}
		regions = append(regions, Region{Start: cur, Size: size})
	}

	sort.Slice(regions, func(i, j int) bool { return regions[i].Start < regions[j].Start })
	for i := 1; i < len(regions); i++ {
		if regions[i-1].End() > regions[i].Start {
			return errors.Wrapf(ErrCorruptFreeList, "node %#x overlaps node %#x",
				regions[i-1].Start, regions[i].Start)
		}
	}
	return nil
}

// Compile-time interface check
var _ Strategy = (*LinkedListAllocator)(nil)
