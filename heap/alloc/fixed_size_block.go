package alloc

import (
	"github.com/joshuapare/kheap/internal/format"
)

// FixedSizeBlockAllocator serves small requests from segregated free lists,
// one per size class, and everything else from an embedded
// LinkedListAllocator.
//
// Class lists start empty. The first request for a class carves one block of
// exactly the class size and alignment from the fallback; when that block is
// released it is pushed on the class list and stays there. Class blocks are
// never handed back to the fallback, so the heap is partitioned into classes
// lazily, by demand.
//
// Costs:
//   - O(1) alloc/dealloc once a class list is populated
//   - Internal fragmentation up to nearly 2x (a 9-byte request takes 16)
//   - Requests above MaxBlockSize get first-fit behaviour from the fallback
type FixedSizeBlockAllocator struct {
	mem Memory

	// listHeads holds the first free block of each class, or NilAddr.
	listHeads [NumClasses]uintptr

	fallback LinkedListAllocator

	stats Stats
}

// NewFixedSizeBlock creates an empty FixedSizeBlockAllocator. Call Init before use.
func NewFixedSizeBlock() *FixedSizeBlockAllocator {
	return &FixedSizeBlockAllocator{}
}

// Init gives the whole window to the fallback. Class lists stay empty.
func (fa *FixedSizeBlockAllocator) Init(mem Memory, start, size uintptr) {
	fa.mem = mem
	for i := range fa.listHeads {
		fa.listHeads[i] = format.NilAddr
	}
	fa.fallback.Init(mem, start, size)
}

// Alloc pops a block of the request's class, carves a new one from the
// fallback if the class list is empty, or passes oversized requests to the
// fallback unchanged.
func (fa *FixedSizeBlockAllocator) Alloc(size, align uintptr) (uintptr, error) {
	fa.stats.AllocCalls++

	idx, ok := listIndex(size, align)
	if !ok {
		fa.stats.FallbackAllocs++
		return fa.fallbackAlloc(size, align)
	}

	if head := fa.listHeads[idx]; head != format.NilAddr {
		fa.listHeads[idx] = uintptr(fa.mem.Uint64(head + format.BlockNodeNextOffset))
		fa.stats.ClassHits++
		fa.stats.Live++
		return head, nil
	}

	fa.stats.ClassCarves++
	blockSize := blockSizes[idx]
	return fa.fallbackAlloc(blockSize, blockSize)
}

func (fa *FixedSizeBlockAllocator) fallbackAlloc(size, align uintptr) (uintptr, error) {
	addr, err := fa.fallback.Alloc(size, align)
	if err != nil {
		fa.stats.AllocFailures++
		return 0, err
	}
	fa.stats.Live++
	return addr, nil
}

// Dealloc pushes a class block on its class list, or returns an oversized
// block to the fallback with the original size and alignment.
func (fa *FixedSizeBlockAllocator) Dealloc(addr, size, align uintptr) {
	fa.stats.DeallocCalls++
	fa.stats.Live--

	idx, ok := listIndex(size, align)
	if !ok {
		fa.stats.FallbackDeallocs++
		fa.fallback.Dealloc(addr, size, align)
		return
	}

	blockSize := blockSizes[idx]
	if format.BlockNodeSize > blockSize || format.BlockNodeAlign > blockSize {
		invariantf("fixed size block: class %d bytes cannot hold a %d-byte node", blockSize, format.BlockNodeSize)
	}
	if addr%blockSize != 0 {
		invariantf("fixed size block: dealloc %#x is not a %d-byte block", addr, blockSize)
	}

	fa.mem.PutUint64(addr+format.BlockNodeNextOffset, uint64(fa.listHeads[idx]))
	fa.listHeads[idx] = addr
}

// ClassLengths returns the number of free blocks on each class list.
func (fa *FixedSizeBlockAllocator) ClassLengths() [NumClasses]int {
	var lengths [NumClasses]int
	limit := fa.fallback.maxNodes()
	for i, head := range fa.listHeads {
		for cur := head; cur != format.NilAddr && lengths[i] < limit; {
			lengths[i]++
			cur = uintptr(fa.mem.Uint64(cur + format.BlockNodeNextOffset))
		}
	}
	return lengths
}

// Fallback exposes the embedded free-list allocator for inspection.
func (fa *FixedSizeBlockAllocator) Fallback() *LinkedListAllocator {
	return &fa.fallback
}

// Heap returns the managed window.
func (fa *FixedSizeBlockAllocator) Heap() Region {
	return fa.fallback.Heap()
}

// Stats returns a snapshot of the allocator counters.
func (fa *FixedSizeBlockAllocator) Stats() Stats { return fa.stats }

// Compile-time interface check
var _ Strategy = (*FixedSizeBlockAllocator)(nil)
