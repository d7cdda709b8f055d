// Package alloc provides the kernel heap allocation strategies and the lock
// that serializes access to them.
//
// # Overview
//
// Every strategy manages a fixed window [start, start+size) of virtual memory
// handed to it once by Init. Bookkeeping lives inside that window: free
// regions and free blocks carry their own headers, written through the
// Memory capability. Nothing outside this package walks those headers;
// callers only ever see opaque addresses.
//
// # Strategies
//
// BumpAllocator: monotonic cursor
//
//   - O(1) allocation and deallocation
//   - No per-allocation metadata
//   - Memory is reclaimed only when every live allocation has been freed
//
// LinkedListAllocator: first-fit free list
//
//   - Free regions form a singly linked list in insertion order
//   - Regions are split on allocation; freed blocks are pushed on the head
//   - Adjacent free regions are never coalesced
//
// FixedSizeBlockAllocator: segregated size classes with a free-list fallback
//
//   - 9 classes, 8B to 2KB, each block aligned to its own size
//   - O(1) pop/push for class-sized requests
//   - Class blocks are carved lazily from the fallback and never returned to it
//   - Requests above 2KB go straight to the fallback
//
// # Usage Example
//
//	a := alloc.NewLocked(alloc.NewFixedSizeBlock())
//	a.Init(mem, heapStart, heapSize)
//
//	addr, err := a.Alloc(64, 8)
//	if err != nil {
//	    return err // alloc.ErrOutOfMemory
//	}
//	defer a.Dealloc(addr, 64, 8)
//
// # Caller Contract
//
// Alignments are powers of two. Dealloc must receive the exact size and
// alignment passed to the matching Alloc. Use-after-free and double free are
// not detected.
//
// # Thread Safety
//
// Strategies are not thread-safe. Locked wraps exactly one strategy behind a
// SpinLock held for the duration of one call. A strategy must never call back
// into a Locked while it holds the lock.
package alloc
