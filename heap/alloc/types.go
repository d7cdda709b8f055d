package alloc

// Memory is the window an allocator embeds its headers in. Addresses are
// virtual; implementations panic on addresses they cannot reach, the way a
// page fault would halt the kernel.
type Memory interface {
	// Uint64 reads the 8-byte word at addr.
	Uint64(addr uintptr) uint64

	// PutUint64 writes the 8-byte word v at addr.
	PutUint64(addr uintptr, v uint64)

	// Load copies len(p) bytes starting at addr into p.
	Load(addr uintptr, p []byte)

	// Store copies p into memory starting at addr.
	Store(addr uintptr, p []byte)
}

// Strategy is one heap allocation policy. Exactly one strategy instance is
// active per heap and it is only ever reached through a Locked.
//
// Implementations:
//   - BumpAllocator
//   - LinkedListAllocator
//   - FixedSizeBlockAllocator
type Strategy interface {
	// Init hands the strategy the heap window. It must be called exactly once,
	// after every page of the window is mapped and writable.
	Init(mem Memory, start, size uintptr)

	// Alloc returns the address of size bytes aligned to align, or
	// ErrOutOfMemory.
	Alloc(size, align uintptr) (uintptr, error)

	// Dealloc releases a block. size and align must match the Alloc call
	// that produced addr.
	Dealloc(addr, size, align uintptr)

	// Stats returns a snapshot of the strategy counters.
	Stats() Stats
}

// Region is a contiguous range of addresses [Start, Start+Size).
type Region struct {
	Start uintptr
	Size  uintptr
}

// End returns the exclusive end address of the region.
func (r Region) End() uintptr { return r.Start + r.Size }

// Contains reports whether addr lies within the region.
func (r Region) Contains(addr uintptr) bool {
	return addr >= r.Start && addr-r.Start < r.Size
}

// Stats holds allocator counters for testing and instrumentation.
// Fields that do not apply to a strategy stay zero.
type Stats struct {
	AllocCalls    int // Total Alloc() calls
	AllocFailures int // Alloc() calls that returned ErrOutOfMemory
	DeallocCalls  int // Total Dealloc() calls
	Live          int // Allocations not yet released

	Splits int // Free regions split with the remainder re-inserted

	ClassHits        int // Requests served by popping a class list
	ClassCarves      int // Class blocks carved from the fallback
	FallbackAllocs   int // Requests above the largest class
	FallbackDeallocs int // Releases routed to the fallback
}
