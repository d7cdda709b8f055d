package format

// Alignment utilities for addresses and sizes inside the heap window.
// Every alignment handled here is a power of two; callers guarantee it.

// IsPowerOfTwo reports whether n is a non-zero power of two.
func IsPowerOfTwo(n uintptr) bool {
	return n != 0 && n&(n-1) == 0
}

// AlignUp returns addr rounded up to the next multiple of align.
// The result wraps on overflow; use AlignUpChecked where that matters.
//
// Example:
//
//	AlignUp(1, 8)  = 8
//	AlignUp(8, 8)  = 8
//	AlignUp(9, 16) = 16
func AlignUp(addr, align uintptr) uintptr {
	return (addr + align - 1) &^ (align - 1)
}

// AlignUpChecked is AlignUp with overflow detection. ok is false when the
// rounded address does not fit in a uintptr.
func AlignUpChecked(addr, align uintptr) (uintptr, bool) {
	bumped := addr + (align - 1)
	if bumped < addr {
		return 0, false
	}
	return bumped &^ (align - 1), true
}

// AlignDown returns addr rounded down to a multiple of align.
//
// Example:
//
//	AlignDown(4097, PageSize) = 4096
func AlignDown(addr, align uintptr) uintptr {
	return addr &^ (align - 1)
}

// AlignPage returns n aligned up to the next 4KB page boundary.
func AlignPage(n uintptr) uintptr {
	return AlignUp(n, PageSize)
}

// IsPageAligned reports whether addr sits on a page boundary.
func IsPageAligned(addr uintptr) bool {
	return addr&PageMask == 0
}
