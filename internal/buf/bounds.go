// Package buf contains overflow-checked address arithmetic and bounds-checked
// slicing shared by the allocators and the simulated physical memory.
package buf

import (
	"fmt"
)

// AddOverflowSafe adds a and b, returning ok = false when the result would
// wrap around the address space.
func AddOverflowSafe(a, b uintptr) (uintptr, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// MulOverflowSafe multiplies a and b, returning ok = false when the result would overflow.
// Used for count * elementSize calculations such as frame index to address.
func MulOverflowSafe(a, b uintptr) (uintptr, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > ^uintptr(0)/b {
		return 0, false
	}
	return a * b, true
}

// CheckRange validates that [start, start+size) lies inside [lo, hi).
// Returns the exclusive end of the range, or an error describing the
// specific failure (overflow or out of bounds).
//
//	end, err := buf.CheckRange(addr, size, heapStart, heapEnd)
//	if err != nil {
//	    return fmt.Errorf("region: %w", err)
//	}
func CheckRange(start, size, lo, hi uintptr) (uintptr, error) {
	end, ok := AddOverflowSafe(start, size)
	if !ok {
		return 0, fmt.Errorf("overflow: start=%#x + size=%#x", start, size)
	}
	if start < lo {
		return 0, fmt.Errorf("bounds: start=%#x < lo=%#x", start, lo)
	}
	if end > hi {
		return 0, fmt.Errorf("bounds: end=%#x > hi=%#x", end, hi)
	}
	return end, nil
}

// Slice returns the sub-slice [off:off+n] if it fits within len(b).
func Slice(b []byte, off, n int) ([]byte, bool) {
	if off < 0 || n < 0 || off > len(b) {
		return nil, false
	}
	end := off + n
	if end < off || end > len(b) {
		return nil, false
	}
	return b[off:end], true
}

// Has reports whether b[off:off+n] is within bounds.
func Has(b []byte, off, n int) bool {
	_, ok := Slice(b, off, n)
	return ok
}
