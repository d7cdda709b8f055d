package alloc

import (
	"github.com/joshuapare/kheap/internal/format"
)

// Locked serializes every call into one Strategy. It is the allocator the
// rest of the kernel talks to.
type Locked struct {
	mu    SpinLock
	inner Strategy
	mem   Memory
}

// NewLocked wraps s. Locked takes exclusive ownership of the strategy.
func NewLocked(s Strategy) *Locked {
	return &Locked{inner: s}
}

// Init hands the heap window to the wrapped strategy. Call exactly once.
func (l *Locked) Init(mem Memory, start, size uintptr) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.mem = mem
	l.inner.Init(mem, start, size)
}

// Alloc returns size bytes aligned to align, or ErrOutOfMemory.
func (l *Locked) Alloc(size, align uintptr) (uintptr, error) {
	checkAlign(align)

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Alloc(size, align)
}

// Dealloc releases a block. size and align must match the Alloc call.
func (l *Locked) Dealloc(addr, size, align uintptr) {
	checkAlign(align)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.inner.Dealloc(addr, size, align)
}

// Realloc moves a block to one of newSize bytes with the same alignment.
// The first min(size, newSize) bytes are preserved. On failure the old block
// is left untouched and still owned by the caller.
func (l *Locked) Realloc(addr, size, align, newSize uintptr) (uintptr, error) {
	newAddr, err := l.Alloc(newSize, align)
	if err != nil {
		return 0, err
	}

	if n := min(size, newSize); n > 0 {
		tmp := make([]byte, n)
		l.mem.Load(addr, tmp)
		l.mem.Store(newAddr, tmp)
	}

	l.Dealloc(addr, size, align)
	return newAddr, nil
}

// Memory returns the memory the heap lives in, as passed to Init.
func (l *Locked) Memory() Memory {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mem
}

// With runs fn with the strategy while holding the lock. fn must not call
// back into l.
func (l *Locked) With(fn func(Strategy)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.inner)
}

// Stats returns a snapshot of the wrapped strategy's counters.
func (l *Locked) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Stats()
}

func checkAlign(align uintptr) {
	if !format.IsPowerOfTwo(align) {
		invariantf("alignment %d is not a power of two", align)
	}
}
