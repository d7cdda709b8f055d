// Package heap is the kernel's process-wide allocator.
//
// The heap occupies a fixed virtual window. Init backs that window with
// physical frames once during boot; afterwards every component allocates
// through Alloc and Dealloc, which serialize on a single spin lock around the
// strategy selected at build time:
//
//	(default)         fixed-size-block classes with a free-list fallback
//	-tags heap_linkedlist  first-fit free list without coalescing
//	-tags heap_bump        bump pointer, reset when everything is freed
package heap

import (
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/joshuapare/kheap/heap/alloc"
	"github.com/joshuapare/kheap/heap/boot"
	"github.com/joshuapare/kheap/heap/vm"
	"github.com/joshuapare/kheap/internal/logger"
)

const (
	// Start is the first address of the heap window.
	Start = 0x_4444_4444_0000

	// Size is the size of the heap window (100 KiB).
	Size = 100 * 1024
)

// Window returns the heap window as a region.
func Window() alloc.Region {
	return alloc.Region{Start: Start, Size: Size}
}

var (
	// ErrAlreadyInitialized is returned by every Init call after the first,
	// whether the first succeeded or not.
	ErrAlreadyInitialized = errors.New("heap: already initialized")

	// ErrNotReady is returned by Alloc before a successful Init.
	ErrNotReady = errors.New("heap: not initialized")
)

// State is the lifecycle position of the global heap.
type State int32

const (
	StateUninitialized State = iota
	StateBooting
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBooting:
		return "booting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	state  atomic.Int32
	global = alloc.NewLocked(newStrategy())
)

// Init maps the heap window in space with frames from frames and initializes
// the global allocator over it. Only the first call does anything; a failed
// bootstrap is not retried.
func Init(space boot.Space, frames vm.FrameProvider) error {
	if !state.CompareAndSwap(int32(StateUninitialized), int32(StateBooting)) {
		return ErrAlreadyInitialized
	}

	logger.Info("heap: initializing", "strategy", StrategyName, "start", uintptr(Start), "size", Size)
	if err := boot.InitHeap(Window(), space, frames, global); err != nil {
		state.Store(int32(StateFailed))
		logger.Error("heap: bootstrap failed", "error", err)
		return errors.WithMessage(err, "heap: init")
	}

	state.Store(int32(StateReady))
	logger.Info("heap: ready", "strategy", StrategyName)
	return nil
}

// CurrentState returns the lifecycle state of the global heap.
func CurrentState() State { return State(state.Load()) }

// Ready reports whether Init completed successfully.
func Ready() bool { return CurrentState() == StateReady }

// Default returns the global allocator. It must not be used before Init has
// returned successfully.
func Default() *alloc.Locked { return global }

// Alloc returns size bytes aligned to align from the global heap.
func Alloc(size, align uintptr) (uintptr, error) {
	if !Ready() {
		return 0, ErrNotReady
	}
	return global.Alloc(size, align)
}

// Dealloc releases a block obtained from Alloc with the same size and align.
func Dealloc(addr, size, align uintptr) {
	global.Dealloc(addr, size, align)
}

// Realloc moves a block to one of newSize bytes, preserving its contents.
func Realloc(addr, size, align, newSize uintptr) (uintptr, error) {
	if !Ready() {
		return 0, ErrNotReady
	}
	return global.Realloc(addr, size, align, newSize)
}

// Memory returns the address space the heap was mapped in.
func Memory() alloc.Memory { return global.Memory() }

// Stats returns the global allocator counters.
func Stats() alloc.Stats { return global.Stats() }
