// Package boot backs the kernel heap window with physical memory and hands
// it to the allocator.
//
// InitHeap runs once during boot, before anything allocates:
//
//	err := boot.InitHeap(window, space, frames, allocator)
//	if err != nil {
//	    // startup cannot continue
//	}
//
// Every page of the window gets its own frame, mapped present and writable,
// and its stale translation is flushed before the allocator ever touches
// it. The allocator is initialized exactly once, after the last page.
package boot

import (
	"github.com/pkg/errors"

	"github.com/joshuapare/kheap/heap/alloc"
	"github.com/joshuapare/kheap/heap/vm"
	"github.com/joshuapare/kheap/internal/buf"
	"github.com/joshuapare/kheap/internal/format"
	"github.com/joshuapare/kheap/internal/logger"
)

// HeapFlags are the permissions every heap page is mapped with.
const HeapFlags = vm.FlagPresent | vm.FlagWritable

// Space is the address space the heap lives in: it installs mappings and
// gives the allocator access to the mapped window.
type Space interface {
	vm.Mapper
	alloc.Memory
}

// Target is the allocator the window is handed to.
type Target interface {
	Init(mem alloc.Memory, start, size uintptr)
}

// InitHeap maps every page of w to a fresh frame from frames and then
// initializes target over w. The frame provider also supplies any page
// tables the mapper needs. On error target is left uninitialized and the
// pages already mapped stay mapped.
func InitHeap(w alloc.Region, space Space, frames vm.FrameProvider, target Target) error {
	last, err := windowLast(w)
	if err != nil {
		return err
	}

	pages := vm.PageRange(w.Start, last)
	logger.Debug("boot: mapping heap window",
		"start", w.Start, "size", w.Size, "pages", len(pages))

	for _, page := range pages {
		frame, ok := frames.AllocateFrame()
		if !ok {
			return &Error{Kind: ErrFrameAllocationFailed, Page: page}
		}

		flush, err := space.MapTo(page, frame, HeapFlags, frames)
		if err != nil {
			kind := ErrMappingFailed
			if errors.Is(err, vm.ErrFrameExhausted) {
				kind = ErrFrameAllocationFailed
			}
			return &Error{Kind: kind, Page: page, Err: err}
		}
		flush.Flush()
	}

	logger.Debug("boot: heap window mapped, initializing allocator", "pages", len(pages))
	target.Init(space, w.Start, w.Size)
	return nil
}

// windowLast returns the address of the window's last byte.
func windowLast(w alloc.Region) (uintptr, error) {
	if w.Size == 0 {
		return 0, errors.Wrap(ErrBadWindow, "empty")
	}
	if !format.IsPageAligned(w.Start) {
		return 0, errors.Wrapf(ErrBadWindow, "start %#x is not page aligned", w.Start)
	}
	if _, ok := buf.AddOverflowSafe(w.Start, w.Size-1); !ok {
		return 0, errors.Wrapf(ErrBadWindow, "%#x+%#x wraps the address space", w.Start, w.Size)
	}
	return w.Start + w.Size - 1, nil
}
