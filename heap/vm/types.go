package vm

import (
	"fmt"
	"math"

	"github.com/joshuapare/kheap/internal/format"
)

// Frame describes a physical memory frame index.
type Frame uint64

const (
	// InvalidFrame is returned by frame providers when they fail to reserve
	// a frame.
	InvalidFrame = Frame(math.MaxUint64)
)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical address of the first byte of the frame.
func (f Frame) Address() uint64 {
	return uint64(f) << format.PageShift
}

// FrameContaining returns the frame holding the physical address.
func FrameContaining(phys uint64) Frame {
	return Frame(phys >> format.PageShift)
}

func (f Frame) String() string {
	return fmt.Sprintf("frame(%#x)", f.Address())
}

// Page describes a virtual memory page index.
type Page uintptr

// Address returns the virtual address of the first byte of the page.
func (p Page) Address() uintptr {
	return uintptr(p) << format.PageShift
}

// PageContaining returns the page that holds the virtual address. Unaligned
// addresses are rounded down.
func PageContaining(addr uintptr) Page {
	return Page(addr >> format.PageShift)
}

// PageRange returns every page from the page containing start up to and
// including the page containing last.
func PageRange(start, last uintptr) []Page {
	first, end := PageContaining(start), PageContaining(last)
	if end < first {
		return nil
	}
	pages := make([]Page, 0, end-first+1)
	for p := first; ; p++ {
		pages = append(pages, p)
		if p == end {
			break
		}
	}
	return pages
}

func (p Page) String() string {
	return fmt.Sprintf("page(%#x)", p.Address())
}

// Flags are page table entry permission bits.
type Flags uint64

const (
	FlagPresent        Flags = 1 << 0
	FlagWritable       Flags = 1 << 1
	FlagUserAccessible Flags = 1 << 2
	FlagNoExecute      Flags = 1 << 63

	// entryAddrMask selects the frame address bits (12..51) of an entry.
	entryAddrMask = 0x000f_ffff_ffff_f000
	entryFlagMask = ^uint64(entryAddrMask)
)

// Has reports whether all bits of want are set.
func (f Flags) Has(want Flags) bool {
	return f&want == want
}

func (f Flags) String() string {
	s := ""
	for _, b := range []struct {
		flag Flags
		name string
	}{
		{FlagPresent, "P"},
		{FlagWritable, "W"},
		{FlagUserAccessible, "U"},
		{FlagNoExecute, "NX"},
	} {
		if f.Has(b.flag) {
			if s != "" {
				s += "|"
			}
			s += b.name
		}
	}
	if s == "" {
		return "-"
	}
	return s
}

// FrameProvider supplies unused physical frames. It is exhaustible and
// forward-only: a frame is never handed out twice and never taken back.
type FrameProvider interface {
	AllocateFrame() (Frame, bool)
}

// FrameProviderFunc adapts a function to FrameProvider.
type FrameProviderFunc func() (Frame, bool)

// AllocateFrame calls f.
func (f FrameProviderFunc) AllocateFrame() (Frame, bool) { return f() }

// Mapper installs virtual → physical translations. frames supplies any
// intermediate page tables the mapping needs. The returned Flush must be
// applied (or explicitly ignored) by the caller.
type Mapper interface {
	MapTo(page Page, frame Frame, flags Flags, frames FrameProvider) (Flush, error)
}

// TranslationCache holds cached page translations that go stale when a
// mapping changes.
type TranslationCache interface {
	Invalidate(page Page)
}

// Flush is the pending invalidation of one page's cached translation.
type Flush struct {
	cache TranslationCache
	page  Page
}

// NewFlush returns a pending invalidation of page in cache.
func NewFlush(cache TranslationCache, page Page) Flush {
	return Flush{cache: cache, page: page}
}

// Flush drops the cached translation.
func (f Flush) Flush() {
	if f.cache != nil {
		f.cache.Invalidate(f.page)
	}
}

// Ignore discards the invalidation. Only correct when the page was never
// translated before the change.
func (f Flush) Ignore() {}

// Page returns the page to invalidate.
func (f Flush) Page() Page { return f.page }
