package vm

import (
	"github.com/joshuapare/kheap/internal/format"
)

// RegionKind classifies a range of the boot memory map.
type RegionKind uint8

const (
	RegionUsable RegionKind = iota
	RegionReserved
	RegionKernel
	RegionPageTable
)

func (k RegionKind) String() string {
	switch k {
	case RegionUsable:
		return "usable"
	case RegionReserved:
		return "reserved"
	case RegionKernel:
		return "kernel"
	case RegionPageTable:
		return "page-table"
	default:
		return "unknown"
	}
}

// MemoryRegion is one entry of the boot memory map: physical [Start, End).
type MemoryRegion struct {
	Start uint64
	End   uint64
	Kind  RegionKind
}

// RegionFrameProvider returns every page-aligned frame of the usable
// regions of a memory map, in map order.
//
// The provider is forward-only: it remembers the region and address it
// stopped at, hands out each frame once, and has no way to take frames
// back. Once the kernel's real allocators are up they take over.
type RegionFrameProvider struct {
	regions []MemoryRegion

	// region is the index of the map entry the next frame comes from.
	region int

	// next is the physical address of the next candidate frame.
	next uint64

	allocated int
}

// NewRegionFrameProvider creates a provider over a copy of regions.
func NewRegionFrameProvider(regions []MemoryRegion) *RegionFrameProvider {
	p := &RegionFrameProvider{regions: append([]MemoryRegion(nil), regions...)}
	return p
}

// AllocateFrame reserves the next usable frame. It returns false once the
// usable regions are exhausted.
func (p *RegionFrameProvider) AllocateFrame() (Frame, bool) {
	for p.region < len(p.regions) {
		r := p.regions[p.region]
		if r.Kind != RegionUsable {
			p.region++
			continue
		}

		start := alignFrame(r.Start)
		if p.next < start {
			p.next = start
		}
		if p.next+format.PageSize <= r.End && p.next+format.PageSize > p.next {
			f := FrameContaining(p.next)
			p.next += format.PageSize
			p.allocated++
			return f, true
		}
		p.region++
	}
	return InvalidFrame, false
}

// Allocated returns the number of frames handed out so far.
func (p *RegionFrameProvider) Allocated() int { return p.allocated }

// UsableFrames returns the total number of frames the map offers.
func (p *RegionFrameProvider) UsableFrames() int {
	total := 0
	for _, r := range p.regions {
		if r.Kind != RegionUsable {
			continue
		}
		start := alignFrame(r.Start)
		if r.End > start {
			total += int((r.End - start) >> format.PageShift)
		}
	}
	return total
}

// alignFrame rounds a physical address up to a frame boundary.
func alignFrame(phys uint64) uint64 {
	return (phys + format.PageMask) &^ format.PageMask
}

// Compile-time interface check
var _ FrameProvider = (*RegionFrameProvider)(nil)
