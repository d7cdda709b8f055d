package vm

import (
	"github.com/pkg/errors"
)

// LowMemoryReserved is the physical range below 1 MiB that firmware and the
// boot loader keep for themselves. It never reaches the frame provider.
const LowMemoryReserved = 1 << 20

// Machine bundles the pieces a booting kernel is handed: physical memory,
// the boot memory map, a frame provider over its usable regions and the
// active address space.
type Machine struct {
	Phys      *PhysicalMemory
	MemoryMap []MemoryRegion
	Frames    *RegionFrameProvider
	Space     *AddressSpace
}

// NewMachine creates a machine with physBytes of RAM. The level-4 table of
// the address space is the first frame the provider hands out.
func NewMachine(physBytes int) (*Machine, error) {
	phys, err := NewPhysicalMemory(physBytes)
	if err != nil {
		return nil, err
	}
	if phys.Size() <= LowMemoryReserved {
		_ = phys.Close()
		return nil, errors.Errorf("vm: %d bytes of RAM leave nothing above the reserved low 1 MiB", phys.Size())
	}

	memoryMap := []MemoryRegion{
		{Start: 0, End: LowMemoryReserved, Kind: RegionReserved},
		{Start: LowMemoryReserved, End: phys.Size(), Kind: RegionUsable},
	}
	frames := NewRegionFrameProvider(memoryMap)

	space, err := NewAddressSpace(phys, frames)
	if err != nil {
		_ = phys.Close()
		return nil, err
	}

	return &Machine{
		Phys:      phys,
		MemoryMap: memoryMap,
		Frames:    frames,
		Space:     space,
	}, nil
}

// Close releases the machine's physical memory.
func (m *Machine) Close() error {
	return m.Phys.Close()
}
