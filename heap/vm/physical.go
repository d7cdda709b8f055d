package vm

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/joshuapare/kheap/internal/buf"
	"github.com/joshuapare/kheap/internal/format"
	"github.com/joshuapare/kheap/internal/physmem"
)

// PhysicalMemory is simulated RAM addressed from physical address zero.
type PhysicalMemory struct {
	data  []byte
	unmap func() error
}

// NewPhysicalMemory reserves size bytes of zeroed RAM. size is rounded down
// to whole frames.
func NewPhysicalMemory(size int) (*PhysicalMemory, error) {
	size = int(format.AlignDown(uintptr(size), format.PageSize))
	if size <= 0 {
		return nil, errors.Errorf("vm: physical memory of %d bytes holds no frame", size)
	}
	data, unmap, err := physmem.Map(size)
	if err != nil {
		return nil, errors.Wrap(err, "vm: reserve physical memory")
	}
	return &PhysicalMemory{data: data, unmap: unmap}, nil
}

// Size returns the number of bytes of RAM.
func (pm *PhysicalMemory) Size() uint64 { return uint64(len(pm.data)) }

// FrameCount returns the number of frames of RAM.
func (pm *PhysicalMemory) FrameCount() uint64 { return pm.Size() >> format.PageShift }

// Contains reports whether the frame lies inside RAM.
func (pm *PhysicalMemory) Contains(f Frame) bool {
	return f.Valid() && uint64(f) < pm.FrameCount()
}

// bytes returns the n bytes at phys; the range must be inside RAM.
func (pm *PhysicalMemory) bytes(phys uint64, n int) []byte {
	if phys > uint64(len(pm.data)) {
		panic(fmt.Sprintf("vm: physical address %#x beyond RAM (%#x bytes)", phys, len(pm.data)))
	}
	b, ok := buf.Slice(pm.data, int(phys), n)
	if !ok {
		panic(fmt.Sprintf("vm: physical access %#x+%d beyond RAM (%#x bytes)", phys, n, len(pm.data)))
	}
	return b
}

// Uint64 reads the word at phys.
func (pm *PhysicalMemory) Uint64(phys uint64) uint64 {
	return format.ReadU64(pm.bytes(phys, format.WordSize), 0)
}

// PutUint64 writes the word v at phys.
func (pm *PhysicalMemory) PutUint64(phys, v uint64) {
	format.PutU64(pm.bytes(phys, format.WordSize), 0, v)
}

// ZeroFrame clears every byte of the frame.
func (pm *PhysicalMemory) ZeroFrame(f Frame) {
	clear(pm.bytes(f.Address(), format.PageSize))
}

// Close releases the backing memory.
func (pm *PhysicalMemory) Close() error {
	if pm.unmap == nil {
		return nil
	}
	err := pm.unmap()
	pm.unmap = nil
	pm.data = nil
	return err
}
