package alloc

import (
	"fmt"

	"github.com/joshuapare/kheap/internal/buf"
	"github.com/joshuapare/kheap/internal/format"
)

// SliceMemory is a flat Memory over a byte slice placed at a fixed base
// address. It stands in for a mapped heap window where no page tables are
// involved.
type SliceMemory struct {
	base uintptr
	data []byte
}

// NewSliceMemory returns size zeroed bytes addressable from base.
func NewSliceMemory(base uintptr, size int) *SliceMemory {
	return &SliceMemory{base: base, data: make([]byte, size)}
}

// Base returns the first addressable address.
func (m *SliceMemory) Base() uintptr { return m.base }

// Len returns the number of addressable bytes.
func (m *SliceMemory) Len() int { return len(m.data) }

func (m *SliceMemory) window(addr uintptr, n int) []byte {
	if addr < m.base || addr-m.base > uintptr(len(m.data)) {
		panic(fmt.Sprintf("alloc: address %#x outside memory [%#x, %#x)", addr, m.base, m.base+uintptr(len(m.data))))
	}
	b, ok := buf.Slice(m.data, int(addr-m.base), n)
	if !ok {
		panic(fmt.Sprintf("alloc: access %#x+%d outside memory [%#x, %#x)", addr, n, m.base, m.base+uintptr(len(m.data))))
	}
	return b
}

// Uint64 reads the word at addr.
func (m *SliceMemory) Uint64(addr uintptr) uint64 {
	return format.ReadU64(m.window(addr, format.WordSize), 0)
}

// PutUint64 writes the word v at addr.
func (m *SliceMemory) PutUint64(addr uintptr, v uint64) {
	format.PutU64(m.window(addr, format.WordSize), 0, v)
}

// Load copies len(p) bytes at addr into p.
func (m *SliceMemory) Load(addr uintptr, p []byte) {
	copy(p, m.window(addr, len(p)))
}

// Store copies p to addr.
func (m *SliceMemory) Store(addr uintptr, p []byte) {
	copy(m.window(addr, len(p)), p)
}

// Compile-time interface check
var _ Memory = (*SliceMemory)(nil)
