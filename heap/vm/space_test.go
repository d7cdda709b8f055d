package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/kheap/heap/alloc"
)

const (
	testWindowStart = 0x_4444_4444_0000
	testPhysBytes   = 4 << 20
)

var _ alloc.Memory = (*AddressSpace)(nil)

// newTestMachine returns a 4 MiB machine released at test end.
func newTestMachine(t testing.TB) *Machine {
	t.Helper()
	m, err := NewMachine(testPhysBytes)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// mapPage backs the page containing addr with a fresh frame.
func mapPage(t testing.TB, m *Machine, addr uintptr, flags Flags) Frame {
	t.Helper()
	f, ok := m.Frames.AllocateFrame()
	require.True(t, ok, "frame provider exhausted")
	flush, err := m.Space.MapTo(PageContaining(addr), f, flags, m.Frames)
	require.NoError(t, err)
	flush.Flush()
	return f
}

// requirePageFault runs fn and returns the *PageFault it panics with.
func requirePageFault(t testing.TB, fn func()) (fault *PageFault) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a page fault")
		var ok bool
		fault, ok = r.(*PageFault)
		require.True(t, ok, "panic value %v is not a *PageFault", r)
	}()
	fn()
	return nil
}

func TestAddressSpace_MapAndTranslate(t *testing.T) {
	m := newTestMachine(t)
	f := mapPage(t, m, testWindowStart, FlagPresent|FlagWritable)

	phys, ok := m.Space.Translate(testWindowStart + 0x123)
	require.True(t, ok)
	assert.Equal(t, f.Address()+0x123, phys)

	_, ok = m.Space.Translate(testWindowStart + 0x1000)
	assert.False(t, ok, "next page is unmapped")
}

func TestAddressSpace_IntermediateTablesShared(t *testing.T) {
	m := newTestMachine(t)
	root := m.Frames.Allocated()
	require.Equal(t, 1, root, "level 4 table is the first frame")

	mapPage(t, m, testWindowStart, FlagPresent|FlagWritable)
	// one data frame plus level 3, 2 and 1 tables
	assert.Equal(t, 5, m.Frames.Allocated())

	for i := uintptr(1); i < 25; i++ {
		mapPage(t, m, testWindowStart+i*0x1000, FlagPresent|FlagWritable)
	}
	assert.Equal(t, 1+3+25, m.Frames.Allocated(), "the window shares one level 1 table")
}

func TestAddressSpace_AlreadyMapped(t *testing.T) {
	m := newTestMachine(t)
	mapPage(t, m, testWindowStart, FlagPresent|FlagWritable)

	f, ok := m.Frames.AllocateFrame()
	require.True(t, ok)
	_, err := m.Space.MapTo(PageContaining(testWindowStart), f, FlagPresent, m.Frames)
	require.ErrorIs(t, err, ErrPageAlreadyMapped)
}

func TestAddressSpace_TableFramesExhausted(t *testing.T) {
	m := newTestMachine(t)
	f, ok := m.Frames.AllocateFrame()
	require.True(t, ok)

	empty := FrameProviderFunc(func() (Frame, bool) { return InvalidFrame, false })
	_, err := m.Space.MapTo(PageContaining(testWindowStart), f, FlagPresent|FlagWritable, empty)
	require.ErrorIs(t, err, ErrFrameExhausted)
}

func TestAddressSpace_RejectsBadInputs(t *testing.T) {
	m := newTestMachine(t)

	_, err := m.Space.MapTo(PageContaining(testWindowStart), Frame(1<<30), FlagPresent, m.Frames)
	require.ErrorIs(t, err, ErrFrameOutOfRange)

	nonCanonical := Page(uintptr(1) << (47 - 12))
	_, err = m.Space.MapTo(nonCanonical, Frame(300), FlagPresent, m.Frames)
	require.ErrorIs(t, err, ErrNonCanonical)
}

func TestAddressSpace_ReadWrite(t *testing.T) {
	m := newTestMachine(t)
	mapPage(t, m, testWindowStart, FlagPresent|FlagWritable)
	mapPage(t, m, testWindowStart+0x1000, FlagPresent|FlagWritable)

	m.Space.PutUint64(testWindowStart+8, 0x0102_0304_0506_0708)
	assert.Equal(t, uint64(0x0102_0304_0506_0708), m.Space.Uint64(testWindowStart+8))

	// A word crossing into the next page lands in two different frames.
	m.Space.PutUint64(testWindowStart+0xffc, 0x1122_3344_5566_7788)
	assert.Equal(t, uint64(0x1122_3344_5566_7788), m.Space.Uint64(testWindowStart+0xffc))
	assert.Equal(t, uint64(0x1122_3344), m.Space.Uint64(testWindowStart+0x1000)&0xffff_ffff)

	data := make([]byte, 6000)
	for i := range data {
		data[i] = byte(i * 7)
	}
	m.Space.Store(testWindowStart+100, data)
	got := make([]byte, len(data))
	m.Space.Load(testWindowStart+100, got)
	assert.Equal(t, data, got)
}

func TestAddressSpace_PageFaults(t *testing.T) {
	m := newTestMachine(t)

	fault := requirePageFault(t, func() { m.Space.Uint64(testWindowStart) })
	assert.Equal(t, uintptr(testWindowStart), fault.Addr)
	assert.False(t, fault.Write)
	assert.False(t, fault.Present)

	mapPage(t, m, testWindowStart, FlagPresent)
	assert.Zero(t, m.Space.Uint64(testWindowStart), "read-only page is readable")

	fault = requirePageFault(t, func() { m.Space.PutUint64(testWindowStart+16, 1) })
	assert.True(t, fault.Write)
	assert.True(t, fault.Present)
	assert.Contains(t, fault.Error(), "protection violation")

	fault = requirePageFault(t, func() { m.Space.Store(testWindowStart+0xff0, make([]byte, 32)) })
	assert.Equal(t, uintptr(testWindowStart+0xff0), fault.Addr, "read-only page faults first")
}

func TestAddressSpace_StaleTranslationUntilFlush(t *testing.T) {
	m := newTestMachine(t)
	mapPage(t, m, testWindowStart, FlagPresent|FlagWritable)
	flushesAfterMap := m.Space.Flushes()

	m.Space.PutUint64(testWindowStart, 42) // caches the translation

	_, flush, err := m.Space.Unmap(PageContaining(testWindowStart))
	require.NoError(t, err)
	_, ok := m.Space.Translate(testWindowStart)
	assert.False(t, ok, "page tables no longer map the page")
	assert.Equal(t, uint64(42), m.Space.Uint64(testWindowStart), "cached translation is still used")

	flush.Flush()
	assert.Equal(t, flushesAfterMap+1, m.Space.Flushes())
	requirePageFault(t, func() { m.Space.Uint64(testWindowStart) })
}

func TestAddressSpace_UnmapMissing(t *testing.T) {
	m := newTestMachine(t)
	_, _, err := m.Space.Unmap(PageContaining(testWindowStart))
	require.ErrorIs(t, err, ErrPageNotMapped)

	mapPage(t, m, testWindowStart, FlagPresent|FlagWritable)
	_, _, err = m.Space.Unmap(PageContaining(testWindowStart + 0x1000))
	require.ErrorIs(t, err, ErrPageNotMapped)
}

// TestAddressSpace_BacksAllocator runs a free-list allocator on a mapped
// window so every header access goes through the page tables.
func TestAddressSpace_BacksAllocator(t *testing.T) {
	m := newTestMachine(t)
	const size = 8 * 0x1000
	for off := uintptr(0); off < size; off += 0x1000 {
		mapPage(t, m, testWindowStart+off, FlagPresent|FlagWritable)
	}

	ll := alloc.NewLinkedList()
	ll.Init(m.Space, testWindowStart, size)

	a, err := ll.Alloc(5000, 8)
	require.NoError(t, err)
	b, err := ll.Alloc(64, 8)
	require.NoError(t, err)
	ll.Dealloc(a, 5000, 8)
	require.NoError(t, ll.Validate())
	ll.Dealloc(b, 64, 8)
	require.NoError(t, ll.Validate())
	assert.Equal(t, uintptr(size), ll.FreeBytes())
}
