package alloc

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	// testHeapStart matches the kernel heap window.
	testHeapStart = 0x_4444_4444_0000

	// testHeapSize is 100 KiB, the kernel heap size.
	testHeapSize = 100 * 1024
)

// ============================================================================
// Heap Setup
// ============================================================================

// newTestMemory returns a zeroed memory covering the test heap window.
func newTestMemory(t testing.TB) *SliceMemory {
	t.Helper()
	return NewSliceMemory(testHeapStart, testHeapSize)
}

// newTestStrategy creates and initializes a strategy over the test heap.
func newTestStrategy(t testing.TB, s Strategy) (Strategy, *SliceMemory) {
	t.Helper()
	mem := newTestMemory(t)
	s.Init(mem, testHeapStart, testHeapSize)
	return s, mem
}

// strategies returns one constructor per strategy for table-driven tests.
func strategies() map[string]func() Strategy {
	return map[string]func() Strategy{
		"bump":             func() Strategy { return NewBump() },
		"linked_list":      func() Strategy { return NewLinkedList() },
		"fixed_size_block": func() Strategy { return NewFixedSizeBlock() },
	}
}

// ============================================================================
// Live Allocation Tracking
// ============================================================================

type liveBlock struct {
	addr, size, align uintptr
	fill              byte
}

// liveSet records outstanding allocations and checks they never overlap.
type liveSet struct {
	heap   Region
	blocks []liveBlock
}

func newLiveSet(heap Region) *liveSet {
	return &liveSet{heap: heap}
}

// add validates bounds, alignment and overlap for a fresh allocation.
func (ls *liveSet) add(t testing.TB, b liveBlock) {
	t.Helper()
	require.Zero(t, b.addr%b.align, "block %#x not aligned to %d", b.addr, b.align)
	require.GreaterOrEqual(t, b.addr, ls.heap.Start, "block %#x below heap", b.addr)
	require.LessOrEqual(t, b.addr+b.size, ls.heap.End(), "block %#x+%d past heap end", b.addr, b.size)
	for _, o := range ls.blocks {
		overlap := b.addr < o.addr+o.size && o.addr < b.addr+b.size
		require.False(t, overlap, "block %#x+%d overlaps live block %#x+%d", b.addr, b.size, o.addr, o.size)
	}
	ls.blocks = append(ls.blocks, b)
}

// take removes and returns the block at index i.
func (ls *liveSet) take(i int) liveBlock {
	b := ls.blocks[i]
	ls.blocks[i] = ls.blocks[len(ls.blocks)-1]
	ls.blocks = ls.blocks[:len(ls.blocks)-1]
	return b
}

func (ls *liveSet) len() int { return len(ls.blocks) }

// fillBlock writes a recognizable pattern over the whole block.
func fillBlock(mem Memory, b liveBlock) {
	if b.size == 0 {
		return
	}
	mem.Store(b.addr, bytes.Repeat([]byte{b.fill}, int(b.size)))
}

// requireBlockIntact checks the pattern written by fillBlock.
func requireBlockIntact(t testing.TB, mem Memory, b liveBlock) {
	t.Helper()
	if b.size == 0 {
		return
	}
	got := make([]byte, b.size)
	mem.Load(b.addr, got)
	require.Equal(t, bytes.Repeat([]byte{b.fill}, int(b.size)), got,
		"block %#x+%d was overwritten", b.addr, b.size)
}

// ============================================================================
// Panics
// ============================================================================

// requireInvariantPanic asserts that fn panics with ErrInvariantViolation.
func requireInvariantPanic(t testing.TB, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		require.NotNil(t, r, "expected invariant panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		require.True(t, errors.Is(err, ErrInvariantViolation), "panic %v is not an invariant violation", err)
	}()
	fn()
}
