package kbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/kheap/heap/alloc"
	"github.com/joshuapare/kheap/heap/boot"
	"github.com/joshuapare/kheap/heap/vm"
)

const (
	testHeapStart = 0x_4444_4444_0000
	testHeapSize  = 100 * 1024
)

// newHeap returns a locked heap over a plain memory window.
func newHeap(t testing.TB, s alloc.Strategy) *alloc.Locked {
	t.Helper()
	l := alloc.NewLocked(s)
	l.Init(alloc.NewSliceMemory(testHeapStart, testHeapSize), testHeapStart, testHeapSize)
	return l
}

// reusingStrategies are the strategies that reclaim individual blocks.
func reusingStrategies() map[string]func() alloc.Strategy {
	return map[string]func() alloc.Strategy{
		"linked_list":      func() alloc.Strategy { return alloc.NewLinkedList() },
		"fixed_size_block": func() alloc.Strategy { return alloc.NewFixedSizeBlock() },
	}
}

func allStrategies() map[string]func() alloc.Strategy {
	m := reusingStrategies()
	m["bump"] = func() alloc.Strategy { return alloc.NewBump() }
	return m
}

func TestBox_SimpleAllocation(t *testing.T) {
	for name, newStrategy := range allStrategies() {
		t.Run(name, func(t *testing.T) {
			h := newHeap(t, newStrategy())

			a, err := NewBox(h, 41)
			require.NoError(t, err)
			b, err := NewBox(h, 13)
			require.NoError(t, err)

			assert.Equal(t, uint64(41), a.Get())
			assert.Equal(t, uint64(13), b.Get())
			assert.NotEqual(t, a.Addr(), b.Addr())

			a.Set(42)
			assert.Equal(t, uint64(42), a.Get())
			assert.Equal(t, uint64(13), b.Get())

			a.Free()
			b.Free()
			b.Free()
			assert.Zero(t, h.Stats().Live)
		})
	}
}

func TestVec_LargeVec(t *testing.T) {
	const n = 1000
	for name, newStrategy := range allStrategies() {
		t.Run(name, func(t *testing.T) {
			h := newHeap(t, newStrategy())

			v := NewVec(h)
			assert.Zero(t, v.Addr(), "nothing allocated before the first push")
			for i := range uint64(n) {
				require.NoError(t, v.Push(i))
			}
			assert.Equal(t, n, v.Len())
			assert.Equal(t, 1024, v.Cap())
			assert.Equal(t, uint64((n-1)*n/2), v.Sum())
			assert.Equal(t, uint64(999), v.Get(999))

			v.Free()
			assert.Zero(t, h.Stats().Live)
		})
	}
}

func TestVec_Growth(t *testing.T) {
	h := newHeap(t, alloc.NewLinkedList())
	v := NewVec(h)

	var caps []int
	for i := range uint64(20) {
		require.NoError(t, v.Push(i*i))
		caps = append(caps, v.Cap())
	}
	assert.Equal(t, 4, caps[0])
	assert.Equal(t, 8, caps[4])
	assert.Equal(t, 16, caps[8])
	assert.Equal(t, 32, caps[16])

	for i := range 20 {
		assert.Equal(t, uint64(i*i), v.Get(i), "element %d survives every move", i)
	}
	v.Set(3, 7)
	assert.Equal(t, uint64(7), v.Get(3))

	assert.Panics(t, func() { v.Get(20) })
	assert.Panics(t, func() { v.Set(-1, 0) })
}

func TestVec_PushFailureLeavesVecIntact(t *testing.T) {
	h := newHeap(t, alloc.NewBump())
	filler, err := h.Alloc(testHeapSize-64, 8)
	require.NoError(t, err)
	defer h.Dealloc(filler, testHeapSize-64, 8)

	v := NewVec(h)
	for i := range uint64(4) {
		require.NoError(t, v.Push(i))
	}
	err = v.Push(4)
	require.ErrorIs(t, err, alloc.ErrOutOfMemory)
	assert.Equal(t, 4, v.Len())
	assert.Equal(t, 4, v.Cap())
	assert.Equal(t, uint64(6), v.Sum())
}

func TestBox_ManyBoxes(t *testing.T) {
	for name, newStrategy := range allStrategies() {
		t.Run(name, func(t *testing.T) {
			h := newHeap(t, newStrategy())
			for i := range uint64(testHeapSize) {
				b, err := NewBox(h, i)
				require.NoError(t, err)
				require.Equal(t, i, b.Get())
				b.Free()
			}
		})
	}
}

func TestBox_ManyBoxesLongLived(t *testing.T) {
	for name, newStrategy := range reusingStrategies() {
		t.Run(name, func(t *testing.T) {
			h := newHeap(t, newStrategy())
			longLived, err := NewBox(h, 1)
			require.NoError(t, err)

			for i := range uint64(testHeapSize) {
				b, err := NewBox(h, i)
				require.NoError(t, err)
				require.Equal(t, i, b.Get())
				b.Free()
			}
			assert.Equal(t, uint64(1), longLived.Get())
			longLived.Free()
		})
	}
}

// TestBox_ManyBoxesLongLived_Bump shows the bump allocator cannot reclaim
// anything while one allocation stays live.
func TestBox_ManyBoxesLongLived_Bump(t *testing.T) {
	h := newHeap(t, alloc.NewBump())
	longLived, err := NewBox(h, 1)
	require.NoError(t, err)

	served := 0
	for i := range uint64(testHeapSize) {
		b, err := NewBox(h, i)
		if err != nil {
			require.ErrorIs(t, err, alloc.ErrOutOfMemory)
			break
		}
		served++
		b.Free()
	}
	assert.Equal(t, testHeapSize/8-1, served)
	assert.Equal(t, uint64(1), longLived.Get())
}

// TestVec_OnBootedMachine runs the containers over a heap backed by page
// tables, the way the kernel uses them.
func TestVec_OnBootedMachine(t *testing.T) {
	m, err := vm.NewMachine(4 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	h := alloc.NewLocked(alloc.NewFixedSizeBlock())
	window := alloc.Region{Start: testHeapStart, Size: testHeapSize}
	require.NoError(t, boot.InitHeap(window, m.Space, m.Frames, h))

	b, err := NewBox(h, 41)
	require.NoError(t, err)
	v := NewVec(h)
	for i := range uint64(500) {
		require.NoError(t, v.Push(i))
	}
	assert.Equal(t, uint64(41), b.Get())
	assert.Equal(t, uint64(499*500/2), v.Sum())

	phys, ok := m.Space.Translate(b.Addr())
	require.True(t, ok)
	assert.Equal(t, uint64(41), m.Phys.Uint64(phys))

	v.Free()
	b.Free()
}
