package alloc

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

// validator is implemented by strategies with an inspectable free list.
type validator interface {
	Validate() error
}

func freeListOf(s Strategy) validator {
	switch a := s.(type) {
	case *LinkedListAllocator:
		return a
	case *FixedSizeBlockAllocator:
		return a.Fallback()
	}
	return nil
}

// Test_Property_RandomAllocFree performs random alloc/free sequences and
// checks after every step that live blocks are in bounds, aligned, disjoint
// and untouched, and that the free list is consistent.
func Test_Property_RandomAllocFree(t *testing.T) {
	for name, newStrategy := range strategies() {
		t.Run(name, func(t *testing.T) {
			s, mem := newTestStrategy(t, newStrategy())
			live := newLiveSet(Region{Start: testHeapStart, Size: testHeapSize})
			rng := rand.New(rand.NewPCG(42, 7)) // Fixed seed for reproducibility
			fl := freeListOf(s)

			for step := range 2000 {
				// Drain more often than not once a few blocks are live so the
				// bump allocator gets to reset.
				if live.len() > 0 && rng.IntN(100) < 45+live.len() {
					b := live.take(rng.IntN(live.len()))
					requireBlockIntact(t, mem, b)
					s.Dealloc(b.addr, b.size, b.align)
				} else {
					size := uintptr(1 + rng.IntN(3000))
					align := uintptr(1) << rng.IntN(8)
					addr, err := s.Alloc(size, align)
					if err != nil {
						require.ErrorIs(t, err, ErrOutOfMemory, "step %d", step)
						continue
					}
					b := liveBlock{addr: addr, size: size, align: align, fill: byte(step)}
					live.add(t, b)
					fillBlock(mem, b)
				}

				if fl != nil {
					require.NoError(t, fl.Validate(), "step %d", step)
				}
			}

			for _, b := range live.blocks {
				requireBlockIntact(t, mem, b)
			}
		})
	}
}
