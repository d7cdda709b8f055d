package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/joshuapare/kheap/heap"
	"github.com/joshuapare/kheap/heap/alloc"
	"github.com/joshuapare/kheap/heap/boot"
	"github.com/joshuapare/kheap/heap/vm"
)

// strategyConstructors maps --strategy values to allocator constructors.
var strategyConstructors = map[string]func() alloc.Strategy{
	"bump":             func() alloc.Strategy { return alloc.NewBump() },
	"linked_list":      func() alloc.Strategy { return alloc.NewLinkedList() },
	"fixed_size_block": func() alloc.Strategy { return alloc.NewFixedSizeBlock() },
}

func strategyNames() []string {
	names := make([]string, 0, len(strategyConstructors))
	for name := range strategyConstructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newStrategy(name string) (alloc.Strategy, error) {
	ctor, ok := strategyConstructors[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (want one of %s)", name, strings.Join(strategyNames(), ", "))
	}
	return ctor(), nil
}

// simHeap is a heap booted on its own simulated machine, separate from the
// global heap.
type simHeap struct {
	machine  *vm.Machine
	strategy alloc.Strategy
	heap     *alloc.Locked
}

func newSimHeap(strategyName string, physBytes int) (*simHeap, error) {
	s, err := newStrategy(strategyName)
	if err != nil {
		return nil, err
	}
	m, err := vm.NewMachine(physBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create machine: %w", err)
	}
	h := alloc.NewLocked(s)
	if err := boot.InitHeap(heap.Window(), m.Space, m.Frames, h); err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("failed to boot heap: %w", err)
	}
	return &simHeap{machine: m, strategy: s, heap: h}, nil
}

func (sh *simHeap) Close() error { return sh.machine.Close() }
