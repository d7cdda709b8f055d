//go:build !heap_bump && !heap_linkedlist

package heap

import "github.com/joshuapare/kheap/heap/alloc"

// StrategyName names the allocation strategy compiled in.
const StrategyName = "fixed_size_block"

func newStrategy() alloc.Strategy { return alloc.NewFixedSizeBlock() }
