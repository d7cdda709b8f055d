//go:build heap_linkedlist

package heap

import "github.com/joshuapare/kheap/heap/alloc"

// StrategyName names the allocation strategy compiled in.
const StrategyName = "linked_list"

func newStrategy() alloc.Strategy { return alloc.NewLinkedList() }
