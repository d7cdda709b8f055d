// Package kbuf holds the heap-backed containers kernel code builds on: a
// boxed word and a growable vector of words. Both live entirely inside the
// heap window and are reached only through addresses.
package kbuf

import (
	"github.com/joshuapare/kheap/heap/alloc"
	"github.com/joshuapare/kheap/internal/format"
)

// Allocator is the allocation capability the containers need.
// *alloc.Locked implements it.
type Allocator interface {
	Alloc(size, align uintptr) (uintptr, error)
	Dealloc(addr, size, align uintptr)
	Realloc(addr, size, align, newSize uintptr) (uintptr, error)
	Memory() alloc.Memory
}

const (
	wordSize  = format.WordSize
	wordAlign = format.WordSize
)

var _ Allocator = (*alloc.Locked)(nil)
