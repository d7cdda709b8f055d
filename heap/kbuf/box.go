package kbuf

import (
	"github.com/pkg/errors"
)

// Box is a single uint64 allocated on the heap.
type Box struct {
	a    Allocator
	addr uintptr
}

// NewBox allocates a word and stores v in it.
func NewBox(a Allocator, v uint64) (*Box, error) {
	addr, err := a.Alloc(wordSize, wordAlign)
	if err != nil {
		return nil, errors.WithMessage(err, "kbuf: box")
	}
	a.Memory().PutUint64(addr, v)
	return &Box{a: a, addr: addr}, nil
}

// Addr returns the heap address of the boxed word.
func (b *Box) Addr() uintptr { return b.addr }

// Get reads the boxed value.
func (b *Box) Get() uint64 { return b.a.Memory().Uint64(b.addr) }

// Set replaces the boxed value.
func (b *Box) Set(v uint64) { b.a.Memory().PutUint64(b.addr, v) }

// Free releases the word. Further use of b is invalid; a second Free is a
// no-op.
func (b *Box) Free() {
	if b.addr == 0 {
		return
	}
	b.a.Dealloc(b.addr, wordSize, wordAlign)
	b.addr = 0
}
