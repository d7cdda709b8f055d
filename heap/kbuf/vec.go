package kbuf

import (
	"fmt"

	"github.com/pkg/errors"
)

// minVecCap is the capacity of the first buffer a Vec allocates.
const minVecCap = 4

// Vec is a growable vector of uint64 stored in one heap buffer. The buffer
// doubles when full and is moved with Realloc.
type Vec struct {
	a    Allocator
	addr uintptr
	len  int
	cap  int
}

// NewVec returns an empty vector. Nothing is allocated until the first Push.
func NewVec(a Allocator) *Vec {
	return &Vec{a: a}
}

// Len returns the number of elements.
func (v *Vec) Len() int { return v.len }

// Cap returns the number of elements the buffer holds before it must grow.
func (v *Vec) Cap() int { return v.cap }

// Addr returns the heap address of the buffer, or 0 before the first Push.
func (v *Vec) Addr() uintptr { return v.addr }

// Push appends x, growing the buffer when it is full. On error the vector
// is unchanged.
func (v *Vec) Push(x uint64) error {
	if v.len == v.cap {
		if err := v.grow(); err != nil {
			return err
		}
	}
	v.a.Memory().PutUint64(v.elem(v.len), x)
	v.len++
	return nil
}

func (v *Vec) grow() error {
	newCap := max(minVecCap, 2*v.cap)
	newSize := uintptr(newCap) * wordSize

	var (
		addr uintptr
		err  error
	)
	if v.cap == 0 {
		addr, err = v.a.Alloc(newSize, wordAlign)
	} else {
		addr, err = v.a.Realloc(v.addr, uintptr(v.cap)*wordSize, wordAlign, newSize)
	}
	if err != nil {
		return errors.WithMessagef(err, "kbuf: grow vec to %d elements", newCap)
	}
	v.addr, v.cap = addr, newCap
	return nil
}

func (v *Vec) elem(i int) uintptr {
	return v.addr + uintptr(i)*wordSize
}

func (v *Vec) check(i int) {
	if i < 0 || i >= v.len {
		panic(fmt.Sprintf("kbuf: index %d out of range [0:%d]", i, v.len))
	}
}

// Get returns element i.
func (v *Vec) Get(i int) uint64 {
	v.check(i)
	return v.a.Memory().Uint64(v.elem(i))
}

// Set replaces element i.
func (v *Vec) Set(i int, x uint64) {
	v.check(i)
	v.a.Memory().PutUint64(v.elem(i), x)
}

// Sum returns the wrapping sum of all elements.
func (v *Vec) Sum() uint64 {
	mem := v.a.Memory()
	var total uint64
	for i := range v.len {
		total += mem.Uint64(v.elem(i))
	}
	return total
}

// Free releases the buffer and empties the vector.
func (v *Vec) Free() {
	if v.cap > 0 {
		v.a.Dealloc(v.addr, uintptr(v.cap)*wordSize, wordAlign)
	}
	v.addr, v.len, v.cap = 0, 0, 0
}
