package vm

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrFrameExhausted indicates the frame provider ran dry while a page
	// table was being allocated.
	ErrFrameExhausted = errors.New("vm: frame allocation failed")

	// ErrPageAlreadyMapped indicates the page already has a translation.
	ErrPageAlreadyMapped = errors.New("vm: page already mapped")

	// ErrPageNotMapped indicates the page has no translation.
	ErrPageNotMapped = errors.New("vm: page not mapped")

	// ErrFrameOutOfRange indicates a frame beyond the end of physical memory.
	ErrFrameOutOfRange = errors.New("vm: frame outside physical memory")

	// ErrNonCanonical indicates a virtual address whose upper bits are not a
	// sign extension of bit 47.
	ErrNonCanonical = errors.New("vm: non-canonical address")
)

// PageFault is the panic value raised when virtual memory is accessed
// through a missing or read-only translation.
type PageFault struct {
	Addr    uintptr
	Write   bool // the access was a write
	Present bool // a translation existed but forbade the access
}

func (f *PageFault) Error() string {
	access := "read"
	if f.Write {
		access = "write"
	}
	cause := "page not present"
	if f.Present {
		cause = "protection violation"
	}
	return fmt.Sprintf("vm: page fault: %s at %#x: %s", access, f.Addr, cause)
}
