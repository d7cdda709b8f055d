package boot

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/joshuapare/kheap/heap/vm"
)

var (
	// ErrFrameAllocationFailed indicates the frame provider ran out while the
	// window was being backed, either for a data frame or for a page table.
	ErrFrameAllocationFailed = errors.New("boot: frame allocation failed")

	// ErrMappingFailed indicates the page mapper rejected a mapping.
	ErrMappingFailed = errors.New("boot: mapping failed")

	// ErrBadWindow indicates a heap window that is empty, not page aligned,
	// or wraps around the address space.
	ErrBadWindow = errors.New("boot: bad heap window")
)

// Error reports the page the bootstrap stopped at. errors.Is matches both
// Kind and the mapper's own error.
type Error struct {
	Kind error   // ErrFrameAllocationFailed or ErrMappingFailed
	Page vm.Page // page being backed when the failure occurred
	Err  error   // underlying mapper error, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v at %s: %v", e.Kind, e.Page, e.Err)
	}
	return fmt.Sprintf("%v at %s", e.Kind, e.Page)
}

// Unwrap returns the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
