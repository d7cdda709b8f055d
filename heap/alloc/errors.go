package alloc

import "github.com/pkg/errors"

var (
	// ErrOutOfMemory indicates that no free memory could satisfy the request.
	ErrOutOfMemory = errors.New("alloc: out of memory")

	// ErrInvariantViolation marks a broken bookkeeping contract. Errors wrapping
	// it are only ever raised through panic.
	ErrInvariantViolation = errors.New("alloc: invariant violation")

	// ErrCorruptFreeList indicates that Validate found an inconsistent free list.
	ErrCorruptFreeList = errors.New("alloc: corrupt free list")
)

// invariantf aborts on corrupted allocator state. Continuing would hand out
// memory that is already in use.
func invariantf(format string, args ...any) {
	panic(errors.Wrapf(ErrInvariantViolation, format, args...))
}
