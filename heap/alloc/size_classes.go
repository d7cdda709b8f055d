package alloc

// blockSizes are the size classes of the fixed-size-block allocator.
//
// Each class is a power of two and doubles as the block alignment, so a
// block of any class can always hold a block node (8 bytes, 8-aligned).
//
//	Class 0:    8 bytes
//	Class 1:   16 bytes
//	Class 2:   32 bytes
//	Class 3:   64 bytes
//	Class 4:  128 bytes
//	Class 5:  256 bytes
//	Class 6:  512 bytes
//	Class 7: 1024 bytes
//	Class 8: 2048 bytes
var blockSizes = [...]uintptr{8, 16, 32, 64, 128, 256, 512, 1024, 2048}

// NumClasses is the number of size classes.
const NumClasses = len(blockSizes)

// MaxBlockSize is the largest class; bigger requests use the fallback.
const MaxBlockSize = 2048

// BlockSizes returns a copy of the size class table.
func BlockSizes() []uintptr {
	out := make([]uintptr, NumClasses)
	copy(out, blockSizes[:])
	return out
}

// listIndex returns the smallest class that can hold a request of the given
// size and alignment. ok is false when the request exceeds every class.
func listIndex(size, align uintptr) (int, bool) {
	required := max(size, align)
	for i, s := range blockSizes {
		if s >= required {
			return i, true
		}
	}
	return NumClasses, false
}
