package vm

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/joshuapare/kheap/internal/format"
)

// translation is a cached leaf entry.
type translation struct {
	frame Frame
	flags Flags
}

// AddressSpace is a 4-level page table rooted in one physical frame, plus
// the translation cache every virtual access goes through.
//
// Page table layout follows x86_64: four levels of 512 eight-byte entries,
// indexed by virtual address bits 47..39, 38..30, 29..21 and 20..12. An
// entry holds the physical address of the next table (or of the mapped
// frame at level 1) in bits 51..12 and the permission flags in the rest.
type AddressSpace struct {
	phys *PhysicalMemory
	root Frame

	// mu guards the page tables and the cache. Accesses take it shared;
	// mapping changes and cache fills take it exclusive.
	mu  sync.RWMutex
	tlb map[Page]translation

	flushes int
}

// NewAddressSpace allocates an empty level-4 table from frames.
func NewAddressSpace(phys *PhysicalMemory, frames FrameProvider) (*AddressSpace, error) {
	root, err := allocTable(phys, frames)
	if err != nil {
		return nil, errors.WithMessage(err, "vm: allocate level 4 table")
	}
	return &AddressSpace{
		phys: phys,
		root: root,
		tlb:  make(map[Page]translation),
	}, nil
}

// Root returns the frame holding the level-4 table.
func (as *AddressSpace) Root() Frame { return as.root }

func allocTable(phys *PhysicalMemory, frames FrameProvider) (Frame, error) {
	f, ok := frames.AllocateFrame()
	if !ok {
		return InvalidFrame, ErrFrameExhausted
	}
	if !phys.Contains(f) {
		return InvalidFrame, errors.Wrapf(ErrFrameOutOfRange, "table %s", f)
	}
	phys.ZeroFrame(f)
	return f, nil
}

// tableIndex returns the entry index for addr at level (4 down to 1).
func tableIndex(addr uintptr, level int) uint64 {
	shift := format.PageShift + uint(level-1)*format.TableIndexBits
	return uint64(addr>>shift) & (format.EntriesPerTable - 1)
}

// canonical reports whether bits 63..47 of addr are all equal.
func canonical(addr uintptr) bool {
	upper := uint64(addr) >> 47
	return upper == 0 || upper == (1<<17)-1
}

func entryAddr(table Frame, idx uint64) uint64 {
	return table.Address() + idx*format.WordSize
}

func decodeEntry(e uint64) (Frame, Flags) {
	return FrameContaining(e & entryAddrMask), Flags(e & entryFlagMask)
}

// MapTo maps page to frame with flags, allocating intermediate tables from
// frames as needed. The returned Flush invalidates any cached translation
// for page.
func (as *AddressSpace) MapTo(page Page, frame Frame, flags Flags, frames FrameProvider) (Flush, error) {
	addr := page.Address()
	if !canonical(addr) {
		return Flush{}, errors.Wrapf(ErrNonCanonical, "map %s", page)
	}
	if !as.phys.Contains(frame) {
		return Flush{}, errors.Wrapf(ErrFrameOutOfRange, "map %s to %s", page, frame)
	}

	as.mu.Lock()
	defer as.mu.Unlock()

	table := as.root
	for level := format.TableLevels; level > 1; level-- {
		slot := entryAddr(table, tableIndex(addr, level))
		next, entryFlags := decodeEntry(as.phys.Uint64(slot))
		if !entryFlags.Has(FlagPresent) {
			f, err := allocTable(as.phys, frames)
			if err != nil {
				return Flush{}, errors.WithMessagef(err, "map %s: level %d table", page, level-1)
			}
			as.phys.PutUint64(slot, f.Address()|uint64(FlagPresent|FlagWritable|(flags&FlagUserAccessible)))
			next = f
		}
		table = next
	}

	slot := entryAddr(table, tableIndex(addr, 1))
	if _, entryFlags := decodeEntry(as.phys.Uint64(slot)); entryFlags.Has(FlagPresent) {
		return Flush{}, errors.Wrapf(ErrPageAlreadyMapped, "map %s", page)
	}
	as.phys.PutUint64(slot, frame.Address()|uint64(flags))
	return NewFlush(as, page), nil
}

// Unmap removes the translation for page and returns the frame it pointed
// to. The cached translation stays live until the returned Flush is applied.
func (as *AddressSpace) Unmap(page Page) (Frame, Flush, error) {
	as.mu.Lock()
	defer as.mu.Unlock()

	slot, ok := as.leafSlot(page.Address())
	if !ok {
		return InvalidFrame, Flush{}, errors.Wrapf(ErrPageNotMapped, "unmap %s", page)
	}
	frame, flags := decodeEntry(as.phys.Uint64(slot))
	if !flags.Has(FlagPresent) {
		return InvalidFrame, Flush{}, errors.Wrapf(ErrPageNotMapped, "unmap %s", page)
	}
	as.phys.PutUint64(slot, 0)
	return frame, NewFlush(as, page), nil
}

// leafSlot walks levels 4..2 and returns the physical address of the level-1
// entry for addr. ok is false when an intermediate table is missing.
func (as *AddressSpace) leafSlot(addr uintptr) (uint64, bool) {
	if !canonical(addr) {
		return 0, false
	}
	table := as.root
	for level := format.TableLevels; level > 1; level-- {
		next, flags := decodeEntry(as.phys.Uint64(entryAddr(table, tableIndex(addr, level))))
		if !flags.Has(FlagPresent) {
			return 0, false
		}
		table = next
	}
	return entryAddr(table, tableIndex(addr, 1)), true
}

// walk resolves addr through the page tables without using the cache.
func (as *AddressSpace) walk(addr uintptr) (translation, bool) {
	slot, ok := as.leafSlot(addr)
	if !ok {
		return translation{}, false
	}
	frame, flags := decodeEntry(as.phys.Uint64(slot))
	if !flags.Has(FlagPresent) {
		return translation{}, false
	}
	return translation{frame: frame, flags: flags}, true
}

// Translate returns the physical address addr maps to, walking the tables
// directly. ok is false when addr is not mapped.
func (as *AddressSpace) Translate(addr uintptr) (uint64, bool) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	tr, ok := as.walk(addr)
	if !ok {
		return 0, false
	}
	return tr.frame.Address() + uint64(addr&format.PageMask), true
}

// Invalidate drops the cached translation for page.
func (as *AddressSpace) Invalidate(page Page) {
	as.mu.Lock()
	defer as.mu.Unlock()

	delete(as.tlb, page)
	as.flushes++
}

// Flushes returns the number of cache invalidations performed.
func (as *AddressSpace) Flushes() int {
	as.mu.RLock()
	defer as.mu.RUnlock()
	return as.flushes
}

// lookup returns the translation for page, filling the cache on a miss.
// A missing or insufficient translation panics with *PageFault.
func (as *AddressSpace) lookup(addr uintptr, write bool) Frame {
	page := PageContaining(addr)

	as.mu.RLock()
	tr, hit := as.tlb[page]
	as.mu.RUnlock()

	if !hit {
		as.mu.Lock()
		tr, hit = as.walk(addr)
		if hit {
			as.tlb[page] = tr
		}
		as.mu.Unlock()
		if !hit {
			panic(&PageFault{Addr: addr, Write: write})
		}
	}

	if write && !tr.flags.Has(FlagWritable) {
		panic(&PageFault{Addr: addr, Write: true, Present: true})
	}
	return tr.frame
}

// physical translates addr for an access that stays inside one page.
func (as *AddressSpace) physical(addr uintptr, write bool) uint64 {
	return as.lookup(addr, write).Address() + uint64(addr&format.PageMask)
}

// straddles reports whether a word at addr crosses a page boundary.
func straddles(addr uintptr) bool {
	return addr&format.PageMask > format.PageSize-format.WordSize
}

// Uint64 reads the little-endian word at addr.
func (as *AddressSpace) Uint64(addr uintptr) uint64 {
	if straddles(addr) {
		var w [format.WordSize]byte
		as.Load(addr, w[:])
		return format.ReadU64(w[:], 0)
	}
	return as.phys.Uint64(as.physical(addr, false))
}

// PutUint64 writes v as a little-endian word at addr.
func (as *AddressSpace) PutUint64(addr uintptr, v uint64) {
	if straddles(addr) {
		var w [format.WordSize]byte
		format.PutU64(w[:], 0, v)
		as.Store(addr, w[:])
		return
	}
	as.phys.PutUint64(as.physical(addr, true), v)
}

// Load copies len(p) bytes starting at addr into p, page by page.
func (as *AddressSpace) Load(addr uintptr, p []byte) {
	for len(p) > 0 {
		n := min(len(p), int(format.PageSize-addr&format.PageMask))
		copy(p[:n], as.phys.bytes(as.physical(addr, false), n))
		p = p[n:]
		addr += uintptr(n)
	}
}

// Store copies p into memory starting at addr, page by page.
func (as *AddressSpace) Store(addr uintptr, p []byte) {
	for len(p) > 0 {
		n := min(len(p), int(format.PageSize-addr&format.PageMask))
		copy(as.phys.bytes(as.physical(addr, true), n), p[:n])
		p = p[n:]
		addr += uintptr(n)
	}
}

// Compile-time interface checks
var (
	_ Mapper           = (*AddressSpace)(nil)
	_ TranslationCache = (*AddressSpace)(nil)
)
