package main

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/joshuapare/kheap/heap/alloc"
	"github.com/joshuapare/kheap/heap/kbuf"
)

// workloadResult summarizes one workload run.
type workloadResult struct {
	Ops      int    `json:"ops"`
	Failures int    `json:"failures"`
	Checksum uint64 `json:"checksum"`
}

type workloadFunc func(h *alloc.Locked, ops int, seed uint64) (workloadResult, error)

var workloads = map[string]workloadFunc{
	"many-boxes": runManyBoxes,
	"long-lived": runLongLived,
	"large-vec":  runLargeVec,
	"random":     runRandom,
}

func workloadNames() []string {
	names := make([]string, 0, len(workloads))
	for name := range workloads {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupWorkload(name string) (workloadFunc, error) {
	w, ok := workloads[name]
	if !ok {
		return nil, fmt.Errorf("unknown workload %q (want one of %s)", name, strings.Join(workloadNames(), ", "))
	}
	return w, nil
}

// countOOM turns ErrOutOfMemory into a failure count and passes anything
// else through.
func countOOM(res *workloadResult, err error) error {
	if errors.Is(err, alloc.ErrOutOfMemory) {
		res.Failures++
		return nil
	}
	return err
}

// runManyBoxes allocates and frees one boxed word per op.
func runManyBoxes(h *alloc.Locked, ops int, _ uint64) (workloadResult, error) {
	res := workloadResult{Ops: ops}
	for i := range ops {
		b, err := kbuf.NewBox(h, uint64(i))
		if err != nil {
			if err := countOOM(&res, err); err != nil {
				return res, err
			}
			continue
		}
		res.Checksum += b.Get()
		b.Free()
	}
	return res, nil
}

// runLongLived is runManyBoxes with one box held for the whole run.
func runLongLived(h *alloc.Locked, ops int, seed uint64) (workloadResult, error) {
	keep, err := kbuf.NewBox(h, 1)
	if err != nil {
		return workloadResult{}, err
	}
	res, err := runManyBoxes(h, ops, seed)
	if err != nil {
		return res, err
	}
	if keep.Get() != 1 {
		return res, fmt.Errorf("long-lived box corrupted: got %d", keep.Get())
	}
	keep.Free()
	return res, nil
}

// runLargeVec pushes ops words into one vector and sums them.
func runLargeVec(h *alloc.Locked, ops int, _ uint64) (workloadResult, error) {
	res := workloadResult{Ops: ops}
	v := kbuf.NewVec(h)
	defer v.Free()
	for i := range ops {
		if err := v.Push(uint64(i)); err != nil {
			return res, countOOM(&res, err)
		}
	}
	res.Checksum = v.Sum()
	return res, nil
}

type liveBlock struct {
	addr, size, align uintptr
}

// maxRandomLive bounds the blocks the random workload keeps outstanding.
const maxRandomLive = 64

// runRandom interleaves allocations of 1..4096 bytes at alignments up to 64
// with frees of random live blocks. Each block is stamped with its address
// and checked before it is freed.
func runRandom(h *alloc.Locked, ops int, seed uint64) (workloadResult, error) {
	res := workloadResult{Ops: ops}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e37_79b9_7f4a_7c15))
	mem := h.Memory()
	var live []liveBlock

	free := func(i int) error {
		b := live[i]
		if got := mem.Uint64(b.addr); got != uint64(b.addr) {
			return fmt.Errorf("block %#x overwritten: found %#x", b.addr, got)
		}
		h.Dealloc(b.addr, b.size, b.align)
		live[i] = live[len(live)-1]
		live = live[:len(live)-1]
		return nil
	}

	for range ops {
		if len(live) > 0 && (len(live) >= maxRandomLive || rng.IntN(2) == 0) {
			if err := free(rng.IntN(len(live))); err != nil {
				return res, err
			}
			continue
		}

		size := uintptr(8 + rng.IntN(4089))
		align := uintptr(1) << rng.IntN(7)
		addr, err := h.Alloc(size, align)
		if err != nil {
			if err := countOOM(&res, err); err != nil {
				return res, err
			}
			continue
		}
		mem.PutUint64(addr, uint64(addr))
		res.Checksum += uint64(size)
		live = append(live, liveBlock{addr: addr, size: size, align: align})
	}

	for len(live) > 0 {
		if err := free(len(live) - 1); err != nil {
			return res, err
		}
	}
	return res, nil
}
