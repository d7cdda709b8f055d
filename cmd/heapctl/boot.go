package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/kheap/heap"
	"github.com/joshuapare/kheap/heap/alloc"
	"github.com/joshuapare/kheap/heap/kbuf"
	"github.com/joshuapare/kheap/heap/vm"
	"github.com/joshuapare/kheap/internal/logger"
)

var (
	bootPhysMiB int
	bootVecLen  int
)

func init() {
	cmd := newBootCmd()
	cmd.Flags().IntVar(&bootPhysMiB, "phys-mib", 4, "Simulated physical memory in MiB")
	cmd.Flags().IntVar(&bootVecLen, "vec-len", 500, "Elements pushed into the demo vector")
	rootCmd.AddCommand(cmd)
}

func newBootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "boot",
		Short: "Boot the global heap and run the allocation demo",
		Long: `The boot command does what the kernel does at startup: it creates the
machine, backs the heap window with frames, initializes the global heap with
the compiled-in strategy, then boxes a value and fills a vector.

Example:
  heapctl boot
  heapctl boot --phys-mib 2 --vec-len 2000 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoot()
		},
	}
	return cmd
}

// BootReport is the boot command's report.
type BootReport struct {
	Strategy    string      `json:"strategy"`
	HeapStart   uintptr     `json:"heap_start"`
	HeapSize    uintptr     `json:"heap_size"`
	FramesUsed  int         `json:"frames_used"`
	FramesTotal int         `json:"frames_total"`
	BoxAddr     uintptr     `json:"box_addr"`
	BoxPhys     uint64      `json:"box_phys"`
	BoxValue    uint64      `json:"box_value"`
	VecAddr     uintptr     `json:"vec_addr"`
	VecLen      int         `json:"vec_len"`
	VecSum      uint64      `json:"vec_sum"`
	Stats       alloc.Stats `json:"stats"`
	Flushes     int         `json:"tlb_flushes"`
}

func runBoot() error {
	m, err := vm.NewMachine(bootPhysMiB << 20)
	if err != nil {
		return fmt.Errorf("failed to create machine: %w", err)
	}
	defer m.Close()

	if err := heap.Init(m.Space, m.Frames); err != nil {
		return fmt.Errorf("heap initialization failed: %w", err)
	}
	printVerbose("Heap mapped at %#x (%d bytes), strategy %s\n", uintptr(heap.Start), heap.Size, heap.StrategyName)

	h := heap.Default()
	box, err := kbuf.NewBox(h, 41)
	if err != nil {
		return err
	}
	defer box.Free()
	boxPhys, _ := m.Space.Translate(box.Addr())
	logger.Debug("boot: boxed value", "addr", box.Addr(), "phys", boxPhys)

	vec := kbuf.NewVec(h)
	defer vec.Free()
	for i := range bootVecLen {
		if err := vec.Push(uint64(i)); err != nil {
			return err
		}
	}
	logger.Debug("boot: vector filled", "addr", vec.Addr(), "len", vec.Len(), "cap", vec.Cap())

	report := BootReport{
		Strategy:    heap.StrategyName,
		HeapStart:   heap.Start,
		HeapSize:    heap.Size,
		FramesUsed:  m.Frames.Allocated(),
		FramesTotal: m.Frames.UsableFrames(),
		BoxAddr:     box.Addr(),
		BoxPhys:     boxPhys,
		BoxValue:    box.Get(),
		VecAddr:     vec.Addr(),
		VecLen:      vec.Len(),
		VecSum:      vec.Sum(),
		Stats:       heap.Stats(),
		Flushes:     m.Space.Flushes(),
	}

	if jsonOut {
		return printJSON(report)
	}
	printInfo("Heap ready: %#x + %d bytes (%s)\n", report.HeapStart, report.HeapSize, report.Strategy)
	printInfo("Frames:     %d of %d used\n", report.FramesUsed, report.FramesTotal)
	printInfo("Box:        %#x -> phys %#x = %d\n", report.BoxAddr, report.BoxPhys, report.BoxValue)
	printInfo("Vec:        %#x len %d, sum %d\n", report.VecAddr, report.VecLen, report.VecSum)
	printInfo("\nAllocator counters:\n")
	printStats(report.Stats)
	printVerbose("TLB flushes: %d\n", report.Flushes)
	return nil
}
