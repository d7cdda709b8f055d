package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/kheap/heap/alloc"
)

var (
	layoutStrategy string
)

func init() {
	cmd := newLayoutCmd()
	cmd.Flags().StringVar(&layoutStrategy, "strategy", "fixed_size_block", "Allocation strategy (bump, linked_list, fixed_size_block)")
	rootCmd.AddCommand(cmd)
}

func newLayoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Dump the free lists after a short fixed workload",
		Long: `The layout command allocates a fixed set of blocks, frees every other
one and prints what the strategy's bookkeeping looks like afterwards: the
cursor for bump, the free regions for linked_list, and the class lists plus
fallback regions for fixed_size_block.

Example:
  heapctl layout --strategy linked_list`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLayout()
		},
	}
	return cmd
}

// layoutSizes is the fixed workload: each entry is allocated with 8-byte
// alignment; entries at even indexes are freed again.
var layoutSizes = []uintptr{24, 100, 3000, 8, 512, 64, 2048, 16}

// RegionInfo is one free region.
type RegionInfo struct {
	Start uintptr `json:"start"`
	Size  uintptr `json:"size"`
}

// ClassInfo is one size class list.
type ClassInfo struct {
	BlockSize uintptr `json:"block_size"`
	Free      int     `json:"free"`
}

// Layout is the layout command's report.
type Layout struct {
	Strategy    string       `json:"strategy"`
	HeapStart   uintptr      `json:"heap_start"`
	HeapSize    uintptr      `json:"heap_size"`
	Live        int          `json:"live"`
	Cursor      uintptr      `json:"cursor,omitempty"`
	FreeRegions []RegionInfo `json:"free_regions,omitempty"`
	Classes     []ClassInfo  `json:"classes,omitempty"`
}

func runLayout() error {
	sh, err := newSimHeap(layoutStrategy, 4<<20)
	if err != nil {
		return err
	}
	defer sh.Close()

	for i, size := range layoutSizes {
		addr, err := sh.heap.Alloc(size, 8)
		if err != nil {
			return fmt.Errorf("alloc %d bytes: %w", size, err)
		}
		printVerbose("alloc %5d bytes -> %#x\n", size, addr)
		if i%2 == 0 {
			sh.heap.Dealloc(addr, size, 8)
		}
	}

	layout := Layout{Strategy: layoutStrategy, Live: sh.heap.Stats().Live}
	sh.heap.With(func(s alloc.Strategy) {
		switch s := s.(type) {
		case *alloc.BumpAllocator:
			layout.HeapStart, layout.HeapSize = s.Heap().Start, s.Heap().Size
			layout.Cursor = s.Next()
		case *alloc.LinkedListAllocator:
			layout.HeapStart, layout.HeapSize = s.Heap().Start, s.Heap().Size
			layout.FreeRegions = regionInfos(s.FreeRegions())
		case *alloc.FixedSizeBlockAllocator:
			layout.HeapStart, layout.HeapSize = s.Heap().Start, s.Heap().Size
			lengths := s.ClassLengths()
			for i, size := range alloc.BlockSizes() {
				layout.Classes = append(layout.Classes, ClassInfo{BlockSize: size, Free: lengths[i]})
			}
			layout.FreeRegions = regionInfos(s.Fallback().FreeRegions())
		}
	})

	if jsonOut {
		return printJSON(layout)
	}
	printLayoutText(layout)
	return nil
}

func regionInfos(regions []alloc.Region) []RegionInfo {
	infos := make([]RegionInfo, 0, len(regions))
	for _, r := range regions {
		infos = append(infos, RegionInfo{Start: r.Start, Size: r.Size})
	}
	return infos
}

func printLayoutText(l Layout) {
	printInfo("Strategy: %s\n", l.Strategy)
	printInfo("Heap:     %#x + %d bytes\n", l.HeapStart, l.HeapSize)
	printInfo("Live:     %d\n", l.Live)
	if l.Cursor != 0 {
		printInfo("Cursor:   %#x (%d bytes used)\n", l.Cursor, l.Cursor-l.HeapStart)
	}
	if len(l.Classes) > 0 {
		printInfo("\nSize classes:\n")
		for _, c := range l.Classes {
			printInfo("  %5d: %d free\n", c.BlockSize, c.Free)
		}
	}
	if l.FreeRegions != nil {
		printInfo("\nFree regions (list order):\n")
		for _, r := range l.FreeRegions {
			printInfo("  %#x  %6d bytes\n", r.Start, r.Size)
		}
	}
}
