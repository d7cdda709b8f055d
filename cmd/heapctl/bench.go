package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/kheap/heap/alloc"
)

var (
	benchStrategy string
	benchWorkload string
	benchOps      int
	benchSeed     uint64
	benchPhysMiB  int
)

func init() {
	cmd := newBenchCmd()
	cmd.Flags().StringVar(&benchStrategy, "strategy", "fixed_size_block", "Allocation strategy (bump, linked_list, fixed_size_block)")
	cmd.Flags().StringVar(&benchWorkload, "workload", "random", "Workload (many-boxes, long-lived, large-vec, random)")
	cmd.Flags().IntVar(&benchOps, "ops", 10000, "Number of operations")
	cmd.Flags().Uint64Var(&benchSeed, "seed", 1, "Seed for the random workload")
	cmd.Flags().IntVar(&benchPhysMiB, "phys-mib", 4, "Simulated physical memory in MiB")
	rootCmd.AddCommand(cmd)
}

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a workload against one allocation strategy",
		Long: `The bench command boots a private heap with the chosen strategy on its
own simulated machine, runs a workload against it and prints the allocator
counters. Out-of-memory results are counted, not fatal.

Example:
  heapctl bench --strategy linked_list --workload random --ops 50000
  heapctl bench --strategy bump --workload long-lived --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench()
		},
	}
	return cmd
}

// BenchResult is the bench command's report.
type BenchResult struct {
	Strategy string         `json:"strategy"`
	Workload string         `json:"workload"`
	Result   workloadResult `json:"result"`
	Elapsed  time.Duration  `json:"elapsed_ns"`
	Stats    alloc.Stats    `json:"stats"`
	Flushes  int            `json:"tlb_flushes"`
}

func runBench() error {
	if benchOps < 0 {
		return fmt.Errorf("--ops must not be negative, got %d", benchOps)
	}
	workload, err := lookupWorkload(benchWorkload)
	if err != nil {
		return err
	}

	sh, err := newSimHeap(benchStrategy, benchPhysMiB<<20)
	if err != nil {
		return err
	}
	defer sh.Close()

	printVerbose("Running %s on %s: %d ops, seed %d\n", benchWorkload, benchStrategy, benchOps, benchSeed)

	start := time.Now()
	res, err := workload(sh.heap, benchOps, benchSeed)
	elapsed := time.Since(start)
	if err != nil {
		return fmt.Errorf("workload %s failed: %w", benchWorkload, err)
	}

	report := BenchResult{
		Strategy: benchStrategy,
		Workload: benchWorkload,
		Result:   res,
		Elapsed:  elapsed,
		Stats:    sh.heap.Stats(),
		Flushes:  sh.machine.Space.Flushes(),
	}

	if jsonOut {
		return printJSON(report)
	}
	printBenchText(report)
	return nil
}

func printBenchText(r BenchResult) {
	printInfo("Strategy:  %s\n", r.Strategy)
	printInfo("Workload:  %s\n", r.Workload)
	printInfo("Ops:       %d\n", r.Result.Ops)
	printInfo("Failures:  %d\n", r.Result.Failures)
	printInfo("Checksum:  %d\n", r.Result.Checksum)
	printInfo("Elapsed:   %s\n", r.Elapsed)
	printInfo("\nAllocator counters:\n")
	printStats(r.Stats)
	printVerbose("TLB flushes: %d\n", r.Flushes)
}

func printStats(s alloc.Stats) {
	printInfo("  alloc calls:       %d\n", s.AllocCalls)
	printInfo("  alloc failures:    %d\n", s.AllocFailures)
	printInfo("  dealloc calls:     %d\n", s.DeallocCalls)
	printInfo("  live:              %d\n", s.Live)
	printInfo("  splits:            %d\n", s.Splits)
	printInfo("  class hits:        %d\n", s.ClassHits)
	printInfo("  class carves:      %d\n", s.ClassCarves)
	printInfo("  fallback allocs:   %d\n", s.FallbackAllocs)
	printInfo("  fallback deallocs: %d\n", s.FallbackDeallocs)
}
