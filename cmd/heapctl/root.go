package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/kheap/internal/logger"
)

var (
	// Global flags
	verbose  bool
	quiet    bool
	jsonOut  bool
	logLevel string
)

// logEnv enables debug logging when set to any non-empty value.
const logEnv = "KHEAP_LOG"

var rootCmd = &cobra.Command{
	Use:   "heapctl",
	Short: "Boot and exercise the simulated kernel heap",
	Long: `heapctl runs the kernel heap on a simulated machine: physical memory,
4-level page tables and a fixed heap window. It can boot the global heap,
benchmark each allocation strategy against synthetic workloads, and dump the
free lists a strategy leaves behind.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().
		StringVar(&logLevel, "log-level", "", "Log to stderr at this level (debug, info, warn, error)")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initLogging wires the global logger from --log-level, --verbose and the
// KHEAP_LOG environment variable.
func initLogging() error {
	opts := logger.Options{Writer: os.Stderr, JSON: jsonOut}
	switch {
	case logLevel != "":
		level, err := logger.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
		}
		opts.Enabled, opts.Level = true, level
	case verbose || os.Getenv(logEnv) != "":
		opts.Enabled, opts.Level = true, slog.LevelDebug
	}
	logger.Init(opts)
	return nil
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
