// Package main provides the entry point for e8sim.
// e8sim is a cycle-accurate simulator for the Enhanced 8-Bit CPU.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/enh8/e8sim/asm"
	"github.com/enh8/e8sim/emu"
	"github.com/enh8/e8sim/timing/cache"
	"github.com/enh8/e8sim/timing/core"
	"github.com/enh8/e8sim/timing/latency"
	"github.com/enh8/e8sim/timing/pipeline"
	"github.com/enh8/e8sim/trace"
)

var (
	maxCycles  = flag.Uint64("cycles", 100000, "Cycle budget before the run is aborted")
	configPath = flag.String("config", "", "Path to timing configuration JSON file")
	useICache  = flag.Bool("icache", false, "Enable the instruction cache")
	useDCache  = flag.Bool("dcache", false, "Enable the data cache")
	writeBack  = flag.Bool("writeback", false, "Use a write-back data cache instead of write-through")
	tracePath  = flag.String("trace", "", "Write a per-cycle pipeline trace to this file (- for stdout)")
	verbose    = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: e8sim [options] <program.asm|program.hex>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	programPath := flag.Arg(0)
	words, err := loadProgram(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("Loaded: %s (%d instructions)\n", programPath, len(words))
	}

	c, err := buildCore(words)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring simulator: %v\n", err)
		os.Exit(1)
	}

	if *tracePath != "" {
		out := os.Stdout
		if *tracePath != "-" {
			f, err := os.Create(*tracePath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error opening trace file: %v\n", err)
				os.Exit(1)
			}
			defer f.Close()
			out = f
		}
		c.SetObserver(trace.NewWriter(out).Observer())
	}

	result := c.Run(*maxCycles)
	trace.WriteReport(os.Stdout, c, result)

	if result.Reason == core.HaltFault {
		os.Exit(1)
	}
}

// loadProgram reads a program image, assembling it when the file is not
// already in hex form.
func loadProgram(path string) ([]uint16, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if strings.HasSuffix(path, ".hex") {
		return asm.ParseHex(string(data))
	}
	return asm.NewAssembler().Assemble(string(data))
}

func buildCore(words []uint16) (*core.Core, error) {
	var opts []pipeline.Option

	if *configPath != "" {
		timingConfig, err := latency.LoadConfig(*configPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts,
			pipeline.WithLatencyTable(latency.NewTableWithConfig(timingConfig)))
	}

	if *useICache {
		opts = append(opts, pipeline.WithICache(cache.DefaultICacheConfig()))
	}
	if *useDCache {
		config := cache.DefaultDCacheConfig()
		if *writeBack {
			config.Policy = cache.WriteBack
		}
		opts = append(opts, pipeline.WithDCache(config))
	}

	return core.NewCore(emu.NewProgram(words), opts...)
}
