// Package trace renders per-cycle pipeline traces and end-of-run
// performance reports.
package trace

import (
	"fmt"
	"io"

	"github.com/enh8/e8sim/insts"
	"github.com/enh8/e8sim/timing/core"
	"github.com/enh8/e8sim/timing/pipeline"
)

// Writer emits one line per simulated cycle showing the contents of the
// pipeline registers.
type Writer struct {
	w io.Writer
}

// NewWriter creates a trace writer targeting w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Observer returns an observation hook that traces every cycle.
func (t *Writer) Observer() core.Observer {
	return func(s core.Snapshot) {
		t.WriteCycle(s)
	}
}

// WriteCycle renders one snapshot as a trace line.
func (t *Writer) WriteCycle(s core.Snapshot) {
	fmt.Fprintf(t.w, "cycle %4d  pc=%-3d IF/ID=%-12s ID/EX=%-10s EX/MEM=%-10s MEM/WB=%-10s",
		s.Cycle, s.PC,
		formatIFID(s.IFID),
		formatStage(s.IDEX.Valid, s.IDEX.PC, s.IDEX.Inst),
		formatStage(s.EXMEM.Valid, s.EXMEM.PC, s.EXMEM.Inst),
		formatStage(s.MEMWB.Valid, s.MEMWB.PC, s.MEMWB.Inst))
	if s.Halted {
		fmt.Fprintf(t.w, " HALTED")
	}
	fmt.Fprintln(t.w)
}

func formatIFID(r pipeline.IFIDRegister) string {
	if !r.Valid {
		return "-"
	}
	return fmt.Sprintf("[%d]0x%04X", r.PC, r.InstructionWord)
}

func formatStage(valid bool, pc uint64, inst *insts.Instruction) string {
	if !valid || inst == nil {
		return "-"
	}
	return fmt.Sprintf("[%d]%s", pc, inst.Op)
}

// WriteReport renders the end-of-run performance report.
func WriteReport(w io.Writer, c *core.Core, result core.RunResult) {
	stats := c.Pipeline().Stats()

	fmt.Fprintf(w, "=== Simulation Report ===\n")
	fmt.Fprintf(w, "Stop reason:        %s\n", result.Reason)
	if result.Err != nil {
		fmt.Fprintf(w, "Error:              %v\n", result.Err)
	}
	fmt.Fprintf(w, "Cycles:             %d\n", stats.Cycles)
	fmt.Fprintf(w, "Instructions:       %d\n", stats.Instructions)
	fmt.Fprintf(w, "IPC:                %.3f\n", stats.IPC())
	fmt.Fprintf(w, "CPI:                %.3f\n", stats.CPI())

	fmt.Fprintf(w, "\n--- Hazards ---\n")
	fmt.Fprintf(w, "Load-use stalls:    %d\n", stats.Stalls)
	fmt.Fprintf(w, "Execute stalls:     %d\n", stats.ExecStalls)
	fmt.Fprintf(w, "Memory stalls:      %d\n", stats.MemStalls)
	fmt.Fprintf(w, "Fetch stalls:       %d\n", stats.FetchStalls)
	fmt.Fprintf(w, "Forwarded cycles:   %d\n", stats.DataHazards)

	fmt.Fprintf(w, "\n--- Branches ---\n")
	fmt.Fprintf(w, "Resolved:           %d\n", stats.Branches)
	fmt.Fprintf(w, "Mispredicted:       %d\n", stats.BranchMispredicts)
	fmt.Fprintf(w, "Flushes:            %d\n", stats.Flushes)
	fmt.Fprintf(w, "Accuracy:           %.1f%%\n", stats.BranchAccuracy()*100)

	if icache := c.Pipeline().ICache(); icache != nil {
		cs := icache.Stats()
		fmt.Fprintf(w, "\n--- I-Cache ---\n")
		fmt.Fprintf(w, "Hits: %d  Misses: %d  Hit rate: %.1f%%\n",
			cs.Hits, cs.Misses, cs.HitRate()*100)
	}
	if dcache := c.Pipeline().DCache(); dcache != nil {
		cs := dcache.Stats()
		fmt.Fprintf(w, "\n--- D-Cache ---\n")
		fmt.Fprintf(w, "Hits: %d  Misses: %d  Hit rate: %.1f%%\n",
			cs.Hits, cs.Misses, cs.HitRate()*100)
		fmt.Fprintf(w, "Evictions: %d  Writebacks: %d\n",
			cs.Evictions, cs.Writebacks)
	}

	fmt.Fprintf(w, "\n--- Errors ---\n")
	fmt.Fprintf(w, "Encoding errors:    %d\n", stats.EncodingErrors)
	fmt.Fprintf(w, "Arithmetic errors:  %d\n", stats.ArithmeticErrors)

	fmt.Fprintf(w, "\n--- Registers ---\n")
	regs := c.RegFile()
	for i, v := range regs.R {
		fmt.Fprintf(w, "R%d=0x%02X (%3d)  ", i, v, v)
		if i%4 == 3 {
			fmt.Fprintln(w)
		}
	}
	flags := regs.Flags
	fmt.Fprintf(w, "Flags: Z=%t N=%t C=%t V=%t Fault=%t\n",
		flags.Z, flags.N, flags.C, flags.V, flags.Fault)
}
