// Package core ties the pipeline, register file, and memory into a
// simulation session with a run loop, a step budget, and a per-cycle
// observation hook.
package core

import (
	"github.com/enh8/e8sim/emu"
	"github.com/enh8/e8sim/timing/pipeline"
)

// HaltReason explains why a run stopped.
type HaltReason int

const (
	// HaltNone means the run has not stopped.
	HaltNone HaltReason = iota

	// HaltInstruction means a HALT instruction retired.
	HaltInstruction

	// HaltBudget means the cycle budget was exhausted before a HALT
	// retired.
	HaltBudget

	// HaltFault means a fatal error (out-of-range address) stopped the
	// simulation.
	HaltFault
)

// String returns a human-readable halt reason.
func (r HaltReason) String() string {
	switch r {
	case HaltInstruction:
		return "halt instruction"
	case HaltBudget:
		return "cycle budget exhausted"
	case HaltFault:
		return "fatal fault"
	default:
		return "running"
	}
}

// RunResult summarizes a completed run.
type RunResult struct {
	Reason       HaltReason
	Cycles       uint64
	Instructions uint64

	// Err is the fatal error when Reason is HaltFault.
	Err error
}

// Snapshot is a consistent view of the machine at the end of a cycle.
type Snapshot struct {
	Cycle  uint64
	PC     uint64
	Halted bool

	Registers [emu.NumRegs]uint8
	Flags     emu.Flags

	IFID  pipeline.IFIDRegister
	IDEX  pipeline.IDEXRegister
	EXMEM pipeline.EXMEMRegister
	MEMWB pipeline.MEMWBRegister
}

// Observer receives a snapshot after every simulated cycle.
type Observer func(Snapshot)

// Core is a simulation session: one program, one machine state, one
// pipeline.
type Core struct {
	regFile  *emu.RegFile
	memory   *emu.Memory
	program  *emu.Program
	pipeline *pipeline.Pipeline

	observer Observer
}

// NewCore creates a session executing program on a fresh machine state.
// Pipeline options configure caches, the branch predictor, and
// functional-unit latencies; configuration errors surface here.
func NewCore(program *emu.Program, opts ...pipeline.Option) (*Core, error) {
	regFile := &emu.RegFile{}
	memory := emu.NewMemory()

	p, err := pipeline.NewPipeline(regFile, memory, program, opts...)
	if err != nil {
		return nil, err
	}

	return &Core{
		regFile:  regFile,
		memory:   memory,
		program:  program,
		pipeline: p,
	}, nil
}

// SetObserver installs the per-cycle observation hook. A nil observer
// disables observation.
func (c *Core) SetObserver(observer Observer) {
	c.observer = observer
}

// RegFile returns the architectural register file.
func (c *Core) RegFile() *emu.RegFile {
	return c.regFile
}

// Memory returns the data memory.
func (c *Core) Memory() *emu.Memory {
	return c.memory
}

// Pipeline returns the underlying pipeline.
func (c *Core) Pipeline() *pipeline.Pipeline {
	return c.pipeline
}

// Snapshot captures the machine state at the end of the current cycle.
func (c *Core) Snapshot() Snapshot {
	return Snapshot{
		Cycle:     c.pipeline.Stats().Cycles,
		PC:        c.pipeline.PC(),
		Halted:    c.pipeline.Halted(),
		Registers: c.regFile.R,
		Flags:     c.regFile.Flags,
		IFID:      c.pipeline.GetIFID(),
		IDEX:      c.pipeline.GetIDEX(),
		EXMEM:     c.pipeline.GetEXMEM(),
		MEMWB:     c.pipeline.GetMEMWB(),
	}
}

// Tick advances the simulation by one cycle and notifies the observer.
func (c *Core) Tick() error {
	err := c.pipeline.Tick()
	if c.observer != nil {
		c.observer(c.Snapshot())
	}
	return err
}

// Run executes until a HALT retires, a fatal error occurs, or maxCycles
// cycles have been simulated.
func (c *Core) Run(maxCycles uint64) RunResult {
	for !c.pipeline.Halted() {
		if c.pipeline.Stats().Cycles >= maxCycles {
			return c.result(HaltBudget, nil)
		}
		if err := c.Tick(); err != nil {
			return c.result(HaltFault, err)
		}
	}
	return c.result(HaltInstruction, nil)
}

// Drain stops fetching and runs until the pipeline is empty, a HALT
// retires, or maxCycles more cycles pass. In-flight instructions
// complete; no new ones enter.
func (c *Core) Drain(maxCycles uint64) error {
	c.pipeline.SetFetchEnabled(false)
	for i := uint64(0); i < maxCycles; i++ {
		if c.pipeline.Halted() || !c.pipeline.InFlight() {
			break
		}
		if err := c.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// Reset restores the initial machine state while keeping the program
// and configuration.
func (c *Core) Reset() {
	c.regFile.Reset()
	c.memory.Reset()
	c.pipeline.Reset()
}

func (c *Core) result(reason HaltReason, err error) RunResult {
	stats := c.pipeline.Stats()
	return RunResult{
		Reason:       reason,
		Cycles:       stats.Cycles,
		Instructions: stats.Instructions,
		Err:          err,
	}
}
