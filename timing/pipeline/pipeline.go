package pipeline

import (
	"errors"
	"fmt"

	"github.com/enh8/e8sim/emu"
	"github.com/enh8/e8sim/insts"
	"github.com/enh8/e8sim/timing/cache"
	"github.com/enh8/e8sim/timing/funcunit"
	"github.com/enh8/e8sim/timing/latency"
)

// Statistics tracks pipeline performance counters.
type Statistics struct {
	Cycles       uint64
	Instructions uint64

	// Stalls counts load-use hazard stall cycles. Execute, memory, and
	// fetch stalls are tracked separately.
	Stalls      uint64
	ExecStalls  uint64
	MemStalls   uint64
	FetchStalls uint64

	DataHazards uint64

	Branches          uint64
	BranchMispredicts uint64
	Flushes           uint64

	// EncodingErrors counts instruction words with no defined behavior
	// that retired as no-ops.
	EncodingErrors uint64
	// ArithmeticErrors counts retired instructions that faulted
	// (divide-by-zero, malformed floating-point operands).
	ArithmeticErrors uint64
}

// CPI returns cycles per retired instruction.
func (s *Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// IPC returns retired instructions per cycle.
func (s *Statistics) IPC() float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.Instructions) / float64(s.Cycles)
}

// BranchAccuracy returns the fraction of resolved branches that were
// predicted correctly, in [0, 1].
func (s *Statistics) BranchAccuracy() float64 {
	if s.Branches == 0 {
		return 0
	}
	return float64(s.Branches-s.BranchMispredicts) / float64(s.Branches)
}

// Pipeline models the 5-stage in-order pipeline. One call to Tick
// advances the simulation by one clock cycle: stages are evaluated from
// writeback to fetch out of the pipeline registers latched at the end of
// the previous cycle, then the registers latch their new contents
// atomically.
type Pipeline struct {
	regFile *emu.RegFile
	memory  *emu.Memory
	program *emu.Program

	fetchStage     *FetchStage
	decodeStage    *DecodeStage
	executeStage   *ExecuteStage
	memoryStage    *MemoryStage
	writebackStage *WritebackStage
	hazardUnit     *HazardUnit

	predictor *BranchPredictor
	latencies *latency.Table
	intUnit   *funcunit.Unit
	fpUnit    *funcunit.Unit

	icache       *cache.Cache
	dcache       *cache.Cache
	cachedFetch  *CachedFetchStage
	cachedMemory *CachedMemoryStage

	pc    uint64
	ifid  IFIDRegister
	idex  IDEXRegister
	exmem EXMEMRegister
	memwb MEMWBRegister

	halted       bool
	fetchEnabled bool
	stats        Statistics
}

// Option configures a Pipeline at construction time.
type Option func(*Pipeline) error

// WithICache routes instruction fetch through a cache with the given
// configuration. Invalid configurations fail NewPipeline. Blocks must
// hold at least one full instruction word: fetch reads two bytes per
// access and never spans lines.
func WithICache(config cache.Config) Option {
	return func(p *Pipeline) error {
		if config.BlockSize < 2 {
			return fmt.Errorf(
				"icache block size %d cannot hold a 2-byte instruction word",
				config.BlockSize)
		}
		c, err := cache.New(config, cache.NewProgramBacking(p.program))
		if err != nil {
			return err
		}
		p.icache = c
		p.cachedFetch = NewCachedFetchStage(c, p.program)
		return nil
	}
}

// WithDCache routes data accesses through a cache with the given
// configuration. Invalid configurations fail NewPipeline.
func WithDCache(config cache.Config) Option {
	return func(p *Pipeline) error {
		c, err := cache.New(config, cache.NewMemoryBacking(p.memory))
		if err != nil {
			return err
		}
		p.dcache = c
		p.cachedMemory = NewCachedMemoryStage(c)
		return nil
	}
}

// WithBranchPredictor replaces the default branch predictor
// configuration. Invalid configurations fail NewPipeline.
func WithBranchPredictor(config PredictorConfig) Option {
	return func(p *Pipeline) error {
		predictor, err := NewBranchPredictor(config)
		if err != nil {
			return err
		}
		p.predictor = predictor
		return nil
	}
}

// WithLatencyTable replaces the default functional-unit latencies. The
// table's configuration must already be validated.
func WithLatencyTable(table *latency.Table) Option {
	return func(p *Pipeline) error {
		if err := table.Config().Validate(); err != nil {
			return err
		}
		p.latencies = table
		return nil
	}
}

// NewPipeline creates a pipeline executing program against regFile and
// memory. Configuration errors from options are reported here; a
// pipeline is never constructed half-configured.
func NewPipeline(
	regFile *emu.RegFile,
	memory *emu.Memory,
	program *emu.Program,
	opts ...Option,
) (*Pipeline, error) {
	predictor, err := NewBranchPredictor(DefaultPredictorConfig())
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		regFile: regFile,
		memory:  memory,
		program: program,

		fetchStage:     NewFetchStage(program),
		decodeStage:    NewDecodeStage(regFile),
		executeStage:   NewExecuteStage(),
		memoryStage:    NewMemoryStage(memory),
		writebackStage: NewWritebackStage(regFile),
		hazardUnit:     NewHazardUnit(),

		predictor: predictor,
		latencies: latency.NewTable(),
		intUnit:   funcunit.NewIntUnit(),
		fpUnit:    funcunit.NewFPUnit(),

		fetchEnabled: true,
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Tick advances the pipeline by one cycle. A returned error is fatal:
// the simulation has stopped at the faulting cycle and must be Reset
// before it can run again.
func (p *Pipeline) Tick() error {
	if p.halted {
		return nil
	}

	p.stats.Cycles++
	cycle := p.stats.Cycles

	forwarding := p.hazardUnit.DetectForwarding(&p.idex, &p.exmem, &p.memwb)
	if forwarding.ForwardA != NoForward || forwarding.ForwardB != NoForward {
		p.stats.DataHazards++
	}

	// Writeback. Runs first so the decode stage sees values retired
	// this cycle.
	if p.memwb.Valid {
		p.writebackStage.Writeback(&p.memwb)
		p.stats.Instructions++
		if p.memwb.Fault {
			p.stats.ArithmeticErrors++
		}
		switch p.memwb.Inst.Op {
		case insts.OpUnknown:
			p.stats.EncodingErrors++
		case insts.OpHALT:
			p.halted = true
			p.memwb.Clear()
			return nil
		}
	}

	// Memory.
	memStall := false
	var nextMEMWB MEMWBRegister
	if p.exmem.Valid {
		var memResult MemoryResult
		if p.exmem.MemRead || p.exmem.MemWrite {
			if err := p.memory.CheckAddr(p.exmem.MemAddr); err != nil {
				var accessErr *emu.AccessError
				if errors.As(err, &accessErr) {
					accessErr.Cycle = cycle
				}
				p.halted = true
				return err
			}
			if p.cachedMemory != nil {
				memResult, memStall = p.cachedMemory.Access(&p.exmem)
			} else {
				memResult, _ = p.memoryStage.Access(&p.exmem)
			}
		}
		if memStall {
			p.stats.MemStalls++
		} else {
			nextMEMWB = MEMWBRegister{
				Valid:     true,
				PC:        p.exmem.PC,
				Inst:      p.exmem.Inst,
				ALUResult: p.exmem.ALUResult,
				MemData:   memResult.MemData,
				Rd:        p.exmem.Rd,
				RegWrite:  p.exmem.RegWrite,
				MemToReg:  p.exmem.MemToReg,
				FlagWrite: p.exmem.FlagWrite,
				Flags:     p.exmem.Flags,
				Fault:     p.exmem.Fault,
			}
		}
	}

	// Execute.
	execStall := false
	mispredicted := false
	var redirectPC uint64
	var nextEXMEM EXMEMRegister
	if p.idex.Valid && !memStall {
		inst := p.idex.Inst
		aValue := p.hazardUnit.GetForwardedValue(
			forwarding.ForwardA, p.idex.AValue, &p.exmem, &p.memwb)
		bValue := p.hazardUnit.GetForwardedValue(
			forwarding.ForwardB, p.idex.BValue, &p.exmem, &p.memwb)

		if inst.IsMultiCycle() {
			unit := p.unitFor(inst.Op)
			if !unit.Busy() {
				// Operands latch into the unit when the operation
				// issues; the producers are visible right now. The
				// accumulated Rd value (operand B) is the left operand,
				// which matters for DIV.
				unit.Start(inst.Op, bValue, aValue,
					p.latencies.GetLatency(inst))
			}
			unit.Tick()
			if unit.ResultReady() {
				res := unit.TakeResult()
				// A faulting operation leaves its destination register
				// intact; only the fault flag commits.
				nextEXMEM = EXMEMRegister{
					Valid:     true,
					PC:        p.idex.PC,
					Inst:      inst,
					ALUResult: res.Value,
					Rd:        p.idex.Rd,
					RegWrite:  p.idex.RegWrite && !res.Fault,
					FlagWrite: p.idex.FlagWrite,
					Flags:     res.Flags,
					Fault:     res.Fault,
				}
			} else {
				execStall = true
				p.stats.ExecStalls++
			}
		} else {
			execResult := p.executeStage.Execute(&p.idex, aValue, bValue)
			nextEXMEM = EXMEMRegister{
				Valid:      true,
				PC:         p.idex.PC,
				Inst:       inst,
				ALUResult:  execResult.ALUResult,
				StoreValue: execResult.StoreValue,
				MemAddr:    execResult.MemAddr,
				Rd:         p.idex.Rd,
				MemRead:    p.idex.MemRead,
				MemWrite:   p.idex.MemWrite,
				RegWrite:   p.idex.RegWrite,
				MemToReg:   p.idex.MemToReg,
				FlagWrite:  p.idex.FlagWrite,
				Flags:      execResult.Flags,
			}

			if p.idex.IsBranch {
				p.stats.Branches++
				taken := execResult.BranchTaken
				target := execResult.BranchTarget

				if taken && !p.program.Contains(target) {
					p.halted = true
					return &emu.AccessError{
						Space: "instruction",
						Addr:  target,
						Cycle: cycle,
					}
				}

				p.predictor.Update(p.idex.PC, taken, target)

				wrongDirection := taken != p.idex.PredictedTaken
				wrongTarget := taken && p.idex.PredictedTarget != target
				if wrongDirection || wrongTarget {
					p.stats.BranchMispredicts++
					mispredicted = true
					if taken {
						redirectPC = target
					} else {
						redirectPC = p.idex.PC + 1
					}
				}
			}
		}
	}

	// Decode and fetch. Both hold when anything downstream stalls, and
	// are discarded on a misprediction flush.
	loadUse := false
	fetchStall := false
	var nextIDEX IDEXRegister
	var nextIFID IFIDRegister
	if !memStall && !execStall && !mispredicted {
		if p.ifid.Valid {
			d := p.decodeStage.Decode(p.ifid.InstructionWord)
			loadUse = p.hazardUnit.DetectLoadUseHazard(
				&p.idex, d.UsesA, d.SrcA, d.UsesB, d.SrcB)
			if !loadUse {
				nextIDEX = IDEXRegister{
					Valid:           true,
					PC:              p.ifid.PC,
					Inst:            d.Inst,
					AValue:          d.AValue,
					BValue:          d.BValue,
					SrcA:            d.SrcA,
					SrcB:            d.SrcB,
					UsesA:           d.UsesA,
					UsesB:           d.UsesB,
					Rd:              d.Rd,
					MemRead:         d.MemRead,
					MemWrite:        d.MemWrite,
					RegWrite:        d.RegWrite,
					MemToReg:        d.MemToReg,
					FlagWrite:       d.FlagWrite,
					IsBranch:        d.IsBranch,
					PredictedTaken:  p.ifid.PredictedTaken,
					PredictedTarget: p.ifid.PredictedTarget,
				}
			}
		}

		if !loadUse && p.fetchEnabled {
			var word uint16
			var ok bool
			if p.cachedFetch != nil {
				word, ok, fetchStall = p.cachedFetch.Fetch(p.pc)
			} else {
				word, ok = p.fetchStage.Fetch(p.pc)
			}
			if fetchStall {
				p.stats.FetchStalls++
			}
			if ok {
				pred := p.predictor.Predict(p.pc)
				nextIFID = IFIDRegister{
					Valid:           true,
					PC:              p.pc,
					InstructionWord: word,
					PredictedTaken:  pred.Taken,
					PredictedTarget: pred.Target,
				}
				if pred.Taken {
					p.pc = pred.Target
				} else {
					p.pc++
				}
			}
		}
	}

	// Latch. A stalled stage holds everything upstream of it and sends
	// a bubble downstream.
	if memStall {
		p.memwb.Clear()
		return nil
	}
	p.memwb = nextMEMWB

	if execStall {
		p.exmem.Clear()
		return nil
	}
	p.exmem = nextEXMEM

	if mispredicted {
		p.ifid.Clear()
		p.idex.Clear()
		if p.cachedFetch != nil {
			// An in-flight miss for the abandoned path must not charge
			// stall cycles when that address is fetched again later.
			p.cachedFetch.Reset()
		}
		p.pc = redirectPC
		p.stats.Flushes++
		return nil
	}

	if loadUse {
		p.idex.Clear()
		p.stats.Stalls++
		return nil
	}
	p.idex = nextIDEX
	p.ifid = nextIFID

	return nil
}

func (p *Pipeline) unitFor(op insts.Op) *funcunit.Unit {
	if op == insts.OpFADD || op == insts.OpFMUL {
		return p.fpUnit
	}
	return p.intUnit
}

// PC returns the current fetch address.
func (p *Pipeline) PC() uint64 {
	return p.pc
}

// Halted reports whether a HALT instruction has retired or a fatal
// error stopped the simulation.
func (p *Pipeline) Halted() bool {
	return p.halted
}

// InFlight reports whether any pipeline register holds a valid
// instruction.
func (p *Pipeline) InFlight() bool {
	return p.ifid.Valid || p.idex.Valid || p.exmem.Valid || p.memwb.Valid
}

// SetFetchEnabled controls whether the fetch stage issues new
// instructions. Draining runs the pipeline with fetch disabled.
func (p *Pipeline) SetFetchEnabled(enabled bool) {
	p.fetchEnabled = enabled
}

// Stats returns the accumulated statistics.
func (p *Pipeline) Stats() Statistics {
	return p.stats
}

// PredictorStats returns the branch predictor's own bookkeeping.
func (p *Pipeline) PredictorStats() BranchPredictorStats {
	return p.predictor.Stats()
}

// ICache returns the instruction cache, or nil when fetch is uncached.
func (p *Pipeline) ICache() *cache.Cache {
	return p.icache
}

// DCache returns the data cache, or nil when data access is uncached.
func (p *Pipeline) DCache() *cache.Cache {
	return p.dcache
}

// GetIFID returns the IF/ID pipeline register contents.
func (p *Pipeline) GetIFID() IFIDRegister {
	return p.ifid
}

// GetIDEX returns the ID/EX pipeline register contents.
func (p *Pipeline) GetIDEX() IDEXRegister {
	return p.idex
}

// GetEXMEM returns the EX/MEM pipeline register contents.
func (p *Pipeline) GetEXMEM() EXMEMRegister {
	return p.exmem
}

// GetMEMWB returns the MEM/WB pipeline register contents.
func (p *Pipeline) GetMEMWB() MEMWBRegister {
	return p.memwb
}

// Reset returns the pipeline to its initial state. Register file and
// memory contents are the caller's to reset.
func (p *Pipeline) Reset() {
	p.pc = 0
	p.ifid.Clear()
	p.idex.Clear()
	p.exmem.Clear()
	p.memwb.Clear()
	p.halted = false
	p.fetchEnabled = true
	p.stats = Statistics{}

	p.intUnit.Reset()
	p.fpUnit.Reset()
	p.predictor.Reset()

	if p.icache != nil {
		p.icache.Reset()
		p.cachedFetch.Reset()
	}
	if p.dcache != nil {
		p.dcache.Reset()
		p.cachedMemory.Reset()
	}
}
