package pipeline

import (
	"github.com/enh8/e8sim/emu"
	"github.com/enh8/e8sim/insts"
)

// FetchStage fetches instruction words from the program image without a
// cache. Fetching past the end of the image yields bubbles; the pipeline
// keeps draining whatever is already in flight.
type FetchStage struct {
	program *emu.Program
}

// NewFetchStage creates a fetch stage reading from program.
func NewFetchStage(program *emu.Program) *FetchStage {
	return &FetchStage{program: program}
}

// Fetch returns the instruction word at pc. ok is false past the end of
// the image.
func (s *FetchStage) Fetch(pc uint64) (word uint16, ok bool) {
	return s.program.Word(pc)
}

// DecodeResult is the decode stage's output for one instruction.
type DecodeResult struct {
	Inst *insts.Instruction

	AValue uint8
	BValue uint8
	SrcA   uint8
	SrcB   uint8
	UsesA  bool
	UsesB  bool

	Rd        uint8
	MemRead   bool
	MemWrite  bool
	RegWrite  bool
	MemToReg  bool
	FlagWrite bool
	IsBranch  bool
}

// DecodeStage decodes instruction words and reads operands from the
// register file.
type DecodeStage struct {
	decoder *insts.Decoder
	regFile *emu.RegFile
}

// NewDecodeStage creates a decode stage backed by regFile.
func NewDecodeStage(regFile *emu.RegFile) *DecodeStage {
	return &DecodeStage{
		decoder: insts.NewDecoder(),
		regFile: regFile,
	}
}

// Decode decodes word and derives operand sources and control signals.
// Unknown encodings come back with every control signal off; they drain
// through the pipeline as counted no-ops.
func (s *DecodeStage) Decode(word uint16) DecodeResult {
	inst := s.decoder.Decode(word)
	result := DecodeResult{Inst: inst, Rd: inst.Rd}

	switch inst.Op {
	case insts.OpLOADI:
		result.RegWrite = true

	case insts.OpADD, insts.OpSUB, insts.OpAND, insts.OpOR, insts.OpXOR:
		result.RegWrite = true
		result.FlagWrite = true
		result.UsesA = true
		result.SrcA = inst.Rs1
		result.UsesB = true
		result.SrcB = inst.Rs2

	case insts.OpSTORE:
		result.MemWrite = true
		result.UsesA = true
		result.SrcA = inst.Rs1

	case insts.OpLOAD:
		result.RegWrite = true
		result.MemRead = true
		result.MemToReg = true

	case insts.OpSHL, insts.OpSHR, insts.OpNOT:
		result.RegWrite = true
		result.FlagWrite = true
		result.UsesA = true
		result.SrcA = inst.Rs1

	case insts.OpMOV:
		result.RegWrite = true
		result.UsesA = true
		result.SrcA = inst.Rs1

	case insts.OpCMP:
		result.FlagWrite = true
		result.UsesA = true
		result.SrcA = inst.Rs1
		result.UsesB = true
		result.SrcB = inst.Rs2

	case insts.OpJUMP:
		result.IsBranch = true

	case insts.OpJZ, insts.OpJNZ:
		result.IsBranch = true
		result.UsesA = true
		result.SrcA = inst.Rs1

	case insts.OpMUL, insts.OpDIV, insts.OpFADD, insts.OpFMUL:
		// Accumulating ops read Rd as the second operand.
		result.RegWrite = true
		result.FlagWrite = true
		result.UsesA = true
		result.SrcA = inst.Rs1
		result.UsesB = true
		result.SrcB = inst.Rd

	case insts.OpHALT:
		// No side effects until it retires.
	}

	if result.UsesA {
		result.AValue = s.regFile.ReadReg(result.SrcA)
	}
	if result.UsesB {
		result.BValue = s.regFile.ReadReg(result.SrcB)
	}

	return result
}

// ExecuteResult is the execute stage's output for a single-cycle
// instruction.
type ExecuteResult struct {
	ALUResult uint8
	Flags     emu.Flags
	FlagWrite bool

	StoreValue uint8
	MemAddr    uint64

	BranchTaken  bool
	BranchTarget uint64
}

// ExecuteStage performs single-cycle ALU work and resolves branches.
// Multi-cycle operations never reach it; the pipeline routes them to the
// functional units instead.
type ExecuteStage struct {
	alu *emu.ALU
}

// NewExecuteStage creates an execute stage.
func NewExecuteStage() *ExecuteStage {
	return &ExecuteStage{alu: emu.NewALU()}
}

// Execute runs the instruction in idex with its forwarded operand
// values.
func (s *ExecuteStage) Execute(
	idex *IDEXRegister,
	aValue, bValue uint8,
) ExecuteResult {
	inst := idex.Inst
	result := ExecuteResult{FlagWrite: idex.FlagWrite}

	switch inst.Op {
	case insts.OpLOADI:
		result.ALUResult = inst.Imm

	case insts.OpADD:
		result.ALUResult, result.Flags = s.alu.Add(aValue, bValue)
	case insts.OpSUB:
		result.ALUResult, result.Flags = s.alu.Sub(aValue, bValue)
	case insts.OpAND:
		result.ALUResult, result.Flags = s.alu.And(aValue, bValue)
	case insts.OpOR:
		result.ALUResult, result.Flags = s.alu.Or(aValue, bValue)
	case insts.OpXOR:
		result.ALUResult, result.Flags = s.alu.Xor(aValue, bValue)

	case insts.OpSHL:
		result.ALUResult, result.Flags = s.alu.Shl(aValue)
	case insts.OpSHR:
		result.ALUResult, result.Flags = s.alu.Shr(aValue)
	case insts.OpNOT:
		result.ALUResult, result.Flags = s.alu.Not(aValue)

	case insts.OpMOV:
		result.ALUResult = aValue

	case insts.OpCMP:
		result.Flags = s.alu.Cmp(aValue, bValue)

	case insts.OpSTORE:
		result.StoreValue = aValue
		result.MemAddr = uint64(inst.Imm)
	case insts.OpLOAD:
		result.MemAddr = uint64(inst.Imm)

	case insts.OpJUMP:
		result.BranchTaken = true
		result.BranchTarget = uint64(inst.Imm)
	case insts.OpJZ:
		result.BranchTaken = aValue == 0
		result.BranchTarget = uint64(inst.Imm)
	case insts.OpJNZ:
		result.BranchTaken = aValue != 0
		result.BranchTarget = uint64(inst.Imm)
	}

	return result
}

// MemoryResult is the memory stage's output.
type MemoryResult struct {
	MemData uint8
}

// MemoryStage performs data memory accesses without a cache.
type MemoryStage struct {
	memory *emu.Memory
}

// NewMemoryStage creates a memory stage over memory.
func NewMemoryStage(memory *emu.Memory) *MemoryStage {
	return &MemoryStage{memory: memory}
}

// Access performs the load or store in exmem. An out-of-range address
// returns an *emu.AccessError; the pipeline treats it as fatal.
func (s *MemoryStage) Access(exmem *EXMEMRegister) (MemoryResult, error) {
	result := MemoryResult{}

	if !exmem.MemRead && !exmem.MemWrite {
		return result, nil
	}

	if err := s.memory.CheckAddr(exmem.MemAddr); err != nil {
		return result, err
	}

	if exmem.MemRead {
		result.MemData = s.memory.Read8(exmem.MemAddr)
	} else {
		s.memory.Write8(exmem.MemAddr, exmem.StoreValue)
	}

	return result, nil
}

// WritebackStage commits results to the architectural state. All
// register and flag updates flow through here; earlier stages never
// touch the register file.
type WritebackStage struct {
	regFile *emu.RegFile
}

// NewWritebackStage creates a writeback stage over regFile.
func NewWritebackStage(regFile *emu.RegFile) *WritebackStage {
	return &WritebackStage{regFile: regFile}
}

// Writeback retires the instruction in memwb.
func (s *WritebackStage) Writeback(memwb *MEMWBRegister) {
	if !memwb.Valid {
		return
	}

	if memwb.RegWrite {
		value := memwb.ALUResult
		if memwb.MemToReg {
			value = memwb.MemData
		}
		s.regFile.WriteReg(memwb.Rd, value)
	}

	if memwb.FlagWrite {
		flags := memwb.Flags
		// The fault flag is sticky until reset.
		flags.Fault = flags.Fault || s.regFile.Flags.Fault
		s.regFile.Flags = flags
	}
}
