// Package pipeline provides the 5-stage pipeline implementation for the
// cycle-accurate simulation.
package pipeline

import (
	"github.com/enh8/e8sim/emu"
	"github.com/enh8/e8sim/insts"
)

// IFIDRegister holds state between the Fetch and Decode stages.
type IFIDRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	// An invalid register is a bubble and must not mutate architectural
	// state.
	Valid bool

	// PC is the instruction address of the fetched word.
	PC uint64

	// InstructionWord is the raw 16-bit instruction word.
	InstructionWord uint16

	// PredictedTaken indicates if the branch predictor predicted taken.
	PredictedTaken bool

	// PredictedTarget is the predicted target address.
	PredictedTarget uint64
}

// Clear resets the IF/ID register to a bubble.
func (r *IFIDRegister) Clear() {
	*r = IFIDRegister{}
}

// IDEXRegister holds state between the Decode and Execute stages.
type IDEXRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the instruction address.
	PC uint64

	// Inst is the decoded instruction.
	Inst *insts.Instruction

	// Operand values read from the register file (before forwarding).
	AValue uint8
	BValue uint8

	// Source register numbers for hazard detection. SrcA is the first
	// operand; SrcB is the second operand register (Rs2 for ALU ops, Rd
	// for the accumulating extended ops).
	SrcA uint8
	SrcB uint8

	// UsesA/UsesB indicate whether the operands are actually read.
	UsesA bool
	UsesB bool

	// Rd is the destination register.
	Rd uint8

	// Control signals.
	MemRead   bool // load instruction
	MemWrite  bool // store instruction
	RegWrite  bool // writes a register
	MemToReg  bool // result comes from memory
	FlagWrite bool // writes the condition flags
	IsBranch  bool // can redirect the PC

	// Branch prediction info captured at fetch.
	PredictedTaken  bool
	PredictedTarget uint64
}

// Clear resets the ID/EX register to a bubble.
func (r *IDEXRegister) Clear() {
	*r = IDEXRegister{}
}

// EXMEMRegister holds state between the Execute and Memory stages.
type EXMEMRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the instruction address.
	PC uint64

	// Inst is the decoded instruction.
	Inst *insts.Instruction

	// ALUResult is the computed result.
	ALUResult uint8

	// StoreValue is the value to store for store instructions.
	StoreValue uint8

	// MemAddr is the data address for loads and stores.
	MemAddr uint64

	// Rd is the destination register.
	Rd uint8

	// Control signals (propagated from ID/EX).
	MemRead   bool
	MemWrite  bool
	RegWrite  bool
	MemToReg  bool
	FlagWrite bool

	// Flags computed by the execute stage, committed at writeback.
	Flags emu.Flags

	// Fault is true when the instruction suffered an arithmetic-domain
	// error (divide-by-zero, malformed floating-point operand).
	Fault bool
}

// Clear resets the EX/MEM register to a bubble.
func (r *EXMEMRegister) Clear() {
	*r = EXMEMRegister{}
}

// MEMWBRegister holds state between the Memory and Writeback stages.
type MEMWBRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the instruction address.
	PC uint64

	// Inst is the decoded instruction.
	Inst *insts.Instruction

	// ALUResult is the execute-stage result.
	ALUResult uint8

	// MemData is the value loaded from memory.
	MemData uint8

	// Rd is the destination register.
	Rd uint8

	// Control signals.
	RegWrite  bool
	MemToReg  bool
	FlagWrite bool

	// Flags to commit at writeback.
	Flags emu.Flags

	// Fault marks an arithmetic-domain error retiring with this
	// instruction.
	Fault bool
}

// Clear resets the MEM/WB register to a bubble.
func (r *MEMWBRegister) Clear() {
	*r = MEMWBRegister{}
}
