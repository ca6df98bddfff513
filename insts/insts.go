// Package insts provides instruction definitions, decoding, and encoding
// for the Enhanced 8-Bit CPU.
//
// Instructions are fixed 16-bit words laid out as
// {opcode[15:12], reg1[11:9], reg2[8:6], imm[5:0]}. Opcode 0xF selects an
// extended group whose function is carried in the immediate field (HALT,
// NOT, MUL, DIV, FADD, FMUL).
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x0205) // LOADI R1, #5
//	fmt.Printf("Op: %v, Rd: %d, Imm: %d\n", inst.Op, inst.Rd, inst.Imm)
package insts

// Op identifies an operation of the Enhanced 8-Bit CPU.
type Op uint8

// Operations.
const (
	OpUnknown Op = iota
	OpLOADI
	OpADD
	OpSUB
	OpAND
	OpOR
	OpXOR
	OpSTORE
	OpLOAD
	OpSHL
	OpSHR
	OpMOV
	OpCMP
	OpJUMP
	OpJZ
	OpJNZ
	OpHALT
	OpNOT
	OpMUL
	OpDIV
	OpFADD
	OpFMUL
)

// String returns the assembler mnemonic for the operation.
func (o Op) String() string {
	switch o {
	case OpLOADI:
		return "LOADI"
	case OpADD:
		return "ADD"
	case OpSUB:
		return "SUB"
	case OpAND:
		return "AND"
	case OpOR:
		return "OR"
	case OpXOR:
		return "XOR"
	case OpSTORE:
		return "STORE"
	case OpLOAD:
		return "LOAD"
	case OpSHL:
		return "SHL"
	case OpSHR:
		return "SHR"
	case OpMOV:
		return "MOV"
	case OpCMP:
		return "CMP"
	case OpJUMP:
		return "JUMP"
	case OpJZ:
		return "JZ"
	case OpJNZ:
		return "JNZ"
	case OpHALT:
		return "HALT"
	case OpNOT:
		return "NOT"
	case OpMUL:
		return "MUL"
	case OpDIV:
		return "DIV"
	case OpFADD:
		return "FADD"
	case OpFMUL:
		return "FMUL"
	default:
		return "UNKNOWN"
	}
}

// Format identifies an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown  Format = iota
	FormatImm             // LOADI: reg1=Rd, imm6
	FormatALU3            // ADD/SUB/AND/OR/XOR: reg1=Rs1, reg2=Rd, imm[2:0]=Rs2
	FormatMem             // LOAD/STORE: reg1=Rd or Rs, imm6=address
	FormatReg2            // SHL/SHR/MOV and extended NOT/MUL/DIV/FADD/FMUL: reg1=Rs, reg2=Rd
	FormatCmp             // CMP: reg1=Rs1, reg2=Rs2
	FormatJump            // JUMP: imm6=target
	FormatCondJump        // JZ/JNZ: reg1=Rs, imm6=target
	FormatSys             // HALT
)

// Extended group function codes (opcode 0xF, carried in the immediate field).
const (
	FunctHALT uint8 = 0
	FunctNOT  uint8 = 1
	FunctMUL  uint8 = 2
	FunctDIV  uint8 = 3
	FunctFADD uint8 = 4
	FunctFMUL uint8 = 5
)

// Instruction represents a decoded instruction. It is immutable once
// produced by the decoder.
type Instruction struct {
	Op     Op     // Operation
	Format Format // Encoding format
	Word   uint16 // Raw instruction word

	Rd  uint8 // Destination register
	Rs1 uint8 // First source register
	Rs2 uint8 // Second source register (ALU register format)

	// Imm is the 6-bit immediate: a constant for LOADI, a data address
	// for LOAD/STORE, a target address for JUMP/JZ/JNZ.
	Imm uint8

	// Funct is the extended-group function code (opcode 0xF only).
	Funct uint8
}

// IsBranch reports whether the instruction can redirect the PC.
func (i *Instruction) IsBranch() bool {
	return i.Op == OpJUMP || i.Op == OpJZ || i.Op == OpJNZ
}

// IsMultiCycle reports whether the instruction occupies a multi-cycle
// functional unit in the execute stage.
func (i *Instruction) IsMultiCycle() bool {
	switch i.Op {
	case OpMUL, OpDIV, OpFADD, OpFMUL:
		return true
	default:
		return false
	}
}

// ReadsRd reports whether the destination register is also a source.
// The two-operand extended ops accumulate into Rd (Rd = Rd op Rs).
func (i *Instruction) ReadsRd() bool {
	switch i.Op {
	case OpMUL, OpDIV, OpFADD, OpFMUL:
		return true
	default:
		return false
	}
}
