package insts

// Field positions within the 16-bit instruction word.
const (
	opcodeShift = 12
	reg1Shift   = 9
	reg2Shift   = 6
	regMask     = 0x7
	immMask     = 0x3F
)

// Primary opcodes.
const (
	opcLOADI = 0x0
	opcADD   = 0x1
	opcSUB   = 0x2
	opcAND   = 0x3
	opcOR    = 0x4
	opcXOR   = 0x5
	opcSTORE = 0x6
	opcLOAD  = 0x7
	opcSHL   = 0x8
	opcSHR   = 0x9
	opcMOV   = 0xA
	opcCMP   = 0xB
	opcJUMP  = 0xC
	opcJZ    = 0xD
	opcJNZ   = 0xE
	opcExt   = 0xF
)

// Decoder decodes Enhanced 8-Bit CPU machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 16-bit instruction word.
//
// Words whose opcode has no defined behavior decode to OpUnknown with
// FormatUnknown; the pipeline treats them as no-ops and counts an
// encoding error.
func (d *Decoder) Decode(word uint16) *Instruction {
	inst := &Instruction{Op: OpUnknown, Format: FormatUnknown, Word: word}

	opcode := word >> opcodeShift
	reg1 := uint8(word>>reg1Shift) & regMask
	reg2 := uint8(word>>reg2Shift) & regMask
	imm := uint8(word) & immMask

	switch opcode {
	case opcLOADI:
		inst.Op = OpLOADI
		inst.Format = FormatImm
		inst.Rd = reg1
		inst.Imm = imm

	case opcADD, opcSUB, opcAND, opcOR, opcXOR:
		inst.Format = FormatALU3
		inst.Rs1 = reg1
		inst.Rd = reg2
		inst.Rs2 = imm & regMask
		switch opcode {
		case opcADD:
			inst.Op = OpADD
		case opcSUB:
			inst.Op = OpSUB
		case opcAND:
			inst.Op = OpAND
		case opcOR:
			inst.Op = OpOR
		case opcXOR:
			inst.Op = OpXOR
		}

	case opcSTORE:
		inst.Op = OpSTORE
		inst.Format = FormatMem
		inst.Rs1 = reg1 // value to store
		inst.Imm = imm

	case opcLOAD:
		inst.Op = OpLOAD
		inst.Format = FormatMem
		inst.Rd = reg1
		inst.Imm = imm

	case opcSHL, opcSHR:
		inst.Format = FormatReg2
		inst.Rs1 = reg1
		inst.Rd = reg2
		if opcode == opcSHL {
			inst.Op = OpSHL
		} else {
			inst.Op = OpSHR
		}

	case opcMOV:
		inst.Op = OpMOV
		inst.Format = FormatReg2
		inst.Rs1 = reg1
		inst.Rd = reg2

	case opcCMP:
		inst.Op = OpCMP
		inst.Format = FormatCmp
		inst.Rs1 = reg1
		inst.Rs2 = reg2

	case opcJUMP:
		inst.Op = OpJUMP
		inst.Format = FormatJump
		inst.Imm = imm

	case opcJZ, opcJNZ:
		inst.Format = FormatCondJump
		inst.Rs1 = reg1
		inst.Imm = imm
		if opcode == opcJZ {
			inst.Op = OpJZ
		} else {
			inst.Op = OpJNZ
		}

	case opcExt:
		d.decodeExtended(reg1, reg2, imm, inst)
	}

	return inst
}

// decodeExtended decodes the opcode-0xF group. The immediate field
// carries the function code; reg1/reg2 carry the operands.
func (d *Decoder) decodeExtended(reg1, reg2, imm uint8, inst *Instruction) {
	inst.Funct = imm

	switch imm {
	case FunctHALT:
		if reg1 == 0 && reg2 == 0 {
			inst.Op = OpHALT
			inst.Format = FormatSys
		}
		// A HALT encoding with nonzero register fields is undefined.

	case FunctNOT:
		inst.Op = OpNOT
		inst.Format = FormatReg2
		inst.Rs1 = reg1
		inst.Rd = reg2

	case FunctMUL, FunctDIV, FunctFADD, FunctFMUL:
		inst.Format = FormatReg2
		inst.Rs1 = reg1
		inst.Rd = reg2
		switch imm {
		case FunctMUL:
			inst.Op = OpMUL
		case FunctDIV:
			inst.Op = OpDIV
		case FunctFADD:
			inst.Op = OpFADD
		case FunctFMUL:
			inst.Op = OpFMUL
		}
	}
}
