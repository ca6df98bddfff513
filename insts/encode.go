package insts

// Encoding constructors. The assembler and tests build program images
// from these; Decode recovers the operation, register indices, and
// immediate exactly for every word they produce.

// EncodeLOADI encodes LOADI Rd, #imm.
func EncodeLOADI(rd, imm uint8) uint16 {
	return opcLOADI<<opcodeShift |
		uint16(rd&regMask)<<reg1Shift |
		uint16(imm&immMask)
}

// EncodeALU encodes a three-register ALU operation (ADD, SUB, AND, OR,
// XOR): Rd = Rs1 op Rs2. Rs2 rides in the low bits of the immediate
// field.
func EncodeALU(op Op, rd, rs1, rs2 uint8) uint16 {
	var opcode uint16
	switch op {
	case OpADD:
		opcode = opcADD
	case OpSUB:
		opcode = opcSUB
	case OpAND:
		opcode = opcAND
	case OpOR:
		opcode = opcOR
	case OpXOR:
		opcode = opcXOR
	}
	return opcode<<opcodeShift |
		uint16(rs1&regMask)<<reg1Shift |
		uint16(rd&regMask)<<reg2Shift |
		uint16(rs2&regMask)
}

// EncodeLOAD encodes LOAD Rd, [addr].
func EncodeLOAD(rd, addr uint8) uint16 {
	return opcLOAD<<opcodeShift |
		uint16(rd&regMask)<<reg1Shift |
		uint16(addr&immMask)
}

// EncodeSTORE encodes STORE Rs, [addr].
func EncodeSTORE(rs, addr uint8) uint16 {
	return opcSTORE<<opcodeShift |
		uint16(rs&regMask)<<reg1Shift |
		uint16(addr&immMask)
}

// EncodeReg2 encodes a two-register operation: SHL, SHR, MOV in the
// primary space, NOT, MUL, DIV, FADD, FMUL in the extended group.
func EncodeReg2(op Op, rd, rs uint8) uint16 {
	regs := uint16(rs&regMask)<<reg1Shift | uint16(rd&regMask)<<reg2Shift

	switch op {
	case OpSHL:
		return opcSHL<<opcodeShift | regs
	case OpSHR:
		return opcSHR<<opcodeShift | regs
	case OpMOV:
		return opcMOV<<opcodeShift | regs
	case OpNOT:
		return opcExt<<opcodeShift | regs | uint16(FunctNOT)
	case OpMUL:
		return opcExt<<opcodeShift | regs | uint16(FunctMUL)
	case OpDIV:
		return opcExt<<opcodeShift | regs | uint16(FunctDIV)
	case OpFADD:
		return opcExt<<opcodeShift | regs | uint16(FunctFADD)
	case OpFMUL:
		return opcExt<<opcodeShift | regs | uint16(FunctFMUL)
	}
	return 0
}

// EncodeCMP encodes CMP Rs1, Rs2.
func EncodeCMP(rs1, rs2 uint8) uint16 {
	return opcCMP<<opcodeShift |
		uint16(rs1&regMask)<<reg1Shift |
		uint16(rs2&regMask)<<reg2Shift
}

// EncodeJUMP encodes JUMP addr.
func EncodeJUMP(addr uint8) uint16 {
	return opcJUMP<<opcodeShift | uint16(addr&immMask)
}

// EncodeCondJump encodes JZ Rs, addr or JNZ Rs, addr.
func EncodeCondJump(op Op, rs, addr uint8) uint16 {
	opcode := uint16(opcJZ)
	if op == OpJNZ {
		opcode = opcJNZ
	}
	return opcode<<opcodeShift |
		uint16(rs&regMask)<<reg1Shift |
		uint16(addr&immMask)
}

// EncodeHALT encodes HALT (0xF000).
func EncodeHALT() uint16 {
	return opcExt<<opcodeShift | uint16(FunctHALT)
}
