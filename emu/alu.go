package emu

// ALU implements the single-cycle arithmetic and logic operations.
// Methods are pure: they return the result and the flags it produces,
// leaving the register file to the writeback stage.
type ALU struct{}

// NewALU creates a new ALU.
func NewALU() *ALU {
	return &ALU{}
}

// Add performs 8-bit addition and computes flags.
func (a *ALU) Add(op1, op2 uint8) (uint8, Flags) {
	wide := uint16(op1) + uint16(op2)
	result := uint8(wide)

	flags := resultFlags(result)
	flags.C = wide > 0xFF
	// Overflow: operands share a sign the result does not.
	flags.V = (op1^op2)&0x80 == 0 && (op1^result)&0x80 != 0
	return result, flags
}

// Sub performs 8-bit subtraction and computes flags. The carry flag is
// set when no borrow occurs (op1 >= op2).
func (a *ALU) Sub(op1, op2 uint8) (uint8, Flags) {
	result := op1 - op2

	flags := resultFlags(result)
	flags.C = op1 >= op2
	flags.V = (op1^op2)&0x80 != 0 && (op1^result)&0x80 != 0
	return result, flags
}

// And performs bitwise AND. Carry and overflow are cleared.
func (a *ALU) And(op1, op2 uint8) (uint8, Flags) {
	result := op1 & op2
	return result, resultFlags(result)
}

// Or performs bitwise OR. Carry and overflow are cleared.
func (a *ALU) Or(op1, op2 uint8) (uint8, Flags) {
	result := op1 | op2
	return result, resultFlags(result)
}

// Xor performs bitwise XOR. Carry and overflow are cleared.
func (a *ALU) Xor(op1, op2 uint8) (uint8, Flags) {
	result := op1 ^ op2
	return result, resultFlags(result)
}

// Not performs bitwise complement. Carry and overflow are cleared.
func (a *ALU) Not(op uint8) (uint8, Flags) {
	result := ^op
	return result, resultFlags(result)
}

// Shl shifts left by one. The carry flag receives the shifted-out bit.
func (a *ALU) Shl(op uint8) (uint8, Flags) {
	result := op << 1
	flags := resultFlags(result)
	flags.C = op&0x80 != 0
	return result, flags
}

// Shr shifts right by one. The carry flag receives the shifted-out bit.
func (a *ALU) Shr(op uint8) (uint8, Flags) {
	result := op >> 1
	flags := resultFlags(result)
	flags.C = op&0x01 != 0
	return result, flags
}

// Cmp computes the flags of op1 - op2 without producing a result.
func (a *ALU) Cmp(op1, op2 uint8) Flags {
	_, flags := a.Sub(op1, op2)
	return flags
}

// resultFlags computes the zero and negative flags of an 8-bit result.
func resultFlags(result uint8) Flags {
	return Flags{
		Z: result == 0,
		N: result&0x80 != 0,
	}
}
