// Package emu provides the architectural state of the Enhanced 8-Bit CPU:
// register file, condition flags, data memory, and program image.
package emu

// NumRegs is the number of general-purpose registers (R0-R7).
const NumRegs = 8

// Flags holds the condition flags.
type Flags struct {
	// Z is the zero flag.
	Z bool
	// N is the negative flag (bit 7 of the result).
	N bool
	// C is the carry flag.
	C bool
	// V is the signed-overflow flag.
	V bool

	// Fault is the sticky arithmetic-fault flag. It is set when a
	// divide-by-zero or a malformed floating-point operation retires and
	// stays set until the register file is reset.
	Fault bool
}

// RegFile represents the register file: 8 general-purpose 8-bit
// registers plus condition flags. The pipeline writes it only in the
// writeback stage, so there is a single writer per cycle.
type RegFile struct {
	// R holds general-purpose registers R0-R7.
	R [NumRegs]uint8

	// Flags holds the condition flags.
	Flags Flags
}

// ReadReg reads a register value. Out-of-range indices read as 0.
func (r *RegFile) ReadReg(reg uint8) uint8 {
	if reg >= NumRegs {
		return 0
	}
	return r.R[reg]
}

// WriteReg writes a register value. Out-of-range indices are ignored.
func (r *RegFile) WriteReg(reg uint8, value uint8) {
	if reg >= NumRegs {
		return
	}
	r.R[reg] = value
}

// Reset clears all registers and flags.
func (r *RegFile) Reset() {
	r.R = [NumRegs]uint8{}
	r.Flags = Flags{}
}
