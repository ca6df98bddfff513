package pipeline

// ForwardSource identifies where a forwarded operand value comes from.
type ForwardSource int

const (
	// NoForward means the operand uses the register-file value.
	NoForward ForwardSource = iota

	// ForwardFromEXMEM forwards the result of the instruction currently
	// in the EX/MEM register.
	ForwardFromEXMEM

	// ForwardFromMEMWB forwards the result of the instruction currently
	// in the MEM/WB register.
	ForwardFromMEMWB
)

// ForwardingDecision captures the forwarding choices for one instruction's
// operands.
type ForwardingDecision struct {
	ForwardA ForwardSource
	ForwardB ForwardSource
}

// HazardUnit detects data hazards and decides operand forwarding.
type HazardUnit struct{}

// NewHazardUnit creates a hazard detection unit.
func NewHazardUnit() *HazardUnit {
	return &HazardUnit{}
}

// DetectForwarding decides forwarding for the instruction in ID/EX. The
// EX/MEM register has priority over MEM/WB because it holds the younger
// producer.
func (h *HazardUnit) DetectForwarding(
	idex *IDEXRegister,
	exmem *EXMEMRegister,
	memwb *MEMWBRegister,
) ForwardingDecision {
	decision := ForwardingDecision{}

	if !idex.Valid {
		return decision
	}

	if idex.UsesA {
		decision.ForwardA = h.detectForReg(idex.SrcA, exmem, memwb)
	}
	if idex.UsesB {
		decision.ForwardB = h.detectForReg(idex.SrcB, exmem, memwb)
	}

	return decision
}

func (h *HazardUnit) detectForReg(
	reg uint8,
	exmem *EXMEMRegister,
	memwb *MEMWBRegister,
) ForwardSource {
	if exmem.Valid && exmem.RegWrite && exmem.Rd == reg {
		return ForwardFromEXMEM
	}
	if memwb.Valid && memwb.RegWrite && memwb.Rd == reg {
		return ForwardFromMEMWB
	}
	return NoForward
}

// GetForwardedValue resolves one operand given a forwarding decision. A
// load result is only available from MEM/WB, so ForwardFromEXMEM never
// selects memory data.
func (h *HazardUnit) GetForwardedValue(
	source ForwardSource,
	regValue uint8,
	exmem *EXMEMRegister,
	memwb *MEMWBRegister,
) uint8 {
	switch source {
	case ForwardFromEXMEM:
		return exmem.ALUResult
	case ForwardFromMEMWB:
		if memwb.MemToReg {
			return memwb.MemData
		}
		return memwb.ALUResult
	default:
		return regValue
	}
}

// DetectLoadUseHazard reports whether the load in ID/EX produces a value
// that the instruction about to decode consumes. The consumer is held in
// IF/ID for one cycle so the load result can be forwarded from MEM/WB.
func (h *HazardUnit) DetectLoadUseHazard(
	idex *IDEXRegister,
	usesA bool, srcA uint8,
	usesB bool, srcB uint8,
) bool {
	if !idex.Valid || !idex.MemRead {
		return false
	}
	if usesA && srcA == idex.Rd {
		return true
	}
	if usesB && srcB == idex.Rd {
		return true
	}
	return false
}
