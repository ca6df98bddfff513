// Package latency provides instruction timing for the multi-cycle
// functional units of the cycle-accurate simulation.
package latency

import (
	"github.com/enh8/e8sim/insts"
)

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a latency table with a custom timing
// configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetLatency returns the execution latency in cycles for the given
// instruction. Single-cycle operations return 1.
func (t *Table) GetLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}

	switch inst.Op {
	case insts.OpMUL:
		return t.config.MultiplyLatency
	case insts.OpDIV:
		return t.config.DivideLatency
	case insts.OpFADD:
		return t.config.FPAddLatency
	case insts.OpFMUL:
		return t.config.FPMulLatency
	default:
		return 1
	}
}

// IsMultiCycle reports whether the instruction occupies a multi-cycle
// functional unit.
func (t *Table) IsMultiCycle(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.IsMultiCycle()
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
