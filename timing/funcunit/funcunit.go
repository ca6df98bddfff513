// Package funcunit models the multi-cycle functional units: integer
// multiply/divide and the floating-point unit.
//
// Each unit is a small state machine (idle -> busy(remaining) -> done)
// polled once per cycle by the pipeline. While a unit is busy the
// execute stage stalls rather than accepting a new operation.
// Divide-by-zero and malformed floating-point operands surface as a
// fault flag beside an undefined result value; they never abort the
// simulation.
package funcunit

import (
	"github.com/enh8/e8sim/emu"
	"github.com/enh8/e8sim/insts"
)

// Result is the outcome of a completed operation.
type Result struct {
	// Value is the 8-bit result. Undefined (zero here) when Fault is set.
	Value uint8
	// Flags are the condition flags the result produces.
	Flags emu.Flags
	// Fault is true for divide-by-zero and unsupported floating-point
	// encodings. The consuming instruction retires with the fault flag
	// visible in the architectural state.
	Fault bool
}

// computeFunc performs a unit's arithmetic once its latency elapses.
type computeFunc func(op insts.Op, a, b uint8) Result

// Unit is a multi-cycle functional unit.
type Unit struct {
	compute computeFunc

	busy      bool
	remaining uint64
	op        insts.Op
	opA, opB  uint8
	result    Result
	done      bool
}

// NewIntUnit creates the integer multiply/divide unit.
func NewIntUnit() *Unit {
	return &Unit{compute: intCompute}
}

// NewFPUnit creates the floating-point unit.
func NewFPUnit() *Unit {
	return &Unit{compute: fpCompute}
}

// Start begins an operation with the given latency in cycles. It must
// not be called while the unit is busy; the pipeline checks Busy first.
func (u *Unit) Start(op insts.Op, a, b uint8, latency uint64) {
	if latency == 0 {
		latency = 1
	}
	u.busy = true
	u.remaining = latency
	u.op = op
	u.opA = a
	u.opB = b
	u.done = false
}

// Busy reports whether the unit is occupied by an operation that has
// not been consumed yet.
func (u *Unit) Busy() bool {
	return u.busy
}

// Tick advances the unit by one cycle.
func (u *Unit) Tick() {
	if !u.busy || u.done {
		return
	}
	u.remaining--
	if u.remaining == 0 {
		u.result = u.compute(u.op, u.opA, u.opB)
		u.done = true
	}
}

// ResultReady reports whether a completed result is waiting.
func (u *Unit) ResultReady() bool {
	return u.busy && u.done
}

// TakeResult consumes the completed result and returns the unit to
// idle.
func (u *Unit) TakeResult() Result {
	result := u.result
	u.busy = false
	u.done = false
	return result
}

// Reset aborts any in-flight operation.
func (u *Unit) Reset() {
	u.busy = false
	u.done = false
	u.remaining = 0
}

// intCompute performs integer multiply and divide.
func intCompute(op insts.Op, a, b uint8) Result {
	switch op {
	case insts.OpMUL:
		wide := uint16(a) * uint16(b)
		value := uint8(wide)
		return Result{
			Value: value,
			Flags: emu.Flags{
				Z: value == 0,
				N: value&0x80 != 0,
				C: wide > 0xFF,
			},
		}

	case insts.OpDIV:
		if b == 0 {
			return Result{
				Flags: emu.Flags{Z: true, Fault: true},
				Fault: true,
			}
		}
		value := a / b
		return Result{
			Value: value,
			Flags: emu.Flags{
				Z: value == 0,
				N: value&0x80 != 0,
			},
		}
	}
	return Result{}
}

// fpCompute performs minifloat add and multiply.
func fpCompute(op insts.Op, a, b uint8) Result {
	if !minifloatSupported(a) || !minifloatSupported(b) {
		return Result{
			Flags: emu.Flags{Fault: true},
			Fault: true,
		}
	}

	fa := minifloatDecode(a)
	fb := minifloatDecode(b)

	var f float64
	switch op {
	case insts.OpFADD:
		f = fa + fb
	case insts.OpFMUL:
		f = fa * fb
	default:
		return Result{}
	}

	value := minifloatEncode(f)
	return Result{
		Value: value,
		Flags: emu.Flags{
			Z: value&^uint8(minifloatSignBit) == 0,
			N: value&minifloatSignBit != 0,
		},
	}
}
