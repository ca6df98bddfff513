package emu

import "fmt"

// DefaultMemorySize is the default data image size in bytes.
const DefaultMemorySize = 256

// AccessError reports an access outside the data or instruction image.
// It is a terminal condition: the simulation run ends and the error
// propagates to the caller with the offending address and the cycle at
// which it occurred.
type AccessError struct {
	// Space names the violated image ("data" or "instruction").
	Space string
	// Addr is the offending address.
	Addr uint64
	// Cycle is the cycle at which the access was attempted. Zero until
	// filled in by the pipeline.
	Cycle uint64
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s address 0x%X out of range at cycle %d",
		e.Space, e.Addr, e.Cycle)
}

// Memory is the flat byte-addressable data image. It is pre-zeroed and
// bounds-checked; the pipeline validates addresses with CheckAddr before
// any cache or backing-store access.
type Memory struct {
	data []byte
}

// NewMemory creates a data image of the default size.
func NewMemory() *Memory {
	return NewMemorySized(DefaultMemorySize)
}

// NewMemorySized creates a data image of the given size in bytes.
func NewMemorySized(size int) *Memory {
	return &Memory{data: make([]byte, size)}
}

// Size returns the image size in bytes.
func (m *Memory) Size() int {
	return len(m.data)
}

// CheckAddr verifies that addr falls inside the image. It returns an
// *AccessError (cycle not yet filled in) when it does not.
func (m *Memory) CheckAddr(addr uint64) error {
	if addr >= uint64(len(m.data)) {
		return &AccessError{Space: "data", Addr: addr}
	}
	return nil
}

// Read8 reads a byte. Out-of-range reads return 0; callers are expected
// to have validated the address with CheckAddr.
func (m *Memory) Read8(addr uint64) uint8 {
	if addr >= uint64(len(m.data)) {
		return 0
	}
	return m.data[addr]
}

// Write8 writes a byte. Out-of-range writes are ignored; callers are
// expected to have validated the address with CheckAddr.
func (m *Memory) Write8(addr uint64, value uint8) {
	if addr >= uint64(len(m.data)) {
		return
	}
	m.data[addr] = value
}

// Seed copies data into the image starting at addr, for pre-loading a
// run's data segment.
func (m *Memory) Seed(addr uint64, data []byte) {
	for i, b := range data {
		m.Write8(addr+uint64(i), b)
	}
}

// Reset zero-fills the image.
func (m *Memory) Reset() {
	for i := range m.data {
		m.data[i] = 0
	}
}
