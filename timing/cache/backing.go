package cache

import (
	"github.com/enh8/e8sim/emu"
)

// MemoryBacking adapts the byte-addressable data image as a BackingStore
// for the data cache.
type MemoryBacking struct {
	memory *emu.Memory
}

// NewMemoryBacking creates a BackingStore over the data image.
func NewMemoryBacking(memory *emu.Memory) *MemoryBacking {
	return &MemoryBacking{memory: memory}
}

// Read fetches data from the backing memory.
func (m *MemoryBacking) Read(addr uint64, size int) []byte {
	data := make([]byte, size)
	for i := 0; i < size; i++ {
		data[i] = m.memory.Read8(addr + uint64(i))
	}
	return data
}

// Write stores data to the backing memory.
func (m *MemoryBacking) Write(addr uint64, data []byte) {
	for i, b := range data {
		m.memory.Write8(addr+uint64(i), b)
	}
}

// ProgramBacking adapts the instruction image as a read-only
// BackingStore for the instruction cache. Instruction words are 16 bits
// wide; the cache addresses them as little-endian byte pairs at
// byte address = word address * 2.
type ProgramBacking struct {
	program *emu.Program
}

// NewProgramBacking creates a BackingStore over the instruction image.
func NewProgramBacking(program *emu.Program) *ProgramBacking {
	return &ProgramBacking{program: program}
}

// Read fetches instruction bytes. Addresses past the image end read as
// zero; the pipeline never installs them as architectural state.
func (p *ProgramBacking) Read(addr uint64, size int) []byte {
	data := make([]byte, size)
	for i := 0; i < size; i++ {
		byteAddr := addr + uint64(i)
		word, ok := p.program.Word(byteAddr / 2)
		if !ok {
			continue
		}
		if byteAddr%2 == 0 {
			data[i] = byte(word)
		} else {
			data[i] = byte(word >> 8)
		}
	}
	return data
}

// Write is a no-op: the instruction image is read-only.
func (p *ProgramBacking) Write(addr uint64, data []byte) {
}
