package emu

// Program is the instruction image: an ordered sequence of 16-bit
// instruction words, index = address. It is supplied by the assembler
// or loader and read-only for the duration of a run.
type Program struct {
	words []uint16
}

// NewProgram creates a program image from assembled instruction words.
func NewProgram(words []uint16) *Program {
	p := &Program{words: make([]uint16, len(words))}
	copy(p.words, words)
	return p
}

// Len returns the declared image length in instruction words.
func (p *Program) Len() int {
	return len(p.words)
}

// Word returns the instruction word at the given address. ok is false
// when the address is past the end of the image.
func (p *Program) Word(addr uint64) (word uint16, ok bool) {
	if addr >= uint64(len(p.words)) {
		return 0, false
	}
	return p.words[addr], true
}

// Contains reports whether addr names an instruction inside the image.
func (p *Program) Contains(addr uint64) bool {
	return addr < uint64(len(p.words))
}
