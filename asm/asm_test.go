package asm_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/enh8/e8sim/asm"
	"github.com/enh8/e8sim/insts"
)

var _ = Describe("Assembler", func() {
	var assembler *asm.Assembler

	BeforeEach(func() {
		assembler = asm.NewAssembler()
	})

	It("should assemble a simple program", func() {
		words, err := assembler.Assemble(`
			LOADI R1, #5
			LOADI R2, #10
			ADD   R3, R1, R2
			HALT
		`)

		Expect(err).NotTo(HaveOccurred())
		Expect(words).To(Equal([]uint16{
			insts.EncodeLOADI(1, 5),
			insts.EncodeLOADI(2, 10),
			insts.EncodeALU(insts.OpADD, 3, 1, 2),
			insts.EncodeHALT(),
		}))
	})

	It("should resolve labels", func() {
		words, err := assembler.Assemble(`
			loop:
				SUB R1, R1, R2
				JNZ R1, loop
				HALT
		`)

		Expect(err).NotTo(HaveOccurred())
		Expect(words).To(Equal([]uint16{
			insts.EncodeALU(insts.OpSUB, 1, 1, 2),
			insts.EncodeCondJump(insts.OpJNZ, 1, 0),
			insts.EncodeHALT(),
		}))
	})

	It("should accept a label on the same line as the instruction", func() {
		words, err := assembler.Assemble(`
			start: LOADI R1, #1
			JUMP start
		`)

		Expect(err).NotTo(HaveOccurred())
		Expect(words[1]).To(Equal(insts.EncodeJUMP(0)))
	})

	It("should strip comments", func() {
		words, err := assembler.Assemble(`
			; full-line comment
			HALT ; trailing comment
		`)

		Expect(err).NotTo(HaveOccurred())
		Expect(words).To(Equal([]uint16{insts.EncodeHALT()}))
	})

	It("should accept hex, binary, and decimal literals", func() {
		words, err := assembler.Assemble(`
			LOADI R1, #0x1F
			LOADI R2, #0b101
			LOAD  R3, [32]
		`)

		Expect(err).NotTo(HaveOccurred())
		Expect(words).To(Equal([]uint16{
			insts.EncodeLOADI(1, 0x1F),
			insts.EncodeLOADI(2, 5),
			insts.EncodeLOAD(3, 32),
		}))
	})

	It("should accept immediates without the # prefix", func() {
		words, err := assembler.Assemble("LOADI R0, 7")

		Expect(err).NotTo(HaveOccurred())
		Expect(words).To(Equal([]uint16{insts.EncodeLOADI(0, 7)}))
	})

	It("should assemble memory and register-pair forms", func() {
		words, err := assembler.Assemble(`
			STORE R1, [0x20]
			MOV   R2, R1
			SHL   R2
			NOT   R3, R2
			MUL   R3, R1
			FADD  R4, R3
			CMP   R3, R4
		`)

		Expect(err).NotTo(HaveOccurred())
		Expect(words).To(Equal([]uint16{
			insts.EncodeSTORE(1, 0x20),
			insts.EncodeReg2(insts.OpMOV, 2, 1),
			insts.EncodeReg2(insts.OpSHL, 2, 2),
			insts.EncodeReg2(insts.OpNOT, 3, 2),
			insts.EncodeReg2(insts.OpMUL, 3, 1),
			insts.EncodeReg2(insts.OpFADD, 4, 3),
			insts.EncodeCMP(3, 4),
		}))
	})

	Describe("errors", func() {
		It("should report undefined labels with the line number", func() {
			_, err := assembler.Assemble("JUMP nowhere")

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("line 1"))
			Expect(err.Error()).To(ContainSubstring("nowhere"))
		})

		It("should reject duplicate labels", func() {
			_, err := assembler.Assemble("a:\na:\nHALT")
			Expect(err).To(MatchError(ContainSubstring("duplicate label")))
		})

		It("should reject out-of-range immediates", func() {
			_, err := assembler.Assemble("LOADI R1, #64")
			Expect(err).To(MatchError(ContainSubstring("out of range")))
		})

		It("should reject out-of-range addresses", func() {
			_, err := assembler.Assemble("LOAD R1, [64]")
			Expect(err).To(MatchError(ContainSubstring("out of range")))
		})

		It("should reject bad registers", func() {
			_, err := assembler.Assemble("LOADI R8, #1")
			Expect(err).To(MatchError(ContainSubstring("register")))
		})

		It("should reject unknown mnemonics", func() {
			_, err := assembler.Assemble("FROB R1, R2")
			Expect(err).To(MatchError(ContainSubstring("unknown mnemonic")))
		})

		It("should reject wrong operand counts", func() {
			_, err := assembler.Assemble("ADD R1, R2")
			Expect(err).To(MatchError(ContainSubstring("expects 3 operands")))
		})

		It("should reject memory operands without brackets", func() {
			_, err := assembler.Assemble("LOAD R1, 16")
			Expect(err).To(MatchError(ContainSubstring("[address]")))
		})
	})
})

var _ = Describe("Hex images", func() {
	It("should parse one word per line", func() {
		words, err := asm.ParseHex("0205\n0x040A\n; comment\n\nF000")

		Expect(err).NotTo(HaveOccurred())
		Expect(words).To(Equal([]uint16{0x0205, 0x040A, 0xF000}))
	})

	It("should reject malformed words", func() {
		_, err := asm.ParseHex("zzzz")
		Expect(err).To(MatchError(ContainSubstring("line 1")))
	})

	It("should round-trip through FormatHex", func() {
		words := []uint16{0x0205, 0xF000}

		parsed, err := asm.ParseHex(asm.FormatHex(words))

		Expect(err).NotTo(HaveOccurred())
		Expect(parsed).To(Equal(words))
	})
})
