// Package asm provides a two-pass assembler and hex image loader for
// the Enhanced 8-Bit CPU.
//
// Source syntax:
//
//	; comment
//	start:  LOADI R1, #5
//	        ADD   R3, R1, R2
//	        LOAD  R4, [0x10]
//	        JNZ   R4, start
//	        HALT
//
// Labels end with a colon and resolve to instruction addresses.
// Immediates and addresses accept decimal, 0x hexadecimal, and 0b
// binary literals; the leading # on immediates is optional.
package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/enh8/e8sim/insts"
)

const (
	maxImm  = 63 // 6-bit immediate/address field
	maxReg  = 7
	maxAddr = 63
)

// Assembler translates assembly source into machine words.
type Assembler struct{}

// NewAssembler creates an assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

type sourceLine struct {
	num      int // 1-based line number in the source
	addr     uint8
	mnemonic string
	operands []string
}

// Assemble translates src into a program image. Errors carry the source
// line number.
func (a *Assembler) Assemble(src string) ([]uint16, error) {
	lines, labels, err := a.firstPass(src)
	if err != nil {
		return nil, err
	}

	words := make([]uint16, 0, len(lines))
	for _, line := range lines {
		word, err := a.encodeLine(line, labels)
		if err != nil {
			return nil, err
		}
		words = append(words, word)
	}
	return words, nil
}

// firstPass strips comments, collects labels, and assigns instruction
// addresses.
func (a *Assembler) firstPass(
	src string,
) ([]sourceLine, map[string]uint8, error) {
	var lines []sourceLine
	labels := make(map[string]uint8)
	addr := 0

	for i, raw := range strings.Split(src, "\n") {
		num := i + 1

		text := raw
		if idx := strings.IndexByte(text, ';'); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		// A line may carry a label, an instruction, or both.
		if idx := strings.IndexByte(text, ':'); idx >= 0 {
			label := strings.TrimSpace(text[:idx])
			if !isIdentifier(label) {
				return nil, nil, fmt.Errorf(
					"line %d: invalid label %q", num, label)
			}
			if _, exists := labels[label]; exists {
				return nil, nil, fmt.Errorf(
					"line %d: duplicate label %q", num, label)
			}
			if addr > maxAddr {
				return nil, nil, fmt.Errorf(
					"line %d: program exceeds %d instructions",
					num, maxAddr+1)
			}
			labels[label] = uint8(addr)
			text = strings.TrimSpace(text[idx+1:])
			if text == "" {
				continue
			}
		}

		fields := strings.Fields(text)
		mnemonic := strings.ToUpper(fields[0])
		operandText := strings.TrimSpace(text[len(fields[0]):])

		var operands []string
		if operandText != "" {
			for _, op := range strings.Split(operandText, ",") {
				operands = append(operands, strings.TrimSpace(op))
			}
		}

		if addr > maxAddr {
			return nil, nil, fmt.Errorf(
				"line %d: program exceeds %d instructions",
				num, maxAddr+1)
		}
		lines = append(lines, sourceLine{
			num:      num,
			addr:     uint8(addr),
			mnemonic: mnemonic,
			operands: operands,
		})
		addr++
	}

	return lines, labels, nil
}

func (a *Assembler) encodeLine(
	line sourceLine,
	labels map[string]uint8,
) (uint16, error) {
	switch line.mnemonic {
	case "LOADI":
		rd, imm, err := a.regImmOperands(line)
		if err != nil {
			return 0, err
		}
		return insts.EncodeLOADI(rd, imm), nil

	case "ADD", "SUB", "AND", "OR", "XOR":
		if err := expectOperands(line, 3); err != nil {
			return 0, err
		}
		rd, err := parseRegister(line, line.operands[0])
		if err != nil {
			return 0, err
		}
		rs1, err := parseRegister(line, line.operands[1])
		if err != nil {
			return 0, err
		}
		rs2, err := parseRegister(line, line.operands[2])
		if err != nil {
			return 0, err
		}
		return insts.EncodeALU(aluOp(line.mnemonic), rd, rs1, rs2), nil

	case "LOAD":
		reg, addr, err := a.regAddrOperands(line)
		if err != nil {
			return 0, err
		}
		return insts.EncodeLOAD(reg, addr), nil

	case "STORE":
		reg, addr, err := a.regAddrOperands(line)
		if err != nil {
			return 0, err
		}
		return insts.EncodeSTORE(reg, addr), nil

	case "SHL", "SHR", "MOV", "NOT", "MUL", "DIV", "FADD", "FMUL":
		rd, rs, err := a.regPairOperands(line)
		if err != nil {
			return 0, err
		}
		return insts.EncodeReg2(reg2Op(line.mnemonic), rd, rs), nil

	case "CMP":
		if err := expectOperands(line, 2); err != nil {
			return 0, err
		}
		rs1, err := parseRegister(line, line.operands[0])
		if err != nil {
			return 0, err
		}
		rs2, err := parseRegister(line, line.operands[1])
		if err != nil {
			return 0, err
		}
		return insts.EncodeCMP(rs1, rs2), nil

	case "JUMP":
		if err := expectOperands(line, 1); err != nil {
			return 0, err
		}
		target, err := parseTarget(line, line.operands[0], labels)
		if err != nil {
			return 0, err
		}
		return insts.EncodeJUMP(target), nil

	case "JZ", "JNZ":
		if err := expectOperands(line, 2); err != nil {
			return 0, err
		}
		rs, err := parseRegister(line, line.operands[0])
		if err != nil {
			return 0, err
		}
		target, err := parseTarget(line, line.operands[1], labels)
		if err != nil {
			return 0, err
		}
		op := insts.OpJZ
		if line.mnemonic == "JNZ" {
			op = insts.OpJNZ
		}
		return insts.EncodeCondJump(op, rs, target), nil

	case "HALT":
		if err := expectOperands(line, 0); err != nil {
			return 0, err
		}
		return insts.EncodeHALT(), nil
	}

	return 0, fmt.Errorf(
		"line %d: unknown mnemonic %q", line.num, line.mnemonic)
}

func (a *Assembler) regImmOperands(line sourceLine) (uint8, uint8, error) {
	if err := expectOperands(line, 2); err != nil {
		return 0, 0, err
	}
	reg, err := parseRegister(line, line.operands[0])
	if err != nil {
		return 0, 0, err
	}
	imm, err := parseImmediate(line, line.operands[1])
	if err != nil {
		return 0, 0, err
	}
	return reg, imm, nil
}

func (a *Assembler) regAddrOperands(line sourceLine) (uint8, uint8, error) {
	if err := expectOperands(line, 2); err != nil {
		return 0, 0, err
	}
	reg, err := parseRegister(line, line.operands[0])
	if err != nil {
		return 0, 0, err
	}
	addr, err := parseAddress(line, line.operands[1])
	if err != nil {
		return 0, 0, err
	}
	return reg, addr, nil
}

// regPairOperands parses "Rd, Rs", accepting a single register as
// shorthand for "Rd, Rd".
func (a *Assembler) regPairOperands(line sourceLine) (uint8, uint8, error) {
	switch len(line.operands) {
	case 1:
		rd, err := parseRegister(line, line.operands[0])
		if err != nil {
			return 0, 0, err
		}
		return rd, rd, nil
	case 2:
		rd, err := parseRegister(line, line.operands[0])
		if err != nil {
			return 0, 0, err
		}
		rs, err := parseRegister(line, line.operands[1])
		if err != nil {
			return 0, 0, err
		}
		return rd, rs, nil
	default:
		return 0, 0, fmt.Errorf(
			"line %d: %s expects 1 or 2 operands, got %d",
			line.num, line.mnemonic, len(line.operands))
	}
}

func expectOperands(line sourceLine, n int) error {
	if len(line.operands) != n {
		return fmt.Errorf(
			"line %d: %s expects %d operands, got %d",
			line.num, line.mnemonic, n, len(line.operands))
	}
	return nil
}

func aluOp(mnemonic string) insts.Op {
	switch mnemonic {
	case "ADD":
		return insts.OpADD
	case "SUB":
		return insts.OpSUB
	case "AND":
		return insts.OpAND
	case "OR":
		return insts.OpOR
	default:
		return insts.OpXOR
	}
}

func reg2Op(mnemonic string) insts.Op {
	switch mnemonic {
	case "SHL":
		return insts.OpSHL
	case "SHR":
		return insts.OpSHR
	case "MOV":
		return insts.OpMOV
	case "NOT":
		return insts.OpNOT
	case "MUL":
		return insts.OpMUL
	case "DIV":
		return insts.OpDIV
	case "FADD":
		return insts.OpFADD
	default:
		return insts.OpFMUL
	}
}

func parseRegister(line sourceLine, token string) (uint8, error) {
	upper := strings.ToUpper(token)
	if len(upper) == 2 && upper[0] == 'R' && upper[1] >= '0' && upper[1] <= '7' {
		return upper[1] - '0', nil
	}
	return 0, fmt.Errorf(
		"line %d: expected register R0-R%d, got %q", line.num, maxReg, token)
}

func parseImmediate(line sourceLine, token string) (uint8, error) {
	token = strings.TrimPrefix(token, "#")
	value, err := parseNumber(token)
	if err != nil {
		return 0, fmt.Errorf(
			"line %d: invalid immediate %q", line.num, token)
	}
	if value > maxImm {
		return 0, fmt.Errorf(
			"line %d: immediate %d out of range 0-%d",
			line.num, value, maxImm)
	}
	return uint8(value), nil
}

func parseAddress(line sourceLine, token string) (uint8, error) {
	if !strings.HasPrefix(token, "[") || !strings.HasSuffix(token, "]") {
		return 0, fmt.Errorf(
			"line %d: expected [address], got %q", line.num, token)
	}
	inner := strings.TrimSpace(token[1 : len(token)-1])
	value, err := parseNumber(inner)
	if err != nil {
		return 0, fmt.Errorf(
			"line %d: invalid address %q", line.num, inner)
	}
	if value > maxAddr {
		return 0, fmt.Errorf(
			"line %d: address %d out of range 0-%d",
			line.num, value, maxAddr)
	}
	return uint8(value), nil
}

func parseTarget(
	line sourceLine,
	token string,
	labels map[string]uint8,
) (uint8, error) {
	if addr, ok := labels[token]; ok {
		return addr, nil
	}
	if isIdentifier(token) {
		return 0, fmt.Errorf(
			"line %d: undefined label %q", line.num, token)
	}
	value, err := parseNumber(token)
	if err != nil {
		return 0, fmt.Errorf(
			"line %d: invalid jump target %q", line.num, token)
	}
	if value > maxAddr {
		return 0, fmt.Errorf(
			"line %d: jump target %d out of range 0-%d",
			line.num, value, maxAddr)
	}
	return uint8(value), nil
}

func parseNumber(token string) (uint64, error) {
	switch {
	case strings.HasPrefix(token, "0x"), strings.HasPrefix(token, "0X"):
		return strconv.ParseUint(token[2:], 16, 16)
	case strings.HasPrefix(token, "0b"), strings.HasPrefix(token, "0B"):
		return strconv.ParseUint(token[2:], 2, 16)
	default:
		return strconv.ParseUint(token, 10, 16)
	}
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
