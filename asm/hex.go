package asm

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseHex parses a program image in hex text form: one 16-bit word per
// line, with or without a 0x prefix. Blank lines and ; comments are
// ignored.
func ParseHex(src string) ([]uint16, error) {
	var words []uint16

	for i, raw := range strings.Split(src, "\n") {
		text := raw
		if idx := strings.IndexByte(text, ';'); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		text = strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")
		value, err := strconv.ParseUint(text, 16, 16)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid hex word %q", i+1, text)
		}
		words = append(words, uint16(value))
	}

	return words, nil
}

// FormatHex renders a program image as hex text, one word per line.
func FormatHex(words []uint16) string {
	var b strings.Builder
	for _, word := range words {
		fmt.Fprintf(&b, "%04X\n", word)
	}
	return b.String()
}
