package funcunit

import "math"

// The floating-point unit operates on an 8-bit minifloat encoding:
// 1 sign bit, 4 exponent bits (bias 7), 3 mantissa bits. Encodings with
// an all-ones exponent (infinities and NaNs) are unsupported; operating
// on one raises the arithmetic fault flag.

const (
	minifloatExpBits  = 4
	minifloatManBits  = 3
	minifloatExpBias  = 7
	minifloatExpMask  = (1 << minifloatExpBits) - 1
	minifloatManMask  = (1 << minifloatManBits) - 1
	minifloatSignBit  = 0x80
	minifloatMaxValue = 0x77 // exp=14, mantissa=7: 1.875 * 2^7 = 240
)

// minifloatSupported reports whether v is a supported encoding (finite).
func minifloatSupported(v uint8) bool {
	exp := (v >> minifloatManBits) & minifloatExpMask
	return exp != minifloatExpMask
}

// minifloatDecode converts a supported minifloat encoding to float64.
func minifloatDecode(v uint8) float64 {
	sign := 1.0
	if v&minifloatSignBit != 0 {
		sign = -1.0
	}
	exp := int((v >> minifloatManBits) & minifloatExpMask)
	man := int(v & minifloatManMask)

	if exp == 0 {
		// Subnormal: 0.man * 2^(1-bias)
		return sign * float64(man) / 8.0 * math.Pow(2, 1-minifloatExpBias)
	}
	return sign * (1.0 + float64(man)/8.0) * math.Pow(2, float64(exp-minifloatExpBias))
}

// minifloatEncode converts a float64 to the nearest supported minifloat
// encoding. Magnitudes beyond the largest finite value saturate to it;
// magnitudes below the smallest subnormal flush to zero.
func minifloatEncode(f float64) uint8 {
	var sign uint8
	if math.Signbit(f) {
		sign = minifloatSignBit
		f = -f
	}

	if f == 0 {
		return sign
	}

	maxFinite := minifloatDecode(minifloatMaxValue)
	if f >= maxFinite {
		return sign | minifloatMaxValue
	}

	exp := int(math.Floor(math.Log2(f)))
	if exp < 1-minifloatExpBias {
		// Subnormal range.
		man := int(math.Round(f / math.Pow(2, 1-minifloatExpBias) * 8))
		if man > minifloatManMask {
			man = minifloatManMask
		}
		if man == 0 {
			return sign
		}
		return sign | uint8(man)
	}

	man := int(math.Round((f/math.Pow(2, float64(exp)) - 1.0) * 8))
	if man > minifloatManMask {
		man = 0
		exp++
	}
	biased := exp + minifloatExpBias
	if biased >= minifloatExpMask {
		return sign | minifloatMaxValue
	}
	return sign | uint8(biased)<<minifloatManBits | uint8(man)
}
