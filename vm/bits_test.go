package vm

import "testing"

func TestExtractBits(t *testing.T) {
	tests := []struct {
		word     uint32
		lo, hi   uint
		expected uint32
	}{
		{0xFFFFFFFF, 0, 31, 0xFFFFFFFF},
		{0x0000000F, 0, 3, 0xF},
		{0xF0000000, 28, 31, 0xF},
		{0b1010, 1, 1, 1},
		{0b1010, 0, 0, 0},
	}
	for _, tt := range tests {
		if got := extractBits(tt.word, tt.lo, tt.hi); got != tt.expected {
			t.Errorf("extractBits(0x%X, %d, %d) = 0x%X, want 0x%X", tt.word, tt.lo, tt.hi, got, tt.expected)
		}
	}
}

func TestSignExtend(t *testing.T) {
	tests := []struct {
		value    uint32
		width    uint
		expected uint32
	}{
		{0x7FF, 12, 0x000007FF},  // positive 12-bit value stays positive
		{0xFFF, 12, 0xFFFFFFFF},  // -1 in 12 bits
		{0x800, 12, 0xFFFFF800}, // most negative 12-bit value
		{0, 1, 0},
		{1, 1, 0xFFFFFFFF},
		{0xFFFFFFFF, 32, 0xFFFFFFFF},
	}
	for _, tt := range tests {
		if got := signExtend(tt.value, tt.width); got != tt.expected {
			t.Errorf("signExtend(0x%X, %d) = 0x%X, want 0x%X", tt.value, tt.width, got, tt.expected)
		}
	}
}

func TestToSigned(t *testing.T) {
	tests := []struct {
		value    uint32
		expected int32
	}{
		{0, 0},
		{1, 1},
		{0x7FFFFFFF, 2147483647},
		{0x80000000, -2147483648},
		{0xFFFFFFFF, -1},
	}
	for _, tt := range tests {
		if got := toSigned(tt.value); got != tt.expected {
			t.Errorf("toSigned(0x%X) = %d, want %d", tt.value, got, tt.expected)
		}
	}
}

// TestSignExtendRoundTrip covers property 8 from the spec: for every width
// in [1, 32], toSigned(signExtend(v, width)) matches the two's-complement
// interpretation of v's low `width` bits.
func TestSignExtendRoundTrip(t *testing.T) {
	for width := uint(1); width <= 32; width++ {
		mask := uint32(1)<<width - 1
		if width == 32 {
			mask = 0xFFFFFFFF
		}
		for _, v := range []uint32{0, 1, mask, mask / 2, mask/2 + 1} {
			v &= mask
			extended := signExtend(v, width)
			got := toSigned(extended)

			signBit := uint32(1) << (width - 1)
			var want int32
			if width < 32 && v&signBit != 0 {
				want = int32(v) - int32(uint32(1)<<width)
			} else {
				want = int32(v)
			}
			if got != want {
				t.Errorf("width=%d v=0x%X: toSigned(signExtend)=%d, want %d", width, v, got, want)
			}
		}
	}
}
