// Package emu provides bit-exact RV32 execution models.
package emu

import "math/bits"

// Zba address generation.

// Sh1add returns (a << 1) + b.
func Sh1add(a, b uint32) uint32 { return a<<1 + b }

// Sh2add returns (a << 2) + b.
func Sh2add(a, b uint32) uint32 { return a<<2 + b }

// Sh3add returns (a << 3) + b.
func Sh3add(a, b uint32) uint32 { return a<<3 + b }

// Zbs single-bit operations. The bit index is b[4:0].

// Bset sets bit b of a.
func Bset(a, b uint32) uint32 { return a | 1<<(b&31) }

// Bclr clears bit b of a.
func Bclr(a, b uint32) uint32 { return a &^ (1 << (b & 31)) }

// Binv inverts bit b of a.
func Binv(a, b uint32) uint32 { return a ^ 1<<(b&31) }

// Bext extracts bit b of a.
func Bext(a, b uint32) uint32 { return a >> (b & 31) & 1 }

// Zbb logic with negate, min/max and rotates.

// Andn returns a & ^b.
func Andn(a, b uint32) uint32 { return a &^ b }

// Orn returns a | ^b.
func Orn(a, b uint32) uint32 { return a | ^b }

// Xnor returns ^(a ^ b).
func Xnor(a, b uint32) uint32 { return ^(a ^ b) }

// Max returns the signed maximum.
func Max(a, b uint32) uint32 {
	if int32(a) > int32(b) {
		return a
	}
	return b
}

// Maxu returns the unsigned maximum.
func Maxu(a, b uint32) uint32 { return max(a, b) }

// Min returns the signed minimum.
func Min(a, b uint32) uint32 {
	if int32(a) < int32(b) {
		return a
	}
	return b
}

// Minu returns the unsigned minimum.
func Minu(a, b uint32) uint32 { return min(a, b) }

// Rol rotates a left by b[4:0].
func Rol(a, b uint32) uint32 { return bits.RotateLeft32(a, int(b&31)) }

// Ror rotates a right by b[4:0].
func Ror(a, b uint32) uint32 { return bits.RotateLeft32(a, -int(b&31)) }

// Clz counts leading zeros. Clz(0) is 32.
func Clz(a uint32) uint32 { return uint32(bits.LeadingZeros32(a)) }

// Ctz counts trailing zeros. Ctz(0) is 32.
func Ctz(a uint32) uint32 { return uint32(bits.TrailingZeros32(a)) }

// Cpop counts set bits.
func Cpop(a uint32) uint32 { return uint32(bits.OnesCount32(a)) }

// SextB sign-extends the low byte.
func SextB(a uint32) uint32 { return uint32(int32(int8(a))) }

// SextH sign-extends the low half-word.
func SextH(a uint32) uint32 { return uint32(int32(int16(a))) }

// ZextH zero-extends the low half-word.
func ZextH(a uint32) uint32 { return a & 0xFFFF }

// OrcB sets each byte to 0xFF if any of its bits are set, else 0x00.
func OrcB(a uint32) uint32 {
	var r uint32
	for i := 0; i < 32; i += 8 {
		if a>>i&0xFF != 0 {
			r |= 0xFF << i
		}
	}
	return r
}

// Rev8 reverses byte order.
func Rev8(a uint32) uint32 { return bits.ReverseBytes32(a) }

// Zbkb packing and permutation.

// Brev8 reverses the bits within each byte.
func Brev8(a uint32) uint32 { return bits.ReverseBytes32(bits.Reverse32(a)) }

// Pack places the low half of a in the low half of the result and the low
// half of b in the high half.
func Pack(a, b uint32) uint32 { return a&0xFFFF | b<<16 }

// Packh packs the low bytes of a and b into the low half-word.
func Packh(a, b uint32) uint32 { return a&0xFF | (b&0xFF)<<8 }

// Zip interleaves the low half of a into even bit positions and the high
// half into odd positions.
func Zip(a uint32) uint32 {
	var r uint32
	for i := 0; i < 16; i++ {
		r |= (a >> i & 1) << (2 * i)
		r |= (a >> (i + 16) & 1) << (2*i + 1)
	}
	return r
}

// Unzip is the inverse of Zip.
func Unzip(a uint32) uint32 {
	var r uint32
	for i := 0; i < 16; i++ {
		r |= (a >> (2 * i) & 1) << i
		r |= (a >> (2*i + 1) & 1) << (i + 16)
	}
	return r
}

// Zicond conditional zero.

// CzeroEqz returns 0 when b is zero, else a.
func CzeroEqz(a, b uint32) uint32 {
	if b == 0 {
		return 0
	}
	return a
}

// CzeroNez returns 0 when b is nonzero, else a.
func CzeroNez(a, b uint32) uint32 {
	if b != 0 {
		return 0
	}
	return a
}
