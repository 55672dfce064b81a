// Package emu provides bit-exact RV32 execution models.
package emu

import "math"

// All ALU functions operate on raw 32-bit register values. Signed variants
// reinterpret operands as two's complement. Shift amounts use the low five
// bits of b.

// Add performs 32-bit addition with wraparound: rd = a + b
func Add(a, b uint32) uint32 { return a + b }

// Sub performs 32-bit subtraction with wraparound: rd = a - b
func Sub(a, b uint32) uint32 { return a - b }

// Sll performs a logical left shift: rd = a << b[4:0]
func Sll(a, b uint32) uint32 { return a << (b & 31) }

// Srl performs a logical right shift: rd = a >> b[4:0]
func Srl(a, b uint32) uint32 { return a >> (b & 31) }

// Sra performs an arithmetic right shift: rd = a >>s b[4:0]
func Sra(a, b uint32) uint32 { return uint32(int32(a) >> (b & 31)) }

// Slt sets rd to 1 when a < b as signed integers.
func Slt(a, b uint32) uint32 { return bool32(int32(a) < int32(b)) }

// Sltu sets rd to 1 when a < b as unsigned integers.
func Sltu(a, b uint32) uint32 { return bool32(a < b) }

// Xor performs bitwise exclusive or.
func Xor(a, b uint32) uint32 { return a ^ b }

// Or performs bitwise or.
func Or(a, b uint32) uint32 { return a | b }

// And performs bitwise and.
func And(a, b uint32) uint32 { return a & b }

// Mul returns the low 32 bits of a * b.
func Mul(a, b uint32) uint32 { return a * b }

// Mulh returns the high 32 bits of the signed 64-bit product.
func Mulh(a, b uint32) uint32 {
	return uint32(uint64(int64(int32(a))*int64(int32(b))) >> 32)
}

// Mulhsu returns the high 32 bits of signed a times unsigned b.
func Mulhsu(a, b uint32) uint32 {
	return uint32(uint64(int64(int32(a))*int64(b)) >> 32)
}

// Mulhu returns the high 32 bits of the unsigned 64-bit product.
func Mulhu(a, b uint32) uint32 {
	return uint32(uint64(a) * uint64(b) >> 32)
}

// Div performs signed division rounding toward zero. Division by zero
// returns all ones; MIN / -1 returns MIN.
func Div(a, b uint32) uint32 {
	sa, sb := int32(a), int32(b)
	switch {
	case sb == 0:
		return math.MaxUint32
	case sa == math.MinInt32 && sb == -1:
		return a
	}
	return uint32(sa / sb)
}

// Divu performs unsigned division. Division by zero returns all ones.
func Divu(a, b uint32) uint32 {
	if b == 0 {
		return math.MaxUint32
	}
	return a / b
}

// Rem returns the signed remainder, with the sign of the dividend.
// Remainder by zero returns the dividend; MIN % -1 returns 0.
func Rem(a, b uint32) uint32 {
	sa, sb := int32(a), int32(b)
	switch {
	case sb == 0:
		return a
	case sa == math.MinInt32 && sb == -1:
		return 0
	}
	return uint32(sa % sb)
}

// Remu returns the unsigned remainder. Remainder by zero returns the
// dividend.
func Remu(a, b uint32) uint32 {
	if b == 0 {
		return a
	}
	return a % b
}

// Lui returns the upper-immediate value for a 20-bit immediate.
func Lui(imm uint32) uint32 { return imm << 12 }

// Auipc adds the upper immediate to pc.
func Auipc(pc, imm uint32) uint32 { return pc + imm<<12 }

func bool32(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}
