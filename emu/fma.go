// Package emu provides bit-exact RV32 execution models.
package emu

import "math/bits"

// uint128 is an unsigned 128-bit integer.
type uint128 struct {
	hi, lo uint64
}

func u128(v uint64) uint128 { return uint128{lo: v} }

func (x uint128) isZero() bool { return x.hi == 0 && x.lo == 0 }

func (x uint128) cmp(y uint128) int {
	switch {
	case x.hi < y.hi:
		return -1
	case x.hi > y.hi:
		return 1
	case x.lo < y.lo:
		return -1
	case x.lo > y.lo:
		return 1
	}
	return 0
}

func (x uint128) add(y uint128) uint128 {
	lo, carry := bits.Add64(x.lo, y.lo, 0)
	hi, _ := bits.Add64(x.hi, y.hi, carry)
	return uint128{hi, lo}
}

func (x uint128) sub(y uint128) uint128 {
	lo, borrow := bits.Sub64(x.lo, y.lo, 0)
	hi, _ := bits.Sub64(x.hi, y.hi, borrow)
	return uint128{hi, lo}
}

func (x uint128) shl(n uint) uint128 {
	switch {
	case n == 0:
		return x
	case n >= 128:
		return uint128{}
	case n >= 64:
		return uint128{hi: x.lo << (n - 64)}
	}
	return uint128{hi: x.hi<<n | x.lo>>(64-n), lo: x.lo << n}
}

func (x uint128) shr(n uint) uint128 {
	switch {
	case n == 0:
		return x
	case n >= 128:
		return uint128{}
	case n >= 64:
		return uint128{lo: x.hi >> (n - 64)}
	}
	return uint128{hi: x.hi >> n, lo: x.lo>>n | x.hi<<(64-n)}
}

func (x uint128) and(y uint128) uint128 { return uint128{x.hi & y.hi, x.lo & y.lo} }

func (x uint128) or(y uint128) uint128 { return uint128{x.hi | y.hi, x.lo | y.lo} }

func (x uint128) bitLen() int {
	if x.hi != 0 {
		return 64 + bits.Len64(x.hi)
	}
	return bits.Len64(x.lo)
}

// lowMask returns 2^n - 1.
func lowMask(n uint) uint128 {
	return u128(1).shl(n).sub(u128(1))
}

// alignTo returns m·2^e expressed in units of 2^frame. Bits below the frame
// are ORed into bit 0 as a sticky bit.
func alignTo(m uint128, e, frame int) uint128 {
	if e >= frame {
		return m.shl(uint(e - frame))
	}
	n := uint(frame - e)
	shifted := m.shr(n)
	if !m.and(lowMask(min(n, 128))).isZero() {
		shifted = shifted.or(u128(1))
	}
	return shifted
}

// unpack splits a finite nonzero binary32 value into sign, the exponent of
// the mantissa's least significant bit and the integer mantissa, so the
// value is ±mant·2^exp.
func unpack(x uint32) (neg bool, exp int, mant uint64) {
	neg = IsNegative(x)
	biased := int(x >> 23 & 0xFF)
	mant = uint64(x & fracMask)
	if biased == 0 {
		return neg, -149, mant
	}
	return neg, biased - 150, mant | 1<<23
}

// frameBits is the width below the largest operand's top bit that is kept
// exactly; four bits of headroom remain for the carry of an addition.
const frameBits = 124

// FMA returns a·b + c rounded once to binary32, round to nearest, ties to
// even.
func FMA(a, b, c uint32) uint32 {
	if IsNaN(a) || IsNaN(b) || IsNaN(c) {
		return CanonicalNaN
	}

	prodNeg := IsNegative(a) != IsNegative(b)
	prodSign := uint32(0)
	if prodNeg {
		prodSign = SignMask
	}

	if IsInf(a) || IsInf(b) {
		if IsZero(a) || IsZero(b) {
			return CanonicalNaN
		}
		if IsInf(c) && IsNegative(c) != prodNeg {
			return CanonicalNaN
		}
		return PosInf | prodSign
	}
	if IsInf(c) {
		return c
	}

	if IsZero(a) || IsZero(b) {
		if !IsZero(c) {
			return c
		}
		if prodNeg && IsNegative(c) {
			return SignMask
		}
		return 0
	}

	_, aExp, aMant := unpack(a)
	_, bExp, bMant := unpack(b)

	hi, lo := bits.Mul64(aMant, bMant)
	prod := uint128{hi, lo}
	prodExp := aExp + bExp
	top := prodExp + prod.bitLen()

	var (
		add    uint128
		addExp int
		addNeg bool
	)
	if !IsZero(c) {
		var m uint64
		addNeg, addExp, m = unpack(c)
		add = u128(m)
		top = max(top, addExp+add.bitLen())
	}

	frame := top - frameBits
	p := alignTo(prod, prodExp, frame)
	q := uint128{}
	if !add.isZero() {
		q = alignTo(add, addExp, frame)
	}

	var sum uint128
	neg := prodNeg
	switch {
	case prodNeg == addNeg || q.isZero():
		sum = p.add(q)
	case p.cmp(q) >= 0:
		sum = p.sub(q)
	default:
		sum = q.sub(p)
		neg = addNeg
	}

	if sum.isZero() {
		return 0
	}

	return roundPack(neg, sum, frame)
}

// roundPack rounds sum·2^frame to binary32.
func roundPack(neg bool, sum uint128, frame int) uint32 {
	sign := uint32(0)
	if neg {
		sign = SignMask
	}

	msb := frame + sum.bitLen() - 1
	lsb := max(msb-23, -149)

	var kept uint64
	switch shift := lsb - frame; {
	case shift > 128:
		// Below half of the smallest subnormal.
		kept = 0
	case shift > 0:
		s := uint(shift)
		rem := sum.and(lowMask(s))
		half := u128(1).shl(s - 1)
		kept = sum.shr(s).lo
		if c := rem.cmp(half); c > 0 || c == 0 && kept&1 == 1 {
			kept++
		}
	default:
		kept = sum.shl(uint(-shift)).lo
	}

	if kept == 1<<24 {
		kept >>= 1
		lsb++
	}

	if kept < 1<<23 {
		return sign | uint32(kept)
	}

	biased := lsb + 150
	if biased >= 0xFF {
		return sign | PosInf
	}
	return sign | uint32(biased)<<23 | uint32(kept)&fracMask
}

// FMSub returns a·b - c with a single rounding.
func FMSub(a, b, c uint32) uint32 { return FMA(a, b, c^SignMask) }

// FNMAdd returns -(a·b) - c with a single rounding.
func FNMAdd(a, b, c uint32) uint32 { return FMA(a^SignMask, b, c^SignMask) }

// FNMSub returns -(a·b) + c with a single rounding.
func FNMSub(a, b, c uint32) uint32 { return FMA(a^SignMask, b, c) }
