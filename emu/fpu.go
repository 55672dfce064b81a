// Package emu provides bit-exact RV32 execution models.
package emu

import "math"

// Single-precision bit patterns.
const (
	CanonicalNaN uint32 = 0x7FC00000
	PosInf       uint32 = 0x7F800000
	NegInf       uint32 = 0xFF800000
	SignMask     uint32 = 0x80000000

	expMask  uint32 = 0x7F800000
	fracMask uint32 = 0x007FFFFF
	quietBit uint32 = 0x00400000
)

// The FPU functions below take and return raw binary32 bit patterns and
// round to nearest, ties to even. Any NaN they produce is canonical.

// IsNaN reports whether bits encodes a NaN.
func IsNaN(bits uint32) bool { return bits&expMask == expMask && bits&fracMask != 0 }

// IsInf reports whether bits encodes an infinity of either sign.
func IsInf(bits uint32) bool { return bits&^SignMask == PosInf }

// IsZero reports whether bits encodes +0 or -0.
func IsZero(bits uint32) bool { return bits&^SignMask == 0 }

// IsSubnormal reports whether bits encodes a subnormal number.
func IsSubnormal(bits uint32) bool { return bits&expMask == 0 && bits&fracMask != 0 }

// IsNegative reports whether the sign bit is set.
func IsNegative(bits uint32) bool { return bits&SignMask != 0 }

// CanonicalizeNaN replaces any NaN with the canonical quiet NaN.
func CanonicalizeNaN(bits uint32) uint32 {
	if IsNaN(bits) {
		return CanonicalNaN
	}
	return bits
}

func f32(bits uint32) float32 { return math.Float32frombits(bits) }

func b32(f float32) uint32 { return CanonicalizeNaN(math.Float32bits(f)) }

// FAdd returns a + b.
func FAdd(a, b uint32) uint32 {
	if IsNaN(a) || IsNaN(b) {
		return CanonicalNaN
	}
	if IsInf(a) && IsInf(b) && (a^b)&SignMask != 0 {
		return CanonicalNaN
	}
	return b32(f32(a) + f32(b))
}

// FSub returns a - b.
func FSub(a, b uint32) uint32 {
	return FAdd(a, b^SignMask)
}

// FMul returns a * b.
func FMul(a, b uint32) uint32 {
	if IsNaN(a) || IsNaN(b) {
		return CanonicalNaN
	}
	if IsZero(a) && IsInf(b) || IsInf(a) && IsZero(b) {
		return CanonicalNaN
	}
	return b32(f32(a) * f32(b))
}

// FDiv returns a / b. Division of a nonzero finite value by zero returns
// an infinity signed by the operand signs.
func FDiv(a, b uint32) uint32 {
	switch {
	case IsNaN(a) || IsNaN(b):
		return CanonicalNaN
	case IsInf(a) && IsInf(b), IsZero(a) && IsZero(b):
		return CanonicalNaN
	case IsZero(b):
		return PosInf | (a^b)&SignMask
	}
	return b32(f32(a) / f32(b))
}

// FSqrt returns the square root of a. The square root of -0 is -0.
func FSqrt(a uint32) uint32 {
	if IsNaN(a) || IsNegative(a) && !IsZero(a) {
		return CanonicalNaN
	}
	// Rounding the binary64 root once to binary32 is exact for sqrt.
	return b32(float32(math.Sqrt(float64(f32(a)))))
}

// FSgnj returns a with the sign of b.
func FSgnj(a, b uint32) uint32 { return a&^SignMask | b&SignMask }

// FSgnjn returns a with the inverted sign of b.
func FSgnjn(a, b uint32) uint32 { return a&^SignMask | ^b&SignMask }

// FSgnjx returns a with its sign XORed with the sign of b.
func FSgnjx(a, b uint32) uint32 { return a ^ b&SignMask }

// FMin returns the smaller operand. If exactly one operand is NaN the other
// is returned; -0 is ordered below +0.
func FMin(a, b uint32) uint32 {
	switch {
	case IsNaN(a) && IsNaN(b):
		return CanonicalNaN
	case IsNaN(a):
		return b
	case IsNaN(b):
		return a
	case IsZero(a) && IsZero(b):
		return a | b&SignMask
	case f32(a) <= f32(b):
		return a
	}
	return b
}

// FMax returns the larger operand with the same NaN and signed-zero rules
// as FMin.
func FMax(a, b uint32) uint32 {
	switch {
	case IsNaN(a) && IsNaN(b):
		return CanonicalNaN
	case IsNaN(a):
		return b
	case IsNaN(b):
		return a
	case IsZero(a) && IsZero(b):
		return a & b & SignMask
	case f32(a) >= f32(b):
		return a
	}
	return b
}

// FEq returns 1 when a == b. NaN compares unequal to everything.
func FEq(a, b uint32) uint32 {
	if IsNaN(a) || IsNaN(b) {
		return 0
	}
	return bool32(f32(a) == f32(b))
}

// FLt returns 1 when a < b.
func FLt(a, b uint32) uint32 {
	if IsNaN(a) || IsNaN(b) {
		return 0
	}
	return bool32(f32(a) < f32(b))
}

// FLe returns 1 when a <= b.
func FLe(a, b uint32) uint32 {
	if IsNaN(a) || IsNaN(b) {
		return 0
	}
	return bool32(f32(a) <= f32(b))
}

// FCvtWS converts to a signed integer, saturating out-of-range values.
// NaN converts to the largest positive integer.
func FCvtWS(a uint32) uint32 {
	if IsNaN(a) {
		return math.MaxInt32
	}
	r := math.RoundToEven(float64(f32(a)))
	switch {
	case r >= 1<<31:
		return math.MaxInt32
	case r < -(1 << 31):
		return 1 << 31
	}
	return uint32(int32(r))
}

// FCvtWUS converts to an unsigned integer, saturating out-of-range values.
// NaN converts to all ones; negative values convert to 0.
func FCvtWUS(a uint32) uint32 {
	if IsNaN(a) {
		return math.MaxUint32
	}
	r := math.RoundToEven(float64(f32(a)))
	switch {
	case r <= 0:
		return 0
	case r >= 1<<32:
		return math.MaxUint32
	}
	return uint32(r)
}

// FCvtSW converts a signed integer to the nearest binary32 value.
func FCvtSW(a uint32) uint32 { return math.Float32bits(float32(int32(a))) }

// FCvtSWU converts an unsigned integer to the nearest binary32 value.
func FCvtSWU(a uint32) uint32 { return math.Float32bits(float32(a)) }

// FMvXW moves raw bits from an F register to an X register.
func FMvXW(a uint32) uint32 { return a }

// FMvWX moves raw bits from an X register to an F register.
func FMvWX(a uint32) uint32 { return a }

// fclass result bits.
const (
	ClassNegInf uint32 = 1 << iota
	ClassNegNormal
	ClassNegSubnormal
	ClassNegZero
	ClassPosZero
	ClassPosSubnormal
	ClassPosNormal
	ClassPosInf
	ClassSignalingNaN
	ClassQuietNaN
)

// FClass returns the one-hot classification mask of a.
func FClass(a uint32) uint32 {
	neg := IsNegative(a)
	pick := func(n, p uint32) uint32 {
		if neg {
			return n
		}
		return p
	}

	switch {
	case IsNaN(a):
		if a&quietBit != 0 {
			return ClassQuietNaN
		}
		return ClassSignalingNaN
	case IsInf(a):
		return pick(ClassNegInf, ClassPosInf)
	case IsZero(a):
		return pick(ClassNegZero, ClassPosZero)
	case IsSubnormal(a):
		return pick(ClassNegSubnormal, ClassPosSubnormal)
	}
	return pick(ClassNegNormal, ClassPosNormal)
}
