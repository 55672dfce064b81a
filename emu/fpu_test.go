package emu_test

import (
	"math"
	"math/big"
	"math/rand/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/adambagley/frost/emu"
)

const (
	one     uint32 = 0x3F800000
	two     uint32 = 0x40000000
	negOne  uint32 = 0xBF800000
	posZero uint32 = 0x00000000
	negZero uint32 = 0x80000000
	sNaN    uint32 = 0x7F800001
	minSub  uint32 = 0x00000001
)

func bitsOf(f float32) uint32 { return math.Float32bits(f) }

// oracleFMA rounds the exact a·b+c once, using arbitrary precision.
func oracleFMA(a, b, c uint32) uint32 {
	fa := new(big.Float).SetFloat64(float64(math.Float32frombits(a)))
	fb := new(big.Float).SetFloat64(float64(math.Float32frombits(b)))
	fc := new(big.Float).SetFloat64(float64(math.Float32frombits(c)))

	exact := new(big.Float).SetPrec(2048).Mul(fa, fb)
	exact.Add(exact, fc)

	f, _ := exact.Float32()
	return math.Float32bits(f)
}

// naiveFMA rounds the product before the addition.
func naiveFMA(a, b, c uint32) uint32 {
	x, y, z := math.Float32frombits(a), math.Float32frombits(b), math.Float32frombits(c)
	p := float32(x * y)
	return math.Float32bits(float32(p + z))
}

func randomFinite(rng *rand.Rand) uint32 {
	switch rng.IntN(4) {
	case 0:
		return rng.Uint32() & 0x807FFFFF
	case 1:
		return rng.Uint32()&0x80000000 | uint32(100+rng.IntN(56))<<23 | rng.Uint32()&0x7FFFFF
	default:
		return rng.Uint32()&0x80000000 | uint32(1+rng.IntN(254))<<23 | rng.Uint32()&0x7FFFFF
	}
}

var _ = Describe("FPU", func() {
	Describe("special values", func() {
		It("should canonicalize NaN results", func() {
			Expect(emu.FAdd(sNaN, one)).To(Equal(emu.CanonicalNaN))
			Expect(emu.FMul(one, 0xFFC12345)).To(Equal(emu.CanonicalNaN))
			Expect(emu.FSqrt(sNaN)).To(Equal(emu.CanonicalNaN))
		})

		It("should return NaN for invalid operations", func() {
			Expect(emu.FMul(posZero, emu.PosInf)).To(Equal(emu.CanonicalNaN))
			Expect(emu.FAdd(emu.PosInf, emu.NegInf)).To(Equal(emu.CanonicalNaN))
			Expect(emu.FSub(emu.PosInf, emu.PosInf)).To(Equal(emu.CanonicalNaN))
			Expect(emu.FDiv(posZero, negZero)).To(Equal(emu.CanonicalNaN))
			Expect(emu.FDiv(emu.PosInf, emu.NegInf)).To(Equal(emu.CanonicalNaN))
			Expect(emu.FSqrt(negOne)).To(Equal(emu.CanonicalNaN))
		})

		It("should return signed infinity on division by zero", func() {
			Expect(emu.FDiv(one, posZero)).To(Equal(emu.PosInf))
			Expect(emu.FDiv(one, negZero)).To(Equal(emu.NegInf))
			Expect(emu.FDiv(negOne, negZero)).To(Equal(emu.PosInf))
		})

		It("should keep the sign of a zero square root", func() {
			Expect(emu.FSqrt(negZero)).To(Equal(negZero))
			Expect(emu.FSqrt(0x40800000)).To(Equal(two))
		})
	})

	It("should compute rounded arithmetic", func() {
		Expect(emu.FAdd(one, one)).To(Equal(two))
		Expect(emu.FSub(one, one)).To(Equal(posZero))
		Expect(emu.FMul(two, negOne)).To(Equal(bitsOf(-2)))
		Expect(emu.FDiv(one, bitsOf(3))).To(Equal(bitsOf(float32(1.0 / 3.0))))
	})

	Describe("min and max", func() {
		It("should prefer the non-NaN operand", func() {
			Expect(emu.FMin(sNaN, one)).To(Equal(one))
			Expect(emu.FMax(one, emu.CanonicalNaN)).To(Equal(one))
			Expect(emu.FMin(sNaN, emu.CanonicalNaN)).To(Equal(emu.CanonicalNaN))
		})

		It("should order -0 below +0", func() {
			Expect(emu.FMin(posZero, negZero)).To(Equal(negZero))
			Expect(emu.FMax(negZero, posZero)).To(Equal(posZero))
		})
	})

	It("should return 0 on NaN comparisons", func() {
		Expect(emu.FEq(emu.CanonicalNaN, emu.CanonicalNaN)).To(Equal(uint32(0)))
		Expect(emu.FLt(sNaN, one)).To(Equal(uint32(0)))
		Expect(emu.FLe(one, sNaN)).To(Equal(uint32(0)))
		Expect(emu.FEq(posZero, negZero)).To(Equal(uint32(1)))
		Expect(emu.FLt(negOne, one)).To(Equal(uint32(1)))
		Expect(emu.FLe(one, one)).To(Equal(uint32(1)))
	})

	DescribeTable("conversions to integer",
		func(fn func(uint32) uint32, in, expected uint32) {
			Expect(fn(in)).To(Equal(expected))
		},
		Entry("fcvt.w.s rounds half to even down", emu.FCvtWS, bitsOf(2.5), uint32(2)),
		Entry("fcvt.w.s rounds half to even up", emu.FCvtWS, bitsOf(3.5), uint32(4)),
		Entry("fcvt.w.s negative", emu.FCvtWS, bitsOf(-1.5), uint32(0xFFFFFFFE)),
		Entry("fcvt.w.s NaN", emu.FCvtWS, emu.CanonicalNaN, uint32(0x7FFFFFFF)),
		Entry("fcvt.w.s +inf", emu.FCvtWS, emu.PosInf, uint32(0x7FFFFFFF)),
		Entry("fcvt.w.s -inf", emu.FCvtWS, emu.NegInf, uint32(0x80000000)),
		Entry("fcvt.w.s 2^31", emu.FCvtWS, bitsOf(2147483648), uint32(0x7FFFFFFF)),
		Entry("fcvt.w.s -2^31", emu.FCvtWS, bitsOf(-2147483648), uint32(0x80000000)),
		Entry("fcvt.wu.s NaN", emu.FCvtWUS, emu.CanonicalNaN, uint32(0xFFFFFFFF)),
		Entry("fcvt.wu.s negative", emu.FCvtWUS, bitsOf(-3), uint32(0)),
		Entry("fcvt.wu.s 2^32", emu.FCvtWUS, bitsOf(4294967296), uint32(0xFFFFFFFF)),
		Entry("fcvt.wu.s large", emu.FCvtWUS, bitsOf(3000000000), uint32(3000000000)),
	)

	It("should convert integers to the nearest float", func() {
		Expect(emu.FCvtSW(0xFFFFFFFF)).To(Equal(negOne))
		Expect(emu.FCvtSWU(0xFFFFFFFF)).To(Equal(bitsOf(4294967296)))
		Expect(emu.FCvtSW(16777217)).To(Equal(bitsOf(16777216)))
	})

	It("should inject signs on raw bits", func() {
		Expect(emu.FSgnj(one, negZero)).To(Equal(negOne))
		Expect(emu.FSgnjn(one, negZero)).To(Equal(one))
		Expect(emu.FSgnjx(negOne, negZero)).To(Equal(one))
		Expect(emu.FSgnj(sNaN, posZero)).To(Equal(sNaN))
	})

	DescribeTable("fclass",
		func(in, expected uint32) {
			Expect(emu.FClass(in)).To(Equal(expected))
		},
		Entry("-inf", emu.NegInf, uint32(1<<0)),
		Entry("negative normal", negOne, uint32(1<<1)),
		Entry("negative subnormal", minSub|emu.SignMask, uint32(1<<2)),
		Entry("-0", negZero, uint32(1<<3)),
		Entry("+0", posZero, uint32(1<<4)),
		Entry("positive subnormal", minSub, uint32(1<<5)),
		Entry("positive normal", one, uint32(1<<6)),
		Entry("+inf", emu.PosInf, uint32(1<<7)),
		Entry("signaling NaN", sNaN, uint32(1<<8)),
		Entry("quiet NaN", emu.CanonicalNaN, uint32(1<<9)),
	)
})

var _ = Describe("FMA", func() {
	type triple struct{ a, b, c uint32 }

	// Operands one ulp apart whose exact product lands on or near a rounding
	// boundary of binary32.
	curated := []triple{
		{0x3F800800, 0x3F800800, 0x2B800000},
		{0x3F800800, 0x3F800800, 0xBF801000},
		{0x3F800001, 0x3F800001, 0xBF800002},
		{0x3F7FFFFF, 0x3F7FFFFF, 0xBF7FFFFE},
		{0x3FFFFFFF, 0x3FFFFFFF, 0xC07FFFFE},
		{0x4B000001, 0x4B000001, 0xD6800002},
		{0x3F800001, 0x3F7FFFFF, 0xBF800000},
		{0x00800001, 0x3F000000, 0x80000000},
		{0x7F7FFFFF, 0x3F800001, 0x00000000},
		{0x7F7FFFFF, 0x40000000, 0xFF7FFFFF},
	}

	It("should match single rounding on adjacent-ulp triples", func() {
		for _, t := range curated {
			Expect(emu.FMA(t.a, t.b, t.c)).To(Equal(oracleFMA(t.a, t.b, t.c)),
				"fma(0x%08x, 0x%08x, 0x%08x)", t.a, t.b, t.c)
		}
	})

	It("should differ from double rounding on at least one triple", func() {
		differs := 0
		for _, t := range curated {
			if emu.FMA(t.a, t.b, t.c) != naiveFMA(t.a, t.b, t.c) {
				differs++
			}
		}

		Expect(differs).To(BeNumerically(">", 0))
	})

	It("should round the exact sum once", func() {
		Expect(emu.FMA(0x3F800800, 0x3F800800, 0x2B800000)).To(Equal(uint32(0x3F801001)))
		Expect(naiveFMA(0x3F800800, 0x3F800800, 0x2B800000)).To(Equal(uint32(0x3F801000)))

		Expect(emu.FMA(0x3F800800, 0x3F800800, 0xBF801000)).To(Equal(uint32(0x33800000)))
		Expect(naiveFMA(0x3F800800, 0x3F800800, 0xBF801000)).To(Equal(posZero))
	})

	It("should agree with the arbitrary-precision oracle on random operands", func() {
		rng := rand.New(rand.NewPCG(7, 11))

		for i := 0; i < 20000; i++ {
			a, b := randomFinite(rng), randomFinite(rng)
			c := randomFinite(rng)
			if i%2 == 0 {
				// Near-cancelling addend.
				c = naiveFMA(a, b, posZero) ^ emu.SignMask ^ uint32(rng.IntN(4))
				if emu.IsNaN(c) || emu.IsInf(c) {
					continue
				}
			}
			if emu.IsZero(emu.FMul(a, b)) && emu.IsZero(c) {
				continue
			}

			Expect(emu.FMA(a, b, c)).To(Equal(oracleFMA(a, b, c)),
				"fma(0x%08x, 0x%08x, 0x%08x)", a, b, c)
		}
	})

	It("should handle special operands", func() {
		Expect(emu.FMA(posZero, emu.PosInf, one)).To(Equal(emu.CanonicalNaN))
		Expect(emu.FMA(emu.PosInf, one, emu.NegInf)).To(Equal(emu.CanonicalNaN))
		Expect(emu.FMA(emu.PosInf, negOne, emu.NegInf)).To(Equal(emu.NegInf))
		Expect(emu.FMA(one, one, emu.PosInf)).To(Equal(emu.PosInf))
		Expect(emu.FMA(sNaN, one, one)).To(Equal(emu.CanonicalNaN))
		Expect(emu.FMA(posZero, one, two)).To(Equal(two))
		Expect(emu.FMA(negZero, one, negZero)).To(Equal(negZero))
		Expect(emu.FMA(negZero, one, posZero)).To(Equal(posZero))
		Expect(emu.FMA(one, one, negOne)).To(Equal(posZero))
	})

	It("should overflow to infinity and underflow to subnormals", func() {
		Expect(emu.FMA(0x7F7FFFFF, two, 0x7F7FFFFF)).To(Equal(emu.PosInf))
		Expect(emu.FMA(0x00800000, 0x3F000000, posZero)).To(Equal(uint32(0x00400000)))
		Expect(emu.FMA(minSub, 0x3F000000, posZero)).To(Equal(posZero))
		Expect(emu.FMA(minSub, 0x3F000001, posZero)).To(Equal(minSub))
	})

	It("should derive the negated forms", func() {
		Expect(emu.FMSub(two, two, one)).To(Equal(bitsOf(3)))
		Expect(emu.FNMAdd(two, two, one)).To(Equal(bitsOf(-5)))
		Expect(emu.FNMSub(two, two, one)).To(Equal(bitsOf(-3)))
	})
})
