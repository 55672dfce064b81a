package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/adambagley/frost/emu"
	"github.com/adambagley/frost/insts"
)

var _ = Describe("RegFile", func() {
	It("should hardwire x0 to zero", func() {
		rf := &emu.RegFile{}
		rf.WriteReg(0, 0xDEADBEEF)
		rf.WriteReg(5, 42)

		Expect(rf.ReadReg(0)).To(Equal(uint32(0)))
		Expect(rf.ReadReg(5)).To(Equal(uint32(42)))
	})

	It("should keep f0 writable", func() {
		rf := &emu.RegFile{}
		rf.WriteFReg(0, 0x3F800000)

		Expect(rf.ReadFReg(0)).To(Equal(uint32(0x3F800000)))
	})
})

var _ = Describe("ALU", func() {
	DescribeTable("integer operations",
		func(fn func(a, b uint32) uint32, a, b, expected uint32) {
			Expect(fn(a, b)).To(Equal(expected))
		},
		Entry("add wraps", emu.Add, uint32(0xFFFFFFFF), uint32(2), uint32(1)),
		Entry("sub wraps", emu.Sub, uint32(0), uint32(1), uint32(0xFFFFFFFF)),
		Entry("sll uses low five bits", emu.Sll, uint32(1), uint32(33), uint32(2)),
		Entry("srl is logical", emu.Srl, uint32(0x80000000), uint32(31), uint32(1)),
		Entry("sra is arithmetic", emu.Sra, uint32(0x80000000), uint32(31), uint32(0xFFFFFFFF)),
		Entry("slt is signed", emu.Slt, uint32(0xFFFFFFFF), uint32(0), uint32(1)),
		Entry("sltu is unsigned", emu.Sltu, uint32(0xFFFFFFFF), uint32(0), uint32(0)),
		Entry("mul keeps low word", emu.Mul, uint32(0x10000), uint32(0x10000), uint32(0)),
		Entry("mulh signed", emu.Mulh, uint32(0xFFFFFFFF), uint32(0xFFFFFFFF), uint32(0)),
		Entry("mulh min squared", emu.Mulh, uint32(0x80000000), uint32(0x80000000), uint32(0x40000000)),
		Entry("mulhsu", emu.Mulhsu, uint32(0xFFFFFFFF), uint32(0xFFFFFFFF), uint32(0xFFFFFFFF)),
		Entry("mulhu", emu.Mulhu, uint32(0xFFFFFFFF), uint32(0xFFFFFFFF), uint32(0xFFFFFFFE)),
	)

	Describe("division edge cases", func() {
		DescribeTable("results",
			func(fn func(a, b uint32) uint32, a, b, expected uint32) {
				Expect(fn(a, b)).To(Equal(expected))
			},
			Entry("div by zero", emu.Div, uint32(7), uint32(0), uint32(0xFFFFFFFF)),
			Entry("divu by zero", emu.Divu, uint32(7), uint32(0), uint32(0xFFFFFFFF)),
			Entry("rem by zero", emu.Rem, uint32(0xFFFFFFF9), uint32(0), uint32(0xFFFFFFF9)),
			Entry("remu by zero", emu.Remu, uint32(7), uint32(0), uint32(7)),
			Entry("div overflow", emu.Div, uint32(0x80000000), uint32(0xFFFFFFFF), uint32(0x80000000)),
			Entry("rem overflow", emu.Rem, uint32(0x80000000), uint32(0xFFFFFFFF), uint32(0)),
			Entry("div truncates toward zero", emu.Div, uint32(0xFFFFFFF9), uint32(2), uint32(0xFFFFFFFD)),
			Entry("rem takes dividend sign", emu.Rem, uint32(0xFFFFFFF9), uint32(2), uint32(0xFFFFFFFF)),
			Entry("divu", emu.Divu, uint32(0xFFFFFFFF), uint32(2), uint32(0x7FFFFFFF)),
		)
	})

	It("should build upper immediates", func() {
		Expect(emu.Lui(0x12345)).To(Equal(uint32(0x12345000)))
		Expect(emu.Auipc(0x1000, 0xFFFFF)).To(Equal(uint32(0)))
		Expect(emu.Auipc(0x1000, 1)).To(Equal(uint32(0x2000)))
	})
})

var _ = Describe("Bit manipulation", func() {
	DescribeTable("binary operations",
		func(fn func(a, b uint32) uint32, a, b, expected uint32) {
			Expect(fn(a, b)).To(Equal(expected))
		},
		Entry("sh1add", emu.Sh1add, uint32(3), uint32(1), uint32(7)),
		Entry("sh2add", emu.Sh2add, uint32(3), uint32(1), uint32(13)),
		Entry("sh3add", emu.Sh3add, uint32(3), uint32(1), uint32(25)),
		Entry("bset", emu.Bset, uint32(0), uint32(35), uint32(8)),
		Entry("bclr", emu.Bclr, uint32(0xFF), uint32(0), uint32(0xFE)),
		Entry("binv", emu.Binv, uint32(0x80000000), uint32(31), uint32(0)),
		Entry("bext", emu.Bext, uint32(0x10), uint32(4), uint32(1)),
		Entry("andn", emu.Andn, uint32(0xFF), uint32(0x0F), uint32(0xF0)),
		Entry("orn", emu.Orn, uint32(0), uint32(0xFFFFFFF0), uint32(0xF)),
		Entry("xnor", emu.Xnor, uint32(0xF0F0F0F0), uint32(0xF0F0F0F0), uint32(0xFFFFFFFF)),
		Entry("max signed", emu.Max, uint32(0xFFFFFFFF), uint32(1), uint32(1)),
		Entry("maxu", emu.Maxu, uint32(0xFFFFFFFF), uint32(1), uint32(0xFFFFFFFF)),
		Entry("min signed", emu.Min, uint32(0xFFFFFFFF), uint32(1), uint32(0xFFFFFFFF)),
		Entry("minu", emu.Minu, uint32(0xFFFFFFFF), uint32(1), uint32(1)),
		Entry("rol", emu.Rol, uint32(0x80000001), uint32(1), uint32(3)),
		Entry("ror", emu.Ror, uint32(3), uint32(1), uint32(0x80000001)),
		Entry("pack", emu.Pack, uint32(0x1234ABCD), uint32(0x5678EF01), uint32(0xEF01ABCD)),
		Entry("packh", emu.Packh, uint32(0x12AB), uint32(0x34CD), uint32(0xCDAB)),
		Entry("czero.eqz zero", emu.CzeroEqz, uint32(5), uint32(0), uint32(0)),
		Entry("czero.eqz nonzero", emu.CzeroEqz, uint32(5), uint32(1), uint32(5)),
		Entry("czero.nez nonzero", emu.CzeroNez, uint32(5), uint32(1), uint32(0)),
	)

	DescribeTable("unary operations",
		func(fn func(a uint32) uint32, a, expected uint32) {
			Expect(fn(a)).To(Equal(expected))
		},
		Entry("clz of zero", emu.Clz, uint32(0), uint32(32)),
		Entry("clz", emu.Clz, uint32(0x00010000), uint32(15)),
		Entry("ctz of zero", emu.Ctz, uint32(0), uint32(32)),
		Entry("ctz", emu.Ctz, uint32(0x00010000), uint32(16)),
		Entry("cpop", emu.Cpop, uint32(0xF0F0F0F0), uint32(16)),
		Entry("sext.b", emu.SextB, uint32(0x80), uint32(0xFFFFFF80)),
		Entry("sext.h", emu.SextH, uint32(0x8000), uint32(0xFFFF8000)),
		Entry("zext.h", emu.ZextH, uint32(0xFFFF8000), uint32(0x8000)),
		Entry("orc.b", emu.OrcB, uint32(0x00100001), uint32(0x00FF00FF)),
		Entry("rev8", emu.Rev8, uint32(0x11223344), uint32(0x44332211)),
		Entry("brev8", emu.Brev8, uint32(0x01020380), uint32(0x8040C001)),
		Entry("zip", emu.Zip, uint32(0xFFFF0000), uint32(0xAAAAAAAA)),
		Entry("unzip", emu.Unzip, uint32(0xAAAAAAAA), uint32(0xFFFF0000)),
	)

	It("should invert zip with unzip", func() {
		for _, v := range []uint32{0, 1, 0x12345678, 0xDEADBEEF, 0xFFFFFFFF} {
			Expect(emu.Unzip(emu.Zip(v))).To(Equal(v))
		}
	})
})

var _ = Describe("Branch", func() {
	DescribeTable("conditions",
		func(op insts.Op, a, b uint32, expected bool) {
			taken, err := emu.BranchTaken(op, a, b)

			Expect(err).NotTo(HaveOccurred())
			Expect(taken).To(Equal(expected))
		},
		Entry("beq equal", insts.OpBEQ, uint32(4), uint32(4), true),
		Entry("bne equal", insts.OpBNE, uint32(4), uint32(4), false),
		Entry("blt signed", insts.OpBLT, uint32(0xFFFFFFFF), uint32(0), true),
		Entry("bge signed", insts.OpBGE, uint32(0), uint32(0xFFFFFFFF), true),
		Entry("bltu unsigned", insts.OpBLTU, uint32(0xFFFFFFFF), uint32(0), false),
		Entry("bgeu unsigned", insts.OpBGEU, uint32(0xFFFFFFFF), uint32(0), true),
		Entry("c.beqz", insts.OpCBEQZ, uint32(0), uint32(99), true),
		Entry("c.bnez", insts.OpCBNEZ, uint32(0), uint32(99), false),
	)

	It("should reject non-branch ops", func() {
		_, err := emu.BranchTaken(insts.OpADD, 0, 0)

		Expect(err).To(HaveOccurred())
	})

	It("should clear bit 0 of jalr targets", func() {
		Expect(emu.JumpRegisterTarget(0x1001, 2)).To(Equal(uint32(0x1002)))
		Expect(emu.BranchTarget(0x1000, -8)).To(Equal(uint32(0xFF8)))
	})
})

var _ = Describe("AMO", func() {
	DescribeTable("read-modify-write values",
		func(fn func(old, src uint32) uint32, old, src, expected uint32) {
			Expect(fn(old, src)).To(Equal(expected))
		},
		Entry("swap", emu.AmoSwap, uint32(1), uint32(2), uint32(2)),
		Entry("add", emu.AmoAdd, uint32(0xFFFFFFFF), uint32(2), uint32(1)),
		Entry("xor", emu.AmoXor, uint32(0xFF), uint32(0x0F), uint32(0xF0)),
		Entry("and", emu.AmoAnd, uint32(0xFF), uint32(0x0F), uint32(0x0F)),
		Entry("or", emu.AmoOr, uint32(0xF0), uint32(0x0F), uint32(0xFF)),
		Entry("min", emu.AmoMin, uint32(0xFFFFFFFF), uint32(1), uint32(0xFFFFFFFF)),
		Entry("max", emu.AmoMax, uint32(0xFFFFFFFF), uint32(1), uint32(1)),
		Entry("minu", emu.AmoMinu, uint32(0xFFFFFFFF), uint32(1), uint32(1)),
		Entry("maxu", emu.AmoMaxu, uint32(0xFFFFFFFF), uint32(1), uint32(0xFFFFFFFF)),
	)

	It("should align atomic addresses down", func() {
		Expect(emu.AtomicAddress(0x107)).To(Equal(uint32(0x104)))
	})
})
