package refmodel_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/adambagley/frost/emu"
	"github.com/adambagley/frost/insts"
	"github.com/adambagley/frost/refmodel"
)

type state struct {
	emu.RegFile

	reserved bool
	resAddr  uint32
	csrs     map[uint16]uint32
	writes   int
}

func newState() *state {
	return &state{csrs: map[uint16]uint32{insts.CSRMscratch: 0x55}}
}

func (s *state) SetReservation(addr uint32) error {
	s.reserved, s.resAddr = true, addr
	return nil
}

func (s *state) CheckAndClearReservation(addr uint32) (bool, error) {
	ok := s.reserved && s.resAddr == addr
	s.reserved = false
	return ok, nil
}

func (s *state) ReadCSR(csr uint16) (uint32, error) {
	return s.csrs[csr], nil
}

func (s *state) WriteCSR(csr uint16, value uint32) error {
	s.writes++
	s.csrs[csr] = value
	return nil
}

var _ = Describe("Executor", func() {
	var (
		memory   *emu.Memory
		executor *refmodel.Executor
		st       *state
	)

	BeforeEach(func() {
		memory = emu.NewMemory()
		executor = refmodel.NewExecutor(memory)
		st = newState()
	})

	exec := func(inst insts.Instruction, pc uint32) refmodel.Effect {
		eff, err := executor.Execute(st, inst, pc)
		Expect(err).NotTo(HaveOccurred())
		return eff
	}

	Describe("integer", func() {
		It("should write addi result and fall through", func() {
			eff := exec(insts.Instruction{Op: insts.OpADDI, Rd: 5, Imm: 25}, 0x40)

			Expect(eff.Writeback).To(Equal(&refmodel.Writeback{Reg: 5, Value: 25}))
			Expect(eff.NextPC).To(Equal(uint32(0x44)))
			Expect(eff.Redirect).To(BeFalse())
			Expect(st.ReadReg(5)).To(Equal(uint32(25)))
		})

		It("should drop writes to x0", func() {
			eff := exec(insts.Instruction{Op: insts.OpADDI, Rd: 0, Imm: 7}, 0)

			Expect(eff.Writeback).To(BeNil())
			Expect(st.ReadReg(0)).To(BeZero())
		})

		It("should read sources before writing the destination", func() {
			st.WriteReg(3, 10)
			exec(insts.Instruction{Op: insts.OpADD, Rd: 3, Rs1: 3, Rs2: 3}, 0)

			Expect(st.ReadReg(3)).To(Equal(uint32(20)))
		})

		It("should multiply and divide", func() {
			st.WriteReg(1, 7)
			st.WriteReg(2, 6)
			Expect(exec(insts.Instruction{Op: insts.OpMUL, Rd: 3, Rs1: 1, Rs2: 2}, 0).
				Writeback.Value).To(Equal(uint32(42)))

			Expect(exec(insts.Instruction{Op: insts.OpDIV, Rd: 4, Rs1: 1, Rs2: 0}, 0).
				Writeback.Value).To(Equal(uint32(math.MaxUint32)))
		})
	})

	Describe("control flow", func() {
		It("should redirect a taken branch", func() {
			st.WriteReg(1, 4)
			st.WriteReg(2, 4)
			eff := exec(insts.Instruction{Op: insts.OpBEQ, Rs1: 1, Rs2: 2, Imm: -8}, 0x100)

			Expect(eff.Taken).To(BeTrue())
			Expect(eff.Redirect).To(BeTrue())
			Expect(eff.NextPC).To(Equal(uint32(0xF8)))
			Expect(eff.Writeback).To(BeNil())
		})

		It("should fall through on a branch not taken", func() {
			st.WriteReg(1, 4)
			eff := exec(insts.Instruction{Op: insts.OpBNE, Rs1: 1, Rs2: 1, Imm: 64}, 0x100)

			Expect(eff.Taken).To(BeFalse())
			Expect(eff.Redirect).To(BeFalse())
			Expect(eff.NextPC).To(Equal(uint32(0x104)))
		})

		It("should link jal", func() {
			eff := exec(insts.Instruction{Op: insts.OpJAL, Rd: 1, Imm: 0x20}, 0x200)

			Expect(eff.Redirect).To(BeTrue())
			Expect(eff.NextPC).To(Equal(uint32(0x220)))
			Expect(eff.Writeback).To(Equal(&refmodel.Writeback{Reg: 1, Value: 0x204}))
		})

		It("should clear bit 0 of a jalr target", func() {
			st.WriteReg(6, 0x301)
			eff := exec(insts.Instruction{Op: insts.OpJALR, Rd: 6, Rs1: 6, Imm: 4}, 0x10)

			Expect(eff.NextPC).To(Equal(uint32(0x304)))
			Expect(st.ReadReg(6)).To(Equal(uint32(0x14)))
		})

		It("should advance two bytes for a compressed instruction", func() {
			st.WriteReg(8, 5)
			eff := exec(insts.Instruction{Op: insts.OpCADDI, Rd: 8, Imm: 3}, 0x82)

			Expect(eff.Size).To(Equal(uint32(2)))
			Expect(eff.NextPC).To(Equal(uint32(0x84)))
			Expect(eff.Base.Op).To(Equal(insts.OpADDI))
			Expect(st.ReadReg(8)).To(Equal(uint32(8)))
		})
	})

	Describe("memory", func() {
		It("should position a byte store on its lane", func() {
			st.WriteReg(1, 0x101)
			st.WriteReg(2, 0x1AB)
			eff := exec(insts.Instruction{Op: insts.OpSB, Rs1: 1, Rs2: 2}, 0)

			Expect(eff.Access).To(BeTrue())
			Expect(eff.Addr).To(Equal(uint32(0x101)))
			Expect(eff.Write).To(Equal(&emu.BusWrite{Addr: 0x100, Data: 0xAB00, Mask: 0b0010}))
			Expect(memory.Read8(0x101)).To(Equal(uint8(0xAB)))
		})

		It("should load a word", func() {
			memory.Write32(0x40, 0xCAFEF00D)
			st.WriteReg(1, 0x30)
			eff := exec(insts.Instruction{Op: insts.OpLW, Rd: 4, Rs1: 1, Imm: 0x10}, 0)

			Expect(eff.Write).To(BeNil())
			Expect(eff.Writeback.Value).To(Equal(uint32(0xCAFEF00D)))
		})

		It("should reject a misaligned word load", func() {
			st.WriteReg(1, 0x42)
			_, err := executor.Execute(st, insts.Instruction{Op: insts.OpLW, Rd: 4, Rs1: 1}, 0)

			Expect(err).To(HaveOccurred())
		})

		It("should move floats through memory", func() {
			st.WriteFReg(3, math.Float32bits(1.5))
			st.WriteReg(1, 0x80)
			exec(insts.Instruction{Op: insts.OpFSW, Rs1: 1, Rs2: 3}, 0)
			eff := exec(insts.Instruction{Op: insts.OpFLW, Rd: 7, Rs1: 1}, 0)

			Expect(eff.Writeback).To(Equal(&refmodel.Writeback{
				FP: true, Reg: 7, Value: math.Float32bits(1.5),
			}))
		})
	})

	Describe("atomics", func() {
		BeforeEach(func() {
			memory.Write32(0x100, 0x12345678)
			st.WriteReg(10, 0x100)
			st.WriteReg(11, 0x200)
			st.WriteReg(12, 0xDEADBEEF)
		})

		It("should succeed sc.w after lr.w to the same word", func() {
			lr := exec(insts.Instruction{Op: insts.OpLRW, Rd: 5, Rs1: 10}, 0)
			Expect(lr.Writeback.Value).To(Equal(uint32(0x12345678)))
			Expect(lr.Write).To(BeNil())

			sc := exec(insts.Instruction{Op: insts.OpSCW, Rd: 6, Rs1: 10, Rs2: 12}, 4)
			Expect(sc.Writeback.Value).To(BeZero())
			Expect(sc.Write).To(Equal(&emu.BusWrite{Addr: 0x100, Data: 0xDEADBEEF, Mask: 0b1111}))
			Expect(memory.Read32(0x100)).To(Equal(uint32(0xDEADBEEF)))
		})

		It("should fail sc.w without a reservation", func() {
			sc := exec(insts.Instruction{Op: insts.OpSCW, Rd: 6, Rs1: 10, Rs2: 12}, 0)

			Expect(sc.Writeback.Value).To(Equal(uint32(1)))
			Expect(sc.Write).To(BeNil())
			Expect(sc.Access).To(BeTrue())
			Expect(memory.Read32(0x100)).To(Equal(uint32(0x12345678)))
		})

		It("should fail sc.w to another address and clear the reservation", func() {
			exec(insts.Instruction{Op: insts.OpLRW, Rd: 5, Rs1: 10}, 0)
			sc := exec(insts.Instruction{Op: insts.OpSCW, Rd: 6, Rs1: 11, Rs2: 12}, 4)
			Expect(sc.Writeback.Value).To(Equal(uint32(1)))

			sc = exec(insts.Instruction{Op: insts.OpSCW, Rd: 6, Rs1: 10, Rs2: 12}, 8)
			Expect(sc.Writeback.Value).To(Equal(uint32(1)))
		})

		It("should return the old value of an amo and write the new one", func() {
			st.WriteReg(2, 8)
			eff := exec(insts.Instruction{Op: insts.OpAMOADDW, Rd: 3, Rs1: 10, Rs2: 2}, 0)

			Expect(eff.Writeback.Value).To(Equal(uint32(0x12345678)))
			Expect(eff.Write.Data).To(Equal(uint32(0x12345680)))
			Expect(memory.Read32(0x100)).To(Equal(uint32(0x12345680)))
		})
	})

	It("should align an atomic address down to its word", func() {
		memory.Write32(0x100, 40)
		st.WriteReg(13, 0x103)
		st.WriteReg(2, 2)
		eff := exec(insts.Instruction{Op: insts.OpAMOADDW, Rd: 3, Rs1: 13, Rs2: 2}, 0)

		Expect(eff.Addr).To(Equal(uint32(0x100)))
		Expect(eff.Write).To(Equal(&emu.BusWrite{Addr: 0x100, Data: 42, Mask: 0b1111}))
		Expect(eff.Writeback.Value).To(Equal(uint32(40)))
	})

	Describe("csr", func() {
		It("should read without writing csrrs from x0", func() {
			eff := exec(insts.Instruction{Op: insts.OpCSRRS, Rd: 4, CSR: insts.CSRMscratch}, 0)

			Expect(eff.Writeback.Value).To(Equal(uint32(0x55)))
			Expect(st.writes).To(BeZero())
		})

		It("should swap with csrrw", func() {
			st.WriteReg(1, 0x99)
			eff := exec(insts.Instruction{Op: insts.OpCSRRW, Rd: 4, Rs1: 1, CSR: insts.CSRMscratch}, 0)

			Expect(eff.Writeback.Value).To(Equal(uint32(0x55)))
			Expect(st.csrs[insts.CSRMscratch]).To(Equal(uint32(0x99)))
		})

		It("should read a counter", func() {
			st.csrs[insts.CSRInstret] = 17
			eff := exec(insts.Instruction{Op: insts.OpCSRRS, Rd: 4, CSR: insts.CSRInstret}, 0)

			Expect(eff.Writeback.Value).To(Equal(uint32(17)))
		})
	})

	Describe("floating point", func() {
		It("should add single-precision values", func() {
			st.WriteFReg(1, math.Float32bits(1.25))
			st.WriteFReg(2, math.Float32bits(2.5))
			eff := exec(insts.Instruction{Op: insts.OpFADDS, Rd: 3, Rs1: 1, Rs2: 2, Rm: insts.RmDyn}, 0)

			Expect(eff.Writeback.FP).To(BeTrue())
			Expect(math.Float32frombits(eff.Writeback.Value)).To(Equal(float32(3.75)))
		})

		It("should reject static rounding modes other than RNE", func() {
			_, err := executor.Execute(st, insts.Instruction{
				Op: insts.OpFADDS, Rd: 3, Rs1: 1, Rs2: 2, Rm: insts.RmRTZ,
			}, 0)

			Expect(err).To(MatchError(refmodel.ErrRoundingMode))
		})
	})

	Describe("errors", func() {
		It("should not model traps", func() {
			_, err := executor.Execute(st, insts.Instruction{Op: insts.OpECALL}, 0)

			Expect(err).To(MatchError(refmodel.ErrTrap))
		})

		It("should reject unknown ops", func() {
			_, err := executor.Execute(st, insts.Instruction{Op: insts.OpUnknown}, 0)

			Expect(err).To(MatchError(ContainSubstring("unknown op")))
		})
	})
})
