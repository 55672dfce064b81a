package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/adambagley/frost/insts"
	"github.com/adambagley/frost/verr"
)

var _ = Describe("Encoder", func() {
	var encoder *insts.Encoder

	BeforeEach(func() {
		encoder = insts.NewEncoder()
	})

	DescribeTable("known 32-bit encodings",
		func(inst insts.Instruction, expected uint32) {
			word, err := encoder.Encode(inst)

			Expect(err).NotTo(HaveOccurred())
			Expect(word).To(Equal(expected))
		},
		Entry("addi x5, x0, 25", insts.Instruction{Op: insts.OpADDI, Rd: 5, Imm: 25}, uint32(0x01900293)),
		Entry("add x3, x1, x2", insts.Instruction{Op: insts.OpADD, Rd: 3, Rs1: 1, Rs2: 2}, uint32(0x002081B3)),
		Entry("sub x3, x1, x2", insts.Instruction{Op: insts.OpSUB, Rd: 3, Rs1: 1, Rs2: 2}, uint32(0x402081B3)),
		Entry("lw x5, 8(x10)", insts.Instruction{Op: insts.OpLW, Rd: 5, Rs1: 10, Imm: 8}, uint32(0x00852283)),
		Entry("sw x6, 12(x10)", insts.Instruction{Op: insts.OpSW, Rs1: 10, Rs2: 6, Imm: 12}, uint32(0x00652623)),
		Entry("beq x1, x2, 16", insts.Instruction{Op: insts.OpBEQ, Rs1: 1, Rs2: 2, Imm: 16}, uint32(0x00208863)),
		Entry("jal x1, 2048", insts.Instruction{Op: insts.OpJAL, Rd: 1, Imm: 2048}, uint32(0x001000EF)),
		Entry("lui x5, 0x12345", insts.Instruction{Op: insts.OpLUI, Rd: 5, Imm: 0x12345}, uint32(0x123452B7)),
		Entry("lr.w x5, (x10)", insts.Instruction{Op: insts.OpLRW, Rd: 5, Rs1: 10}, uint32(0x1005252F)),
		Entry("sc.w x6, x12, (x10)", insts.Instruction{Op: insts.OpSCW, Rd: 6, Rs1: 10, Rs2: 12}, uint32(0x18C5232F)),
		Entry("csrrs x5, instret, x0", insts.Instruction{Op: insts.OpCSRRS, Rd: 5, CSR: 0xC02}, uint32(0xC02022F3)),
		Entry("fmadd.s f1, f2, f3, f4", insts.Instruction{Op: insts.OpFMADDS, Rd: 1, Rs1: 2, Rs2: 3, Rs3: 4}, uint32(0x203100C3)),
		Entry("pause", insts.Instruction{Op: insts.OpPAUSE}, uint32(0x0100000F)),
		Entry("fence iorw, iorw", insts.Instruction{Op: insts.OpFENCE, Imm: 0xFF}, uint32(0x0FF0000F)),
		Entry("ecall", insts.Instruction{Op: insts.OpECALL}, uint32(0x00000073)),
	)

	DescribeTable("known compressed encodings",
		func(inst insts.Instruction, expected uint32) {
			word, err := encoder.Encode(inst)

			Expect(err).NotTo(HaveOccurred())
			Expect(word).To(Equal(expected))
		},
		Entry("c.nop", insts.Instruction{Op: insts.OpCNOP}, uint32(0x0001)),
		Entry("c.li x10, 25", insts.Instruction{Op: insts.OpCLI, Rd: 10, Imm: 25}, uint32(0x4565)),
		Entry("c.addi4spn x8, 16", insts.Instruction{Op: insts.OpCADDI4SPN, Rd: 8, Imm: 16}, uint32(0x0800)),
		Entry("c.mv x10, x11", insts.Instruction{Op: insts.OpCMV, Rd: 10, Rs2: 11}, uint32(0x852E)),
		Entry("c.add x10, x11", insts.Instruction{Op: insts.OpCADD, Rd: 10, Rs2: 11}, uint32(0x952E)),
		Entry("c.jr x1", insts.Instruction{Op: insts.OpCJR, Rs1: 1}, uint32(0x8082)),
		Entry("c.lwsp x10, 12", insts.Instruction{Op: insts.OpCLWSP, Rd: 10, Imm: 12}, uint32(0x4532)),
		Entry("c.swsp x1, 12", insts.Instruction{Op: insts.OpCSWSP, Rs2: 1, Imm: 12}, uint32(0xC606)),
		Entry("c.ebreak", insts.Instruction{Op: insts.OpCEBREAK}, uint32(0x9002)),
	)

	DescribeTable("rejects operands outside their field",
		func(inst insts.Instruction, field string) {
			_, err := encoder.Encode(inst)

			Expect(err).To(HaveOccurred())
			var encErr *verr.EncodingError
			Expect(err).To(BeAssignableToTypeOf(encErr))
			Expect(err.(*verr.EncodingError).Field).To(Equal(field))
			kind, ok := verr.KindOf(err)
			Expect(ok).To(BeTrue())
			Expect(kind).To(Equal(verr.KindEncoding))
		},
		Entry("addi imm 2048", insts.Instruction{Op: insts.OpADDI, Rd: 1, Imm: 2048}, "imm"),
		Entry("addi imm -2049", insts.Instruction{Op: insts.OpADDI, Rd: 1, Imm: -2049}, "imm"),
		Entry("add rd 32", insts.Instruction{Op: insts.OpADD, Rd: 32}, "rd"),
		Entry("slli shamt 32", insts.Instruction{Op: insts.OpSLLI, Rd: 1, Imm: 32}, "shamt"),
		Entry("beq odd offset", insts.Instruction{Op: insts.OpBEQ, Imm: 3}, "offset"),
		Entry("beq offset 4096", insts.Instruction{Op: insts.OpBEQ, Imm: 4096}, "offset"),
		Entry("jal offset 1 MiB", insts.Instruction{Op: insts.OpJAL, Imm: 1 << 20}, "offset"),
		Entry("lui negative", insts.Instruction{Op: insts.OpLUI, Rd: 1, Imm: -1}, "imm"),
		Entry("pack with x0", insts.Instruction{Op: insts.OpPACK, Rd: 1, Rs1: 2}, "rs2"),
		Entry("fence encoding pause", insts.Instruction{Op: insts.OpFENCE, Imm: 0x10}, "pred_succ"),
		Entry("fadd reserved rm", insts.Instruction{Op: insts.OpFADDS, Rm: 5}, "rm"),
		Entry("c.sub with x7", insts.Instruction{Op: insts.OpCSUB, Rd: 7, Rs2: 8}, "rd"),
		Entry("c.lw with x16 base", insts.Instruction{Op: insts.OpCLW, Rd: 8, Rs1: 16}, "rs1"),
		Entry("c.addi with x0", insts.Instruction{Op: insts.OpCADDI, Imm: 1}, "rd"),
		Entry("c.addi zero imm", insts.Instruction{Op: insts.OpCADDI, Rd: 1}, "imm"),
		Entry("c.lui into sp", insts.Instruction{Op: insts.OpCLUI, Rd: 2, Imm: 1}, "rd"),
		Entry("c.addi16sp not x16", insts.Instruction{Op: insts.OpCADDI16SP, Imm: 24}, "imm"),
		Entry("c.lw unaligned", insts.Instruction{Op: insts.OpCLW, Rd: 8, Rs1: 9, Imm: 6}, "imm"),
		Entry("c.beqz range", insts.Instruction{Op: insts.OpCBEQZ, Rs1: 8, Imm: 256}, "offset"),
		Entry("c.j odd", insts.Instruction{Op: insts.OpCJ, Imm: 7}, "offset"),
		Entry("c.srli zero shamt", insts.Instruction{Op: insts.OpCSRLI, Rd: 8}, "shamt"),
		Entry("c.mv from x0", insts.Instruction{Op: insts.OpCMV, Rd: 1}, "rs2"),
	)

	It("should reject an unknown op", func() {
		_, err := encoder.Encode(insts.Instruction{Op: insts.OpUnknown})

		Expect(err).To(HaveOccurred())
	})
})
