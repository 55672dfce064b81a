// Package insts provides RISC-V RV32 instruction definitions, encoding and
// decoding.
//
// The codec covers RV32I, M, A, F, C, Zicsr, Zicntr, Zifencei, Zba, Zbb, Zbs,
// Zbkb and Zicond. Encoding and decoding are inverse for every legal operand
// combination; operands outside a field's range are rejected rather than
// truncated.
//
// Usage:
//
//	enc := insts.NewEncoder()
//	word, err := enc.Encode(insts.Instruction{Op: insts.OpADDI, Rd: 5, Imm: 25})
//	// word == 0x01900293
//	inst, err := insts.NewDecoder().Decode(word)
package insts

import (
	"fmt"
	"strconv"
	"strings"
)

// Op represents a RISC-V mnemonic.
type Op uint16

// RISC-V mnemonics.
const (
	OpUnknown Op = iota

	// RV32I register-register.
	OpADD
	OpSUB
	OpAND
	OpOR
	OpXOR
	OpSLL
	OpSRL
	OpSRA
	OpSLT
	OpSLTU

	// M extension.
	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU

	// Zba.
	OpSH1ADD
	OpSH2ADD
	OpSH3ADD

	// Zbs.
	OpBSET
	OpBCLR
	OpBINV
	OpBEXT

	// Zbb.
	OpANDN
	OpORN
	OpXNOR
	OpMAX
	OpMAXU
	OpMIN
	OpMINU
	OpROL
	OpROR

	// Zicond.
	OpCZEROEQZ
	OpCZERONEZ

	// Zbkb.
	OpPACK
	OpPACKH

	// Register-immediate.
	OpADDI
	OpANDI
	OpORI
	OpXORI
	OpSLTI
	OpSLTIU
	OpSLLI
	OpSRLI
	OpSRAI
	OpBSETI
	OpBCLRI
	OpBINVI
	OpBEXTI
	OpRORI

	// Unary bit-manipulation.
	OpCLZ
	OpCTZ
	OpCPOP
	OpSEXTB
	OpSEXTH
	OpZEXTH
	OpORCB
	OpREV8
	OpBREV8
	OpZIP
	OpUNZIP

	// Upper immediate.
	OpLUI
	OpAUIPC

	// Loads and stores.
	OpLB
	OpLH
	OpLW
	OpLBU
	OpLHU
	OpSB
	OpSH
	OpSW

	// Branches and jumps.
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU
	OpJAL
	OpJALR

	// Fences.
	OpFENCE
	OpFENCEI
	OpPAUSE

	// Zicsr.
	OpCSRRW
	OpCSRRS
	OpCSRRC
	OpCSRRWI
	OpCSRRSI
	OpCSRRCI

	// Traps.
	OpECALL
	OpEBREAK
	OpMRET
	OpWFI

	// A extension.
	OpLRW
	OpSCW
	OpAMOSWAPW
	OpAMOADDW
	OpAMOXORW
	OpAMOANDW
	OpAMOORW
	OpAMOMINW
	OpAMOMAXW
	OpAMOMINUW
	OpAMOMAXUW

	// F extension.
	OpFLW
	OpFSW
	OpFADDS
	OpFSUBS
	OpFMULS
	OpFDIVS
	OpFSQRTS
	OpFMADDS
	OpFMSUBS
	OpFNMADDS
	OpFNMSUBS
	OpFSGNJS
	OpFSGNJNS
	OpFSGNJXS
	OpFMINS
	OpFMAXS
	OpFEQS
	OpFLTS
	OpFLES
	OpFCVTWS
	OpFCVTWUS
	OpFCVTSW
	OpFCVTSWU
	OpFMVXW
	OpFMVWX
	OpFCLASSS

	// C extension, quadrant 0.
	OpCADDI4SPN
	OpCLW
	OpCSW

	// C extension, quadrant 1.
	OpCNOP
	OpCADDI
	OpCJAL
	OpCLI
	OpCADDI16SP
	OpCLUI
	OpCSRLI
	OpCSRAI
	OpCANDI
	OpCSUB
	OpCXOR
	OpCOR
	OpCAND
	OpCJ
	OpCBEQZ
	OpCBNEZ

	// C extension, quadrant 2.
	OpCSLLI
	OpCLWSP
	OpCJR
	OpCMV
	OpCEBREAK
	OpCJALR
	OpCADD
	OpCSWSP

	numOps
)

var opNames = [numOps]string{
	OpUnknown: "unknown",

	OpADD: "add", OpSUB: "sub", OpAND: "and", OpOR: "or", OpXOR: "xor",
	OpSLL: "sll", OpSRL: "srl", OpSRA: "sra", OpSLT: "slt", OpSLTU: "sltu",

	OpMUL: "mul", OpMULH: "mulh", OpMULHSU: "mulhsu", OpMULHU: "mulhu",
	OpDIV: "div", OpDIVU: "divu", OpREM: "rem", OpREMU: "remu",

	OpSH1ADD: "sh1add", OpSH2ADD: "sh2add", OpSH3ADD: "sh3add",

	OpBSET: "bset", OpBCLR: "bclr", OpBINV: "binv", OpBEXT: "bext",

	OpANDN: "andn", OpORN: "orn", OpXNOR: "xnor",
	OpMAX: "max", OpMAXU: "maxu", OpMIN: "min", OpMINU: "minu",
	OpROL: "rol", OpROR: "ror",

	OpCZEROEQZ: "czero.eqz", OpCZERONEZ: "czero.nez",
	OpPACK: "pack", OpPACKH: "packh",

	OpADDI: "addi", OpANDI: "andi", OpORI: "ori", OpXORI: "xori",
	OpSLTI: "slti", OpSLTIU: "sltiu",
	OpSLLI: "slli", OpSRLI: "srli", OpSRAI: "srai",
	OpBSETI: "bseti", OpBCLRI: "bclri", OpBINVI: "binvi", OpBEXTI: "bexti",
	OpRORI: "rori",

	OpCLZ: "clz", OpCTZ: "ctz", OpCPOP: "cpop",
	OpSEXTB: "sext.b", OpSEXTH: "sext.h", OpZEXTH: "zext.h",
	OpORCB: "orc.b", OpREV8: "rev8", OpBREV8: "brev8",
	OpZIP: "zip", OpUNZIP: "unzip",

	OpLUI: "lui", OpAUIPC: "auipc",

	OpLB: "lb", OpLH: "lh", OpLW: "lw", OpLBU: "lbu", OpLHU: "lhu",
	OpSB: "sb", OpSH: "sh", OpSW: "sw",

	OpBEQ: "beq", OpBNE: "bne", OpBLT: "blt", OpBGE: "bge",
	OpBLTU: "bltu", OpBGEU: "bgeu",
	OpJAL: "jal", OpJALR: "jalr",

	OpFENCE: "fence", OpFENCEI: "fence.i", OpPAUSE: "pause",

	OpCSRRW: "csrrw", OpCSRRS: "csrrs", OpCSRRC: "csrrc",
	OpCSRRWI: "csrrwi", OpCSRRSI: "csrrsi", OpCSRRCI: "csrrci",

	OpECALL: "ecall", OpEBREAK: "ebreak", OpMRET: "mret", OpWFI: "wfi",

	OpLRW: "lr.w", OpSCW: "sc.w",
	OpAMOSWAPW: "amoswap.w", OpAMOADDW: "amoadd.w", OpAMOXORW: "amoxor.w",
	OpAMOANDW: "amoand.w", OpAMOORW: "amoor.w",
	OpAMOMINW: "amomin.w", OpAMOMAXW: "amomax.w",
	OpAMOMINUW: "amominu.w", OpAMOMAXUW: "amomaxu.w",

	OpFLW: "flw", OpFSW: "fsw",
	OpFADDS: "fadd.s", OpFSUBS: "fsub.s", OpFMULS: "fmul.s", OpFDIVS: "fdiv.s",
	OpFSQRTS: "fsqrt.s",
	OpFMADDS: "fmadd.s", OpFMSUBS: "fmsub.s",
	OpFNMADDS: "fnmadd.s", OpFNMSUBS: "fnmsub.s",
	OpFSGNJS: "fsgnj.s", OpFSGNJNS: "fsgnjn.s", OpFSGNJXS: "fsgnjx.s",
	OpFMINS: "fmin.s", OpFMAXS: "fmax.s",
	OpFEQS: "feq.s", OpFLTS: "flt.s", OpFLES: "fle.s",
	OpFCVTWS: "fcvt.w.s", OpFCVTWUS: "fcvt.wu.s",
	OpFCVTSW: "fcvt.s.w", OpFCVTSWU: "fcvt.s.wu",
	OpFMVXW: "fmv.x.w", OpFMVWX: "fmv.w.x", OpFCLASSS: "fclass.s",

	OpCADDI4SPN: "c.addi4spn", OpCLW: "c.lw", OpCSW: "c.sw",

	OpCNOP: "c.nop", OpCADDI: "c.addi", OpCJAL: "c.jal", OpCLI: "c.li",
	OpCADDI16SP: "c.addi16sp", OpCLUI: "c.lui",
	OpCSRLI: "c.srli", OpCSRAI: "c.srai", OpCANDI: "c.andi",
	OpCSUB: "c.sub", OpCXOR: "c.xor", OpCOR: "c.or", OpCAND: "c.and",
	OpCJ: "c.j", OpCBEQZ: "c.beqz", OpCBNEZ: "c.bnez",

	OpCSLLI: "c.slli", OpCLWSP: "c.lwsp", OpCJR: "c.jr", OpCMV: "c.mv",
	OpCEBREAK: "c.ebreak", OpCJALR: "c.jalr", OpCADD: "c.add",
	OpCSWSP: "c.swsp",
}

var opsByName = func() map[string]Op {
	m := make(map[string]Op, numOps)
	for op := OpUnknown + 1; op < numOps; op++ {
		m[opNames[op]] = op
	}
	return m
}()

// String returns the assembler mnemonic.
func (op Op) String() string {
	if op < numOps && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("op(%d)", uint16(op))
}

// ParseOp returns the Op for an assembler mnemonic.
func ParseOp(name string) (Op, bool) {
	op, ok := opsByName[strings.ToLower(name)]
	return op, ok
}

// AllOps returns every defined mnemonic in declaration order.
func AllOps() []Op {
	ops := make([]Op, 0, numOps-1)
	for op := OpUnknown + 1; op < numOps; op++ {
		ops = append(ops, op)
	}
	return ops
}

// IsCompressed reports whether op has a 16-bit encoding.
func (op Op) IsCompressed() bool {
	return op >= OpCADDI4SPN && op <= OpCSWSP
}

// Size returns the encoded length of op in bytes.
func (op Op) Size() uint32 {
	if op.IsCompressed() {
		return 2
	}
	return 4
}

// Rounding modes carried in the rm field of floating-point instructions.
const (
	RmRNE uint8 = 0b000
	RmRTZ uint8 = 0b001
	RmRDN uint8 = 0b010
	RmRUP uint8 = 0b011
	RmRMM uint8 = 0b100
	RmDyn uint8 = 0b111
)

// Instruction represents one RISC-V instruction as a mnemonic plus operands.
//
// Imm holds whatever immediate the format carries: the sign-extended I/S
// immediate, the byte offset of a branch or jump, a shift amount, the 20-bit
// U-type field, a CSR zimm, or the fence pred/succ byte. Fields an encoding
// does not use are ignored by Encode and zero after Decode.
type Instruction struct {
	Op Op

	Rd  uint8
	Rs1 uint8
	Rs2 uint8
	Rs3 uint8

	Imm int32
	CSR uint16

	Rm uint8
	Aq bool
	Rl bool
}

// String renders the instruction with its operand fields.
func (i Instruction) String() string {
	var b strings.Builder
	b.WriteString(i.Op.String())
	fmt.Fprintf(&b, " rd=%d rs1=%d rs2=%d", i.Rd, i.Rs1, i.Rs2)
	if i.Rs3 != 0 {
		fmt.Fprintf(&b, " rs3=%d", i.Rs3)
	}
	fmt.Fprintf(&b, " imm=%d", i.Imm)
	if i.CSR != 0 {
		fmt.Fprintf(&b, " csr=0x%03x", i.CSR)
	}
	return b.String()
}

// ParseRegister maps an architectural register name to its file and index.
// Integer registers are x0..x31 and floating-point registers f0..f31.
func ParseRegister(name string) (fp bool, index uint8, err error) {
	if len(name) < 2 {
		return false, 0, fmt.Errorf("invalid register name %q", name)
	}

	switch name[0] {
	case 'x':
	case 'f':
		fp = true
	default:
		return false, 0, fmt.Errorf("invalid register name %q", name)
	}

	n, err := strconv.Atoi(name[1:])
	if err != nil || n < 0 || n > 31 {
		return false, 0, fmt.Errorf("invalid register name %q", name)
	}

	return fp, uint8(n), nil
}

// RegisterName returns the architectural name of an integer or FP register.
func RegisterName(fp bool, index uint8) string {
	if fp {
		return "f" + strconv.Itoa(int(index))
	}
	return "x" + strconv.Itoa(int(index))
}
