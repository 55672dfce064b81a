// Package insts provides RISC-V RV32 instruction definitions, encoding and decoding.
package insts

// Expand returns the base-ISA instruction a compressed instruction is
// defined to be equivalent to. Non-compressed instructions are returned
// unchanged. Link and fall-through addresses still use the compressed
// length, so callers keep the issued Op for sizing.
func Expand(inst Instruction) Instruction {
	switch inst.Op {
	case OpCADDI4SPN:
		return Instruction{Op: OpADDI, Rd: inst.Rd, Rs1: 2, Imm: inst.Imm}
	case OpCLW:
		return Instruction{Op: OpLW, Rd: inst.Rd, Rs1: inst.Rs1, Imm: inst.Imm}
	case OpCSW:
		return Instruction{Op: OpSW, Rs1: inst.Rs1, Rs2: inst.Rs2, Imm: inst.Imm}
	case OpCNOP:
		return Instruction{Op: OpADDI}
	case OpCADDI:
		return Instruction{Op: OpADDI, Rd: inst.Rd, Rs1: inst.Rd, Imm: inst.Imm}
	case OpCJAL:
		return Instruction{Op: OpJAL, Rd: 1, Imm: inst.Imm}
	case OpCLI:
		return Instruction{Op: OpADDI, Rd: inst.Rd, Imm: inst.Imm}
	case OpCADDI16SP:
		return Instruction{Op: OpADDI, Rd: 2, Rs1: 2, Imm: inst.Imm}
	case OpCLUI:
		return Instruction{Op: OpLUI, Rd: inst.Rd, Imm: inst.Imm & 0xFFFFF}
	case OpCSRLI:
		return Instruction{Op: OpSRLI, Rd: inst.Rd, Rs1: inst.Rd, Imm: inst.Imm}
	case OpCSRAI:
		return Instruction{Op: OpSRAI, Rd: inst.Rd, Rs1: inst.Rd, Imm: inst.Imm}
	case OpCANDI:
		return Instruction{Op: OpANDI, Rd: inst.Rd, Rs1: inst.Rd, Imm: inst.Imm}
	case OpCSUB:
		return Instruction{Op: OpSUB, Rd: inst.Rd, Rs1: inst.Rd, Rs2: inst.Rs2}
	case OpCXOR:
		return Instruction{Op: OpXOR, Rd: inst.Rd, Rs1: inst.Rd, Rs2: inst.Rs2}
	case OpCOR:
		return Instruction{Op: OpOR, Rd: inst.Rd, Rs1: inst.Rd, Rs2: inst.Rs2}
	case OpCAND:
		return Instruction{Op: OpAND, Rd: inst.Rd, Rs1: inst.Rd, Rs2: inst.Rs2}
	case OpCJ:
		return Instruction{Op: OpJAL, Imm: inst.Imm}
	case OpCBEQZ:
		return Instruction{Op: OpBEQ, Rs1: inst.Rs1, Imm: inst.Imm}
	case OpCBNEZ:
		return Instruction{Op: OpBNE, Rs1: inst.Rs1, Imm: inst.Imm}
	case OpCSLLI:
		return Instruction{Op: OpSLLI, Rd: inst.Rd, Rs1: inst.Rd, Imm: inst.Imm}
	case OpCLWSP:
		return Instruction{Op: OpLW, Rd: inst.Rd, Rs1: 2, Imm: inst.Imm}
	case OpCJR:
		return Instruction{Op: OpJALR, Rs1: inst.Rs1}
	case OpCMV:
		return Instruction{Op: OpADD, Rd: inst.Rd, Rs2: inst.Rs2}
	case OpCEBREAK:
		return Instruction{Op: OpEBREAK}
	case OpCJALR:
		return Instruction{Op: OpJALR, Rd: 1, Rs1: inst.Rs1}
	case OpCADD:
		return Instruction{Op: OpADD, Rd: inst.Rd, Rs1: inst.Rd, Rs2: inst.Rs2}
	case OpCSWSP:
		return Instruction{Op: OpSW, Rs1: 2, Rs2: inst.Rs2, Imm: inst.Imm}
	}
	return inst
}
