// Package insts provides RISC-V RV32 instruction definitions, encoding and decoding.
package insts

import "github.com/adambagley/frost/verr"

// Encoder packs instructions into RISC-V machine words.
type Encoder struct{}

// NewEncoder creates a new RISC-V instruction encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode returns the machine word for inst. Compressed instructions occupy
// the low 16 bits of the result. Operands outside their field's range yield
// a *verr.EncodingError.
func (e *Encoder) Encode(inst Instruction) (uint32, error) {
	if inst.Op.IsCompressed() {
		half, err := encodeCompressed(inst)
		return uint32(half), err
	}

	enc, ok := encodingByOp[inst.Op]
	if !ok {
		return 0, &verr.EncodingError{Op: inst.Op.String(), Reason: "no 32-bit encoding"}
	}

	word := enc.match()
	op := inst.Op

	switch enc.format {
	case FormatR:
		if err := checkRegs(op, inst.Rd, inst.Rs1, inst.Rs2); err != nil {
			return 0, err
		}
		if op == OpPACK && inst.Rs2 == 0 {
			return 0, fieldError(op, "rs2", 0, "encodes zext.h")
		}
		word |= rd(inst.Rd) | rs1(inst.Rs1)
		if enc.rs2 < 0 {
			word |= rs2(inst.Rs2)
		}
		if enc.rm {
			if err := checkRM(op, inst.Rm); err != nil {
				return 0, err
			}
			word |= uint32(inst.Rm) << 12
		}

	case FormatR4:
		if err := checkRegs(op, inst.Rd, inst.Rs1, inst.Rs2, inst.Rs3); err != nil {
			return 0, err
		}
		if err := checkRM(op, inst.Rm); err != nil {
			return 0, err
		}
		word |= rd(inst.Rd) | rs1(inst.Rs1) | rs2(inst.Rs2) |
			uint32(inst.Rs3)<<27 | uint32(inst.Rm)<<12

	case FormatShift:
		if err := checkRegs(op, inst.Rd, inst.Rs1); err != nil {
			return 0, err
		}
		if err := checkRange(op, "shamt", inst.Imm, 0, 31, 1); err != nil {
			return 0, err
		}
		word |= rd(inst.Rd) | rs1(inst.Rs1) | uint32(inst.Imm)<<20

	case FormatI:
		if err := checkRegs(op, inst.Rd, inst.Rs1); err != nil {
			return 0, err
		}
		if err := CheckImmediate12(op, inst.Imm); err != nil {
			return 0, err
		}
		word |= rd(inst.Rd) | rs1(inst.Rs1) | (uint32(inst.Imm)&0xFFF)<<20

	case FormatS:
		if err := checkRegs(op, 0, inst.Rs1, inst.Rs2); err != nil {
			return 0, err
		}
		if err := CheckImmediate12(op, inst.Imm); err != nil {
			return 0, err
		}
		word |= rs1(inst.Rs1) | rs2(inst.Rs2) | packS(inst.Imm)

	case FormatB:
		if err := checkRegs(op, 0, inst.Rs1, inst.Rs2); err != nil {
			return 0, err
		}
		if err := CheckBranchOffset(op, inst.Imm); err != nil {
			return 0, err
		}
		word |= rs1(inst.Rs1) | rs2(inst.Rs2) | packB(inst.Imm)

	case FormatU:
		if err := CheckRegister(op, "rd", inst.Rd); err != nil {
			return 0, err
		}
		if err := CheckImmediate20(op, inst.Imm); err != nil {
			return 0, err
		}
		word |= rd(inst.Rd) | uint32(inst.Imm)<<12

	case FormatJ:
		if err := CheckRegister(op, "rd", inst.Rd); err != nil {
			return 0, err
		}
		if err := CheckJumpOffset(op, inst.Imm); err != nil {
			return 0, err
		}
		word |= rd(inst.Rd) | packJ(inst.Imm)

	case FormatCSR:
		if err := checkRegs(op, inst.Rd, inst.Rs1); err != nil {
			return 0, err
		}
		if inst.CSR > 0xFFF {
			return 0, fieldError(op, "csr", int64(inst.CSR), "out of range")
		}
		word |= rd(inst.Rd) | rs1(inst.Rs1) | uint32(inst.CSR)<<20

	case FormatCSRI:
		if err := CheckRegister(op, "rd", inst.Rd); err != nil {
			return 0, err
		}
		if err := checkRange(op, "zimm", inst.Imm, 0, 31, 1); err != nil {
			return 0, err
		}
		if inst.CSR > 0xFFF {
			return 0, fieldError(op, "csr", int64(inst.CSR), "out of range")
		}
		word |= rd(inst.Rd) | uint32(inst.Imm)<<15 | uint32(inst.CSR)<<20

	case FormatAtomic:
		if err := checkRegs(op, inst.Rd, inst.Rs1, inst.Rs2); err != nil {
			return 0, err
		}
		word |= rd(inst.Rd) | rs1(inst.Rs1)
		if enc.rs2 < 0 {
			word |= rs2(inst.Rs2)
		}
		if inst.Aq {
			word |= 1 << 26
		}
		if inst.Rl {
			word |= 1 << 25
		}

	case FormatFence:
		if err := checkRange(op, "pred_succ", inst.Imm, 0, 0xFF, 1); err != nil {
			return 0, err
		}
		if inst.Imm == pauseFenceBits {
			return 0, fieldError(op, "pred_succ", int64(inst.Imm), "encodes pause")
		}
		word |= uint32(inst.Imm) << 20

	case FormatFixed:
		// The word is complete.
	}

	return word, nil
}

func rd(r uint8) uint32  { return uint32(r) << 7 }
func rs1(r uint8) uint32 { return uint32(r) << 15 }
func rs2(r uint8) uint32 { return uint32(r) << 20 }

func packS(imm int32) uint32 {
	v := uint32(imm)
	return (v>>5&0x7F)<<25 | (v&0x1F)<<7
}

func packB(imm int32) uint32 {
	v := uint32(imm)
	return (v>>12&1)<<31 | (v>>5&0x3F)<<25 | (v>>1&0xF)<<8 | (v>>11&1)<<7
}

func packJ(imm int32) uint32 {
	v := uint32(imm)
	return (v>>20&1)<<31 | (v>>1&0x3FF)<<21 | (v>>11&1)<<20 | (v>>12&0xFF)<<12
}
