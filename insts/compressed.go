// Package insts provides RISC-V RV32 instruction definitions, encoding and decoding.
package insts

import (
	"fmt"

	"github.com/adambagley/frost/verr"
)

// Compressed instruction layouts. Bit positions are given as [hi:lo] of the
// 16-bit half-word; r' denotes a 3-bit register field naming x(r'+8).
//
// Quadrant 0 (op=00):
//
//	c.addi4spn  000 nzuimm[5:4|9:6|2|3] rd'               nzuimm 4..1020, x4
//	c.lw        010 uimm[5:3] rs1' uimm[2|6] rd'          uimm 0..124, x4
//	c.sw        110 uimm[5:3] rs1' uimm[2|6] rs2'
//
// Quadrant 1 (op=01):
//
//	c.nop       000 0 00000 00000
//	c.addi      000 imm[5] rd imm[4:0]                    rd≠0, imm≠0
//	c.jal/c.j   001/101 imm[11|4|9:8|10|6|7|3:1|5]        even, -2048..2046
//	c.li        010 imm[5] rd imm[4:0]                    rd≠0
//	c.addi16sp  011 imm[9] 00010 imm[4|6|8:7|5]           x16, -512..496, ≠0
//	c.lui       011 imm[17] rd imm[16:12]                 rd∉{0,2}, imm≠0
//	c.srli      100 0 00 rd' shamt[4:0]                    shamt 1..31
//	c.srai      100 0 01 rd' shamt[4:0]
//	c.andi      100 imm[5] 10 rd' imm[4:0]
//	c.sub..and  100 0 11 rd' {00,01,10,11} rs2'
//	c.beqz/bnez 110/111 imm[8|4:3] rs1' imm[7:6|2:1|5]    even, -256..254
//
// Quadrant 2 (op=10):
//
//	c.slli      000 0 rd shamt[4:0]                        rd≠0, shamt 1..31
//	c.lwsp      010 uimm[5] rd uimm[4:2|7:6]              rd≠0, 0..252, x4
//	c.jr        100 0 rs1 00000                            rs1≠0
//	c.mv        100 0 rd rs2                               rd≠0, rs2≠0
//	c.ebreak    100 1 00000 00000
//	c.jalr      100 1 rs1 00000                            rs1≠0
//	c.add       100 1 rd rs2                               rd≠0, rs2≠0
//	c.swsp      110 uimm[5:2|7:6] rs2                      0..252, x4

func cReg(r uint8) uint16 { return uint16(r-8) & 0x7 }

func bit(v uint32, n uint) uint16 { return uint16(v >> n & 1) }

func encodeCompressed(inst Instruction) (uint16, error) {
	op := inst.Op
	imm := inst.Imm
	u := uint32(imm)

	switch op {
	case OpCADDI4SPN:
		if err := CheckCompressedRegister(op, "rd", inst.Rd); err != nil {
			return 0, err
		}
		if err := checkRange(op, "imm", imm, 4, 1020, 4); err != nil {
			return 0, err
		}
		return uint16(u>>4&3)<<11 | uint16(u>>6&0xF)<<7 | bit(u, 2)<<6 |
			bit(u, 3)<<5 | cReg(inst.Rd)<<2, nil

	case OpCLW, OpCSW:
		if err := CheckCompressedRegister(op, "rs1", inst.Rs1); err != nil {
			return 0, err
		}
		data, f3, field := inst.Rd, uint16(0b010), "rd"
		if op == OpCSW {
			data, f3, field = inst.Rs2, 0b110, "rs2"
		}
		if err := CheckCompressedRegister(op, field, data); err != nil {
			return 0, err
		}
		if err := checkRange(op, "imm", imm, 0, 124, 4); err != nil {
			return 0, err
		}
		return f3<<13 | uint16(u>>3&7)<<10 | cReg(inst.Rs1)<<7 | bit(u, 2)<<6 |
			bit(u, 6)<<5 | cReg(data)<<2, nil

	case OpCNOP:
		return 0x0001, nil

	case OpCADDI, OpCLI:
		if inst.Rd == 0 || inst.Rd > 31 {
			return 0, fieldError(op, "rd", int64(inst.Rd), "out of range 1..31")
		}
		if err := checkRange(op, "imm", imm, -32, 31, 1); err != nil {
			return 0, err
		}
		f3 := uint16(0b000)
		if op == OpCLI {
			f3 = 0b010
		} else if imm == 0 {
			return 0, fieldError(op, "imm", 0, "must be nonzero")
		}
		return f3<<13 | ci(inst.Rd, u) | 0b01, nil

	case OpCJAL, OpCJ:
		if err := checkRange(op, "offset", imm, -2048, 2046, 2); err != nil {
			return 0, err
		}
		f3 := uint16(0b001)
		if op == OpCJ {
			f3 = 0b101
		}
		return f3<<13 | packCJ(u) | 0b01, nil

	case OpCADDI16SP:
		if err := checkRange(op, "imm", imm, -512, 496, 16); err != nil {
			return 0, err
		}
		if imm == 0 {
			return 0, fieldError(op, "imm", 0, "must be nonzero")
		}
		return 0b011<<13 | bit(u, 9)<<12 | 2<<7 | bit(u, 4)<<6 | bit(u, 6)<<5 |
			uint16(u>>7&3)<<3 | bit(u, 5)<<2 | 0b01, nil

	case OpCLUI:
		if inst.Rd == 0 || inst.Rd == 2 || inst.Rd > 31 {
			return 0, fieldError(op, "rd", int64(inst.Rd), "must be 1 or 3..31")
		}
		if err := checkRange(op, "imm", imm, -32, 31, 1); err != nil {
			return 0, err
		}
		if imm == 0 {
			return 0, fieldError(op, "imm", 0, "must be nonzero")
		}
		return 0b011<<13 | ci(inst.Rd, u) | 0b01, nil

	case OpCSRLI, OpCSRAI, OpCANDI:
		if err := CheckCompressedRegister(op, "rd", inst.Rd); err != nil {
			return 0, err
		}
		var funct2 uint16
		switch op {
		case OpCSRLI:
			funct2 = 0b00
		case OpCSRAI:
			funct2 = 0b01
		default:
			funct2 = 0b10
		}
		if op == OpCANDI {
			if err := checkRange(op, "imm", imm, -32, 31, 1); err != nil {
				return 0, err
			}
		} else if err := checkRange(op, "shamt", imm, 1, 31, 1); err != nil {
			return 0, err
		}
		return 0b100<<13 | bit(u, 5)<<12 | funct2<<10 | cReg(inst.Rd)<<7 |
			uint16(u&0x1F)<<2 | 0b01, nil

	case OpCSUB, OpCXOR, OpCOR, OpCAND:
		if err := CheckCompressedRegister(op, "rd", inst.Rd); err != nil {
			return 0, err
		}
		if err := CheckCompressedRegister(op, "rs2", inst.Rs2); err != nil {
			return 0, err
		}
		funct2 := uint16(op - OpCSUB)
		return 0b100<<13 | 0b11<<10 | cReg(inst.Rd)<<7 | funct2<<5 |
			cReg(inst.Rs2)<<2 | 0b01, nil

	case OpCBEQZ, OpCBNEZ:
		if err := CheckCompressedRegister(op, "rs1", inst.Rs1); err != nil {
			return 0, err
		}
		if err := checkRange(op, "offset", imm, -256, 254, 2); err != nil {
			return 0, err
		}
		f3 := uint16(0b110)
		if op == OpCBNEZ {
			f3 = 0b111
		}
		return f3<<13 | bit(u, 8)<<12 | uint16(u>>3&3)<<10 | cReg(inst.Rs1)<<7 |
			uint16(u>>6&3)<<5 | uint16(u>>1&3)<<3 | bit(u, 5)<<2 | 0b01, nil

	case OpCSLLI:
		if inst.Rd == 0 || inst.Rd > 31 {
			return 0, fieldError(op, "rd", int64(inst.Rd), "out of range 1..31")
		}
		if err := checkRange(op, "shamt", imm, 1, 31, 1); err != nil {
			return 0, err
		}
		return uint16(inst.Rd)<<7 | uint16(u&0x1F)<<2 | 0b10, nil

	case OpCLWSP:
		if inst.Rd == 0 || inst.Rd > 31 {
			return 0, fieldError(op, "rd", int64(inst.Rd), "out of range 1..31")
		}
		if err := checkRange(op, "imm", imm, 0, 252, 4); err != nil {
			return 0, err
		}
		return 0b010<<13 | bit(u, 5)<<12 | uint16(inst.Rd)<<7 |
			uint16(u>>2&7)<<4 | uint16(u>>6&3)<<2 | 0b10, nil

	case OpCJR, OpCJALR:
		if inst.Rs1 == 0 || inst.Rs1 > 31 {
			return 0, fieldError(op, "rs1", int64(inst.Rs1), "out of range 1..31")
		}
		b12 := uint16(0)
		if op == OpCJALR {
			b12 = 1
		}
		return 0b100<<13 | b12<<12 | uint16(inst.Rs1)<<7 | 0b10, nil

	case OpCMV, OpCADD:
		if inst.Rd == 0 || inst.Rd > 31 {
			return 0, fieldError(op, "rd", int64(inst.Rd), "out of range 1..31")
		}
		if inst.Rs2 == 0 || inst.Rs2 > 31 {
			return 0, fieldError(op, "rs2", int64(inst.Rs2), "out of range 1..31")
		}
		b12 := uint16(0)
		if op == OpCADD {
			b12 = 1
		}
		return 0b100<<13 | b12<<12 | uint16(inst.Rd)<<7 | uint16(inst.Rs2)<<2 | 0b10, nil

	case OpCEBREAK:
		return 0x9002, nil

	case OpCSWSP:
		if err := CheckRegister(op, "rs2", inst.Rs2); err != nil {
			return 0, err
		}
		if err := checkRange(op, "imm", imm, 0, 252, 4); err != nil {
			return 0, err
		}
		return 0b110<<13 | uint16(u>>2&0xF)<<9 | uint16(u>>6&3)<<7 |
			uint16(inst.Rs2)<<2 | 0b10, nil
	}

	return 0, &verr.EncodingError{Op: op.String(), Reason: "no compressed encoding"}
}

// ci packs the CI layout shared by c.addi, c.li and c.lui.
func ci(rd uint8, u uint32) uint16 {
	return bit(u, 5)<<12 | uint16(rd)<<7 | uint16(u&0x1F)<<2
}

func packCJ(u uint32) uint16 {
	return bit(u, 11)<<12 | bit(u, 4)<<11 | uint16(u>>8&3)<<9 | bit(u, 10)<<8 |
		bit(u, 6)<<7 | bit(u, 7)<<6 | uint16(u>>1&7)<<3 | bit(u, 5)<<2
}

func unpackCJ(h uint32) int32 {
	v := (h>>12&1)<<11 | (h>>11&1)<<4 | (h>>9&3)<<8 | (h>>8&1)<<10 |
		(h>>7&1)<<6 | (h>>6&1)<<7 | (h>>3&7)<<1 | (h>>2&1)<<5
	return signExtend(v, 12)
}

func illegalCompressed(h uint16, reason string) (Instruction, error) {
	return Instruction{}, &verr.EncodingError{
		Op:     "compressed",
		Reason: fmt.Sprintf("0x%04x: %s", h, reason),
	}
}

func decodeCompressed(half uint16) (Instruction, error) {
	h := uint32(half)
	f3 := h >> 13
	rdFull := uint8(h >> 7 & 0x1F)
	rs2Full := uint8(h >> 2 & 0x1F)
	rdP := uint8(h>>2&7) + 8
	rs1P := uint8(h>>7&7) + 8
	ciImm := signExtend((h>>12&1)<<5|(h>>2&0x1F), 6)

	switch h & 0x3 {
	case 0b00:
		switch f3 {
		case 0b000:
			imm := (h>>11&3)<<4 | (h>>7&0xF)<<6 | (h>>6&1)<<2 | (h>>5&1)<<3
			if imm == 0 {
				return illegalCompressed(half, "illegal instruction")
			}
			return Instruction{Op: OpCADDI4SPN, Rd: rdP, Imm: int32(imm)}, nil
		case 0b010, 0b110:
			imm := int32((h>>10&7)<<3 | (h>>6&1)<<2 | (h>>5&1)<<6)
			if f3 == 0b010 {
				return Instruction{Op: OpCLW, Rd: rdP, Rs1: rs1P, Imm: imm}, nil
			}
			return Instruction{Op: OpCSW, Rs1: rs1P, Rs2: rdP, Imm: imm}, nil
		}

	case 0b01:
		switch f3 {
		case 0b000:
			switch {
			case rdFull == 0 && ciImm == 0:
				return Instruction{Op: OpCNOP}, nil
			case rdFull == 0 || ciImm == 0:
				return illegalCompressed(half, "c.addi hint")
			}
			return Instruction{Op: OpCADDI, Rd: rdFull, Imm: ciImm}, nil
		case 0b001:
			return Instruction{Op: OpCJAL, Imm: unpackCJ(h)}, nil
		case 0b010:
			if rdFull == 0 {
				return illegalCompressed(half, "c.li hint")
			}
			return Instruction{Op: OpCLI, Rd: rdFull, Imm: ciImm}, nil
		case 0b011:
			if rdFull == 2 {
				v := (h>>12&1)<<9 | (h>>6&1)<<4 | (h>>5&1)<<6 | (h>>3&3)<<7 | (h>>2&1)<<5
				imm := signExtend(v, 10)
				if imm == 0 {
					return illegalCompressed(half, "reserved c.addi16sp")
				}
				return Instruction{Op: OpCADDI16SP, Imm: imm}, nil
			}
			if rdFull == 0 || ciImm == 0 {
				return illegalCompressed(half, "c.lui hint or reserved")
			}
			return Instruction{Op: OpCLUI, Rd: rdFull, Imm: ciImm}, nil
		case 0b100:
			return decodeCompressedArith(half, h, rs1P, rdP, ciImm)
		case 0b101:
			return Instruction{Op: OpCJ, Imm: unpackCJ(h)}, nil
		case 0b110, 0b111:
			v := (h>>12&1)<<8 | (h>>10&3)<<3 | (h>>5&3)<<6 | (h>>3&3)<<1 | (h>>2&1)<<5
			op := OpCBEQZ
			if f3 == 0b111 {
				op = OpCBNEZ
			}
			return Instruction{Op: op, Rs1: rs1P, Imm: signExtend(v, 9)}, nil
		}

	case 0b10:
		switch f3 {
		case 0b000:
			shamt := int32(h >> 2 & 0x1F)
			if h>>12&1 == 1 || rdFull == 0 || shamt == 0 {
				return illegalCompressed(half, "c.slli hint or reserved")
			}
			return Instruction{Op: OpCSLLI, Rd: rdFull, Imm: shamt}, nil
		case 0b010:
			if rdFull == 0 {
				return illegalCompressed(half, "reserved c.lwsp")
			}
			imm := int32((h>>12&1)<<5 | (h>>4&7)<<2 | (h>>2&3)<<6)
			return Instruction{Op: OpCLWSP, Rd: rdFull, Imm: imm}, nil
		case 0b100:
			b12 := h >> 12 & 1
			switch {
			case b12 == 0 && rs2Full == 0:
				if rdFull == 0 {
					return illegalCompressed(half, "reserved c.jr")
				}
				return Instruction{Op: OpCJR, Rs1: rdFull}, nil
			case b12 == 0:
				if rdFull == 0 {
					return illegalCompressed(half, "c.mv hint")
				}
				return Instruction{Op: OpCMV, Rd: rdFull, Rs2: rs2Full}, nil
			case rdFull == 0 && rs2Full == 0:
				return Instruction{Op: OpCEBREAK}, nil
			case rs2Full == 0:
				return Instruction{Op: OpCJALR, Rs1: rdFull}, nil
			default:
				if rdFull == 0 {
					return illegalCompressed(half, "c.add hint")
				}
				return Instruction{Op: OpCADD, Rd: rdFull, Rs2: rs2Full}, nil
			}
		case 0b110:
			imm := int32((h>>9&0xF)<<2 | (h>>7&3)<<6)
			return Instruction{Op: OpCSWSP, Rs2: rs2Full, Imm: imm}, nil
		}
	}

	return illegalCompressed(half, "unsupported compressed encoding")
}

func decodeCompressedArith(half uint16, h uint32, rs1P, rdP uint8, ciImm int32) (Instruction, error) {
	rd := rs1P
	shamt := int32(h >> 2 & 0x1F)

	switch h >> 10 & 3 {
	case 0b00, 0b01:
		if h>>12&1 == 1 || shamt == 0 {
			return illegalCompressed(half, "c.srli/c.srai hint or reserved")
		}
		op := OpCSRLI
		if h>>10&3 == 0b01 {
			op = OpCSRAI
		}
		return Instruction{Op: op, Rd: rd, Imm: shamt}, nil
	case 0b10:
		return Instruction{Op: OpCANDI, Rd: rd, Imm: ciImm}, nil
	}

	if h>>12&1 == 1 {
		return illegalCompressed(half, "RV64 arithmetic")
	}
	op := OpCSUB + Op(h>>5&3)
	return Instruction{Op: op, Rd: rd, Rs2: rdP}, nil
}
