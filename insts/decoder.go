// Package insts provides RISC-V RV32 instruction definitions, encoding and decoding.
package insts

import (
	"fmt"

	"github.com/adambagley/frost/verr"
)

// Decoder decodes RISC-V machine words into instructions.
type Decoder struct{}

// NewDecoder creates a new RISC-V instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a machine word. A word whose two low bits are not 0b11 is
// a 16-bit compressed instruction held in the low half; the high half is
// ignored.
func (d *Decoder) Decode(word uint32) (Instruction, error) {
	if word&0x3 != 0x3 {
		return decodeCompressed(uint16(word))
	}

	for _, enc := range encodings {
		if word&enc.mask() == enc.match() {
			inst := d.decodeFields(enc, word)
			if enc.rm || enc.format == FormatR4 {
				if err := checkRM(enc.op, inst.Rm); err != nil {
					return Instruction{}, err
				}
			}
			return inst, nil
		}
	}

	return Instruction{}, &verr.EncodingError{
		Op:     "unknown",
		Reason: fmt.Sprintf("no instruction encodes 0x%08x", word),
	}
}

func (d *Decoder) decodeFields(enc encoding, word uint32) Instruction {
	inst := Instruction{Op: enc.op}

	fRd := uint8(word >> 7 & 0x1F)
	fRs1 := uint8(word >> 15 & 0x1F)
	fRs2 := uint8(word >> 20 & 0x1F)

	switch enc.format {
	case FormatR:
		inst.Rd, inst.Rs1 = fRd, fRs1
		if enc.rs2 < 0 {
			inst.Rs2 = fRs2
		}
		if enc.rm {
			inst.Rm = uint8(word >> 12 & 0x7)
		}

	case FormatR4:
		inst.Rd, inst.Rs1, inst.Rs2 = fRd, fRs1, fRs2
		inst.Rs3 = uint8(word >> 27)
		inst.Rm = uint8(word >> 12 & 0x7)

	case FormatShift:
		inst.Rd, inst.Rs1 = fRd, fRs1
		inst.Imm = int32(fRs2)

	case FormatI:
		inst.Rd, inst.Rs1 = fRd, fRs1
		inst.Imm = int32(word) >> 20

	case FormatS:
		inst.Rs1, inst.Rs2 = fRs1, fRs2
		inst.Imm = unpackS(word)

	case FormatB:
		inst.Rs1, inst.Rs2 = fRs1, fRs2
		inst.Imm = unpackB(word)

	case FormatU:
		inst.Rd = fRd
		inst.Imm = int32(word >> 12)

	case FormatJ:
		inst.Rd = fRd
		inst.Imm = unpackJ(word)

	case FormatCSR:
		inst.Rd, inst.Rs1 = fRd, fRs1
		inst.CSR = uint16(word >> 20)

	case FormatCSRI:
		inst.Rd = fRd
		inst.Imm = int32(fRs1)
		inst.CSR = uint16(word >> 20)

	case FormatAtomic:
		inst.Rd, inst.Rs1 = fRd, fRs1
		if enc.rs2 < 0 {
			inst.Rs2 = fRs2
		}
		inst.Aq = word>>26&1 == 1
		inst.Rl = word>>25&1 == 1

	case FormatFence:
		inst.Imm = int32(word >> 20 & 0xFF)
	}

	return inst
}

func unpackS(word uint32) int32 {
	v := (word>>25)<<5 | (word >> 7 & 0x1F)
	return signExtend(v, 12)
}

func unpackB(word uint32) int32 {
	v := (word>>31)<<12 | (word>>7&1)<<11 | (word>>25&0x3F)<<5 | (word>>8&0xF)<<1
	return signExtend(v, 13)
}

func unpackJ(word uint32) int32 {
	v := (word>>31)<<20 | (word>>12&0xFF)<<12 | (word>>20&1)<<11 | (word>>21&0x3FF)<<1
	return signExtend(v, 21)
}

// signExtend interprets the low bits of v as a two's-complement value.
func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}
