// Package insts provides RISC-V RV32 instruction definitions, encoding and decoding.
package insts

import "github.com/adambagley/frost/verr"

func fieldError(op Op, field string, value int64, reason string) error {
	return &verr.EncodingError{Op: op.String(), Field: field, Value: value, Reason: reason}
}

// CheckRegister verifies that reg names one of the 32 architectural registers.
func CheckRegister(op Op, field string, reg uint8) error {
	if reg > 31 {
		return fieldError(op, field, int64(reg), "out of range 0..31")
	}
	return nil
}

// CheckCompressedRegister verifies that reg is addressable through a 3-bit
// compressed register field (x8..x15).
func CheckCompressedRegister(op Op, field string, reg uint8) error {
	if reg < 8 || reg > 15 {
		return fieldError(op, field, int64(reg), "out of range x8..x15")
	}
	return nil
}

// CheckImmediate12 verifies a signed 12-bit immediate.
func CheckImmediate12(op Op, imm int32) error {
	return checkRange(op, "imm", imm, -2048, 2047, 1)
}

// CheckImmediate20 verifies an unsigned 20-bit upper immediate.
func CheckImmediate20(op Op, imm int32) error {
	return checkRange(op, "imm", imm, 0, 0xFFFFF, 1)
}

// CheckBranchOffset verifies a B-type offset: even, within ±4 KiB.
func CheckBranchOffset(op Op, offset int32) error {
	return checkRange(op, "offset", offset, -4096, 4094, 2)
}

// CheckJumpOffset verifies a J-type offset: even, within ±1 MiB.
func CheckJumpOffset(op Op, offset int32) error {
	return checkRange(op, "offset", offset, -1<<20, 1<<20-2, 2)
}

func checkRange(op Op, field string, v, lo, hi, multiple int32) error {
	if v < lo || v > hi {
		return fieldError(op, field, int64(v), "out of range")
	}
	if multiple > 1 && v%multiple != 0 {
		return fieldError(op, field, int64(v), "misaligned")
	}
	return nil
}

func checkRM(op Op, rm uint8) error {
	switch rm {
	case RmRNE, RmRTZ, RmRDN, RmRUP, RmRMM, RmDyn:
		return nil
	}
	return fieldError(op, "rm", int64(rm), "reserved rounding mode")
}

func checkRegs(op Op, regs ...uint8) error {
	names := [...]string{"rd", "rs1", "rs2", "rs3"}
	for i, r := range regs {
		if err := CheckRegister(op, names[i], r); err != nil {
			return err
		}
	}
	return nil
}
