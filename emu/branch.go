// Package emu provides bit-exact RV32 execution models.
package emu

import (
	"fmt"

	"github.com/adambagley/frost/insts"
)

// Beq reports a == b.
func Beq(a, b uint32) bool { return a == b }

// Bne reports a != b.
func Bne(a, b uint32) bool { return a != b }

// Blt reports a < b as signed integers.
func Blt(a, b uint32) bool { return int32(a) < int32(b) }

// Bge reports a >= b as signed integers.
func Bge(a, b uint32) bool { return int32(a) >= int32(b) }

// Bltu reports a < b as unsigned integers.
func Bltu(a, b uint32) bool { return a < b }

// Bgeu reports a >= b as unsigned integers.
func Bgeu(a, b uint32) bool { return a >= b }

// BranchTaken evaluates the condition of a conditional branch. The
// compressed c.beqz and c.bnez compare a against zero.
func BranchTaken(op insts.Op, a, b uint32) (bool, error) {
	switch op {
	case insts.OpBEQ:
		return Beq(a, b), nil
	case insts.OpBNE:
		return Bne(a, b), nil
	case insts.OpBLT:
		return Blt(a, b), nil
	case insts.OpBGE:
		return Bge(a, b), nil
	case insts.OpBLTU:
		return Bltu(a, b), nil
	case insts.OpBGEU:
		return Bgeu(a, b), nil
	case insts.OpCBEQZ:
		return a == 0, nil
	case insts.OpCBNEZ:
		return a != 0, nil
	}
	return false, fmt.Errorf("%s is not a conditional branch", op)
}

// BranchTarget returns pc + offset.
func BranchTarget(pc uint32, offset int32) uint32 {
	return pc + uint32(offset)
}

// JumpRegisterTarget returns (base + offset) with bit 0 cleared, as jalr
// defines.
func JumpRegisterTarget(base uint32, offset int32) uint32 {
	return (base + uint32(offset)) &^ 1
}
