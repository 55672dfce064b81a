package simdut

import (
	"github.com/adambagley/frost/hdl"
	"github.com/adambagley/frost/insts"
)

// Slot is one stage of the retire shift register. A slot enters at issue
// and its outputs become visible when it leaves the last stage.
type Slot struct {
	// Valid indicates if this stage holds a retiring instruction or a
	// squashed wrong-path word.
	Valid bool

	// PC is the address the slot was issued at.
	PC uint32

	// Word is the sampled instruction word.
	Word uint32

	// Inst is the decoded instruction. It is zero for flush slots.
	Inst insts.Instruction

	// Flush marks a squashed wrong-path slot.
	Flush bool

	// Regs is the architectural register state after the slot.
	Regs hdl.RegSnapshot

	// NextPC is the program counter that follows the slot.
	NextPC uint32

	// HasWrite is set when the slot performed a data memory write.
	HasWrite bool
	Write    hdl.MemWrite
}

// Clear resets the slot to a bubble.
func (s *Slot) Clear() {
	*s = Slot{}
}
