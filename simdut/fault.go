package simdut

import "fmt"

// FaultKind selects which output a fault corrupts.
type FaultKind uint8

// Fault kinds.
const (
	// FaultRegfile flips bits of an integer register written by the
	// instruction. The corruption stays in the architectural state.
	FaultRegfile FaultKind = iota
	// FaultPC flips bits of the reported next PC.
	FaultPC
	// FaultMemWrite flips bits of the data of a memory write.
	FaultMemWrite
	// FaultDrop suppresses every output of the instruction.
	FaultDrop
)

func (k FaultKind) String() string {
	switch k {
	case FaultRegfile:
		return "regfile"
	case FaultPC:
		return "pc"
	case FaultMemWrite:
		return "memwrite"
	case FaultDrop:
		return "drop"
	}
	return fmt.Sprintf("fault(%d)", uint8(k))
}

// Fault is one injected hardware bug. It fires on the At-th executed
// instruction, counting from zero after reset, or on the first later one
// it applies to: an integer write to a nonzero register for FaultRegfile,
// a memory write for FaultMemWrite.
type Fault struct {
	Kind FaultKind
	At   uint64
	Mask uint32
}

type armedFault struct {
	Fault
	fired bool
}
