// Package emu provides bit-exact RV32 execution models.
package emu

import "github.com/adambagley/frost/verr"

// Width is a memory access size in bytes.
type Width uint8

// Access widths.
const (
	Byte Width = 1
	Half Width = 2
	Word Width = 4
)

// BusWrite is a store as it appears on the data bus: a word-aligned
// address, lane-positioned data and a byte-enable mask.
type BusWrite struct {
	Addr uint32
	Data uint32
	Mask uint8
}

// LoadStoreUnit implements RV32 loads and stores against a Memory.
type LoadStoreUnit struct {
	memory *Memory
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// memory.
func NewLoadStoreUnit(memory *Memory) *LoadStoreUnit {
	return &LoadStoreUnit{memory: memory}
}

// Memory returns the memory the unit accesses.
func (lsu *LoadStoreUnit) Memory() *Memory {
	return lsu.memory
}

// EffectiveAddress returns base + offset.
func EffectiveAddress(base uint32, offset int32) uint32 {
	return base + uint32(offset)
}

func checkAlignment(op string, addr uint32, width Width) error {
	if addr%uint32(width) != 0 {
		return &verr.AlignmentError{Op: op, Addr: addr, Alignment: uint32(width)}
	}
	return nil
}

// Load reads width bytes at addr and extends them to 32 bits. Half-word
// and word accesses must be naturally aligned.
func (lsu *LoadStoreUnit) Load(op string, addr uint32, width Width, signed bool) (uint32, error) {
	if err := checkAlignment(op, addr, width); err != nil {
		return 0, err
	}

	switch width {
	case Byte:
		v := lsu.memory.Read8(addr)
		if signed {
			return uint32(int32(int8(v))), nil
		}
		return uint32(v), nil
	case Half:
		v := lsu.memory.Read16(addr)
		if signed {
			return uint32(int32(int16(v))), nil
		}
		return uint32(v), nil
	default:
		return lsu.memory.Read32(addr), nil
	}
}

// Store writes the low width bytes of value at addr and returns the
// corresponding bus write.
func (lsu *LoadStoreUnit) Store(op string, addr, value uint32, width Width) (BusWrite, error) {
	if err := checkAlignment(op, addr, width); err != nil {
		return BusWrite{}, err
	}

	w := LaneWrite(addr, value, width)
	lsu.memory.WriteMasked(w.Addr, w.Data, w.Mask)
	return w, nil
}

// LaneWrite positions value on the byte lanes addressed by a store of
// width bytes to addr.
func LaneWrite(addr, value uint32, width Width) BusWrite {
	off := addr & 3
	var data uint32
	switch width {
	case Byte:
		data = (value & 0xFF) << (8 * off)
	case Half:
		data = (value & 0xFFFF) << (8 * (off &^ 1))
	default:
		data = value
	}
	return BusWrite{Addr: addr &^ 3, Data: data, Mask: StoreMask(width, addr)}
}
