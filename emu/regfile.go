// Package emu provides bit-exact RV32 execution models: the integer ALU,
// bit-manipulation, branch decisions, memory, loads and stores, atomics and
// the single-precision floating-point unit.
package emu

// RegFile represents the RV32 architectural register state.
// It contains the 32 integer registers (x0-x31) and the 32 single-precision
// floating-point registers (f0-f31) held as raw IEEE-754 bit patterns.
type RegFile struct {
	// X holds the integer registers. X[0] always reads as 0.
	X [32]uint32

	// F holds the floating-point registers.
	F [32]uint32
}

// ReadReg reads an integer register. Register 0 and out-of-range indices
// return 0.
func (r *RegFile) ReadReg(reg uint8) uint32 {
	if reg == 0 || reg >= 32 {
		return 0
	}
	return r.X[reg]
}

// WriteReg writes an integer register. Writes to x0 are ignored.
func (r *RegFile) WriteReg(reg uint8, value uint32) {
	if reg == 0 || reg >= 32 {
		return
	}
	r.X[reg] = value
}

// ReadFReg reads a floating-point register.
func (r *RegFile) ReadFReg(reg uint8) uint32 {
	if reg >= 32 {
		return 0
	}
	return r.F[reg]
}

// WriteFReg writes a floating-point register.
func (r *RegFile) WriteFReg(reg uint8, value uint32) {
	if reg >= 32 {
		return
	}
	r.F[reg] = value
}
