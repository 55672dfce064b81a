package tracker

import (
	"github.com/adambagley/frost/emu"
	"github.com/adambagley/frost/hdl"
)

// RegisterView holds the previous and current views of the register files.
// The instruction being issued reads the previous view; its writeback lands
// in the current view, and Advance publishes it.
type RegisterView struct {
	prev emu.RegFile
	cur  emu.RegFile
}

// ReadReg reads integer register reg from the previous view.
func (v *RegisterView) ReadReg(reg uint8) uint32 { return v.prev.ReadReg(reg) }

// WriteReg writes integer register reg in the current view.
func (v *RegisterView) WriteReg(reg uint8, value uint32) { v.cur.WriteReg(reg, value) }

// ReadFReg reads floating-point register reg from the previous view.
func (v *RegisterView) ReadFReg(reg uint8) uint32 { return v.prev.ReadFReg(reg) }

// WriteFReg writes floating-point register reg in the current view.
func (v *RegisterView) WriteFReg(reg uint8, value uint32) { v.cur.WriteFReg(reg, value) }

// Current returns a copy of the current view.
func (v *RegisterView) Current() hdl.RegSnapshot {
	return hdl.RegSnapshot{X: v.cur.X, F: v.cur.F}
}

// Previous returns a copy of the previous view.
func (v *RegisterView) Previous() hdl.RegSnapshot {
	return hdl.RegSnapshot{X: v.prev.X, F: v.prev.F}
}

// Advance copies the current view to the previous view.
func (v *RegisterView) Advance() {
	v.prev = v.cur
}

// Load sets both views. x[0] is forced to zero.
func (v *RegisterView) Load(s hdl.RegSnapshot) {
	s.X[0] = 0
	v.cur = emu.RegFile{X: s.X, F: s.F}
	v.prev = v.cur
}
