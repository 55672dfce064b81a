package simdut

import (
	"errors"
	"fmt"

	"github.com/adambagley/frost/emu"
	"github.com/adambagley/frost/hdl"
	"github.com/adambagley/frost/insts"
)

var errReadOnly = errors.New("csr is read-only")

// hart is the device's architectural state.
type hart struct {
	regs emu.RegFile
	pc   uint32

	reserved    bool
	reservation uint32

	mscratch uint32
	cycle    uint64
	instret  uint64
}

func (h *hart) reset() {
	h.pc = 0
	h.reserved, h.reservation = false, 0
	h.mscratch = 0
	h.cycle, h.instret = 0, 0
}

func (h *hart) snapshot() hdl.RegSnapshot {
	return hdl.RegSnapshot{X: h.regs.X, F: h.regs.F}
}

func (h *hart) ReadReg(reg uint8) uint32          { return h.regs.ReadReg(reg) }
func (h *hart) WriteReg(reg uint8, value uint32)  { h.regs.WriteReg(reg, value) }
func (h *hart) ReadFReg(reg uint8) uint32         { return h.regs.ReadFReg(reg) }
func (h *hart) WriteFReg(reg uint8, value uint32) { h.regs.WriteFReg(reg, value) }

func (h *hart) SetReservation(addr uint32) error {
	h.reserved, h.reservation = true, addr
	return nil
}

func (h *hart) CheckAndClearReservation(addr uint32) (bool, error) {
	ok := h.reserved && h.reservation == addr
	h.reserved, h.reservation = false, 0
	return ok, nil
}

func (h *hart) ReadCSR(csr uint16) (uint32, error) {
	switch csr {
	case insts.CSRCycle, insts.CSRTime:
		return uint32(h.cycle), nil
	case insts.CSRCycleH, insts.CSRTimeH:
		return uint32(h.cycle >> 32), nil
	case insts.CSRInstret:
		return uint32(h.instret), nil
	case insts.CSRInstretH:
		return uint32(h.instret >> 32), nil
	case insts.CSRMscratch:
		return h.mscratch, nil
	}
	return 0, fmt.Errorf("csr 0x%03x not implemented", csr)
}

func (h *hart) WriteCSR(csr uint16, value uint32) error {
	switch {
	case csr == insts.CSRMscratch:
		h.mscratch = value
		return nil
	case insts.IsReadOnlyCSR(csr):
		return fmt.Errorf("write csr 0x%03x: %w", csr, errReadOnly)
	}
	return fmt.Errorf("csr 0x%03x not implemented", csr)
}
