// Package refmodel predicts the architectural effect of one instruction.
//
// An Executor evaluates an instruction against a State through the
// operation tables and the execution models, and reports what the hardware
// must produce: the register writeback, the next program counter and any
// data memory write.
package refmodel

import (
	"errors"
	"fmt"

	"github.com/adambagley/frost/emu"
	"github.com/adambagley/frost/insts"
	"github.com/adambagley/frost/optable"
)

var (
	// ErrTrap is returned for trap instructions, which are encode-only.
	ErrTrap = errors.New("trap instructions are not modeled")

	// ErrRoundingMode is returned for a static rounding mode other than
	// round-to-nearest-even.
	ErrRoundingMode = errors.New("unsupported rounding mode")
)

// State is the architectural state an instruction executes against.
// Register reads observe the state before the instruction; writes become
// visible to the next one.
type State interface {
	ReadReg(reg uint8) uint32
	WriteReg(reg uint8, value uint32)
	ReadFReg(reg uint8) uint32
	WriteFReg(reg uint8, value uint32)

	// SetReservation records an LR reservation on a word-aligned address.
	SetReservation(addr uint32) error

	// CheckAndClearReservation reports whether addr holds the reservation
	// and clears it regardless of the outcome.
	CheckAndClearReservation(addr uint32) (bool, error)

	ReadCSR(csr uint16) (uint32, error)
	WriteCSR(csr uint16, value uint32) error
}

// Writeback is a register file update.
type Writeback struct {
	// FP selects the floating-point register file.
	FP    bool
	Reg   uint8
	Value uint32
}

// Effect is everything an instruction changes.
type Effect struct {
	// Inst is the instruction as issued; Base is its expansion.
	Inst insts.Instruction
	Base insts.Instruction

	PC     uint32
	Size   uint32
	NextPC uint32

	// Redirect is set when control leaves the fall-through path: every
	// jump and every taken branch.
	Redirect bool

	// Taken is the outcome of a conditional branch.
	Taken bool

	// Writeback is the register update, if any. Writes to x0 are dropped.
	Writeback *Writeback

	// Access is set when the instruction touches data memory at Addr.
	Access bool
	Addr   uint32

	// Write is the data memory write, if any.
	Write *emu.BusWrite
}

// FallThrough returns the address of the next sequential instruction.
func (e Effect) FallThrough() uint32 {
	return e.PC + e.Size
}

// Executor evaluates instructions against a golden data memory.
type Executor struct {
	lsu *emu.LoadStoreUnit
}

// NewExecutor creates an Executor that loads from and stores to memory.
func NewExecutor(memory *emu.Memory) *Executor {
	return &Executor{lsu: emu.NewLoadStoreUnit(memory)}
}

// Memory returns the golden data memory.
func (e *Executor) Memory() *emu.Memory {
	return e.lsu.Memory()
}

// Execute runs inst at pc against st and returns its effect.
func (e *Executor) Execute(st State, inst insts.Instruction, pc uint32) (Effect, error) {
	if _, ok := optable.Lookup(inst.Op); !ok {
		return Effect{}, fmt.Errorf("execute %s: unknown op", inst.Op)
	}

	base := insts.Expand(inst)
	entry := optable.MustLookup(base.Op)
	eff := Effect{
		Inst: inst,
		Base: base,
		PC:   pc,
		Size: inst.Op.Size(),
	}
	eff.NextPC = eff.FallThrough()

	if entry.Rounded && base.Rm != insts.RmRNE && base.Rm != insts.RmDyn {
		return eff, fmt.Errorf("execute %s rm=%d: %w", inst.Op, base.Rm, ErrRoundingMode)
	}

	x1 := st.ReadReg(base.Rs1)
	x2 := st.ReadReg(base.Rs2)
	imm := uint32(base.Imm)

	var err error
	switch class := entry.Class; class {
	case optable.ClassALU:
		eff.writeX(base.Rd, entry.ALU(x1, x2))

	case optable.ClassALUImm:
		eff.writeX(base.Rd, entry.ALU(x1, imm))

	case optable.ClassUnary:
		eff.writeX(base.Rd, entry.Unary(x1))

	case optable.ClassUpper:
		if entry.ALU != nil {
			eff.writeX(base.Rd, entry.ALU(pc, imm))
		} else {
			eff.writeX(base.Rd, entry.Unary(imm))
		}

	case optable.ClassLoad, optable.ClassFPLoad:
		err = e.load(&eff, entry, x1+imm, class == optable.ClassFPLoad)

	case optable.ClassStore:
		err = e.store(&eff, entry, x1+imm, x2)

	case optable.ClassFPStore:
		err = e.store(&eff, entry, x1+imm, st.ReadFReg(base.Rs2))

	case optable.ClassBranch:
		eff.Taken = entry.Branch(x1, x2)
		if eff.Taken {
			eff.Redirect = true
			eff.NextPC = emu.BranchTarget(pc, base.Imm)
		}

	case optable.ClassJump:
		eff.Redirect = true
		if base.Op == insts.OpJAL {
			eff.NextPC = emu.BranchTarget(pc, base.Imm)
		} else {
			eff.NextPC = emu.JumpRegisterTarget(x1, base.Imm)
		}
		eff.writeX(base.Rd, eff.FallThrough())

	case optable.ClassFence:

	case optable.ClassCSR:
		err = e.csr(st, &eff, base, x1)

	case optable.ClassTrap:
		err = fmt.Errorf("execute %s: %w", inst.Op, ErrTrap)

	case optable.ClassLR:
		addr := emu.AtomicAddress(x1)
		eff.Access, eff.Addr = true, addr
		if err = st.SetReservation(addr); err == nil {
			eff.writeX(base.Rd, e.lsu.Memory().Read32(addr))
		}

	case optable.ClassSC:
		addr := emu.AtomicAddress(x1)
		eff.Access, eff.Addr = true, addr
		var ok bool
		if ok, err = st.CheckAndClearReservation(addr); err != nil {
			break
		}
		if !ok {
			eff.writeX(base.Rd, 1)
			break
		}
		var w emu.BusWrite
		if w, err = e.lsu.Store(base.Op.String(), addr, x2, emu.Word); err != nil {
			break
		}
		eff.Write = &w
		eff.writeX(base.Rd, 0)

	case optable.ClassAMO:
		addr := emu.AtomicAddress(x1)
		eff.Access, eff.Addr = true, addr
		var old uint32
		if old, err = e.lsu.Load(base.Op.String(), addr, emu.Word, false); err != nil {
			break
		}
		var w emu.BusWrite
		if w, err = e.lsu.Store(base.Op.String(), addr, entry.AMO(old, x2), emu.Word); err != nil {
			break
		}
		eff.Write = &w
		eff.writeX(base.Rd, old)

	case optable.ClassFPArith:
		eff.writeF(base.Rd, entry.FP2(st.ReadFReg(base.Rs1), st.ReadFReg(base.Rs2)))

	case optable.ClassFPFused:
		eff.writeF(base.Rd, entry.FP3(st.ReadFReg(base.Rs1), st.ReadFReg(base.Rs2),
			st.ReadFReg(base.Rs3)))

	case optable.ClassFPUnary:
		eff.writeF(base.Rd, entry.FP1(st.ReadFReg(base.Rs1)))

	case optable.ClassFPCompare:
		eff.writeX(base.Rd, entry.FP2(st.ReadFReg(base.Rs1), st.ReadFReg(base.Rs2)))

	case optable.ClassFPToInt:
		eff.writeX(base.Rd, entry.FP1(st.ReadFReg(base.Rs1)))

	case optable.ClassIntToFP:
		eff.writeF(base.Rd, entry.FP1(x1))

	default:
		err = fmt.Errorf("execute %s: no model for class %s", inst.Op, class)
	}
	if err != nil {
		return eff, err
	}

	if wb := eff.Writeback; wb != nil {
		if wb.FP {
			st.WriteFReg(wb.Reg, wb.Value)
		} else {
			st.WriteReg(wb.Reg, wb.Value)
		}
	}

	return eff, nil
}

func (e *Executor) load(eff *Effect, entry optable.Entry, addr uint32, fp bool) error {
	eff.Access, eff.Addr = true, addr
	v, err := e.lsu.Load(eff.Base.Op.String(), addr, entry.Width, entry.Signed)
	if err != nil {
		return err
	}
	if fp {
		eff.writeF(eff.Base.Rd, v)
	} else {
		eff.writeX(eff.Base.Rd, v)
	}
	return nil
}

func (e *Executor) store(eff *Effect, entry optable.Entry, addr, value uint32) error {
	eff.Access, eff.Addr = true, addr
	w, err := e.lsu.Store(eff.Base.Op.String(), addr, value, entry.Width)
	if err != nil {
		return err
	}
	eff.Write = &w
	return nil
}

// csr implements the Zicsr read-modify-write. The set and clear forms do
// not write when their source is x0 or a zero immediate.
func (e *Executor) csr(st State, eff *Effect, inst insts.Instruction, x1 uint32) error {
	old, err := st.ReadCSR(inst.CSR)
	if err != nil {
		return err
	}

	src, zero := x1, inst.Rs1 == 0
	switch inst.Op {
	case insts.OpCSRRWI, insts.OpCSRRSI, insts.OpCSRRCI:
		src, zero = uint32(inst.Imm), inst.Imm == 0
	}

	var (
		next  uint32
		write = true
	)
	switch inst.Op {
	case insts.OpCSRRW, insts.OpCSRRWI:
		next = src
	case insts.OpCSRRS, insts.OpCSRRSI:
		next, write = old|src, !zero
	default:
		next, write = old&^src, !zero
	}

	if write {
		if err := st.WriteCSR(inst.CSR, next); err != nil {
			return err
		}
	}
	eff.writeX(inst.Rd, old)
	return nil
}

func (e *Effect) writeX(rd uint8, v uint32) {
	if rd == 0 {
		return
	}
	e.Writeback = &Writeback{Reg: rd, Value: v}
}

func (e *Effect) writeF(rd uint8, v uint32) {
	e.Writeback = &Writeback{FP: true, Reg: rd, Value: v}
}
