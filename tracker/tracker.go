// Package tracker mirrors the timing of a fixed-depth pipeline in software.
//
// A Tracker owns the architectural state that predictions are computed
// against, the LR/SC reservation, the performance counters and the three
// expected-value queues. Two small state machines decide what the next
// issue slot holds: the flush machine replaces the wrong-path words after a
// redirect, and the alignment machine executes the high half of a word
// whose low half held a compressed instruction.
package tracker

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/adambagley/frost/hdl"
	"github.com/adambagley/frost/insts"
	"github.com/adambagley/frost/optable"
	"github.com/adambagley/frost/refmodel"
	"github.com/adambagley/frost/verr"
)

// Channel names of the expected-value queues.
const (
	ChannelRegfile  = "regfile"
	ChannelPC       = "pc"
	ChannelMemWrite = "memwrite"
)

// Defaults for a six-stage pipeline that resolves control flow in execute.
const (
	DefaultPipelineDepth = 6
	DefaultFlushCycles   = 3
	DefaultQueueDepth    = 64
)

// Mode is the state of the issue-slot state machines.
type Mode uint8

// Issue modes.
const (
	// ModeNormal issues a new instruction at a word-aligned PC.
	ModeNormal Mode = iota

	// ModeFlushing issues a no-op for a squashed wrong-path word.
	ModeFlushing

	// ModeAwaitingHighHalf executes the compressed instruction buffered in
	// the high half of the previous word.
	ModeAwaitingHighHalf
)

func (m Mode) String() string {
	switch m {
	case ModeFlushing:
		return "flushing"
	case ModeAwaitingHighHalf:
		return "awaiting-high-half"
	}
	return "normal"
}

// ErrReadOnlyCSR is returned for a write to a read-only counter.
var ErrReadOnlyCSR = errors.New("csr is read-only")

// Stats holds issue-slot statistics.
type Stats struct {
	// Slots is the number of issue slots advanced.
	Slots uint64
	// Retired is the number of instructions retired, including no-ops.
	Retired uint64
	// FlushSlots is the number of squashed wrong-path slots.
	FlushSlots uint64
	// HighHalfSlots is the number of slots that executed a buffered high
	// half.
	HighHalfSlots uint64
	// Redirects is the number of taken branches and jumps.
	Redirects uint64
	// Stalls is the number of cycles the driver waited for the hardware.
	Stalls uint64
}

// Tracker is the pipeline state tracker.
type Tracker struct {
	pipelineDepth int
	flushCycles   int
	logger        logrus.FieldLogger

	regs RegisterView
	pc   uint32
	mode Mode

	reserved    bool
	reservation uint32

	flushBase   uint32
	flushSlot   int
	flushTarget uint32

	highHalf insts.Instruction

	cycle    uint64
	instret  uint64
	retired  bool
	mscratch uint32

	regfile *Queue[hdl.RegSnapshot]
	pcs     *Queue[uint32]
	writes  *Queue[hdl.MemWrite]

	stats Stats
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithPipelineDepth sets the number of pipeline stages.
func WithPipelineDepth(n int) Option {
	return func(t *Tracker) {
		t.pipelineDepth = n
	}
}

// WithFlushCycles sets the number of wrong-path slots squashed after a
// redirect.
func WithFlushCycles(n int) Option {
	return func(t *Tracker) {
		t.flushCycles = n
	}
}

// WithQueueDepth sets the capacity of each expected-value queue.
func WithQueueDepth(n int) Option {
	return func(t *Tracker) {
		t.regfile = NewQueue[hdl.RegSnapshot](ChannelRegfile, n)
		t.pcs = NewQueue[uint32](ChannelPC, n)
		t.writes = NewQueue[hdl.MemWrite](ChannelMemWrite, n)
	}
}

// WithLogger sets the logger for state-machine transitions.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// NewTracker creates a tracker with empty queues and zeroed state.
func NewTracker(opts ...Option) *Tracker {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	t := &Tracker{
		pipelineDepth: DefaultPipelineDepth,
		flushCycles:   DefaultFlushCycles,
		logger:        discard,
	}
	WithQueueDepth(DefaultQueueDepth)(t)

	for _, opt := range opts {
		opt(t)
	}
	return t
}

// PipelineDepth returns the number of pipeline stages.
func (t *Tracker) PipelineDepth() int { return t.pipelineDepth }

// FlushCycles returns the number of slots squashed after a redirect.
func (t *Tracker) FlushCycles() int { return t.flushCycles }

// RegfileQueue returns the register file expectations.
func (t *Tracker) RegfileQueue() *Queue[hdl.RegSnapshot] { return t.regfile }

// PCQueue returns the next-PC expectations.
func (t *Tracker) PCQueue() *Queue[uint32] { return t.pcs }

// MemWriteQueue returns the memory write expectations.
func (t *Tracker) MemWriteQueue() *Queue[hdl.MemWrite] { return t.writes }

// Registers returns the register views.
func (t *Tracker) Registers() *RegisterView { return &t.regs }

// LoadRegisters sets both register views, typically to the values written
// into the hardware during setup.
func (t *Tracker) LoadRegisters(s hdl.RegSnapshot) { t.regs.Load(s) }

// Snapshot returns the current register view.
func (t *Tracker) Snapshot() hdl.RegSnapshot { return t.regs.Current() }

// ReadReg implements refmodel.State.
func (t *Tracker) ReadReg(reg uint8) uint32 { return t.regs.ReadReg(reg) }

// WriteReg implements refmodel.State.
func (t *Tracker) WriteReg(reg uint8, value uint32) { t.regs.WriteReg(reg, value) }

// ReadFReg implements refmodel.State.
func (t *Tracker) ReadFReg(reg uint8) uint32 { return t.regs.ReadFReg(reg) }

// WriteFReg implements refmodel.State.
func (t *Tracker) WriteFReg(reg uint8, value uint32) { t.regs.WriteFReg(reg, value) }

// PC returns the address of the next instruction to issue.
func (t *Tracker) PC() uint32 { return t.pc }

// SetPC sets the address of the next instruction to issue.
func (t *Tracker) SetPC(pc uint32) { t.pc = pc }

// Mode returns what the next issue slot holds.
func (t *Tracker) Mode() Mode { return t.mode }

// Cycle returns the number of slots advanced.
func (t *Tracker) Cycle() uint64 { return t.cycle }

// Instret returns the number of instructions retired before the current
// slot.
func (t *Tracker) Instret() uint64 { return t.instret }

// Stats returns the slot statistics.
func (t *Tracker) Stats() Stats { return t.stats }

// RecordStall accounts for n cycles the hardware was not ready.
func (t *Tracker) RecordStall(n int) {
	t.stats.Stalls += uint64(n)
}

// Reservation returns the reserved address, if any.
func (t *Tracker) Reservation() (uint32, bool) {
	return t.reservation, t.reserved
}

// SetReservation records an LR reservation.
func (t *Tracker) SetReservation(addr uint32) error {
	if addr&3 != 0 {
		return &verr.ReservationProtocolViolation{Addr: addr, Reason: "address not word aligned"}
	}
	t.reserved, t.reservation = true, addr
	return nil
}

// CheckAndClearReservation reports whether an SC to addr succeeds: a
// reservation exists and covers addr. The reservation is cleared whatever
// the outcome. Stores from this hart do not invalidate a reservation.
func (t *Tracker) CheckAndClearReservation(addr uint32) (bool, error) {
	ok := t.reserved && t.reservation == addr
	t.reserved, t.reservation = false, 0

	if addr&3 != 0 {
		return false, &verr.ReservationProtocolViolation{Addr: addr, Reason: "address not word aligned"}
	}
	if t.mode == ModeFlushing {
		return false, &verr.ReservationProtocolViolation{Addr: addr, Reason: "store-conditional in a flush slot"}
	}
	return ok, nil
}

// ReadCSR implements refmodel.State. Counters read their value before the
// reading instruction retires; time aliases cycle.
func (t *Tracker) ReadCSR(csr uint16) (uint32, error) {
	switch csr {
	case insts.CSRCycle, insts.CSRTime:
		return uint32(t.cycle), nil
	case insts.CSRCycleH, insts.CSRTimeH:
		return uint32(t.cycle >> 32), nil
	case insts.CSRInstret:
		return uint32(t.instret), nil
	case insts.CSRInstretH:
		return uint32(t.instret >> 32), nil
	case insts.CSRMscratch:
		return t.mscratch, nil
	}
	return 0, fmt.Errorf("read csr 0x%03x: not implemented", csr)
}

// WriteCSR implements refmodel.State. Only mscratch is writable.
func (t *Tracker) WriteCSR(csr uint16, value uint32) error {
	if csr == insts.CSRMscratch {
		t.mscratch = value
		return nil
	}
	if insts.IsReadOnlyCSR(csr) {
		return fmt.Errorf("write csr 0x%03x: %w", csr, ErrReadOnlyCSR)
	}
	return fmt.Errorf("write csr 0x%03x: not implemented", csr)
}

// EnqueueExpected appends one expectation to the register file and PC
// queues, and to the memory write queue when a write is predicted.
func (t *Tracker) EnqueueExpected(regs hdl.RegSnapshot, pc uint32, write *hdl.MemWrite) error {
	err := t.regfile.Push(regs)
	if err == nil {
		err = t.pcs.Push(pc)
	}
	if err == nil && write != nil {
		err = t.writes.Push(*write)
	}

	var mismatch *verr.MismatchError
	if errors.As(err, &mismatch) {
		mismatch.Cycle = t.cycle
	}
	return err
}

// Retire enqueues the expectation of an executed instruction and steps the
// state machines. A redirect starts a flush; a compressed instruction in
// the low half of a word that does not redirect leaves the high half
// pending, holding c.nop until PairHighHalf replaces it.
func (t *Tracker) Retire(eff refmodel.Effect) error {
	if t.mode == ModeFlushing {
		return fmt.Errorf("retire %s: %d flush slots outstanding",
			eff.Inst.Op, t.flushCycles-t.flushSlot)
	}
	if eff.PC != t.pc {
		return fmt.Errorf("retire %s: executed at 0x%08x, expected pc 0x%08x",
			eff.Inst.Op, eff.PC, t.pc)
	}

	var write *hdl.MemWrite
	if w := eff.Write; w != nil {
		write = &hdl.MemWrite{Addr: w.Addr, Data: w.Data, Mask: w.Mask}
	}
	if err := t.EnqueueExpected(t.regs.Current(), eff.NextPC, write); err != nil {
		return err
	}

	t.retired = true
	if t.mode == ModeAwaitingHighHalf {
		t.stats.HighHalfSlots++
	}

	switch {
	case eff.Redirect:
		t.beginFlush(eff)
	case eff.Size == 2 && eff.PC&3 == 0:
		t.mode = ModeAwaitingHighHalf
		t.highHalf = insts.Instruction{Op: insts.OpCNOP}
		t.pc = eff.NextPC
	default:
		t.mode = ModeNormal
		t.pc = eff.NextPC
	}
	return nil
}

func (t *Tracker) beginFlush(eff refmodel.Effect) {
	t.stats.Redirects++
	t.flushBase = eff.PC &^ 3
	t.flushSlot = 0
	t.flushTarget = eff.NextPC

	t.logger.WithFields(logrus.Fields{
		"pc":     fmt.Sprintf("0x%08x", eff.PC),
		"target": fmt.Sprintf("0x%08x", eff.NextPC),
		"op":     eff.Inst.Op.String(),
	}).Debug("redirect")

	if t.flushCycles == 0 {
		t.mode = ModeNormal
		t.pc = t.flushTarget
		return
	}
	t.mode = ModeFlushing
}

// PairHighHalf replaces the pending high half with a compressed ALU
// instruction.
func (t *Tracker) PairHighHalf(inst insts.Instruction) error {
	if t.mode != ModeAwaitingHighHalf {
		return fmt.Errorf("pair %s: no high half pending", inst.Op)
	}
	if optable.ClassOf(inst.Op) != optable.ClassCompressedALU {
		return fmt.Errorf("pair %s: high half must be a compressed ALU instruction", inst.Op)
	}
	t.highHalf = inst
	return nil
}

// HighHalf returns the pending high-half instruction.
func (t *Tracker) HighHalf() (insts.Instruction, bool) {
	return t.highHalf, t.mode == ModeAwaitingHighHalf
}

// FlushSlot enqueues the expectation of one squashed wrong-path slot: the
// sequential PC of the word and no register change. After the last slot
// the PC moves to the redirect target.
func (t *Tracker) FlushSlot() error {
	if t.mode != ModeFlushing {
		return errors.New("flush slot outside a flush")
	}

	pc := t.flushBase + 4*uint32(t.flushSlot) + 4
	if err := t.EnqueueExpected(t.regs.Current(), pc, nil); err != nil {
		return err
	}

	t.retired = false
	t.flushSlot++
	t.stats.FlushSlots++

	if t.flushSlot == t.flushCycles {
		t.mode = ModeNormal
		t.pc = t.flushTarget
	}
	return nil
}

// Advance ends the current slot: the current register view becomes the
// previous view and the counters step.
func (t *Tracker) Advance() {
	t.regs.Advance()
	t.cycle++
	t.stats.Slots++
	if t.retired {
		t.instret++
		t.stats.Retired++
	}
	t.retired = false
}

// Pending returns the number of expectations not yet consumed.
func (t *Tracker) Pending() int {
	return t.regfile.Len() + t.pcs.Len() + t.writes.Len()
}
