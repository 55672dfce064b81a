// Package simdut is a behavioral model of the pipelined core under
// verification, clocked through the hdl signal interface.
//
// The device executes each instruction when it is sampled and delays the
// results through a shift register as deep as the pipeline, so outputs
// appear a fixed number of cycles after issue. It keeps its own
// architectural state, data memory, flush sequencing after redirects and
// compressed-pair sequencing, independent of any checker. Long-latency
// instructions hold issue and drop Ready. Faults can be injected to
// exercise the checker.
package simdut

import (
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/sirupsen/logrus"

	"github.com/adambagley/frost/emu"
	"github.com/adambagley/frost/hdl"
	"github.com/adambagley/frost/insts"
	"github.com/adambagley/frost/refmodel"
)

// Defaults.
const (
	DefaultPipelineDepth = 6
	DefaultFlushCycles   = 3
	DefaultMemoryWords   = 1024
)

// Statistics holds device performance statistics.
type Statistics struct {
	// Cycles is the number of rising edges out of reset.
	Cycles uint64
	// Instructions is the number of instructions executed.
	Instructions uint64
	// Stalls is the number of cycles issue was held by a long-latency
	// instruction.
	Stalls uint64
	// Flushes is the number of squashed wrong-path slots.
	Flushes uint64
	// Redirects is the number of taken branches and jumps.
	Redirects uint64
	// HighHalves is the number of buffered high-half instructions executed.
	HighHalves uint64
	// Bubbles is the number of cycles with no instruction driven.
	Bubbles uint64
	// Faults is the number of injected faults that fired.
	Faults uint64
}

// CPI returns the cycles per instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

type mode uint8

const (
	modeNormal mode = iota
	modeFlushing
	modeAwaitingHighHalf
)

// Option configures a Device.
type Option func(*Device)

// WithPipelineDepth sets the number of cycles between issue and outputs.
func WithPipelineDepth(n int) Option {
	return func(d *Device) {
		d.depth = n
	}
}

// WithFlushCycles sets the number of wrong-path slots squashed after a
// redirect.
func WithFlushCycles(n int) Option {
	return func(d *Device) {
		d.flushCycles = n
	}
}

// WithLatencies sets the issue latencies.
func WithLatencies(l Latencies) Option {
	return func(d *Device) {
		d.latency = NewLatencyTable(l)
	}
}

// WithMemoryWords sets the size of the initialized data memory.
func WithMemoryWords(n int) Option {
	return func(d *Device) {
		d.memoryWords = n
	}
}

// WithSeed sets the seed of the initial memory contents.
func WithSeed(seed uint64) Option {
	return func(d *Device) {
		d.seed = seed
	}
}

// WithFaults injects faults.
func WithFaults(faults ...Fault) Option {
	return func(d *Device) {
		for _, f := range faults {
			d.faults = append(d.faults, &armedFault{Fault: f})
		}
	}
}

// WithLogger sets the logger for device events.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(d *Device) {
		d.logger = logger
	}
}

// Device is the behavioral core. It implements hdl.Model and
// hdl.MemorySnapshot.
type Device struct {
	depth       int
	flushCycles int
	memoryWords int
	seed        uint64
	latency     *LatencyTable
	logger      logrus.FieldLogger

	decoder  *insts.Decoder
	executor *refmodel.Executor
	memory   *emu.Memory
	hart     hart

	driven      uint32
	drivenValid bool
	reset       bool

	mode        mode
	flushBase   uint32
	flushSlot   int
	flushTarget uint32
	highHalf    uint32
	busy        uint64

	pipe []Slot
	out  Slot

	faults   []*armedFault
	executed uint64
	err      error

	stats Statistics
}

// New creates a device with seeded data memory. It starts out of reset
// with an empty pipeline.
func New(opts ...Option) *Device {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	d := &Device{
		depth:       DefaultPipelineDepth,
		flushCycles: DefaultFlushCycles,
		memoryWords: DefaultMemoryWords,
		latency:     NewLatencyTable(DefaultLatencies()),
		logger:      discard,
		decoder:     insts.NewDecoder(),
		memory:      emu.NewMemory(),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.executor = refmodel.NewExecutor(d.memory)
	d.pipe = make([]Slot, max(d.depth, 1))

	rng := rand.New(rand.NewPCG(d.seed, d.seed>>1|1))
	for i := range d.memoryWords {
		d.memory.Write32(uint32(i)*4, rng.Uint32())
	}
	return d
}

// Memory returns the device data memory.
func (d *Device) Memory() *emu.Memory { return d.memory }

// Stats returns the device statistics.
func (d *Device) Stats() Statistics { return d.stats }

// Err returns the first decode or execution failure, if any.
func (d *Device) Err() error { return d.err }

// MemoryWords implements hdl.MemorySnapshot.
func (d *Device) MemoryWords() int { return d.memoryWords }

// ReadMemoryWord implements hdl.MemorySnapshot.
func (d *Device) ReadMemoryWord(i int) uint32 { return d.memory.Read32(uint32(i) * 4) }

// DriveInstruction implements hdl.Signals.
func (d *Device) DriveInstruction(word uint32) { d.driven, d.drivenValid = word, true }

// DriveIdle implements hdl.Signals.
func (d *Device) DriveIdle() { d.drivenValid = false }

// Ready implements hdl.Signals.
func (d *Device) Ready() bool { return !d.reset && d.busy == 0 }

// RegfileValid implements hdl.Signals.
func (d *Device) RegfileValid() bool { return d.out.Valid }

// Regfile implements hdl.Signals.
func (d *Device) Regfile() hdl.RegSnapshot { return d.out.Regs }

// PCValid implements hdl.Signals.
func (d *Device) PCValid() bool { return d.out.Valid }

// PC implements hdl.Signals.
func (d *Device) PC() uint32 { return d.out.NextPC }

// MemWrite implements hdl.Signals.
func (d *Device) MemWrite() (hdl.MemWrite, bool) {
	return d.out.Write, d.out.Valid && d.out.HasWrite
}

// SetReset implements hdl.Signals.
func (d *Device) SetReset(asserted bool) { d.reset = asserted }

// InReset implements hdl.Signals.
func (d *Device) InReset() bool { return d.reset }

// ReadRegister implements hdl.Signals.
func (d *Device) ReadRegister(name string) (uint32, error) {
	fp, idx, err := insts.ParseRegister(name)
	if err != nil {
		return 0, err
	}
	if fp {
		return d.hart.regs.ReadFReg(idx), nil
	}
	return d.hart.regs.ReadReg(idx), nil
}

// WriteRegister implements hdl.Signals. Writes to x0 are ignored.
func (d *Device) WriteRegister(name string, value uint32) error {
	fp, idx, err := insts.ParseRegister(name)
	if err != nil {
		return err
	}
	if fp {
		d.hart.regs.WriteFReg(idx, value)
	} else {
		d.hart.regs.WriteReg(idx, value)
	}
	return nil
}

// Tick implements hdl.Model. The device samples and retires on rising
// edges only.
func (d *Device) Tick(edge hdl.Edge) {
	if edge != hdl.Rising {
		return
	}

	if d.reset {
		d.resetState()
		return
	}

	d.stats.Cycles++
	d.hart.cycle++

	if d.busy > 0 {
		d.busy--
		d.stats.Stalls++
		d.out.Clear()
		return
	}

	in := d.issue()
	last := len(d.pipe) - 1
	d.out = d.pipe[last]
	copy(d.pipe[1:], d.pipe[:last])
	d.pipe[0] = in
}

// resetState clears the pipeline and control state. The register file and
// memory keep their contents.
func (d *Device) resetState() {
	for i := range d.pipe {
		d.pipe[i].Clear()
	}
	d.out.Clear()
	d.drivenValid = false
	d.mode = modeNormal
	d.busy = 0
	d.executed = 0
	d.hart.reset()
	for _, f := range d.faults {
		f.fired = false
	}
}

// issue samples the driven word into a new slot.
func (d *Device) issue() Slot {
	if !d.drivenValid {
		d.stats.Bubbles++
		return Slot{}
	}
	word := d.driven
	d.drivenValid = false

	switch d.mode {
	case modeFlushing:
		return d.flush(word)
	case modeAwaitingHighHalf:
		d.stats.HighHalves++
		return d.execute(d.highHalf)
	}
	return d.execute(word)
}

// flush produces one squashed slot: the sequential PC of the word holding
// the redirecting instruction and no architectural change.
func (d *Device) flush(word uint32) Slot {
	pc := d.flushBase + 4*uint32(d.flushSlot) + 4
	d.flushSlot++
	d.stats.Flushes++

	if d.flushSlot >= d.flushCycles {
		d.mode = modeNormal
		d.hart.pc = d.flushTarget
	}

	return Slot{
		Valid:  true,
		PC:     pc - 4,
		Word:   word,
		Flush:  true,
		Regs:   d.hart.snapshot(),
		NextPC: pc,
	}
}

func (d *Device) execute(word uint32) Slot {
	pc := d.hart.pc
	slot := Slot{Valid: true, PC: pc, Word: word}

	inst, err := d.decoder.Decode(word)
	if err != nil {
		return d.fail(slot, fmt.Errorf("decode 0x%08x at 0x%08x: %w", word, pc, err))
	}
	slot.Inst = inst

	eff, err := d.executor.Execute(&d.hart, inst, pc)
	if err != nil {
		return d.fail(slot, fmt.Errorf("execute at 0x%08x: %w", pc, err))
	}

	index := d.executed
	d.executed++
	d.hart.instret++
	d.stats.Instructions++
	if n := d.latency.Latency(inst); n > 1 {
		d.busy = n - 1
	}

	if wb := eff.Writeback; wb != nil && !wb.FP && wb.Reg != 0 {
		if f := d.armed(FaultRegfile, index); f != nil {
			d.hart.regs.WriteReg(wb.Reg, wb.Value^f.Mask)
			d.fire(f, pc)
		}
	}

	slot.Regs = d.hart.snapshot()
	slot.NextPC = eff.NextPC
	if w := eff.Write; w != nil {
		slot.HasWrite = true
		slot.Write = hdl.MemWrite{Addr: w.Addr, Data: w.Data, Mask: w.Mask}
		if f := d.armed(FaultMemWrite, index); f != nil {
			slot.Write.Data ^= f.Mask
			d.fire(f, pc)
		}
	}
	if f := d.armed(FaultPC, index); f != nil {
		slot.NextPC ^= f.Mask
		d.fire(f, pc)
	}
	if f := d.armed(FaultDrop, index); f != nil {
		slot.Valid = false
		d.fire(f, pc)
	}

	switch {
	case eff.Redirect:
		d.stats.Redirects++
		d.flushBase = pc &^ 3
		d.flushSlot = 0
		d.flushTarget = eff.NextPC
		if d.flushCycles == 0 {
			d.mode = modeNormal
			d.hart.pc = eff.NextPC
		} else {
			d.mode = modeFlushing
		}
	case eff.Size == 2 && pc&3 == 0:
		d.mode = modeAwaitingHighHalf
		d.highHalf = word >> 16
		d.hart.pc = eff.NextPC
	default:
		d.mode = modeNormal
		d.hart.pc = eff.NextPC
	}

	return slot
}

// fail records the first failure and retires the slot as a no-op.
func (d *Device) fail(slot Slot, err error) Slot {
	if d.err == nil {
		d.err = err
	}
	d.logger.WithError(err).Warn("illegal instruction")

	size := uint32(4)
	if slot.Word&3 != 3 {
		size = 2
	}
	d.mode = modeNormal
	d.hart.pc += size

	slot.Regs = d.hart.snapshot()
	slot.NextPC = d.hart.pc
	return slot
}

func (d *Device) armed(kind FaultKind, index uint64) *armedFault {
	for _, f := range d.faults {
		if f.Kind == kind && !f.fired && index >= f.At {
			return f
		}
	}
	return nil
}

func (d *Device) fire(f *armedFault, pc uint32) {
	f.fired = true
	d.stats.Faults++
	d.logger.WithFields(logrus.Fields{
		"kind": f.Kind.String(),
		"pc":   fmt.Sprintf("0x%08x", pc),
		"mask": fmt.Sprintf("0x%08x", f.Mask),
	}).Info("fault injected")
}
