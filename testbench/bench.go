// Package testbench runs co-verification sessions against a design.
//
// A Bench owns the reference side of a run: the pipeline tracker, the
// golden executor and memory, the instruction generator, the coverage
// tracker and the scoreboard. It drives the design through an hdl.Runtime:
// reset, register and memory setup, a warmup of no-ops, the random or
// directed instruction stream, and a drain phase that waits for every
// predicted output.
package testbench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/sirupsen/logrus"

	"github.com/adambagley/frost/coverage"
	"github.com/adambagley/frost/emu"
	"github.com/adambagley/frost/gen"
	"github.com/adambagley/frost/hdl"
	"github.com/adambagley/frost/insts"
	"github.com/adambagley/frost/optable"
	"github.com/adambagley/frost/refmodel"
	"github.com/adambagley/frost/scoreboard"
	"github.com/adambagley/frost/simdut"
	"github.com/adambagley/frost/tracker"
	"github.com/adambagley/frost/verr"
)

// NOP is the encoding of addi x0, x0, 0.
const NOP uint32 = 0x00000013

var nopInst = insts.Instruction{Op: insts.OpADDI}

// Option configures a Bench.
type Option func(*Bench)

// WithMemorySnapshot seeds the golden memory from the design's initial
// data memory.
func WithMemorySnapshot(snapshot hdl.MemorySnapshot) Option {
	return func(b *Bench) {
		b.snapshot = snapshot
	}
}

// WithRegisters replaces the random initial register values.
func WithRegisters(regs hdl.RegSnapshot) Option {
	return func(b *Bench) {
		b.registers = &regs
	}
}

// WithLogger sets the logger for the trace and the monitors.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(b *Bench) {
		b.logger = logger
	}
}

// Bench is one co-verification session.
type Bench struct {
	config    *Config
	rt        hdl.Runtime
	snapshot  hdl.MemorySnapshot
	registers *hdl.RegSnapshot
	logger    logrus.FieldLogger
	trace     *TraceLogger

	tracker    *tracker.Tracker
	executor   *refmodel.Executor
	encoder    *insts.Encoder
	generator  *gen.Generator
	coverage   *coverage.Tracker
	scoreboard *scoreboard.Scoreboard

	started bool
}

// New creates a session that runs on rt with a copy of config.
func New(rt hdl.Runtime, config *Config, opts ...Option) (*Bench, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid testbench config: %w", err)
	}

	discard := logrus.New()
	discard.SetOutput(io.Discard)

	b := &Bench{
		config: config.Clone(),
		rt:     rt,
		logger: discard,
	}
	for _, opt := range opts {
		opt(b)
	}
	cfg := b.config

	b.trace = NewTraceLogger(b.logger)
	b.tracker = tracker.NewTracker(
		tracker.WithPipelineDepth(cfg.PipelineDepth),
		tracker.WithFlushCycles(cfg.FlushCycles),
		tracker.WithQueueDepth(cfg.QueueDepth),
		tracker.WithLogger(b.logger),
	)
	b.executor = refmodel.NewExecutor(emu.NewMemory())
	b.encoder = insts.NewEncoder()

	genOpts := []gen.Option{
		gen.WithCompressed(cfg.Compressed),
		gen.WithFloat(cfg.Float),
		gen.WithAtomic(cfg.Atomic),
		gen.WithCoverageBias(cfg.MinCoverageCount),
	}
	if cfg.MemoryWindow > 0 {
		genOpts = append(genOpts, gen.WithMemoryWindow(cfg.MemoryWindow))
	}
	if cfg.SingleAddressMode {
		genOpts = append(genOpts, gen.WithSingleAddress(cfg.SingleAddress))
	}
	b.generator = gen.NewGenerator(cfg.Seed, genOpts...)
	b.coverage = coverage.NewTracker()
	b.scoreboard = scoreboard.New(b.tracker,
		scoreboard.WithSeed(cfg.Seed),
		scoreboard.WithLogger(b.logger),
	)

	return b, nil
}

// Config returns the session configuration.
func (b *Bench) Config() *Config { return b.config }

// Tracker returns the pipeline tracker.
func (b *Bench) Tracker() *tracker.Tracker { return b.tracker }

// Coverage returns the coverage tracker.
func (b *Bench) Coverage() *coverage.Tracker { return b.coverage }

// Generator returns the instruction generator.
func (b *Bench) Generator() *gen.Generator { return b.generator }

// GoldenMemory returns the reference data memory.
func (b *Bench) GoldenMemory() *emu.Memory { return b.executor.Memory() }

// Run drives Loops slots of random instructions, drains the design and
// checks coverage.
func (b *Bench) Run(ctx context.Context) (*Report, error) {
	return b.session(ctx, b.random, b.checkCoverage)
}

// RunDirected runs program in place of the random stream. Coverage is not
// checked.
func (b *Bench) RunDirected(ctx context.Context, program func(ctx context.Context, d *Directed) error) (*Report, error) {
	return b.session(ctx, func(ctx context.Context, p hdl.Port) error {
		return program(ctx, &Directed{bench: b, port: p})
	}, nil)
}

func (b *Bench) session(ctx context.Context, body func(context.Context, hdl.Port) error, check func() error) (*Report, error) {
	if b.started {
		return nil, errors.New("testbench: session already run")
	}
	b.started = true

	b.scoreboard.Start(b.rt)

	var cycle uint64
	err := b.rt.Run(ctx, "driver", func(ctx context.Context, p hdl.Port) error {
		defer func() { cycle = p.Cycle() }()

		if err := b.setup(ctx, p); err != nil {
			return err
		}
		if err := body(ctx, p); err != nil {
			return err
		}
		if err := b.drain(ctx, p); err != nil {
			return err
		}
		if check != nil {
			return check()
		}
		return nil
	})

	report := b.report(cycle, err)
	if err != nil {
		b.trace.Failure(err)
	}
	return report, err
}

// setup loads the initial registers, resets the design, seeds the golden
// memory and retires a warmup of no-ops.
func (b *Bench) setup(ctx context.Context, p hdl.Port) error {
	regs := b.initialRegisters()
	for i := range 32 {
		if i > 0 {
			if err := p.WriteRegister(insts.RegisterName(false, uint8(i)), regs.X[i]); err != nil {
				return fmt.Errorf("setup: %w", err)
			}
		}
		if err := p.WriteRegister(insts.RegisterName(true, uint8(i)), regs.F[i]); err != nil {
			return fmt.Errorf("setup: %w", err)
		}
	}
	b.tracker.LoadRegisters(regs)

	p.SetReset(true)
	if err := hdl.AwaitCycles(ctx, p, b.config.ResetCycles); err != nil {
		return err
	}
	p.SetReset(false)
	b.trace.Pipeline(p.Cycle(), "reset released", logrus.Fields{"reset_cycles": b.config.ResetCycles})

	if s := b.snapshot; s != nil {
		words := make([]uint32, s.MemoryWords())
		for i := range words {
			words[i] = s.ReadMemoryWord(i)
		}
		b.executor.Memory().Seed(0, words)
	}

	for range b.config.PipelineDepth {
		if err := b.begin(ctx, p); err != nil {
			return err
		}
		if _, err := b.execute(nopInst); err != nil {
			return err
		}
		if err := b.drive(ctx, p, NOP); err != nil {
			return err
		}
	}
	b.trace.Pipeline(p.Cycle(), "warmup done", logrus.Fields{"slots": b.config.PipelineDepth})
	return nil
}

// initialRegisters returns the configured registers, or random values with
// the stack pointer 16-byte aligned and inside the memory window.
func (b *Bench) initialRegisters() hdl.RegSnapshot {
	if b.registers != nil {
		regs := *b.registers
		regs.X[0] = 0
		return regs
	}

	seed := b.config.Seed
	rng := rand.New(rand.NewPCG(seed^0xA5A5A5A5A5A5A5A5, seed<<1|1))

	var regs hdl.RegSnapshot
	for i := 1; i < 32; i++ {
		regs.X[i] = rng.Uint32()
	}
	for i := range regs.F {
		regs.F[i] = rng.Uint32()
	}

	sp := regs.X[gen.SP] &^ 15
	if w := b.config.MemoryWindow; w > 0 {
		sp = 16 * rng.Uint32N(w/16)
	}
	regs.X[gen.SP] = sp
	return regs
}

// random drives the constrained-random stream. Every loop is one issue
// slot: a squashed wrong-path word, a buffered high half, or a newly
// generated instruction.
func (b *Bench) random(ctx context.Context, p hdl.Port) error {
	for range b.config.Loops {
		if err := b.begin(ctx, p); err != nil {
			return err
		}

		var (
			word uint32
			err  error
		)
		switch b.tracker.Mode() {
		case tracker.ModeFlushing:
			word, err = NOP, b.tracker.FlushSlot()
		case tracker.ModeAwaitingHighHalf:
			word, err = b.highHalf(true)
		default:
			word, err = b.generated()
		}
		if err != nil {
			return err
		}

		if err := b.drive(ctx, p, word); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bench) generated() (uint32, error) {
	inst, err := b.generator.Generate(b.tracker)
	if err != nil {
		return 0, err
	}

	eff, err := b.execute(inst)
	if err != nil {
		return 0, err
	}
	b.record(eff)

	if b.tracker.Mode() == tracker.ModeAwaitingHighHalf && b.config.PairCompressed {
		after := snapshotReader(b.tracker.Snapshot())
		hi, err := b.generator.GenerateHighHalf(&after)
		if err != nil {
			return 0, err
		}
		if err := b.tracker.PairHighHalf(hi); err != nil {
			return 0, err
		}
	}

	return b.word(inst)
}

// highHalf executes the buffered high half and returns the filler word
// the design ignores in that slot. A c.nop high half is padding and is
// never counted as coverage.
func (b *Bench) highHalf(record bool) (uint32, error) {
	hi, _ := b.tracker.HighHalf()
	eff, err := b.execute(hi)
	if err != nil {
		return 0, err
	}
	if record && hi.Op != insts.OpCNOP {
		b.record(eff)
	}
	return NOP, nil
}

// execute predicts inst at the tracker's PC and retires it.
func (b *Bench) execute(inst insts.Instruction) (refmodel.Effect, error) {
	pc := b.tracker.PC()
	eff, err := b.executor.Execute(b.tracker, inst, pc)
	if err != nil {
		return eff, fmt.Errorf("slot %d: %w", b.tracker.Cycle(), err)
	}
	if err := b.tracker.Retire(eff); err != nil {
		return eff, fmt.Errorf("slot %d: %w", b.tracker.Cycle(), err)
	}

	b.trace.Instruction(b.tracker.Cycle(), eff)
	if eff.Redirect {
		b.trace.BranchFlush(b.tracker.Cycle(), eff, b.tracker.FlushCycles())
	}
	return eff, nil
}

func (b *Bench) record(eff refmodel.Effect) {
	op := eff.Inst.Op
	if optable.IsConditional(op) {
		b.coverage.RecordBranch(op, eff.Taken)
	} else {
		b.coverage.Record(op)
	}
	if eff.Access {
		b.coverage.RecordAccess(eff.Addr, eff.Write != nil)
	}
}

// word encodes inst, packing the pending high half above a compressed low
// half.
func (b *Bench) word(inst insts.Instruction) (uint32, error) {
	lo, err := b.encoder.Encode(inst)
	if err != nil {
		return 0, err
	}

	hi, ok := b.tracker.HighHalf()
	if !ok {
		return lo, nil
	}
	h, err := b.encoder.Encode(hi)
	if err != nil {
		return 0, err
	}
	return h<<16 | lo&0xFFFF, nil
}

// begin waits for the falling edge that opens a slot and for the design
// to accept a word.
func (b *Bench) begin(ctx context.Context, p hdl.Port) error {
	if err := p.AwaitEdge(ctx, hdl.Falling); err != nil {
		return err
	}
	n, err := hdl.AwaitReady(ctx, p)
	if n > 0 {
		b.tracker.RecordStall(n)
		b.trace.Pipeline(p.Cycle(), "stall", logrus.Fields{"cycles": n})
	}
	return err
}

// drive presents word, waits for the design to sample it and closes the
// slot.
func (b *Bench) drive(ctx context.Context, p hdl.Port, word uint32) error {
	p.DriveInstruction(word)
	if err := p.AwaitEdge(ctx, hdl.Rising); err != nil {
		return err
	}
	b.tracker.Advance()
	return nil
}

// settle issues the slots the state machines still owe: the rest of a
// flush and a pending high half.
func (b *Bench) settle(ctx context.Context, p hdl.Port) error {
	for b.tracker.Mode() != tracker.ModeNormal {
		if err := b.begin(ctx, p); err != nil {
			return err
		}

		word := NOP
		var err error
		if b.tracker.Mode() == tracker.ModeFlushing {
			err = b.tracker.FlushSlot()
		} else {
			word, err = b.highHalf(false)
		}
		if err != nil {
			return err
		}

		if err := b.drive(ctx, p, word); err != nil {
			return err
		}
	}
	return nil
}

// drain stops issuing and clocks bubbles until every prediction has been
// observed or the drain budget runs out.
func (b *Bench) drain(ctx context.Context, p hdl.Port) error {
	if err := b.settle(ctx, p); err != nil {
		return err
	}

	for waited := 0; ; waited++ {
		// Every monitor has consumed the last rising edge once the
		// falling edge is reached.
		if err := p.AwaitEdge(ctx, hdl.Falling); err != nil {
			return err
		}
		if b.scoreboard.Pending() == 0 || waited == b.config.MaxDrainCycles {
			break
		}
		p.DriveIdle()
		if err := p.AwaitEdge(ctx, hdl.Rising); err != nil {
			return err
		}
	}

	b.trace.Pipeline(p.Cycle(), "drained", logrus.Fields{"pending": b.scoreboard.Pending()})
	return b.scoreboard.Drained(p.Cycle(), b.config.Seed)
}

func (b *Bench) checkCoverage() error {
	pool := b.generator.Pool()
	b.trace.CoverageSummary(b.coverage.Summary(pool, 10), b.config.MinCoverageCount)
	if err := b.coverage.Verify(pool, b.config.MinCoverageCount); err != nil {
		return fmt.Errorf("seed %d: %w", b.config.Seed, err)
	}
	return nil
}

func (b *Bench) report(cycle uint64, err error) *Report {
	r := &Report{
		Seed:       b.config.Seed,
		Cycle:      cycle,
		Slots:      b.tracker.Cycle(),
		Instret:    b.tracker.Instret(),
		Pipeline:   b.tracker.Stats(),
		Scoreboard: b.scoreboard.Stats(),
		Coverage:   b.coverage.Summary(b.generator.Pool(), 10),
		Err:        err,
	}

	var mismatch *verr.MismatchError
	if errors.As(err, &mismatch) {
		r.Cycle = mismatch.Cycle
	}
	return r
}

// snapshotReader reads integer registers from a snapshot.
type snapshotReader hdl.RegSnapshot

func (s *snapshotReader) ReadReg(reg uint8) uint32 { return s.X[reg] }

// NewDevice creates the behavioral device double configured to match
// config.
func NewDevice(config *Config, opts ...simdut.Option) *simdut.Device {
	base := []simdut.Option{
		simdut.WithPipelineDepth(config.PipelineDepth),
		simdut.WithFlushCycles(config.FlushCycles),
		simdut.WithLatencies(config.Latencies),
		simdut.WithSeed(config.Seed),
	}
	return simdut.New(append(base, opts...)...)
}

// RunModel runs the random regression described by config against model
// on a new simulator. A model that exposes its data memory seeds the
// golden memory.
func RunModel(ctx context.Context, model hdl.Model, config *Config, opts ...Option) (*Report, error) {
	sim := hdl.NewSim(model, hdl.WithMaxCycles(config.MaxCycles))
	if s, ok := model.(hdl.MemorySnapshot); ok {
		opts = append([]Option{WithMemorySnapshot(s)}, opts...)
	}

	b, err := New(sim, config, opts...)
	if err != nil {
		return nil, err
	}
	return b.Run(ctx)
}
