package scoreboard_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/adambagley/frost/hdl"
	"github.com/adambagley/frost/scoreboard"
	"github.com/adambagley/frost/tracker"
	"github.com/adambagley/frost/verr"
)

// output is what the scripted model presents after one rising edge.
type output struct {
	regs  *hdl.RegSnapshot
	pc    *uint32
	write *hdl.MemWrite
}

// scriptModel replays a fixed list of outputs, one per rising edge, after
// holding reset for a number of edges.
type scriptModel struct {
	script     []output
	resetEdges int
	edge       int
	current    output
}

func (m *scriptModel) Tick(edge hdl.Edge) {
	if edge == hdl.Falling {
		return
	}
	m.edge++
	m.current = output{}
	if i := m.edge - 1; i < len(m.script) {
		m.current = m.script[i]
	}
}

func (m *scriptModel) DriveInstruction(uint32)  {}
func (m *scriptModel) DriveIdle()               {}
func (m *scriptModel) Ready() bool              { return true }
func (m *scriptModel) RegfileValid() bool       { return m.current.regs != nil }
func (m *scriptModel) PCValid() bool            { return m.current.pc != nil }
func (m *scriptModel) SetReset(bool)            {}
func (m *scriptModel) InReset() bool            { return m.edge <= m.resetEdges }
func (m *scriptModel) Regfile() hdl.RegSnapshot { return *m.current.regs }
func (m *scriptModel) PC() uint32               { return *m.current.pc }
func (m *scriptModel) MemWrite() (hdl.MemWrite, bool) {
	if m.current.write == nil {
		return hdl.MemWrite{}, false
	}
	return *m.current.write, true
}
func (m *scriptModel) ReadRegister(string) (uint32, error) { return 0, nil }
func (m *scriptModel) WriteRegister(string, uint32) error  { return nil }

func regs(x5 uint32) *hdl.RegSnapshot {
	s := &hdl.RegSnapshot{}
	s.X[5] = x5
	return s
}

func pc(v uint32) *uint32 { return &v }

var _ = Describe("Scoreboard", func() {
	var (
		tr    *tracker.Tracker
		model *scriptModel
		ctx   context.Context
	)

	BeforeEach(func() {
		tr = tracker.NewTracker()
		model = &scriptModel{}
		ctx = context.Background()
	})

	run := func(cycles int) error {
		sim := hdl.NewSim(model, hdl.WithMaxCycles(100))
		sb := scoreboard.New(tr, scoreboard.WithSeed(42))
		sb.Start(sim)
		return sim.Run(ctx, "driver", func(ctx context.Context, p hdl.Port) error {
			return hdl.AwaitCycles(ctx, p, cycles)
		})
	}

	It("should consume matching outputs on every channel", func() {
		Expect(tr.EnqueueExpected(*regs(25), 4, nil)).To(Succeed())
		Expect(tr.EnqueueExpected(*regs(26), 8, &hdl.MemWrite{Addr: 0x100, Data: 7, Mask: 0xF})).To(Succeed())
		model.script = []output{
			{regs: regs(25), pc: pc(4)},
			{},
			{regs: regs(26), pc: pc(8), write: &hdl.MemWrite{Addr: 0x100, Data: 7, Mask: 0xF}},
		}

		sim := hdl.NewSim(model, hdl.WithMaxCycles(100))
		sb := scoreboard.New(tr)
		sb.Start(sim)
		err := sim.Run(ctx, "driver", func(ctx context.Context, p hdl.Port) error {
			return hdl.AwaitCycles(ctx, p, 5)
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(sb.Pending()).To(BeZero())
		Expect(sb.Stats()).To(Equal(scoreboard.Stats{Regfile: 2, PC: 2, MemWrite: 1}))
		Expect(sb.Drained(5, 0)).To(Succeed())
	})

	It("should report the first differing register with a diff", func() {
		Expect(tr.EnqueueExpected(*regs(25), 4, nil)).To(Succeed())
		model.script = []output{{regs: regs(24), pc: pc(4)}}

		err := run(5)

		var mismatch *verr.MismatchError
		Expect(errors.As(err, &mismatch)).To(BeTrue())
		Expect(mismatch.Channel).To(Equal(tracker.ChannelRegfile))
		Expect(mismatch.Field).To(Equal("x5"))
		Expect(mismatch.Expected).To(Equal(uint64(25)))
		Expect(mismatch.Actual).To(Equal(uint64(24)))
		Expect(mismatch.Seed).To(Equal(uint64(42)))
		Expect(mismatch.Cycle).To(Equal(uint64(1)))
		Expect(mismatch.Diff).NotTo(BeEmpty())
	})

	It("should report output with nothing queued as unexpected", func() {
		model.script = []output{{pc: pc(0x40)}}

		err := run(5)

		var mismatch *verr.MismatchError
		Expect(errors.As(err, &mismatch)).To(BeTrue())
		Expect(mismatch.Channel).To(Equal(tracker.ChannelPC))
		Expect(mismatch.Unexpected).To(BeTrue())
		Expect(mismatch.Actual).To(Equal(uint64(0x40)))
	})

	It("should compare memory writes field by field", func() {
		Expect(tr.EnqueueExpected(*regs(0), 4, &hdl.MemWrite{Addr: 0x100, Data: 0xAB, Mask: 0x1})).To(Succeed())
		model.script = []output{{
			regs:  regs(0),
			pc:    pc(4),
			write: &hdl.MemWrite{Addr: 0x100, Data: 0xAB, Mask: 0x2},
		}}

		err := run(5)

		var mismatch *verr.MismatchError
		Expect(errors.As(err, &mismatch)).To(BeTrue())
		Expect(mismatch.Channel).To(Equal(tracker.ChannelMemWrite))
		Expect(mismatch.Field).To(Equal("mask"))
		Expect(verr.KindOf(err)).To(Equal(verr.KindMismatch))
	})

	It("should ignore outputs while reset is asserted", func() {
		Expect(tr.EnqueueExpected(*regs(1), 4, nil)).To(Succeed())
		model.resetEdges = 2
		model.script = []output{
			{regs: regs(99), pc: pc(99)},
			{regs: regs(98), pc: pc(98)},
			{regs: regs(1), pc: pc(4)},
		}

		Expect(run(5)).To(Succeed())
		Expect(tr.Pending()).To(BeZero())
	})

	It("should report predictions that were never observed", func() {
		Expect(tr.EnqueueExpected(*regs(1), 4, nil)).To(Succeed())

		sb := scoreboard.New(tr)
		err := sb.Drained(10, 7)

		var mismatch *verr.MismatchError
		Expect(errors.As(err, &mismatch)).To(BeTrue())
		Expect(mismatch.Missing).To(BeTrue())
		Expect(mismatch.Channel).To(Equal(tracker.ChannelRegfile))
		Expect(mismatch.Expected).To(Equal(uint64(1)))
		Expect(mismatch.Seed).To(Equal(uint64(7)))
	})
})

var _ = Describe("Comparators", func() {
	It("should name the first differing floating-point register", func() {
		a, b := hdl.RegSnapshot{}, hdl.RegSnapshot{}
		b.F[3] = 0x3F800000

		mismatch := scoreboard.CompareRegfile(a, b)
		Expect(mismatch).NotTo(BeNil())
		Expect(mismatch.Field).To(Equal("f3"))
		Expect(scoreboard.CompareRegfile(a, a)).To(BeNil())
	})

	It("should report a pc difference", func() {
		Expect(scoreboard.ComparePC(4, 4)).To(BeNil())
		Expect(scoreboard.ComparePC(4, 8).Field).To(Equal("pc"))
	})
})
