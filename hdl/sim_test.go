package hdl_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/adambagley/frost/hdl"
)

// latchModel samples the driven word on every rising edge and exposes it
// as the retiring PC one edge later.
type latchModel struct {
	driven  uint32
	valid   bool
	sampled uint32
	out     bool
	rising  int
	falling int
	reset   bool
	busy    int
}

func (m *latchModel) Tick(edge hdl.Edge) {
	if edge == hdl.Falling {
		m.falling++
		return
	}
	m.rising++
	if m.busy > 0 {
		m.busy--
		m.out = false
		return
	}
	m.sampled, m.out = m.driven, m.valid
	m.valid = false
}

func (m *latchModel) DriveInstruction(word uint32) { m.driven, m.valid = word, true }
func (m *latchModel) DriveIdle()                   { m.valid = false }
func (m *latchModel) Ready() bool                  { return m.busy == 0 }
func (m *latchModel) RegfileValid() bool           { return m.out }
func (m *latchModel) Regfile() hdl.RegSnapshot     { return hdl.RegSnapshot{} }
func (m *latchModel) PCValid() bool                { return m.out }
func (m *latchModel) PC() uint32                   { return m.sampled }
func (m *latchModel) MemWrite() (hdl.MemWrite, bool) {
	return hdl.MemWrite{}, false
}
func (m *latchModel) ReadRegister(string) (uint32, error) { return 0, nil }
func (m *latchModel) WriteRegister(string, uint32) error  { return nil }
func (m *latchModel) SetReset(asserted bool)              { m.reset = asserted }
func (m *latchModel) InReset() bool                       { return m.reset }

var _ = Describe("Sim", func() {
	var (
		model *latchModel
		sim   *hdl.Sim
		ctx   context.Context
	)

	BeforeEach(func() {
		model = &latchModel{}
		sim = hdl.NewSim(model, hdl.WithMaxCycles(1000))
		ctx = context.Background()
	})

	It("should tick the model before waking waiters", func() {
		var seen []int
		err := sim.Run(ctx, "main", func(ctx context.Context, p hdl.Port) error {
			for range 3 {
				if err := p.AwaitEdge(ctx, hdl.Rising); err != nil {
					return err
				}
				seen = append(seen, model.rising)
			}
			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(seen).To(Equal([]int{1, 2, 3}))
		Expect(sim.Cycle()).To(Equal(uint64(3)))
	})

	It("should alternate edges starting with rising", func() {
		var rising, falling int
		err := sim.Run(ctx, "main", func(ctx context.Context, p hdl.Port) error {
			if err := p.AwaitEdge(ctx, hdl.Falling); err != nil {
				return err
			}
			rising, falling = model.rising, model.falling
			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(rising).To(Equal(1))
		Expect(falling).To(Equal(1))
	})

	It("should let a monitor observe what the driver drove on the falling edge", func() {
		var observed []uint32
		sim.Spawn("monitor", func(ctx context.Context, p hdl.Port) error {
			for {
				if err := p.AwaitEdge(ctx, hdl.Rising); err != nil {
					return err
				}
				if p.PCValid() {
					observed = append(observed, p.PC())
				}
			}
		})

		err := sim.Run(ctx, "driver", func(ctx context.Context, p hdl.Port) error {
			for _, w := range []uint32{0x13, 0x33, 0x93} {
				if err := p.AwaitEdge(ctx, hdl.Falling); err != nil {
					return err
				}
				p.DriveInstruction(w)
			}
			return hdl.AwaitCycles(ctx, p, 2)
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(observed).To(Equal([]uint32{0x13, 0x33, 0x93}))
	})

	It("should abort the run on the first task error", func() {
		boom := errors.New("boom")
		sim.Spawn("failing", func(ctx context.Context, p hdl.Port) error {
			if err := hdl.AwaitCycles(ctx, p, 5); err != nil {
				return err
			}
			return boom
		})

		err := sim.Run(ctx, "main", func(ctx context.Context, p hdl.Port) error {
			for {
				if err := p.AwaitEdge(ctx, hdl.Rising); err != nil {
					return err
				}
			}
		})

		Expect(errors.Is(err, boom)).To(BeTrue())
		Expect(err.Error()).To(HavePrefix("failing: "))
		Expect(sim.Cycle()).To(Equal(uint64(5)))
	})

	It("should resume tasks waiting on the same edge one at a time", func() {
		var (
			active  atomic.Int32
			overlap atomic.Bool
			order   []string
		)
		step := func(name string) hdl.Task {
			return func(ctx context.Context, p hdl.Port) error {
				for {
					if err := p.AwaitEdge(ctx, hdl.Rising); err != nil {
						return err
					}
					if active.Add(1) > 1 {
						overlap.Store(true)
					}
					order = append(order, name)
					for range 1000 {
						model.reset = !model.reset
					}
					active.Add(-1)
				}
			}
		}
		for i := range 4 {
			sim.Spawn(fmt.Sprintf("t%d", i), step(fmt.Sprintf("t%d", i)))
		}

		err := sim.Run(ctx, "main", func(ctx context.Context, p hdl.Port) error {
			return hdl.AwaitCycles(ctx, p, 50)
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(overlap.Load()).To(BeFalse())
		Expect(order[:8]).To(Equal([]string{"t0", "t1", "t2", "t3", "t0", "t1", "t2", "t3"}))
	})

	It("should start background tasks before main", func() {
		var first string
		sim.Spawn("monitor", func(ctx context.Context, p hdl.Port) error {
			if first == "" {
				first = "monitor"
			}
			for {
				if err := p.AwaitEdge(ctx, hdl.Rising); err != nil {
					return err
				}
			}
		})

		err := sim.Run(ctx, "main", func(ctx context.Context, p hdl.Port) error {
			if first == "" {
				first = "main"
			}
			return hdl.AwaitCycles(ctx, p, 1)
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(first).To(Equal("monitor"))
	})

	It("should return promptly every time a task fails", func(ctx SpecContext) {
		boom := errors.New("boom")
		for i := range 500 {
			model = &latchModel{}
			sim = hdl.NewSim(model, hdl.WithMaxCycles(1000))
			for j := range 3 {
				sim.Spawn(fmt.Sprintf("watcher%d", j), func(ctx context.Context, p hdl.Port) error {
					for {
						if err := p.AwaitEdge(ctx, hdl.Edge(j%2)); err != nil {
							return err
						}
					}
				})
			}
			sim.Spawn("failing", func(ctx context.Context, p hdl.Port) error {
				if err := hdl.AwaitCycles(ctx, p, 1+i%7); err != nil {
					return err
				}
				return boom
			})

			err := sim.Run(ctx, "main", func(ctx context.Context, p hdl.Port) error {
				for {
					if err := p.AwaitEdge(ctx, hdl.Falling); err != nil {
						return err
					}
				}
			})

			Expect(errors.Is(err, boom)).To(BeTrue())
			Expect(sim.Cycle()).To(Equal(uint64(1 + i%7)))
		}
	}, SpecTimeout(time.Minute))

	It("should stop background tasks when main returns", func() {
		sim.Spawn("forever", func(ctx context.Context, p hdl.Port) error {
			for {
				if err := p.AwaitEdge(ctx, hdl.Falling); err != nil {
					return err
				}
			}
		})

		err := sim.Run(ctx, "main", func(ctx context.Context, p hdl.Port) error {
			return hdl.AwaitCycles(ctx, p, 4)
		})

		Expect(err).NotTo(HaveOccurred())
	})

	It("should enforce the cycle budget", func() {
		sim = hdl.NewSim(model, hdl.WithMaxCycles(20))

		err := sim.Run(ctx, "main", func(ctx context.Context, p hdl.Port) error {
			for {
				if err := p.AwaitEdge(ctx, hdl.Rising); err != nil {
					return err
				}
			}
		})

		var budget *hdl.CycleBudgetError
		Expect(errors.As(err, &budget)).To(BeTrue())
		Expect(budget.Limit).To(Equal(uint64(20)))
	})

	It("should start tasks spawned while running", func() {
		ran := false
		err := sim.Run(ctx, "main", func(ctx context.Context, p hdl.Port) error {
			sim.Spawn("late", func(ctx context.Context, p hdl.Port) error {
				if err := p.AwaitEdge(ctx, hdl.Rising); err != nil {
					return err
				}
				ran = true
				return nil
			})
			return hdl.AwaitCycles(ctx, p, 3)
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(ran).To(BeTrue())
	})

	It("should wait out a busy design", func() {
		var waited int
		err := sim.Run(ctx, "main", func(ctx context.Context, p hdl.Port) error {
			if err := p.AwaitEdge(ctx, hdl.Falling); err != nil {
				return err
			}
			model.busy = 3
			var err error
			waited, err = hdl.AwaitReady(ctx, p)
			return err
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(waited).To(Equal(3))
	})
})
