// Package scoreboard compares hardware outputs against predicted results.
//
// One Monitor runs per observable channel. After reset deasserts it samples
// its channel on every rising edge and, whenever the hardware marks the
// channel valid, pops the oldest prediction and compares the two.
package scoreboard

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"

	"github.com/adambagley/frost/hdl"
	"github.com/adambagley/frost/tracker"
	"github.com/adambagley/frost/verr"
)

// Sampler reads one channel's output and reports whether it is valid on
// the current cycle.
type Sampler[T any] func(s hdl.Signals) (T, bool)

// Comparator returns a mismatch description, or nil when expected and
// actual agree. Cycle and Seed are filled in by the monitor.
type Comparator[T any] func(expected, actual T) *verr.MismatchError

// Monitor checks one channel.
type Monitor[T any] struct {
	queue   *tracker.Queue[T]
	sample  Sampler[T]
	compare Comparator[T]
	seed    uint64
	logger  logrus.FieldLogger

	cycles  atomic.Uint64
	checked atomic.Uint64
}

// MonitorOption configures a Monitor.
type MonitorOption func(*monitorConfig)

type monitorConfig struct {
	seed   uint64
	logger logrus.FieldLogger
}

// WithSeed records the run seed in every reported mismatch.
func WithSeed(seed uint64) MonitorOption {
	return func(c *monitorConfig) {
		c.seed = seed
	}
}

// WithLogger sets the logger for mismatch reports.
func WithLogger(logger logrus.FieldLogger) MonitorOption {
	return func(c *monitorConfig) {
		c.logger = logger
	}
}

func newMonitorConfig(opts []MonitorOption) monitorConfig {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	c := monitorConfig{logger: discard}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// NewMonitor creates a monitor that consumes predictions from queue.
func NewMonitor[T any](queue *tracker.Queue[T], sample Sampler[T], compare Comparator[T],
	opts ...MonitorOption,
) *Monitor[T] {
	c := newMonitorConfig(opts)
	return &Monitor[T]{
		queue:   queue,
		sample:  sample,
		compare: compare,
		seed:    c.seed,
		logger:  c.logger.WithField("channel", queue.Name()),
	}
}

// Channel returns the name of the monitored channel.
func (m *Monitor[T]) Channel() string {
	return m.queue.Name()
}

// Checked returns the number of outputs compared so far.
func (m *Monitor[T]) Checked() uint64 {
	return m.checked.Load()
}

// Cycles returns the number of rising edges observed out of reset.
func (m *Monitor[T]) Cycles() uint64 {
	return m.cycles.Load()
}

// Pending returns the number of predictions not yet observed.
func (m *Monitor[T]) Pending() int {
	return m.queue.Len()
}

// Run is the monitor task. It returns the first mismatch.
func (m *Monitor[T]) Run(ctx context.Context, p hdl.Port) error {
	for {
		if err := p.AwaitEdge(ctx, hdl.Rising); err != nil {
			return err
		}
		if p.InReset() {
			continue
		}
		m.cycles.Add(1)

		actual, valid := m.sample(p)
		if !valid {
			continue
		}

		expected, ok := m.queue.TryPop()
		if !ok {
			return m.report(&verr.MismatchError{
				Channel:    m.queue.Name(),
				Actual:     summarize(actual),
				Unexpected: true,
			}, p.Cycle())
		}

		if mismatch := m.compare(expected, actual); mismatch != nil {
			mismatch.Channel = m.queue.Name()
			return m.report(mismatch, p.Cycle())
		}
		m.checked.Add(1)
	}
}

func (m *Monitor[T]) report(err *verr.MismatchError, cycle uint64) error {
	err.Cycle = cycle
	err.Seed = m.seed

	m.logger.WithFields(logrus.Fields{
		"cycle":    cycle,
		"seed":     m.seed,
		"field":    err.Field,
		"expected": fmt.Sprintf("0x%08x", err.Expected),
		"actual":   fmt.Sprintf("0x%08x", err.Actual),
	}).Error("mismatch")

	return err
}

// summarize condenses an unexpected output to one number for the report.
func summarize(v any) uint64 {
	switch v := v.(type) {
	case uint32:
		return uint64(v)
	case hdl.MemWrite:
		return uint64(v.Addr)<<32 | uint64(v.Data)
	}
	return 0
}

// CompareRegfile reports the first differing register and a full diff.
func CompareRegfile(expected, actual hdl.RegSnapshot) *verr.MismatchError {
	if expected == actual {
		return nil
	}

	err := &verr.MismatchError{Diff: cmp.Diff(expected, actual)}
	for i := range expected.X {
		if expected.X[i] != actual.X[i] {
			err.Field = fmt.Sprintf("x%d", i)
			err.Expected, err.Actual = uint64(expected.X[i]), uint64(actual.X[i])
			return err
		}
	}
	for i := range expected.F {
		if expected.F[i] != actual.F[i] {
			err.Field = fmt.Sprintf("f%d", i)
			err.Expected, err.Actual = uint64(expected.F[i]), uint64(actual.F[i])
			return err
		}
	}
	return err
}

// ComparePC reports a next-PC difference.
func ComparePC(expected, actual uint32) *verr.MismatchError {
	if expected == actual {
		return nil
	}
	return &verr.MismatchError{Field: "pc", Expected: uint64(expected), Actual: uint64(actual)}
}

// CompareMemWrite reports the first differing field of a data memory write.
func CompareMemWrite(expected, actual hdl.MemWrite) *verr.MismatchError {
	if expected == actual {
		return nil
	}

	err := &verr.MismatchError{Diff: cmp.Diff(expected, actual)}
	switch {
	case expected.Addr != actual.Addr:
		err.Field, err.Expected, err.Actual = "addr", uint64(expected.Addr), uint64(actual.Addr)
	case expected.Mask != actual.Mask:
		err.Field, err.Expected, err.Actual = "mask", uint64(expected.Mask), uint64(actual.Mask)
	default:
		err.Field, err.Expected, err.Actual = "data", uint64(expected.Data), uint64(actual.Data)
	}
	return err
}

// SampleRegfile reads the register file channel.
func SampleRegfile(s hdl.Signals) (hdl.RegSnapshot, bool) {
	if !s.RegfileValid() {
		return hdl.RegSnapshot{}, false
	}
	return s.Regfile(), true
}

// SamplePC reads the next-PC channel.
func SamplePC(s hdl.Signals) (uint32, bool) {
	if !s.PCValid() {
		return 0, false
	}
	return s.PC(), true
}

// SampleMemWrite reads the data memory write channel.
func SampleMemWrite(s hdl.Signals) (hdl.MemWrite, bool) {
	return s.MemWrite()
}
