package scoreboard

import (
	"github.com/adambagley/frost/hdl"
	"github.com/adambagley/frost/tracker"
	"github.com/adambagley/frost/verr"
)

// Expectations is the source of predicted results, normally the pipeline
// tracker.
type Expectations interface {
	RegfileQueue() *tracker.Queue[hdl.RegSnapshot]
	PCQueue() *tracker.Queue[uint32]
	MemWriteQueue() *tracker.Queue[hdl.MemWrite]
}

// Stats holds the number of outputs each monitor has compared.
type Stats struct {
	Regfile  uint64
	PC       uint64
	MemWrite uint64
}

// Scoreboard owns the three channel monitors.
type Scoreboard struct {
	regfile  *Monitor[hdl.RegSnapshot]
	pc       *Monitor[uint32]
	memWrite *Monitor[hdl.MemWrite]
}

// New creates monitors for every channel of exp.
func New(exp Expectations, opts ...MonitorOption) *Scoreboard {
	return &Scoreboard{
		regfile:  NewMonitor(exp.RegfileQueue(), SampleRegfile, CompareRegfile, opts...),
		pc:       NewMonitor(exp.PCQueue(), SamplePC, ComparePC, opts...),
		memWrite: NewMonitor(exp.MemWriteQueue(), SampleMemWrite, CompareMemWrite, opts...),
	}
}

// Start spawns the monitors on rt. Call it before the driver starts.
func (s *Scoreboard) Start(rt hdl.Runtime) {
	rt.Spawn(s.regfile.Channel()+" monitor", s.regfile.Run)
	rt.Spawn(s.pc.Channel()+" monitor", s.pc.Run)
	rt.Spawn(s.memWrite.Channel()+" monitor", s.memWrite.Run)
}

// Pending returns the number of predictions not yet observed on any
// channel.
func (s *Scoreboard) Pending() int {
	return s.regfile.Pending() + s.pc.Pending() + s.memWrite.Pending()
}

// Stats returns the per-channel comparison counts.
func (s *Scoreboard) Stats() Stats {
	return Stats{
		Regfile:  s.regfile.Checked(),
		PC:       s.pc.Checked(),
		MemWrite: s.memWrite.Checked(),
	}
}

// Drained returns a Missing mismatch for the first channel that still holds
// predictions.
func (s *Scoreboard) Drained(cycle, seed uint64) error {
	for _, ch := range []struct {
		name    string
		pending int
	}{
		{s.regfile.Channel(), s.regfile.Pending()},
		{s.pc.Channel(), s.pc.Pending()},
		{s.memWrite.Channel(), s.memWrite.Pending()},
	} {
		if ch.pending > 0 {
			return &verr.MismatchError{
				Channel:  ch.name,
				Expected: uint64(ch.pending),
				Cycle:    cycle,
				Seed:     seed,
				Missing:  true,
			}
		}
	}
	return nil
}
