package testbench

import (
	"fmt"
	"strings"

	"github.com/adambagley/frost/coverage"
	"github.com/adambagley/frost/scoreboard"
	"github.com/adambagley/frost/tracker"
	"github.com/adambagley/frost/verr"
)

// Report is the outcome of one session.
type Report struct {
	// Seed reproduces the run.
	Seed uint64

	// Cycle is the clock cycle of the failing comparison, or the last
	// cycle of the run.
	Cycle uint64

	// Slots is the number of issue slots driven, warmup included.
	Slots uint64

	// Instret is the number of instructions retired.
	Instret uint64

	Pipeline   tracker.Stats
	Scoreboard scoreboard.Stats
	Coverage   coverage.Summary

	// Err is the error that ended the run, if any.
	Err error
}

// Passed reports whether the run ended without an error.
func (r *Report) Passed() bool {
	return r.Err == nil
}

// Kind returns the error category of a failed run. It reports false for
// errors outside the verr taxonomy, such as a cycle budget overrun.
func (r *Report) Kind() (verr.Kind, bool) {
	return verr.KindOf(r.Err)
}

func (r *Report) String() string {
	var b strings.Builder

	status := "PASS"
	if !r.Passed() {
		status = "FAIL"
	}
	fmt.Fprintf(&b, "%s seed=%d cycle=%d\n", status, r.Seed, r.Cycle)
	fmt.Fprintf(&b, "  slots=%d instret=%d flush=%d high-half=%d redirects=%d stalls=%d\n",
		r.Slots, r.Instret, r.Pipeline.FlushSlots, r.Pipeline.HighHalfSlots,
		r.Pipeline.Redirects, r.Pipeline.Stalls)
	fmt.Fprintf(&b, "  checked regfile=%d pc=%d memwrite=%d\n",
		r.Scoreboard.Regfile, r.Scoreboard.PC, r.Scoreboard.MemWrite)
	fmt.Fprintf(&b, "  coverage total=%d mnemonics=%d taken=%d not-taken=%d reuse=%.3f\n",
		r.Coverage.Total, r.Coverage.Mnemonics, r.Coverage.Taken, r.Coverage.NotTaken,
		r.Coverage.Locality.ReuseRate())
	if r.Err != nil {
		kind := "other"
		if k, ok := r.Kind(); ok {
			kind = k.String()
		}
		fmt.Fprintf(&b, "  error (%s): %v\n", kind, r.Err)
	}
	return b.String()
}
