// Package coverage counts which mnemonics and branch outcomes a run
// exercised and tracks the locality of its data accesses.
package coverage

import (
	"fmt"
	"sort"

	"github.com/adambagley/frost/insts"
	"github.com/adambagley/frost/verr"
)

// BranchCounts holds the outcomes observed for one conditional mnemonic.
type BranchCounts struct {
	Taken    uint64
	NotTaken uint64
}

// Tracker accumulates execution counts. It is owned by the driver task and
// is not safe for concurrent use.
type Tracker struct {
	counts   map[insts.Op]uint64
	branches map[insts.Op]*BranchCounts
	total    uint64
	locality *Locality
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLocality sets the directory used by RecordAccess.
func WithLocality(config LocalityConfig) Option {
	return func(t *Tracker) {
		t.locality = NewLocality(config)
	}
}

// NewTracker creates an empty tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		counts:   make(map[insts.Op]uint64),
		branches: make(map[insts.Op]*BranchCounts),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.locality == nil {
		t.locality = NewLocality(DefaultLocalityConfig())
	}
	return t
}

// Record counts one execution of op.
func (t *Tracker) Record(op insts.Op) {
	t.counts[op]++
	t.total++
}

// RecordBranch counts one execution of a conditional op and its outcome.
func (t *Tracker) RecordBranch(op insts.Op, taken bool) {
	t.Record(op)

	b, ok := t.branches[op]
	if !ok {
		b = &BranchCounts{}
		t.branches[op] = b
	}
	if taken {
		b.Taken++
	} else {
		b.NotTaken++
	}
}

// RecordAccess feeds one data address into the locality directory.
func (t *Tracker) RecordAccess(addr uint32, write bool) {
	t.locality.Access(addr, write)
}

// Count returns the executions of op.
func (t *Tracker) Count(op insts.Op) uint64 {
	return t.counts[op]
}

// BranchCounts returns the outcomes recorded for op.
func (t *Tracker) BranchCounts(op insts.Op) BranchCounts {
	if b, ok := t.branches[op]; ok {
		return *b
	}
	return BranchCounts{}
}

// Total returns the number of recorded executions.
func (t *Tracker) Total() uint64 {
	return t.total
}

// Counts returns a copy of the per-mnemonic counts.
func (t *Tracker) Counts() map[insts.Op]uint64 {
	out := make(map[insts.Op]uint64, len(t.counts))
	for op, n := range t.counts {
		out[op] = n
	}
	return out
}

// Locality returns the address-locality tracker.
func (t *Tracker) Locality() *Locality {
	return t.locality
}

// CheckCoverage returns a description of every op in ops that executed
// fewer than min times, in the order given.
func (t *Tracker) CheckCoverage(ops []insts.Op, min int) []string {
	if min <= 0 {
		return nil
	}

	var failed []string
	for _, op := range ops {
		if n := t.counts[op]; n < uint64(min) {
			failed = append(failed, fmt.Sprintf("%s: %d", op, n))
		}
	}
	return failed
}

// Verify returns a *verr.CoverageError when any op in ops is under min.
func (t *Tracker) Verify(ops []insts.Op, min int) error {
	failed := t.CheckCoverage(ops, min)
	if len(failed) == 0 {
		return nil
	}
	return &verr.CoverageError{Min: min, Failed: failed}
}

// Summary is the end-of-run coverage report.
type Summary struct {
	// Total is the number of recorded executions.
	Total uint64

	// Mnemonics is the number of distinct mnemonics executed.
	Mnemonics int

	// Least lists the least-executed mnemonics, fewest first.
	Least []OpCount

	// Taken and NotTaken sum branch outcomes over every conditional op.
	Taken    uint64
	NotTaken uint64

	// Locality summarizes the data address stream.
	Locality LocalityStats
}

// OpCount pairs a mnemonic with its execution count.
type OpCount struct {
	Op    insts.Op
	Count uint64
}

// Summary builds the report, listing up to least of the rarest mnemonics
// among ops.
func (t *Tracker) Summary(ops []insts.Op, least int) Summary {
	s := Summary{
		Total:     t.total,
		Mnemonics: len(t.counts),
		Locality:  t.locality.Stats(),
	}

	for _, b := range t.branches {
		s.Taken += b.Taken
		s.NotTaken += b.NotTaken
	}

	ranked := make([]OpCount, 0, len(ops))
	for _, op := range ops {
		ranked = append(ranked, OpCount{Op: op, Count: t.counts[op]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count < ranked[j].Count
	})
	if len(ranked) > least {
		ranked = ranked[:least]
	}
	s.Least = ranked

	return s
}
