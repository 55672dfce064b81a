package coverage_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/adambagley/frost/coverage"
	"github.com/adambagley/frost/insts"
	"github.com/adambagley/frost/verr"
)

var _ = Describe("Tracker", func() {
	var tr *coverage.Tracker

	BeforeEach(func() {
		tr = coverage.NewTracker()
	})

	It("should count executions per mnemonic", func() {
		tr.Record(insts.OpADD)
		tr.Record(insts.OpADD)
		tr.Record(insts.OpLW)

		Expect(tr.Count(insts.OpADD)).To(Equal(uint64(2)))
		Expect(tr.Count(insts.OpLW)).To(Equal(uint64(1)))
		Expect(tr.Count(insts.OpSW)).To(BeZero())
		Expect(tr.Total()).To(Equal(uint64(3)))
	})

	It("should count branch outcomes separately", func() {
		tr.RecordBranch(insts.OpBEQ, true)
		tr.RecordBranch(insts.OpBEQ, false)
		tr.RecordBranch(insts.OpBEQ, true)

		Expect(tr.Count(insts.OpBEQ)).To(Equal(uint64(3)))
		Expect(tr.BranchCounts(insts.OpBEQ)).To(Equal(coverage.BranchCounts{Taken: 2, NotTaken: 1}))
		Expect(tr.BranchCounts(insts.OpBNE)).To(Equal(coverage.BranchCounts{}))
	})

	It("should list ops under the threshold", func() {
		for range 5 {
			tr.Record(insts.OpADD)
		}
		tr.Record(insts.OpSUB)

		ops := []insts.Op{insts.OpADD, insts.OpSUB, insts.OpXOR}
		Expect(tr.CheckCoverage(ops, 5)).To(Equal([]string{"sub: 1", "xor: 0"}))
		Expect(tr.CheckCoverage(ops, 1)).To(Equal([]string{"xor: 0"}))
		Expect(tr.CheckCoverage(ops, 0)).To(BeEmpty())
	})

	It("should return a coverage error from Verify", func() {
		tr.Record(insts.OpADD)

		err := tr.Verify([]insts.Op{insts.OpADD, insts.OpSUB}, 1)
		var cerr *verr.CoverageError
		Expect(errors.As(err, &cerr)).To(BeTrue())
		Expect(cerr.Min).To(Equal(1))
		Expect(cerr.Failed).To(Equal([]string{"sub: 0"}))
		Expect(verr.KindOf(err)).To(Equal(verr.KindCoverage))

		Expect(tr.Verify([]insts.Op{insts.OpADD}, 1)).To(Succeed())
	})

	It("should summarize the rarest ops", func() {
		for range 3 {
			tr.Record(insts.OpADD)
		}
		tr.Record(insts.OpSUB)
		tr.RecordBranch(insts.OpBNE, false)
		tr.RecordAccess(0x100, true)

		s := tr.Summary([]insts.Op{insts.OpADD, insts.OpSUB, insts.OpXOR, insts.OpBNE}, 2)
		Expect(s.Total).To(Equal(uint64(5)))
		Expect(s.Mnemonics).To(Equal(3))
		Expect(s.NotTaken).To(Equal(uint64(1)))
		Expect(s.Least).To(Equal([]coverage.OpCount{
			{Op: insts.OpXOR, Count: 0},
			{Op: insts.OpSUB, Count: 1},
		}))
		Expect(s.Locality.Writes).To(Equal(uint64(1)))
	})
})

var _ = Describe("Locality", func() {
	It("should reuse the line of a repeated address", func() {
		l := coverage.NewLocality(coverage.DefaultLocalityConfig())
		for range 10 {
			l.Access(0x200, false)
		}
		l.Access(0x204, true)

		s := l.Stats()
		Expect(s.Misses).To(Equal(uint64(1)))
		Expect(s.Reuses).To(Equal(uint64(10)))
		Expect(s.DistinctLines).To(Equal(1))
		Expect(s.Reads).To(Equal(uint64(10)))
		Expect(s.Writes).To(Equal(uint64(1)))
		Expect(s.ReuseRate()).To(BeNumerically("~", 10.0/11.0, 1e-9))
	})

	It("should evict the least recently used line", func() {
		l := coverage.NewLocality(coverage.LocalityConfig{
			Size:          64,
			Associativity: 4,
			BlockSize:     16,
		})

		for _, addr := range []uint32{0x00, 0x10, 0x20, 0x30} {
			l.Access(addr, false)
		}
		l.Access(0x00, false)
		l.Access(0x40, false)

		Expect(l.Stats().Evictions).To(Equal(uint64(1)))
		Expect(l.Resident()).To(Equal(4))

		l.Access(0x00, false)
		Expect(l.Stats().Reuses).To(Equal(uint64(2)))

		l.Access(0x10, false)
		Expect(l.Stats().Misses).To(Equal(uint64(6)))
		Expect(l.Stats().DistinctLines).To(Equal(5))
	})

	It("should forget everything on reset", func() {
		l := coverage.NewLocality(coverage.DefaultLocalityConfig())
		l.Access(0x40, true)
		l.Reset()

		Expect(l.Stats()).To(Equal(coverage.LocalityStats{}))
		Expect(l.Resident()).To(BeZero())
		Expect(l.Stats().ReuseRate()).To(BeZero())
	})
})
