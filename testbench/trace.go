package testbench

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/adambagley/frost/coverage"
	"github.com/adambagley/frost/insts"
	"github.com/adambagley/frost/optable"
	"github.com/adambagley/frost/refmodel"
	"github.com/adambagley/frost/verr"
)

func hex(v uint32) string {
	return fmt.Sprintf("0x%08x", v)
}

// TraceLogger writes the structured execution trace of a run.
// Instruction and memory events are logged at debug level, pipeline
// events at trace level, and results at info or error level.
type TraceLogger struct {
	logger logrus.FieldLogger
}

// NewTraceLogger creates a TraceLogger that writes to logger.
func NewTraceLogger(logger logrus.FieldLogger) *TraceLogger {
	return &TraceLogger{logger: logger}
}

// Instruction logs one executed instruction and its writeback.
func (t *TraceLogger) Instruction(cycle uint64, eff refmodel.Effect) {
	fields := logrus.Fields{
		"cycle": cycle,
		"pc":    hex(eff.PC),
		"op":    eff.Inst.Op.String(),
		"inst":  eff.Inst.String(),
		"next":  hex(eff.NextPC),
	}
	if wb := eff.Writeback; wb != nil {
		fields["rd"] = insts.RegisterName(wb.FP, wb.Reg)
		fields["value"] = hex(wb.Value)
	}
	if optable.IsConditional(eff.Inst.Op) {
		fields["taken"] = eff.Taken
	}
	t.logger.WithFields(fields).Debug("execute")

	if eff.Access {
		t.memory(cycle, eff)
	}
}

func (t *TraceLogger) memory(cycle uint64, eff refmodel.Effect) {
	fields := logrus.Fields{
		"cycle": cycle,
		"op":    eff.Inst.Op.String(),
		"addr":  hex(eff.Addr),
	}
	if w := eff.Write; w != nil {
		fields["bus_addr"] = hex(w.Addr)
		fields["data"] = hex(w.Data)
		fields["mask"] = fmt.Sprintf("%04b", w.Mask)
		t.logger.WithFields(fields).Debug("store")
		return
	}
	if wb := eff.Writeback; wb != nil {
		fields["value"] = hex(wb.Value)
	}
	t.logger.WithFields(fields).Debug("load")
}

// Pipeline logs a pipeline event such as reset, warmup or a stall.
func (t *TraceLogger) Pipeline(cycle uint64, event string, fields logrus.Fields) {
	t.logger.WithField("cycle", cycle).WithFields(fields).Trace(event)
}

// BranchFlush logs a redirect and the number of wrong-path slots it
// squashes.
func (t *TraceLogger) BranchFlush(cycle uint64, eff refmodel.Effect, slots int) {
	t.logger.WithFields(logrus.Fields{
		"cycle":  cycle,
		"pc":     hex(eff.PC),
		"target": hex(eff.NextPC),
		"op":     eff.Inst.Op.String(),
		"slots":  slots,
	}).Debug("branch flush")
}

// Failure logs the error that ended a run. Mismatches are logged with
// their channel, field and values.
func (t *TraceLogger) Failure(err error) {
	var mismatch *verr.MismatchError
	if !errors.As(err, &mismatch) {
		t.logger.WithError(err).Error("run failed")
		return
	}

	entry := t.logger.WithFields(logrus.Fields{
		"channel":  mismatch.Channel,
		"field":    mismatch.Field,
		"expected": fmt.Sprintf("0x%x", mismatch.Expected),
		"actual":   fmt.Sprintf("0x%x", mismatch.Actual),
		"cycle":    mismatch.Cycle,
		"seed":     mismatch.Seed,
	})
	switch {
	case mismatch.Unexpected:
		entry.Error("unexpected output")
	case mismatch.Missing:
		entry.Error("missing output")
	default:
		if mismatch.Diff != "" {
			entry = entry.WithField("diff", mismatch.Diff)
		}
		entry.Error("mismatch")
	}
}

// CoverageSummary logs the coverage totals, the least-covered mnemonics
// and the data-address locality.
func (t *TraceLogger) CoverageSummary(sum coverage.Summary, min int) {
	least := make([]string, 0, len(sum.Least))
	for _, c := range sum.Least {
		least = append(least, fmt.Sprintf("%s=%d", c.Op, c.Count))
	}

	t.logger.WithFields(logrus.Fields{
		"total":      sum.Total,
		"mnemonics":  sum.Mnemonics,
		"min":        min,
		"least":      least,
		"taken":      sum.Taken,
		"not_taken":  sum.NotTaken,
		"reuse_rate": fmt.Sprintf("%.3f", sum.Locality.ReuseRate()),
		"lines":      sum.Locality.DistinctLines,
		"evictions":  sum.Locality.Evictions,
	}).Info("coverage")
}
