package simdut

import (
	"fmt"

	"github.com/adambagley/frost/insts"
	"github.com/adambagley/frost/optable"
)

// Latencies holds the issue latency, in cycles, of each instruction group.
// An instruction with latency n holds the issue stage for n-1 extra cycles,
// during which Ready is low.
type Latencies struct {
	// ALU is the latency of single-cycle integer operations. Default: 1.
	ALU uint64 `json:"alu" yaml:"alu"`

	// Multiply is the latency of mul, mulh, mulhsu and mulhu. Default: 1.
	Multiply uint64 `json:"multiply" yaml:"multiply"`

	// Divide is the latency of div, divu, rem and remu. Default: 4.
	Divide uint64 `json:"divide" yaml:"divide"`

	// FPDivide is the latency of fdiv.s and fsqrt.s. Default: 6.
	FPDivide uint64 `json:"fp_divide" yaml:"fp_divide"`

	// Memory is the latency of loads, stores and atomics. Default: 1.
	Memory uint64 `json:"memory" yaml:"memory"`
}

// DefaultLatencies returns the latencies of the reference pipeline.
func DefaultLatencies() Latencies {
	return Latencies{
		ALU:      1,
		Multiply: 1,
		Divide:   4,
		FPDivide: 6,
		Memory:   1,
	}
}

// Validate checks that every latency is at least one cycle.
func (l Latencies) Validate() error {
	for _, f := range []struct {
		name  string
		value uint64
	}{
		{"alu", l.ALU},
		{"multiply", l.Multiply},
		{"divide", l.Divide},
		{"fp_divide", l.FPDivide},
		{"memory", l.Memory},
	} {
		if f.value == 0 {
			return fmt.Errorf("%s latency must be > 0", f.name)
		}
	}
	return nil
}

// LatencyTable maps instructions to their issue latency.
type LatencyTable struct {
	config Latencies
}

// NewLatencyTable creates a table from config.
func NewLatencyTable(config Latencies) *LatencyTable {
	return &LatencyTable{config: config}
}

// Config returns the latencies in use.
func (t *LatencyTable) Config() Latencies {
	return t.config
}

// Latency returns the issue latency of inst.
func (t *LatencyTable) Latency(inst insts.Instruction) uint64 {
	switch insts.Expand(inst).Op {
	case insts.OpMUL, insts.OpMULH, insts.OpMULHSU, insts.OpMULHU:
		return t.config.Multiply
	case insts.OpDIV, insts.OpDIVU, insts.OpREM, insts.OpREMU:
		return t.config.Divide
	case insts.OpFDIVS, insts.OpFSQRTS:
		return t.config.FPDivide
	}

	if optable.ClassOf(inst.Op).IsMemory() {
		return t.config.Memory
	}
	return t.config.ALU
}
