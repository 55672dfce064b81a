package testbench

import (
	"context"
	"fmt"

	"github.com/adambagley/frost/hdl"
	"github.com/adambagley/frost/insts"
	"github.com/adambagley/frost/refmodel"
)

// Directed issues hand-written instructions through a session. Each call
// drives one instruction, plus any flush or high-half slots it leaves
// behind, with its predictions checked by the scoreboard.
type Directed struct {
	bench *Bench
	port  hdl.Port
}

// Issue executes inst in the next slot.
func (d *Directed) Issue(ctx context.Context, inst insts.Instruction) (refmodel.Effect, error) {
	b, p := d.bench, d.port

	if err := b.settle(ctx, p); err != nil {
		return refmodel.Effect{}, err
	}
	if err := b.begin(ctx, p); err != nil {
		return refmodel.Effect{}, err
	}
	eff, err := b.execute(inst)
	if err != nil {
		return eff, err
	}
	b.record(eff)
	word, err := b.word(inst)
	if err != nil {
		return eff, err
	}
	if err := b.drive(ctx, p, word); err != nil {
		return eff, err
	}
	return eff, b.settle(ctx, p)
}

// NOP issues addi x0, x0, 0.
func (d *Directed) NOP(ctx context.Context) error {
	_, err := d.Issue(ctx, nopInst)
	return err
}

// FlushPipeline issues n no-ops so that every earlier instruction retires.
func (d *Directed) FlushPipeline(ctx context.Context, n int) error {
	for range n {
		if err := d.NOP(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ALU issues a register-register operation.
func (d *Directed) ALU(ctx context.Context, op insts.Op, rd, rs1, rs2 uint8) (refmodel.Effect, error) {
	return d.Issue(ctx, insts.Instruction{Op: op, Rd: rd, Rs1: rs1, Rs2: rs2})
}

// Load issues a load of rd from imm(rs1).
func (d *Directed) Load(ctx context.Context, op insts.Op, rd, rs1 uint8, imm int32) (refmodel.Effect, error) {
	return d.Issue(ctx, insts.Instruction{Op: op, Rd: rd, Rs1: rs1, Imm: imm})
}

// Store issues a store of rs2 to imm(rs1).
func (d *Directed) Store(ctx context.Context, op insts.Op, rs1, rs2 uint8, imm int32) (refmodel.Effect, error) {
	return d.Issue(ctx, insts.Instruction{Op: op, Rs1: rs1, Rs2: rs2, Imm: imm})
}

// LR issues lr.w rd, (rs1).
func (d *Directed) LR(ctx context.Context, rd, rs1 uint8) (refmodel.Effect, error) {
	return d.Issue(ctx, insts.Instruction{Op: insts.OpLRW, Rd: rd, Rs1: rs1})
}

// SC issues sc.w rd, rs2, (rs1).
func (d *Directed) SC(ctx context.Context, rd, rs1, rs2 uint8) (refmodel.Effect, error) {
	return d.Issue(ctx, insts.Instruction{Op: insts.OpSCW, Rd: rd, Rs1: rs1, Rs2: rs2})
}

// ReadRegister reads integer register reg from the design.
func (d *Directed) ReadRegister(reg uint8) (uint32, error) {
	return d.port.ReadRegister(insts.RegisterName(false, reg))
}

// Expect checks that integer register reg holds want, both in the
// prediction and in the design.
func (d *Directed) Expect(reg uint8, want uint32) error {
	if got := d.bench.tracker.Snapshot().X[reg]; got != want {
		return fmt.Errorf("predicted x%d = 0x%08x, want 0x%08x", reg, got, want)
	}
	got, err := d.ReadRegister(reg)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("design x%d = 0x%08x, want 0x%08x", reg, got, want)
	}
	return nil
}

// Addresses and values used by the LR/SC scenario.
const (
	LRSCAddress1 uint32 = 0x100
	LRSCAddress2 uint32 = 0x200
	LRSCData     uint32 = 0xDEADBEEF
	LRSCValue1   uint32 = 0x12345678
	LRSCValue2   uint32 = 0x87654321
)

// LRSCRegisters returns the register file the LR/SC scenario starts from:
// xN = N*0x01010101, except x10/x11 hold the two addresses, x12 the store
// data and x20/x21 the initial memory values.
func LRSCRegisters() hdl.RegSnapshot {
	var regs hdl.RegSnapshot
	for i := 1; i < 32; i++ {
		regs.X[i] = uint32(i) * 0x01010101
	}
	regs.X[10] = LRSCAddress1
	regs.X[11] = LRSCAddress2
	regs.X[12] = LRSCData
	regs.X[20] = LRSCValue1
	regs.X[21] = LRSCValue2
	return regs
}

// LRSCScenario exercises the reservation protocol. It expects the
// registers from LRSCRegisters. The cases, in order:
//
//  1. lr.w then sc.w to the same address succeeds.
//  2. sc.w with no reservation fails.
//  3. sc.w to an address other than the reserved one fails.
//  4. back-to-back lr.w and sc.w succeed.
//  5. the reservation survives intervening instructions.
func LRSCScenario(ctx context.Context, d *Directed) error {
	depth := d.bench.config.PipelineDepth

	type lrsc struct {
		lr       bool
		rd, rs1  uint8
		want     uint32
		nopsThen int
	}
	cases := [][]lrsc{
		{
			{lr: true, rd: 5, rs1: 10, want: LRSCValue1, nopsThen: depth + 4},
			{rd: 6, rs1: 10, want: 0, nopsThen: depth},
		},
		{
			{rd: 7, rs1: 10, want: 1, nopsThen: depth},
		},
		{
			{lr: true, rd: 8, rs1: 10, want: LRSCData},
			{rd: 9, rs1: 11, want: 1, nopsThen: depth},
		},
		{
			{lr: true, rd: 13, rs1: 11, want: LRSCValue2},
			{rd: 14, rs1: 11, want: 0, nopsThen: depth},
		},
		{
			{lr: true, rd: 15, rs1: 10, want: LRSCData, nopsThen: 3},
			{rd: 16, rs1: 10, want: 0, nopsThen: depth},
		},
	}

	if _, err := d.Store(ctx, insts.OpSW, 10, 20, 0); err != nil {
		return err
	}
	if _, err := d.Store(ctx, insts.OpSW, 11, 21, 0); err != nil {
		return err
	}
	if err := d.FlushPipeline(ctx, depth); err != nil {
		return err
	}

	for i, steps := range cases {
		for _, s := range steps {
			var (
				eff refmodel.Effect
				err error
			)
			if s.lr {
				eff, err = d.LR(ctx, s.rd, s.rs1)
			} else {
				eff, err = d.SC(ctx, s.rd, s.rs1, 12)
			}
			if err == nil && (eff.Writeback == nil || eff.Writeback.Value != s.want) {
				err = fmt.Errorf("%s x%d: predicted %+v, want 0x%08x", eff.Inst.Op, s.rd, eff.Writeback, s.want)
			}
			if err == nil {
				err = d.FlushPipeline(ctx, s.nopsThen)
			}
			// The design's register file is only checked once the
			// instruction has retired.
			if err == nil && s.nopsThen >= depth {
				err = d.Expect(s.rd, s.want)
			}
			if err != nil {
				return fmt.Errorf("lr/sc case %d: %w", i+1, err)
			}
		}
	}

	return d.FlushPipeline(ctx, 10)
}

// CompressedScenario checks the compressed register, immediate and jump
// forms against hand-computed register values. It overwrites x1 and
// x8 through x15.
func CompressedScenario(ctx context.Context, d *Directed) error {
	depth := d.bench.config.PipelineDepth

	c := func(op insts.Op, rd, rs2 uint8, imm int32) insts.Instruction {
		return insts.Instruction{Op: op, Rd: rd, Rs2: rs2, Imm: imm}
	}
	steps := []struct {
		inst insts.Instruction
		reg  uint8
		want uint32
	}{
		{c(insts.OpCLI, 10, 0, 25), 10, 25},
		{c(insts.OpCLI, 11, 0, -5), 11, 0xFFFFFFFB},
		{c(insts.OpCADDI, 10, 0, 10), 10, 35},
		{c(insts.OpCADDI, 10, 0, -3), 10, 32},
		{c(insts.OpCLI, 12, 0, 17), 12, 17},
		{c(insts.OpCMV, 13, 12, 0), 13, 17},
		{c(insts.OpCADD, 10, 12, 0), 10, 49},
		{c(insts.OpCLI, 8, 0, 31), 8, 31},
		{c(insts.OpCADDI, 8, 0, 31), 8, 62},
		{c(insts.OpCADDI, 8, 0, 31), 8, 93},
		{c(insts.OpCLI, 9, 0, 30), 9, 30},
		{c(insts.OpCSUB, 8, 9, 0), 8, 63},
		{c(insts.OpCLI, 14, 0, 0x1F), 14, 0x1F},
		{c(insts.OpCLI, 15, 0, 0x0A), 15, 0x0A},
		{c(insts.OpCAND, 14, 15, 0), 14, 0x0A},
		{c(insts.OpCLI, 14, 0, 0x05), 14, 0x05},
		{c(insts.OpCOR, 14, 15, 0), 14, 0x0F},
		{c(insts.OpCLI, 15, 0, 0x03), 15, 0x03},
		{c(insts.OpCXOR, 14, 15, 0), 14, 0x0C},
		{c(insts.OpCLI, 10, 0, 1), 10, 1},
		{c(insts.OpCSLLI, 10, 0, 4), 10, 16},
		{c(insts.OpCLI, 8, 0, 31), 8, 31},
		{c(insts.OpCADDI, 8, 0, 1), 8, 32},
		{c(insts.OpCSRLI, 8, 0, 2), 8, 8},
		{c(insts.OpCLI, 8, 0, -16), 8, 0xFFFFFFF0},
		{c(insts.OpCSRAI, 8, 0, 2), 8, 0xFFFFFFFC},
		{c(insts.OpCLI, 8, 0, 0x1F), 8, 0x1F},
		{c(insts.OpCANDI, 8, 0, 0x07), 8, 0x07},
	}

	for i, s := range steps {
		err := d.expectAfter(ctx, s.inst, depth, s.reg, s.want)
		if err != nil {
			return fmt.Errorf("compressed step %d (%s): %w", i+1, s.inst.Op, err)
		}
	}

	jal, err := d.Issue(ctx, insts.Instruction{Op: insts.OpCJAL, Imm: 16})
	if err == nil && jal.NextPC != jal.PC+16 {
		err = fmt.Errorf("target 0x%08x, want 0x%08x", jal.NextPC, jal.PC+16)
	}
	if err == nil {
		err = d.FlushPipeline(ctx, depth)
	}
	if err == nil {
		err = d.Expect(1, jal.PC+2)
	}
	if err != nil {
		return fmt.Errorf("c.jal: %w", err)
	}

	base, err := d.Issue(ctx, insts.Instruction{Op: insts.OpAUIPC, Rd: 9})
	if err == nil {
		_, err = d.Issue(ctx, c(insts.OpCADDI, 9, 0, 16))
	}
	var jalr refmodel.Effect
	if err == nil {
		jalr, err = d.Issue(ctx, insts.Instruction{Op: insts.OpCJALR, Rs1: 9})
	}
	if err == nil && jalr.NextPC != base.PC+16 {
		err = fmt.Errorf("target 0x%08x, want 0x%08x", jalr.NextPC, base.PC+16)
	}
	if err == nil {
		err = d.FlushPipeline(ctx, depth)
	}
	if err == nil {
		err = d.Expect(9, base.PC+16)
	}
	if err == nil {
		err = d.Expect(1, jalr.PC+2)
	}
	if err != nil {
		return fmt.Errorf("c.jalr: %w", err)
	}

	return d.FlushPipeline(ctx, depth)
}

// expectAfter issues inst, lets it retire and checks reg.
func (d *Directed) expectAfter(ctx context.Context, inst insts.Instruction, nops int, reg uint8, want uint32) error {
	eff, err := d.Issue(ctx, inst)
	if err != nil {
		return err
	}
	if eff.Writeback == nil || eff.Writeback.Value != want {
		return fmt.Errorf("predicted %+v, want 0x%08x", eff.Writeback, want)
	}
	if err := d.FlushPipeline(ctx, nops); err != nil {
		return err
	}
	return d.Expect(reg, want)
}
