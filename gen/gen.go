// Package gen produces constrained-random RISC-V instructions.
//
// Every generated instruction encodes, keeps memory operands aligned to
// their access width, keeps control-flow targets word aligned, and never
// writes x2 except through c.addi16sp, so x2 stays usable as a stack
// pointer for the compressed stack-relative forms.
package gen

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/adambagley/frost/insts"
	"github.com/adambagley/frost/optable"
)

// SP is the register reserved as the stack pointer.
const SP uint8 = 2

// maxAttempts bounds redraws when an op cannot be built against the
// current register values.
const maxAttempts = 64

// ErrEmptyPool is returned when every mnemonic has been disabled.
var ErrEmptyPool = errors.New("gen: no mnemonics enabled")

// RegisterReader exposes the integer register values the next instruction
// will observe.
type RegisterReader interface {
	ReadReg(reg uint8) uint32
}

// counterCSRs are the read-only counters random CSR reads may target.
// cycle and time are left out because stalls make them unpredictable.
var counterCSRs = []uint16{
	insts.CSRInstret,
	insts.CSRInstretH,
	insts.CSRCycleH,
	insts.CSRTimeH,
}

// Generator draws random instructions from the operation table.
type Generator struct {
	seed uint64
	rng  *rand.Rand

	compressed bool
	float      bool
	atomic     bool
	disabled   map[optable.Class]bool

	window        uint32
	singleAddress bool
	address       uint32

	minCoverage int

	pool     []insts.Op
	highPool []insts.Op
	counts   map[insts.Op]uint64

	pending *insts.Op
}

// Option configures a Generator.
type Option func(*Generator)

// WithCompressed enables or disables the C extension.
func WithCompressed(enabled bool) Option {
	return func(g *Generator) {
		g.compressed = enabled
	}
}

// WithFloat enables or disables the F extension.
func WithFloat(enabled bool) Option {
	return func(g *Generator) {
		g.float = enabled
	}
}

// WithAtomic enables or disables the A extension.
func WithAtomic(enabled bool) Option {
	return func(g *Generator) {
		g.atomic = enabled
	}
}

// WithoutClasses removes whole instruction classes from the pool.
func WithoutClasses(classes ...optable.Class) Option {
	return func(g *Generator) {
		for _, c := range classes {
			g.disabled[c] = true
		}
	}
}

// WithMemoryWindow keeps every effective address inside [0, size).
// Zero disables the window.
func WithMemoryWindow(size uint32) Option {
	return func(g *Generator) {
		g.window = size
	}
}

// WithSingleAddress pins memory operands to one word-aligned address that
// is reachable as a 12-bit immediate from x0.
func WithSingleAddress(addr uint32) Option {
	return func(g *Generator) {
		g.singleAddress = true
		g.address = addr
	}
}

// WithCoverageBias makes one draw in four come from the least-generated
// mnemonics still below min executions.
func WithCoverageBias(min int) Option {
	return func(g *Generator) {
		g.minCoverage = min
	}
}

// NewGenerator creates a generator seeded with seed. All extensions are
// enabled by default.
func NewGenerator(seed uint64, opts ...Option) *Generator {
	g := &Generator{
		seed:       seed,
		rng:        rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)),
		compressed: true,
		float:      true,
		atomic:     true,
		disabled:   make(map[optable.Class]bool),
		counts:     make(map[insts.Op]uint64),
	}
	for _, opt := range opts {
		opt(g)
	}

	for _, op := range optable.Random() {
		if g.enabled(optable.ClassOf(op)) {
			g.pool = append(g.pool, op)
		}
	}
	for _, op := range optable.OpsIn(optable.ClassCompressedALU) {
		if g.compressed {
			g.highPool = append(g.highPool, op)
		}
	}
	return g
}

func (g *Generator) enabled(c optable.Class) bool {
	switch {
	case g.disabled[c]:
		return false
	case c.IsCompressed() && !g.compressed:
		return false
	case c.IsFloat() && !g.float:
		return false
	case c.IsAtomic() && !g.atomic:
		return false
	}
	return true
}

// Seed returns the seed the generator was created with.
func (g *Generator) Seed() uint64 {
	return g.seed
}

// Pool returns the mnemonics the generator draws from. The caller must not
// modify the result.
func (g *Generator) Pool() []insts.Op {
	return g.pool
}

// Count returns how many times op has been generated.
func (g *Generator) Count(op insts.Op) uint64 {
	return g.counts[op]
}

// Counts returns a copy of the per-mnemonic generation counts.
func (g *Generator) Counts() map[insts.Op]uint64 {
	out := make(map[insts.Op]uint64, len(g.counts))
	for op, n := range g.counts {
		out[op] = n
	}
	return out
}

// Generate returns the next instruction for the current register values.
// An atomic drawn when no register holds a usable address is preceded by
// a setup addi that loads one; the atomic itself follows on the next call.
func (g *Generator) Generate(regs RegisterReader) (insts.Instruction, error) {
	if len(g.pool) == 0 {
		return insts.Instruction{}, ErrEmptyPool
	}

	if g.pending != nil {
		op := *g.pending
		g.pending = nil
		if inst, ok := g.build(op, regs); ok {
			return g.emit(inst), nil
		}
	}

	for range maxAttempts {
		op := g.draw()
		if inst, ok := g.build(op, regs); ok {
			return g.emit(inst), nil
		}
	}
	return insts.Instruction{}, fmt.Errorf("gen: no buildable instruction after %d draws", maxAttempts)
}

// GenerateHighHalf returns a compressed ALU instruction for the high half
// of a word whose low half holds a compressed instruction.
func (g *Generator) GenerateHighHalf(regs RegisterReader) (insts.Instruction, error) {
	if len(g.highPool) == 0 {
		return insts.Instruction{}, ErrEmptyPool
	}
	for range maxAttempts {
		op := g.highPool[g.rng.IntN(len(g.highPool))]
		if inst, ok := g.build(op, regs); ok {
			return g.emit(inst), nil
		}
	}
	return g.emit(insts.Instruction{Op: insts.OpCNOP}), nil
}

func (g *Generator) emit(inst insts.Instruction) insts.Instruction {
	g.counts[inst.Op]++
	return inst
}

// draw picks a mnemonic, preferring under-covered ones one time in four.
func (g *Generator) draw() insts.Op {
	if g.minCoverage > 0 && g.rng.IntN(4) == 0 {
		if op, ok := g.leastCovered(); ok {
			return op
		}
	}
	return g.pool[g.rng.IntN(len(g.pool))]
}

func (g *Generator) leastCovered() (insts.Op, bool) {
	var least []insts.Op
	lowest := uint64(g.minCoverage)
	for _, op := range g.pool {
		n := g.counts[op]
		switch {
		case n < lowest:
			lowest = n
			least = append(least[:0], op)
		case n == lowest && n < uint64(g.minCoverage):
			least = append(least, op)
		}
	}
	if len(least) == 0 {
		return 0, false
	}
	return least[g.rng.IntN(len(least))], true
}

func (g *Generator) build(op insts.Op, regs RegisterReader) (insts.Instruction, bool) {
	entry := optable.MustLookup(op)
	inst := insts.Instruction{Op: op}

	switch entry.Class {
	case optable.ClassALU:
		inst.Rd, inst.Rs1, inst.Rs2 = g.rd(), g.reg(), g.reg()
		if op == insts.OpPACK && inst.Rs2 == 0 {
			inst.Rs2 = 1 + uint8(g.rng.IntN(31))
		}

	case optable.ClassALUImm:
		inst.Rd, inst.Rs1 = g.rd(), g.reg()
		if isShiftImm(op) {
			inst.Imm = g.rng.Int32N(32)
		} else {
			inst.Imm = g.rng.Int32N(4096) - 2048
		}

	case optable.ClassUnary:
		inst.Rd, inst.Rs1 = g.rd(), g.reg()

	case optable.ClassUpper:
		inst.Rd = g.rd()
		inst.Imm = g.rng.Int32N(1 << 20)

	case optable.ClassLoad, optable.ClassStore, optable.ClassFPLoad, optable.ClassFPStore:
		return g.memory(inst, entry, regs)

	case optable.ClassBranch:
		inst.Rs1, inst.Rs2 = g.reg(), g.reg()
		inst.Imm = g.offset(-4096, 4092)

	case optable.ClassJump:
		inst.Rd = g.rd()
		if op == insts.OpJAL {
			inst.Imm = g.offset(-1<<20, 1<<20-4)
			break
		}
		inst.Rs1 = g.reg()
		inst.Imm = alignedJumpImm(regs.ReadReg(inst.Rs1), g.rng.Int32N(4096)-2048)

	case optable.ClassFence:
		if op == insts.OpFENCE {
			inst.Imm = g.rng.Int32N(256)
			if inst.Imm == 0x10 {
				inst.Imm = 0xFF
			}
		}

	case optable.ClassCSR:
		g.csr(&inst)

	case optable.ClassLR, optable.ClassSC, optable.ClassAMO:
		return g.atomicOp(inst, regs)

	case optable.ClassFPArith, optable.ClassFPUnary:
		inst.Rd, inst.Rs1, inst.Rs2 = g.freg(), g.freg(), g.freg()
		inst.Rm = g.rm(entry)

	case optable.ClassFPFused:
		inst.Rd, inst.Rs1, inst.Rs2, inst.Rs3 = g.freg(), g.freg(), g.freg(), g.freg()
		inst.Rm = g.rm(entry)

	case optable.ClassFPCompare:
		inst.Rd, inst.Rs1, inst.Rs2 = g.rd(), g.freg(), g.freg()

	case optable.ClassFPToInt:
		inst.Rd, inst.Rs1 = g.rd(), g.freg()
		inst.Rm = g.rm(entry)

	case optable.ClassIntToFP:
		inst.Rd, inst.Rs1 = g.freg(), g.reg()
		inst.Rm = g.rm(entry)

	case optable.ClassCompressedALU:
		return g.compressedALU(inst, regs)

	case optable.ClassCompressedLoad, optable.ClassCompressedStore:
		return g.compressedMemory(inst, regs)

	case optable.ClassCompressedBranch:
		inst.Rs1 = g.creg()
		inst.Imm = g.offset(-256, 252)

	case optable.ClassCompressedJump:
		return g.compressedJump(inst, regs)

	default:
		return inst, false
	}

	return inst, true
}

func isShiftImm(op insts.Op) bool {
	switch op {
	case insts.OpSLLI, insts.OpSRLI, insts.OpSRAI, insts.OpBSETI, insts.OpBCLRI,
		insts.OpBINVI, insts.OpBEXTI, insts.OpRORI:
		return true
	}
	return false
}

// reg returns any integer register as a source.
func (g *Generator) reg() uint8 {
	return uint8(g.rng.IntN(32))
}

// rd returns an integer destination other than the stack pointer.
func (g *Generator) rd() uint8 {
	r := uint8(g.rng.IntN(31))
	if r >= SP {
		r++
	}
	return r
}

// rdNonZero returns a destination other than x0 and the stack pointer.
func (g *Generator) rdNonZero() uint8 {
	r := 1 + uint8(g.rng.IntN(30))
	if r >= SP {
		r++
	}
	return r
}

func (g *Generator) freg() uint8 {
	return uint8(g.rng.IntN(32))
}

// creg returns a register addressable by a 3-bit compressed field.
func (g *Generator) creg() uint8 {
	return 8 + uint8(g.rng.IntN(8))
}

// rm picks round-to-nearest-even or the dynamic mode for rounded ops.
func (g *Generator) rm(entry optable.Entry) uint8 {
	if !entry.Rounded || g.rng.IntN(2) == 0 {
		return insts.RmRNE
	}
	return insts.RmDyn
}

// offset returns a random multiple of 4 in [lo, hi].
func (g *Generator) offset(lo, hi int32) int32 {
	return lo + 4*g.rng.Int32N((hi-lo)/4+1)
}

// alignedJumpImm nudges imm so that base+imm is word aligned while staying
// a 12-bit immediate.
func alignedJumpImm(base uint32, imm int32) int32 {
	imm -= int32((base + uint32(imm)) & 3)
	if imm < -2048 {
		imm += 4
	}
	return imm
}

func (g *Generator) csr(inst *insts.Instruction) {
	inst.Rd = g.rd()

	switch inst.Op {
	case insts.OpCSRRW:
		inst.CSR, inst.Rs1 = insts.CSRMscratch, g.reg()
	case insts.OpCSRRWI:
		inst.CSR, inst.Imm = insts.CSRMscratch, g.rng.Int32N(32)
	case insts.OpCSRRS, insts.OpCSRRC:
		if g.rng.IntN(2) == 0 {
			inst.CSR, inst.Rs1 = insts.CSRMscratch, g.reg()
		} else {
			inst.CSR = counterCSRs[g.rng.IntN(len(counterCSRs))]
		}
	case insts.OpCSRRSI, insts.OpCSRRCI:
		if g.rng.IntN(2) == 0 {
			inst.CSR, inst.Imm = insts.CSRMscratch, g.rng.Int32N(32)
		} else {
			inst.CSR = counterCSRs[g.rng.IntN(len(counterCSRs))]
		}
	}
}

// memory builds a 32-bit load or store. In single-address mode the operand
// is imm(x0); otherwise a random base that reaches a legal address is used,
// falling back to x0.
func (g *Generator) memory(inst insts.Instruction, entry optable.Entry, regs RegisterReader) (insts.Instruction, bool) {
	width := uint32(entry.Width)

	switch entry.Class {
	case optable.ClassLoad:
		inst.Rd = g.rd()
	case optable.ClassFPLoad:
		inst.Rd = g.freg()
	default:
		inst.Rs2 = g.reg()
	}

	if g.singleAddress {
		inst.Rs1, inst.Imm = 0, int32(g.address)
		return inst, true
	}

	for _, base := range g.rng.Perm(32) {
		r := uint8(base)
		if off, ok := g.pickOffset(regs.ReadReg(r), -2048, 2047, width); ok {
			inst.Rs1, inst.Imm = r, off
			return inst, true
		}
	}
	off, ok := g.pickOffset(0, -2048, 2047, width)
	inst.Rs1, inst.Imm = 0, off
	return inst, ok
}

// pickOffset returns an offset in [lo, hi] such that base+offset is
// aligned to width and inside the memory window when one is set.
func (g *Generator) pickOffset(base uint32, lo, hi int32, width uint32) (int32, bool) {
	b := int64(base)
	minAddr, maxAddr := b+int64(lo), b+int64(hi)
	if g.window > 0 {
		minAddr = max(minAddr, 0)
		maxAddr = min(maxAddr, int64(g.window)-int64(width))
	}

	align := int64(width)
	minAddr = (minAddr + align - 1) &^ (align - 1)
	maxAddr &^= align - 1
	if minAddr > maxAddr {
		return 0, false
	}

	addr := minAddr + align*g.rng.Int64N((maxAddr-minAddr)/align+1)
	return int32(addr - b), true
}

// usableAtomicBase reports whether v is a legal address for an atomic.
func (g *Generator) usableAtomicBase(v uint32) bool {
	switch {
	case g.singleAddress:
		return v == g.address
	case v&3 != 0:
		return false
	case g.window > 0:
		return uint64(v)+4 <= uint64(g.window)
	}
	return true
}

// atomicOp builds an LR, SC or AMO. Atomics have no offset, so the base
// register itself must hold the address. When none does, a setup addi
// loads one and the atomic is deferred to the next call.
func (g *Generator) atomicOp(inst insts.Instruction, regs RegisterReader) (insts.Instruction, bool) {
	inst.Rd = g.rd()
	if inst.Op != insts.OpLRW {
		inst.Rs2 = g.reg()
	}
	inst.Aq = g.rng.IntN(2) == 0
	inst.Rl = g.rng.IntN(2) == 0

	for _, base := range g.rng.Perm(31) {
		r := uint8(base + 1)
		if g.usableAtomicBase(regs.ReadReg(r)) {
			inst.Rs1 = r
			return inst, true
		}
	}

	addr := g.address
	if !g.singleAddress {
		off, ok := g.pickOffset(0, 0, 2047, 4)
		if !ok {
			return inst, false
		}
		addr = uint32(off)
	}

	op := inst.Op
	g.pending = &op
	return insts.Instruction{Op: insts.OpADDI, Rd: g.rdNonZero(), Imm: int32(addr)}, true
}

func (g *Generator) compressedALU(inst insts.Instruction, regs RegisterReader) (insts.Instruction, bool) {
	switch inst.Op {
	case insts.OpCADDI4SPN:
		inst.Rd = g.creg()
		inst.Imm = 4 + 4*g.rng.Int32N(255)

	case insts.OpCNOP:

	case insts.OpCADDI:
		inst.Rd = g.rdNonZero()
		inst.Imm = nonZero(g.rng.Int32N(64) - 32)

	case insts.OpCLI:
		inst.Rd = g.rdNonZero()
		inst.Imm = g.rng.Int32N(64) - 32

	case insts.OpCLUI:
		inst.Rd = g.rdNonZero()
		inst.Imm = nonZero(g.rng.Int32N(64) - 32)

	case insts.OpCADDI16SP:
		return g.addi16sp(inst, regs.ReadReg(SP))

	case insts.OpCSRLI, insts.OpCSRAI:
		inst.Rd = g.creg()
		inst.Imm = 1 + g.rng.Int32N(31)

	case insts.OpCANDI:
		inst.Rd = g.creg()
		inst.Imm = g.rng.Int32N(64) - 32

	case insts.OpCSUB, insts.OpCXOR, insts.OpCOR, insts.OpCAND:
		inst.Rd, inst.Rs2 = g.creg(), g.creg()

	case insts.OpCSLLI:
		inst.Rd = g.rdNonZero()
		inst.Imm = 1 + g.rng.Int32N(31)

	case insts.OpCMV, insts.OpCADD:
		inst.Rd = g.rdNonZero()
		inst.Rs2 = 1 + uint8(g.rng.IntN(31))

	default:
		return inst, false
	}
	return inst, true
}

func nonZero(imm int32) int32 {
	if imm == 0 {
		return 1
	}
	return imm
}

// addi16sp adjusts the stack pointer, keeping it inside the memory window
// when one is set.
func (g *Generator) addi16sp(inst insts.Instruction, sp uint32) (insts.Instruction, bool) {
	for range maxAttempts {
		imm := 16 * (g.rng.Int32N(64) - 32)
		if imm == 0 {
			continue
		}
		if g.window > 0 {
			next := int64(sp) + int64(imm)
			if next < 0 || next+4 > int64(g.window) {
				continue
			}
		}
		inst.Imm = imm
		return inst, true
	}
	return inst, false
}

// compressedMemory builds c.lw, c.sw, c.lwsp or c.swsp. Their offsets are
// unsigned and scaled by four, so the base must already be word aligned;
// when no base can reach a legal address the op is redrawn.
func (g *Generator) compressedMemory(inst insts.Instruction, regs RegisterReader) (insts.Instruction, bool) {
	sp := inst.Op == insts.OpCLWSP || inst.Op == insts.OpCSWSP
	hi := int32(124)
	if sp {
		hi = 252
	}

	switch inst.Op {
	case insts.OpCLW:
		inst.Rd = g.creg()
	case insts.OpCSW:
		inst.Rs2 = g.creg()
	case insts.OpCLWSP:
		inst.Rd = g.rdNonZero()
	case insts.OpCSWSP:
		inst.Rs2 = g.reg()
	}

	var bases []uint8
	if sp {
		bases = []uint8{SP}
	} else {
		for _, i := range g.rng.Perm(8) {
			bases = append(bases, uint8(8+i))
		}
	}

	if g.singleAddress {
		for _, r := range bases {
			off := int64(g.address) - int64(regs.ReadReg(r))
			if off >= 0 && off <= int64(hi) && off%4 == 0 {
				g.setBase(&inst, r, int32(off))
				return inst, true
			}
		}
	}

	for _, r := range bases {
		v := regs.ReadReg(r)
		if v&3 != 0 {
			continue
		}
		if off, ok := g.pickOffset(v, 0, hi, 4); ok {
			g.setBase(&inst, r, off)
			return inst, true
		}
	}
	return inst, false
}

func (g *Generator) setBase(inst *insts.Instruction, base uint8, off int32) {
	if base != SP {
		inst.Rs1 = base
	}
	inst.Imm = off
}

func (g *Generator) compressedJump(inst insts.Instruction, regs RegisterReader) (insts.Instruction, bool) {
	switch inst.Op {
	case insts.OpCJ, insts.OpCJAL:
		inst.Imm = g.offset(-2048, 2044)
		return inst, true
	}

	// c.jr and c.jalr clear bit 0 of the target, so a base ending in 0b00
	// or 0b01 lands on a word boundary.
	for _, i := range g.rng.Perm(31) {
		r := uint8(i + 1)
		if regs.ReadReg(r)&3 <= 1 {
			inst.Rs1 = r
			return inst, true
		}
	}
	return inst, false
}
