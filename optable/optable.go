// Package optable provides the immutable registry that maps every
// mnemonic to its instruction class and evaluator.
//
// The registry is built once at package initialization and never modified.
// Compressed mnemonics share the evaluator of the base instruction they
// expand to.
package optable

import (
	"fmt"
	"sort"

	"github.com/adambagley/frost/emu"
	"github.com/adambagley/frost/insts"
)

// Class partitions mnemonics by how they execute.
type Class uint8

// Instruction classes.
const (
	ClassUnknown Class = iota
	ClassALU
	ClassALUImm
	ClassUnary
	ClassUpper
	ClassLoad
	ClassStore
	ClassBranch
	ClassJump
	ClassFence
	ClassCSR
	ClassTrap
	ClassLR
	ClassSC
	ClassAMO
	ClassFPLoad
	ClassFPStore
	ClassFPArith
	ClassFPFused
	ClassFPUnary
	ClassFPCompare
	ClassFPToInt
	ClassIntToFP
	ClassCompressedALU
	ClassCompressedLoad
	ClassCompressedStore
	ClassCompressedBranch
	ClassCompressedJump
	ClassCompressedTrap
	numClasses
)

var classNames = [...]string{
	ClassUnknown:          "unknown",
	ClassALU:              "alu",
	ClassALUImm:           "alu-imm",
	ClassUnary:            "unary",
	ClassUpper:            "upper",
	ClassLoad:             "load",
	ClassStore:            "store",
	ClassBranch:           "branch",
	ClassJump:             "jump",
	ClassFence:            "fence",
	ClassCSR:              "csr",
	ClassTrap:             "trap",
	ClassLR:               "lr",
	ClassSC:               "sc",
	ClassAMO:              "amo",
	ClassFPLoad:           "fp-load",
	ClassFPStore:          "fp-store",
	ClassFPArith:          "fp-arith",
	ClassFPFused:          "fp-fused",
	ClassFPUnary:          "fp-unary",
	ClassFPCompare:        "fp-compare",
	ClassFPToInt:          "fp-to-int",
	ClassIntToFP:          "int-to-fp",
	ClassCompressedALU:    "c-alu",
	ClassCompressedLoad:   "c-load",
	ClassCompressedStore:  "c-store",
	ClassCompressedBranch: "c-branch",
	ClassCompressedJump:   "c-jump",
	ClassCompressedTrap:   "c-trap",
}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// IsCompressed reports whether c holds 16-bit mnemonics.
func (c Class) IsCompressed() bool {
	return c >= ClassCompressedALU && c <= ClassCompressedTrap
}

// IsFloat reports whether c belongs to the F extension.
func (c Class) IsFloat() bool {
	return c >= ClassFPLoad && c <= ClassIntToFP
}

// IsAtomic reports whether c belongs to the A extension.
func (c Class) IsAtomic() bool {
	return c == ClassLR || c == ClassSC || c == ClassAMO
}

// IsMemory reports whether c reads or writes data memory.
func (c Class) IsMemory() bool {
	switch c {
	case ClassLoad, ClassStore, ClassLR, ClassSC, ClassAMO, ClassFPLoad,
		ClassFPStore, ClassCompressedLoad, ClassCompressedStore:
		return true
	}
	return false
}

// Entry describes one mnemonic. Exactly one evaluator is set for classes
// that compute a value.
type Entry struct {
	Op    insts.Op
	Class Class

	// Base is the expanded instruction of a compressed mnemonic, or Op
	// itself.
	Base insts.Op

	ALU    func(a, b uint32) uint32
	Unary  func(a uint32) uint32
	Branch func(a, b uint32) bool
	AMO    func(old, src uint32) uint32

	FP1 func(a uint32) uint32
	FP2 func(a, b uint32) uint32
	FP3 func(a, b, c uint32) uint32

	// Width and Signed describe the access of loads and stores.
	Width  emu.Width
	Signed bool

	// Rounded marks floating-point ops that carry an rm field.
	Rounded bool
}

// Evaluates reports whether the entry carries an evaluator.
func (e Entry) Evaluates() bool {
	return e.ALU != nil || e.Unary != nil || e.Branch != nil || e.AMO != nil ||
		e.FP1 != nil || e.FP2 != nil || e.FP3 != nil
}

var (
	entries = map[insts.Op]Entry{}
	byClass = map[Class][]insts.Op{}
	random  []insts.Op
	encoder = insts.NewEncoder()
)

func alu(op insts.Op, fn func(a, b uint32) uint32) Entry {
	return Entry{Op: op, Class: ClassALU, ALU: fn}
}

func aluImm(op insts.Op, fn func(a, b uint32) uint32) Entry {
	return Entry{Op: op, Class: ClassALUImm, ALU: fn}
}

func unary(op insts.Op, fn func(a uint32) uint32) Entry {
	return Entry{Op: op, Class: ClassUnary, Unary: fn}
}

func load(op insts.Op, class Class, width emu.Width, signed bool) Entry {
	return Entry{Op: op, Class: class, Width: width, Signed: signed}
}

func store(op insts.Op, class Class, width emu.Width) Entry {
	return Entry{Op: op, Class: class, Width: width}
}

func branch(op insts.Op, fn func(a, b uint32) bool) Entry {
	return Entry{Op: op, Class: ClassBranch, Branch: fn}
}

func amo(op insts.Op, fn func(old, src uint32) uint32) Entry {
	return Entry{Op: op, Class: ClassAMO, AMO: fn, Width: emu.Word}
}

func fp1(op insts.Op, class Class, fn func(a uint32) uint32, rounded bool) Entry {
	return Entry{Op: op, Class: class, FP1: fn, Rounded: rounded}
}

func fp2(op insts.Op, class Class, fn func(a, b uint32) uint32, rounded bool) Entry {
	return Entry{Op: op, Class: class, FP2: fn, Rounded: rounded}
}

func fused(op insts.Op, fn func(a, b, c uint32) uint32) Entry {
	return Entry{Op: op, Class: ClassFPFused, FP3: fn, Rounded: true}
}

func simple(op insts.Op, class Class) Entry {
	return Entry{Op: op, Class: class}
}

var baseEntries = []Entry{
	alu(insts.OpADD, emu.Add),
	alu(insts.OpSUB, emu.Sub),
	alu(insts.OpAND, emu.And),
	alu(insts.OpOR, emu.Or),
	alu(insts.OpXOR, emu.Xor),
	alu(insts.OpSLL, emu.Sll),
	alu(insts.OpSRL, emu.Srl),
	alu(insts.OpSRA, emu.Sra),
	alu(insts.OpSLT, emu.Slt),
	alu(insts.OpSLTU, emu.Sltu),
	alu(insts.OpMUL, emu.Mul),
	alu(insts.OpMULH, emu.Mulh),
	alu(insts.OpMULHSU, emu.Mulhsu),
	alu(insts.OpMULHU, emu.Mulhu),
	alu(insts.OpDIV, emu.Div),
	alu(insts.OpDIVU, emu.Divu),
	alu(insts.OpREM, emu.Rem),
	alu(insts.OpREMU, emu.Remu),
	alu(insts.OpSH1ADD, emu.Sh1add),
	alu(insts.OpSH2ADD, emu.Sh2add),
	alu(insts.OpSH3ADD, emu.Sh3add),
	alu(insts.OpBSET, emu.Bset),
	alu(insts.OpBCLR, emu.Bclr),
	alu(insts.OpBINV, emu.Binv),
	alu(insts.OpBEXT, emu.Bext),
	alu(insts.OpANDN, emu.Andn),
	alu(insts.OpORN, emu.Orn),
	alu(insts.OpXNOR, emu.Xnor),
	alu(insts.OpMAX, emu.Max),
	alu(insts.OpMAXU, emu.Maxu),
	alu(insts.OpMIN, emu.Min),
	alu(insts.OpMINU, emu.Minu),
	alu(insts.OpROL, emu.Rol),
	alu(insts.OpROR, emu.Ror),
	alu(insts.OpCZEROEQZ, emu.CzeroEqz),
	alu(insts.OpCZERONEZ, emu.CzeroNez),
	alu(insts.OpPACK, emu.Pack),
	alu(insts.OpPACKH, emu.Packh),

	aluImm(insts.OpADDI, emu.Add),
	aluImm(insts.OpANDI, emu.And),
	aluImm(insts.OpORI, emu.Or),
	aluImm(insts.OpXORI, emu.Xor),
	aluImm(insts.OpSLTI, emu.Slt),
	aluImm(insts.OpSLTIU, emu.Sltu),
	aluImm(insts.OpSLLI, emu.Sll),
	aluImm(insts.OpSRLI, emu.Srl),
	aluImm(insts.OpSRAI, emu.Sra),
	aluImm(insts.OpBSETI, emu.Bset),
	aluImm(insts.OpBCLRI, emu.Bclr),
	aluImm(insts.OpBINVI, emu.Binv),
	aluImm(insts.OpBEXTI, emu.Bext),
	aluImm(insts.OpRORI, emu.Ror),

	unary(insts.OpCLZ, emu.Clz),
	unary(insts.OpCTZ, emu.Ctz),
	unary(insts.OpCPOP, emu.Cpop),
	unary(insts.OpSEXTB, emu.SextB),
	unary(insts.OpSEXTH, emu.SextH),
	unary(insts.OpZEXTH, emu.ZextH),
	unary(insts.OpORCB, emu.OrcB),
	unary(insts.OpREV8, emu.Rev8),
	unary(insts.OpBREV8, emu.Brev8),
	unary(insts.OpZIP, emu.Zip),
	unary(insts.OpUNZIP, emu.Unzip),

	{Op: insts.OpLUI, Class: ClassUpper, Unary: emu.Lui},
	{Op: insts.OpAUIPC, Class: ClassUpper, ALU: emu.Auipc},

	load(insts.OpLB, ClassLoad, emu.Byte, true),
	load(insts.OpLH, ClassLoad, emu.Half, true),
	load(insts.OpLW, ClassLoad, emu.Word, true),
	load(insts.OpLBU, ClassLoad, emu.Byte, false),
	load(insts.OpLHU, ClassLoad, emu.Half, false),
	store(insts.OpSB, ClassStore, emu.Byte),
	store(insts.OpSH, ClassStore, emu.Half),
	store(insts.OpSW, ClassStore, emu.Word),

	branch(insts.OpBEQ, emu.Beq),
	branch(insts.OpBNE, emu.Bne),
	branch(insts.OpBLT, emu.Blt),
	branch(insts.OpBGE, emu.Bge),
	branch(insts.OpBLTU, emu.Bltu),
	branch(insts.OpBGEU, emu.Bgeu),
	simple(insts.OpJAL, ClassJump),
	simple(insts.OpJALR, ClassJump),

	simple(insts.OpFENCE, ClassFence),
	simple(insts.OpFENCEI, ClassFence),
	simple(insts.OpPAUSE, ClassFence),

	simple(insts.OpCSRRW, ClassCSR),
	simple(insts.OpCSRRS, ClassCSR),
	simple(insts.OpCSRRC, ClassCSR),
	simple(insts.OpCSRRWI, ClassCSR),
	simple(insts.OpCSRRSI, ClassCSR),
	simple(insts.OpCSRRCI, ClassCSR),

	simple(insts.OpECALL, ClassTrap),
	simple(insts.OpEBREAK, ClassTrap),
	simple(insts.OpMRET, ClassTrap),
	simple(insts.OpWFI, ClassTrap),

	{Op: insts.OpLRW, Class: ClassLR, Width: emu.Word},
	{Op: insts.OpSCW, Class: ClassSC, Width: emu.Word},
	amo(insts.OpAMOSWAPW, emu.AmoSwap),
	amo(insts.OpAMOADDW, emu.AmoAdd),
	amo(insts.OpAMOXORW, emu.AmoXor),
	amo(insts.OpAMOANDW, emu.AmoAnd),
	amo(insts.OpAMOORW, emu.AmoOr),
	amo(insts.OpAMOMINW, emu.AmoMin),
	amo(insts.OpAMOMAXW, emu.AmoMax),
	amo(insts.OpAMOMINUW, emu.AmoMinu),
	amo(insts.OpAMOMAXUW, emu.AmoMaxu),

	load(insts.OpFLW, ClassFPLoad, emu.Word, false),
	store(insts.OpFSW, ClassFPStore, emu.Word),
	fp2(insts.OpFADDS, ClassFPArith, emu.FAdd, true),
	fp2(insts.OpFSUBS, ClassFPArith, emu.FSub, true),
	fp2(insts.OpFMULS, ClassFPArith, emu.FMul, true),
	fp2(insts.OpFDIVS, ClassFPArith, emu.FDiv, true),
	fp1(insts.OpFSQRTS, ClassFPUnary, emu.FSqrt, true),
	fused(insts.OpFMADDS, emu.FMA),
	fused(insts.OpFMSUBS, emu.FMSub),
	fused(insts.OpFNMADDS, emu.FNMAdd),
	fused(insts.OpFNMSUBS, emu.FNMSub),
	fp2(insts.OpFSGNJS, ClassFPArith, emu.FSgnj, false),
	fp2(insts.OpFSGNJNS, ClassFPArith, emu.FSgnjn, false),
	fp2(insts.OpFSGNJXS, ClassFPArith, emu.FSgnjx, false),
	fp2(insts.OpFMINS, ClassFPArith, emu.FMin, false),
	fp2(insts.OpFMAXS, ClassFPArith, emu.FMax, false),
	fp2(insts.OpFEQS, ClassFPCompare, emu.FEq, false),
	fp2(insts.OpFLTS, ClassFPCompare, emu.FLt, false),
	fp2(insts.OpFLES, ClassFPCompare, emu.FLe, false),
	fp1(insts.OpFCVTWS, ClassFPToInt, emu.FCvtWS, true),
	fp1(insts.OpFCVTWUS, ClassFPToInt, emu.FCvtWUS, true),
	fp1(insts.OpFMVXW, ClassFPToInt, emu.FMvXW, false),
	fp1(insts.OpFCLASSS, ClassFPToInt, emu.FClass, false),
	fp1(insts.OpFCVTSW, ClassIntToFP, emu.FCvtSW, true),
	fp1(insts.OpFCVTSWU, ClassIntToFP, emu.FCvtSWU, true),
	fp1(insts.OpFMVWX, ClassIntToFP, emu.FMvWX, false),
}

// compressedClasses assigns each 16-bit mnemonic its class; the evaluator
// comes from the base instruction it expands to.
var compressedClasses = map[insts.Op]Class{
	insts.OpCADDI4SPN: ClassCompressedALU,
	insts.OpCNOP:      ClassCompressedALU,
	insts.OpCADDI:     ClassCompressedALU,
	insts.OpCLI:       ClassCompressedALU,
	insts.OpCADDI16SP: ClassCompressedALU,
	insts.OpCLUI:      ClassCompressedALU,
	insts.OpCSRLI:     ClassCompressedALU,
	insts.OpCSRAI:     ClassCompressedALU,
	insts.OpCANDI:     ClassCompressedALU,
	insts.OpCSUB:      ClassCompressedALU,
	insts.OpCXOR:      ClassCompressedALU,
	insts.OpCOR:       ClassCompressedALU,
	insts.OpCAND:      ClassCompressedALU,
	insts.OpCSLLI:     ClassCompressedALU,
	insts.OpCMV:       ClassCompressedALU,
	insts.OpCADD:      ClassCompressedALU,
	insts.OpCLW:       ClassCompressedLoad,
	insts.OpCLWSP:     ClassCompressedLoad,
	insts.OpCSW:       ClassCompressedStore,
	insts.OpCSWSP:     ClassCompressedStore,
	insts.OpCBEQZ:     ClassCompressedBranch,
	insts.OpCBNEZ:     ClassCompressedBranch,
	insts.OpCJAL:      ClassCompressedJump,
	insts.OpCJ:        ClassCompressedJump,
	insts.OpCJR:       ClassCompressedJump,
	insts.OpCJALR:     ClassCompressedJump,
	insts.OpCEBREAK:   ClassCompressedTrap,
}

func init() {
	for _, e := range baseEntries {
		e.Base = e.Op
		register(e)
	}

	for op, class := range compressedClasses {
		base := insts.Expand(insts.Instruction{Op: op}).Op
		e := entries[base]
		e.Op, e.Class, e.Base = op, class, base
		register(e)
	}

	for _, ops := range byClass {
		sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	}

	for _, op := range insts.AllOps() {
		e, ok := entries[op]
		if !ok {
			panic(fmt.Sprintf("optable: %s has no entry", op))
		}
		if e.Class != ClassTrap && e.Class != ClassCompressedTrap {
			random = append(random, op)
		}
	}
}

func register(e Entry) {
	if _, dup := entries[e.Op]; dup {
		panic(fmt.Sprintf("optable: duplicate entry for %s", e.Op))
	}
	entries[e.Op] = e
	byClass[e.Class] = append(byClass[e.Class], e.Op)
}

// Lookup returns the entry of op.
func Lookup(op insts.Op) (Entry, bool) {
	e, ok := entries[op]
	return e, ok
}

// MustLookup returns the entry of op and panics if there is none.
func MustLookup(op insts.Op) Entry {
	e, ok := entries[op]
	if !ok {
		panic(fmt.Sprintf("optable: unknown op %s", op))
	}
	return e
}

// ClassOf returns the class of op.
func ClassOf(op insts.Op) Class {
	return entries[op].Class
}

// OpsIn returns the mnemonics of class c in enumeration order. The caller
// must not modify the result.
func OpsIn(c Class) []insts.Op {
	return byClass[c]
}

// Classes returns every populated class.
func Classes() []Class {
	var out []Class
	for c := ClassUnknown + 1; c < numClasses; c++ {
		if len(byClass[c]) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// Random returns the mnemonics eligible for random generation: everything
// except trap instructions, which are encode-only. The caller must not
// modify the result.
func Random() []insts.Op {
	return random
}

// IsControlFlow reports whether op can redirect the program counter.
func IsControlFlow(op insts.Op) bool {
	switch entries[op].Class {
	case ClassBranch, ClassJump, ClassCompressedBranch, ClassCompressedJump:
		return true
	}
	return false
}

// IsConditional reports whether op is a conditional branch.
func IsConditional(op insts.Op) bool {
	c := entries[op].Class
	return c == ClassBranch || c == ClassCompressedBranch
}

// Encode forwards to the codec.
func Encode(inst insts.Instruction) (uint32, error) {
	return encoder.Encode(inst)
}
