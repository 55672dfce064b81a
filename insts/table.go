// Package insts provides RISC-V RV32 instruction definitions, encoding and decoding.
package insts

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown    Format = iota
	FormatR                 // funct7 | rs2 | rs1 | funct3 | rd | opcode
	FormatR4                // rs3 | fmt | rs2 | rs1 | rm | rd | opcode
	FormatI                 // imm[11:0] | rs1 | funct3 | rd | opcode
	FormatShift             // funct7 | shamt | rs1 | funct3 | rd | opcode
	FormatS                 // imm[11:5] | rs2 | rs1 | funct3 | imm[4:0] | opcode
	FormatB                 // imm[12|10:5] | rs2 | rs1 | funct3 | imm[4:1|11] | opcode
	FormatU                 // imm[31:12] | rd | opcode
	FormatJ                 // imm[20|10:1|11|19:12] | rd | opcode
	FormatCSR               // csr | rs1 | funct3 | rd | opcode
	FormatCSRI              // csr | zimm | funct3 | rd | opcode
	FormatAtomic            // funct5 | aq | rl | rs2 | rs1 | funct3 | rd | opcode
	FormatFence             // fm | pred | succ | rs1 | funct3 | rd | opcode
	FormatFixed             // a single fixed word
	FormatCompressed        // one of the 16-bit quadrant layouts
)

// Major opcodes.
const (
	opcodeLoad    uint32 = 0x03
	opcodeLoadFP  uint32 = 0x07
	opcodeMiscMem uint32 = 0x0F
	opcodeOpImm   uint32 = 0x13
	opcodeAUIPC   uint32 = 0x17
	opcodeStore   uint32 = 0x23
	opcodeStoreFP uint32 = 0x27
	opcodeAMO     uint32 = 0x2F
	opcodeOp      uint32 = 0x33
	opcodeLUI     uint32 = 0x37
	opcodeMadd    uint32 = 0x43
	opcodeMsub    uint32 = 0x47
	opcodeNmsub   uint32 = 0x4B
	opcodeNmadd   uint32 = 0x4F
	opcodeOpFP    uint32 = 0x53
	opcodeBranch  uint32 = 0x63
	opcodeJALR    uint32 = 0x67
	opcodeJAL     uint32 = 0x6F
	opcodeSystem  uint32 = 0x73
)

// pauseFenceBits is the pred/succ byte of "fence w, 0", which encodes pause.
const pauseFenceBits = 0x10

// encoding describes how one 32-bit mnemonic maps onto its format.
type encoding struct {
	op     Op
	format Format
	opcode uint32
	funct3 uint32
	// funct7 holds funct5 for atomics.
	funct7 uint32
	// rs2 is a fixed rs2 selector, or -1 when rs2 is an operand.
	rs2 int8
	// rm marks funct3 as the rounding mode.
	rm   bool
	word uint32
}

func (e encoding) mask() uint32 {
	switch e.format {
	case FormatR, FormatShift:
		m := uint32(0xFE00007F)
		if !e.rm {
			m |= 0x7000
		}
		if e.rs2 >= 0 {
			m |= 0x01F00000
		}
		return m
	case FormatAtomic:
		m := uint32(0xF800707F)
		if e.rs2 >= 0 {
			m |= 0x01F00000
		}
		return m
	case FormatR4:
		return 0x0600007F
	case FormatU, FormatJ:
		return 0x7F
	case FormatFence:
		return 0xF00FFFFF
	case FormatFixed:
		return 0xFFFFFFFF
	default:
		return 0x707F
	}
}

func (e encoding) match() uint32 {
	switch e.format {
	case FormatR, FormatShift:
		v := e.opcode | e.funct7<<25
		if !e.rm {
			v |= e.funct3 << 12
		}
		if e.rs2 >= 0 {
			v |= uint32(e.rs2) << 20
		}
		return v
	case FormatAtomic:
		v := e.opcode | e.funct3<<12 | e.funct7<<27
		if e.rs2 >= 0 {
			v |= uint32(e.rs2) << 20
		}
		return v
	case FormatR4, FormatU, FormatJ, FormatFence:
		return e.opcode
	case FormatFixed:
		return e.word
	default:
		return e.opcode | e.funct3<<12
	}
}

func rType(op Op, opcode, f3, f7 uint32) encoding {
	return encoding{op: op, format: FormatR, opcode: opcode, funct3: f3, funct7: f7, rs2: -1}
}

func unary(op Op, opcode, f3, f7 uint32, rs2 int8) encoding {
	return encoding{op: op, format: FormatR, opcode: opcode, funct3: f3, funct7: f7, rs2: rs2}
}

func fpRType(op Op, f7 uint32) encoding {
	return encoding{op: op, format: FormatR, opcode: opcodeOpFP, funct7: f7, rs2: -1, rm: true}
}

func fpUnary(op Op, f7 uint32, rs2 int8) encoding {
	return encoding{op: op, format: FormatR, opcode: opcodeOpFP, funct7: f7, rs2: rs2, rm: true}
}

func shift(op Op, f3, f7 uint32) encoding {
	return encoding{op: op, format: FormatShift, opcode: opcodeOpImm, funct3: f3, funct7: f7, rs2: -1}
}

func simple(op Op, format Format, opcode, f3 uint32) encoding {
	return encoding{op: op, format: format, opcode: opcode, funct3: f3, rs2: -1}
}

func atomic(op Op, f5 uint32, rs2 int8) encoding {
	return encoding{op: op, format: FormatAtomic, opcode: opcodeAMO, funct3: 2, funct7: f5, rs2: rs2}
}

func fixed(op Op, word uint32) encoding {
	return encoding{op: op, format: FormatFixed, word: word, rs2: -1}
}

// encodings lists every 32-bit mnemonic. Decoding takes the first row that
// matches, so aliases with a fixed field come before the general form.
var encodings = []encoding{
	// Fixed words.
	fixed(OpPAUSE, 0x0100000F),
	fixed(OpFENCEI, 0x0000100F),
	fixed(OpECALL, 0x00000073),
	fixed(OpEBREAK, 0x00100073),
	fixed(OpMRET, 0x30200073),
	fixed(OpWFI, 0x10500073),

	// Unary bit-manipulation, selected by the rs2 field.
	unary(OpCLZ, opcodeOpImm, 1, 0x30, 0),
	unary(OpCTZ, opcodeOpImm, 1, 0x30, 1),
	unary(OpCPOP, opcodeOpImm, 1, 0x30, 2),
	unary(OpSEXTB, opcodeOpImm, 1, 0x30, 4),
	unary(OpSEXTH, opcodeOpImm, 1, 0x30, 5),
	unary(OpORCB, opcodeOpImm, 5, 0x14, 7),
	unary(OpREV8, opcodeOpImm, 5, 0x34, 0x18),
	unary(OpBREV8, opcodeOpImm, 5, 0x34, 7),
	unary(OpZIP, opcodeOpImm, 1, 0x04, 15),
	unary(OpUNZIP, opcodeOpImm, 5, 0x04, 15),
	unary(OpZEXTH, opcodeOp, 4, 0x04, 0),

	// RV32I register-register.
	rType(OpADD, opcodeOp, 0, 0x00),
	rType(OpSUB, opcodeOp, 0, 0x20),
	rType(OpSLL, opcodeOp, 1, 0x00),
	rType(OpSLT, opcodeOp, 2, 0x00),
	rType(OpSLTU, opcodeOp, 3, 0x00),
	rType(OpXOR, opcodeOp, 4, 0x00),
	rType(OpSRL, opcodeOp, 5, 0x00),
	rType(OpSRA, opcodeOp, 5, 0x20),
	rType(OpOR, opcodeOp, 6, 0x00),
	rType(OpAND, opcodeOp, 7, 0x00),

	// M.
	rType(OpMUL, opcodeOp, 0, 0x01),
	rType(OpMULH, opcodeOp, 1, 0x01),
	rType(OpMULHSU, opcodeOp, 2, 0x01),
	rType(OpMULHU, opcodeOp, 3, 0x01),
	rType(OpDIV, opcodeOp, 4, 0x01),
	rType(OpDIVU, opcodeOp, 5, 0x01),
	rType(OpREM, opcodeOp, 6, 0x01),
	rType(OpREMU, opcodeOp, 7, 0x01),

	// Zba.
	rType(OpSH1ADD, opcodeOp, 2, 0x10),
	rType(OpSH2ADD, opcodeOp, 4, 0x10),
	rType(OpSH3ADD, opcodeOp, 6, 0x10),

	// Zbs.
	rType(OpBSET, opcodeOp, 1, 0x14),
	rType(OpBCLR, opcodeOp, 1, 0x24),
	rType(OpBINV, opcodeOp, 1, 0x34),
	rType(OpBEXT, opcodeOp, 5, 0x24),

	// Zbb.
	rType(OpANDN, opcodeOp, 7, 0x20),
	rType(OpORN, opcodeOp, 6, 0x20),
	rType(OpXNOR, opcodeOp, 4, 0x20),
	rType(OpMAX, opcodeOp, 6, 0x05),
	rType(OpMAXU, opcodeOp, 7, 0x05),
	rType(OpMIN, opcodeOp, 4, 0x05),
	rType(OpMINU, opcodeOp, 5, 0x05),
	rType(OpROL, opcodeOp, 1, 0x30),
	rType(OpROR, opcodeOp, 5, 0x30),

	// Zicond and Zbkb.
	rType(OpCZEROEQZ, opcodeOp, 5, 0x07),
	rType(OpCZERONEZ, opcodeOp, 7, 0x07),
	rType(OpPACK, opcodeOp, 4, 0x04),
	rType(OpPACKH, opcodeOp, 7, 0x04),

	// Register-immediate.
	simple(OpADDI, FormatI, opcodeOpImm, 0),
	simple(OpSLTI, FormatI, opcodeOpImm, 2),
	simple(OpSLTIU, FormatI, opcodeOpImm, 3),
	simple(OpXORI, FormatI, opcodeOpImm, 4),
	simple(OpORI, FormatI, opcodeOpImm, 6),
	simple(OpANDI, FormatI, opcodeOpImm, 7),
	shift(OpSLLI, 1, 0x00),
	shift(OpSRLI, 5, 0x00),
	shift(OpSRAI, 5, 0x20),
	shift(OpBSETI, 1, 0x14),
	shift(OpBCLRI, 1, 0x24),
	shift(OpBINVI, 1, 0x34),
	shift(OpBEXTI, 5, 0x24),
	shift(OpRORI, 5, 0x30),

	// Upper immediate.
	simple(OpLUI, FormatU, opcodeLUI, 0),
	simple(OpAUIPC, FormatU, opcodeAUIPC, 0),

	// Loads and stores.
	simple(OpLB, FormatI, opcodeLoad, 0),
	simple(OpLH, FormatI, opcodeLoad, 1),
	simple(OpLW, FormatI, opcodeLoad, 2),
	simple(OpLBU, FormatI, opcodeLoad, 4),
	simple(OpLHU, FormatI, opcodeLoad, 5),
	simple(OpSB, FormatS, opcodeStore, 0),
	simple(OpSH, FormatS, opcodeStore, 1),
	simple(OpSW, FormatS, opcodeStore, 2),

	// Branches and jumps.
	simple(OpBEQ, FormatB, opcodeBranch, 0),
	simple(OpBNE, FormatB, opcodeBranch, 1),
	simple(OpBLT, FormatB, opcodeBranch, 4),
	simple(OpBGE, FormatB, opcodeBranch, 5),
	simple(OpBLTU, FormatB, opcodeBranch, 6),
	simple(OpBGEU, FormatB, opcodeBranch, 7),
	simple(OpJAL, FormatJ, opcodeJAL, 0),
	simple(OpJALR, FormatI, opcodeJALR, 0),

	// Fence.
	simple(OpFENCE, FormatFence, opcodeMiscMem, 0),

	// Zicsr.
	simple(OpCSRRW, FormatCSR, opcodeSystem, 1),
	simple(OpCSRRS, FormatCSR, opcodeSystem, 2),
	simple(OpCSRRC, FormatCSR, opcodeSystem, 3),
	simple(OpCSRRWI, FormatCSRI, opcodeSystem, 5),
	simple(OpCSRRSI, FormatCSRI, opcodeSystem, 6),
	simple(OpCSRRCI, FormatCSRI, opcodeSystem, 7),

	// A.
	atomic(OpLRW, 0b00010, 0),
	atomic(OpSCW, 0b00011, -1),
	atomic(OpAMOSWAPW, 0b00001, -1),
	atomic(OpAMOADDW, 0b00000, -1),
	atomic(OpAMOXORW, 0b00100, -1),
	atomic(OpAMOANDW, 0b01100, -1),
	atomic(OpAMOORW, 0b01000, -1),
	atomic(OpAMOMINW, 0b10000, -1),
	atomic(OpAMOMAXW, 0b10100, -1),
	atomic(OpAMOMINUW, 0b11000, -1),
	atomic(OpAMOMAXUW, 0b11100, -1),

	// F.
	simple(OpFLW, FormatI, opcodeLoadFP, 2),
	simple(OpFSW, FormatS, opcodeStoreFP, 2),
	fpRType(OpFADDS, 0x00),
	fpRType(OpFSUBS, 0x04),
	fpRType(OpFMULS, 0x08),
	fpRType(OpFDIVS, 0x0C),
	fpUnary(OpFSQRTS, 0x2C, 0),
	rType(OpFSGNJS, opcodeOpFP, 0, 0x10),
	rType(OpFSGNJNS, opcodeOpFP, 1, 0x10),
	rType(OpFSGNJXS, opcodeOpFP, 2, 0x10),
	rType(OpFMINS, opcodeOpFP, 0, 0x14),
	rType(OpFMAXS, opcodeOpFP, 1, 0x14),
	rType(OpFEQS, opcodeOpFP, 2, 0x50),
	rType(OpFLTS, opcodeOpFP, 1, 0x50),
	rType(OpFLES, opcodeOpFP, 0, 0x50),
	fpUnary(OpFCVTWS, 0x60, 0),
	fpUnary(OpFCVTWUS, 0x60, 1),
	fpUnary(OpFCVTSW, 0x68, 0),
	fpUnary(OpFCVTSWU, 0x68, 1),
	unary(OpFMVXW, opcodeOpFP, 0, 0x70, 0),
	unary(OpFCLASSS, opcodeOpFP, 1, 0x70, 0),
	unary(OpFMVWX, opcodeOpFP, 0, 0x78, 0),
	{op: OpFMADDS, format: FormatR4, opcode: opcodeMadd, rs2: -1, rm: true},
	{op: OpFMSUBS, format: FormatR4, opcode: opcodeMsub, rs2: -1, rm: true},
	{op: OpFNMSUBS, format: FormatR4, opcode: opcodeNmsub, rs2: -1, rm: true},
	{op: OpFNMADDS, format: FormatR4, opcode: opcodeNmadd, rs2: -1, rm: true},
}

var encodingByOp = func() map[Op]encoding {
	m := make(map[Op]encoding, len(encodings))
	for _, e := range encodings {
		m[e.op] = e
	}
	return m
}()

// FormatOf returns the encoding format of op.
func FormatOf(op Op) Format {
	if op.IsCompressed() {
		return FormatCompressed
	}
	if e, ok := encodingByOp[op]; ok {
		return e.format
	}
	return FormatUnknown
}

// Fields is a set of operand fields carried by an encoding.
type Fields uint16

// Operand fields.
const (
	FieldRd Fields = 1 << iota
	FieldRs1
	FieldRs2
	FieldRs3
	FieldImm
	FieldCSR
	FieldRm
	FieldAqRl
)

// Has reports whether f includes every field in g.
func (f Fields) Has(g Fields) bool { return f&g == g }

var compressedFields = map[Op]Fields{
	OpCADDI4SPN: FieldRd | FieldImm,
	OpCLW:       FieldRd | FieldRs1 | FieldImm,
	OpCSW:       FieldRs1 | FieldRs2 | FieldImm,
	OpCNOP:      0,
	OpCADDI:     FieldRd | FieldImm,
	OpCJAL:      FieldImm,
	OpCLI:       FieldRd | FieldImm,
	OpCADDI16SP: FieldImm,
	OpCLUI:      FieldRd | FieldImm,
	OpCSRLI:     FieldRd | FieldImm,
	OpCSRAI:     FieldRd | FieldImm,
	OpCANDI:     FieldRd | FieldImm,
	OpCSUB:      FieldRd | FieldRs2,
	OpCXOR:      FieldRd | FieldRs2,
	OpCOR:       FieldRd | FieldRs2,
	OpCAND:      FieldRd | FieldRs2,
	OpCJ:        FieldImm,
	OpCBEQZ:     FieldRs1 | FieldImm,
	OpCBNEZ:     FieldRs1 | FieldImm,
	OpCSLLI:     FieldRd | FieldImm,
	OpCLWSP:     FieldRd | FieldImm,
	OpCJR:       FieldRs1,
	OpCMV:       FieldRd | FieldRs2,
	OpCEBREAK:   0,
	OpCJALR:     FieldRs1,
	OpCADD:      FieldRd | FieldRs2,
	OpCSWSP:     FieldRs2 | FieldImm,
}

// FieldsOf reports which operand fields the encoding of op carries.
func FieldsOf(op Op) Fields {
	if op.IsCompressed() {
		return compressedFields[op]
	}

	e, ok := encodingByOp[op]
	if !ok {
		return 0
	}

	switch e.format {
	case FormatR:
		f := FieldRd | FieldRs1
		if e.rs2 < 0 {
			f |= FieldRs2
		}
		if e.rm {
			f |= FieldRm
		}
		return f
	case FormatR4:
		return FieldRd | FieldRs1 | FieldRs2 | FieldRs3 | FieldRm
	case FormatI, FormatShift:
		return FieldRd | FieldRs1 | FieldImm
	case FormatS, FormatB:
		return FieldRs1 | FieldRs2 | FieldImm
	case FormatU, FormatJ:
		return FieldRd | FieldImm
	case FormatCSR:
		return FieldRd | FieldRs1 | FieldCSR
	case FormatCSRI:
		return FieldRd | FieldImm | FieldCSR
	case FormatAtomic:
		f := FieldRd | FieldRs1 | FieldAqRl
		if e.rs2 < 0 {
			f |= FieldRs2
		}
		return f
	case FormatFence:
		return FieldImm
	}
	return 0
}
