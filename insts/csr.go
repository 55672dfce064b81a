// Package insts provides RISC-V RV32 instruction definitions, encoding and decoding.
package insts

// Control and status register addresses.
const (
	CSRMscratch uint16 = 0x340
	CSRCycle    uint16 = 0xC00
	CSRTime     uint16 = 0xC01
	CSRInstret  uint16 = 0xC02
	CSRCycleH   uint16 = 0xC80
	CSRTimeH    uint16 = 0xC81
	CSRInstretH uint16 = 0xC82
)

// IsReadOnlyCSR reports whether csr is in the read-only address range.
func IsReadOnlyCSR(csr uint16) bool {
	return csr>>10&3 == 3
}
