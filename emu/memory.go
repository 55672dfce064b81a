// Package emu provides bit-exact RV32 execution models.
package emu

// Memory is a sparse, byte-addressable, little-endian memory image.
// Bytes never written read as zero. Half-word and word reads align the
// address down to the natural boundary.
type Memory struct {
	bytes map[uint32]byte
	mask  uint32
}

// MemoryOption configures a Memory.
type MemoryOption func(*Memory)

// WithAddressMask restricts the address space: every address is ANDed with
// mask before use, so the image wraps like a small physical RAM.
func WithAddressMask(mask uint32) MemoryOption {
	return func(m *Memory) {
		m.mask = mask
	}
}

// NewMemory creates an empty memory image.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		bytes: make(map[uint32]byte),
		mask:  0xFFFFFFFF,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Read8 reads one byte.
func (m *Memory) Read8(addr uint32) uint8 {
	return m.bytes[addr&m.mask]
}

// Write8 writes one byte.
func (m *Memory) Write8(addr uint32, value uint8) {
	m.bytes[addr&m.mask] = value
}

// Read16 reads the half-word containing addr.
func (m *Memory) Read16(addr uint32) uint16 {
	addr &^= 1
	return uint16(m.Read8(addr)) | uint16(m.Read8(addr+1))<<8
}

// Write16 writes the half-word containing addr.
func (m *Memory) Write16(addr uint32, value uint16) {
	addr &^= 1
	m.Write8(addr, uint8(value))
	m.Write8(addr+1, uint8(value>>8))
}

// Read32 reads the word containing addr.
func (m *Memory) Read32(addr uint32) uint32 {
	addr &^= 3
	var v uint32
	for i := uint32(0); i < 4; i++ {
		v |= uint32(m.Read8(addr+i)) << (8 * i)
	}
	return v
}

// Write32 writes the word containing addr.
func (m *Memory) Write32(addr uint32, value uint32) {
	m.WriteMasked(addr, value, 0xF)
}

// WriteMasked applies a lane-positioned bus write: byte lane i of data is
// written to (addr&^3)+i when bit i of mask is set.
func (m *Memory) WriteMasked(addr, data uint32, mask uint8) {
	addr &^= 3
	for i := uint32(0); i < 4; i++ {
		if mask>>i&1 == 1 {
			m.Write8(addr+i, uint8(data>>(8*i)))
		}
	}
}

// Seed loads consecutive words starting at base, typically the initial
// contents read back from the device under test.
func (m *Memory) Seed(base uint32, words []uint32) {
	for i, w := range words {
		m.Write32(base+uint32(i)*4, w)
	}
}

// Reset discards every written byte.
func (m *Memory) Reset() {
	clear(m.bytes)
}

// Len returns the number of bytes that have been written.
func (m *Memory) Len() int {
	return len(m.bytes)
}

// StoreMask returns the 4-bit byte-enable mask of a store of width bytes
// to addr. Half-word stores select the lower or upper lane pair.
func StoreMask(width Width, addr uint32) uint8 {
	off := addr & 3
	switch width {
	case Byte:
		return 1 << off
	case Half:
		if off < 2 {
			return 0b0011
		}
		return 0b1100
	default:
		return 0b1111
	}
}
