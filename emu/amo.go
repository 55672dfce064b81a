// Package emu provides bit-exact RV32 execution models.
package emu

// AMO evaluators compute the value an atomic read-modify-write stores,
// given the old memory word and the source register. The destination
// register always receives old.

// AmoSwap stores src.
func AmoSwap(_, src uint32) uint32 { return src }

// AmoAdd stores old + src.
func AmoAdd(old, src uint32) uint32 { return old + src }

// AmoXor stores old ^ src.
func AmoXor(old, src uint32) uint32 { return old ^ src }

// AmoAnd stores old & src.
func AmoAnd(old, src uint32) uint32 { return old & src }

// AmoOr stores old | src.
func AmoOr(old, src uint32) uint32 { return old | src }

// AmoMin stores the signed minimum.
func AmoMin(old, src uint32) uint32 { return Min(old, src) }

// AmoMax stores the signed maximum.
func AmoMax(old, src uint32) uint32 { return Max(old, src) }

// AmoMinu stores the unsigned minimum.
func AmoMinu(old, src uint32) uint32 { return min(old, src) }

// AmoMaxu stores the unsigned maximum.
func AmoMaxu(old, src uint32) uint32 { return max(old, src) }

// AtomicAddress returns the word address an LR, SC or AMO operates on.
// The reference model aligns the register value down to a word boundary.
func AtomicAddress(base uint32) uint32 { return base &^ 3 }
