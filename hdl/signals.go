// Package hdl provides the clocked signal interface between the verification
// core and a hardware design, plus a cooperative single-clock runtime that
// drives an in-process model through that interface.
package hdl

import "context"

// Edge identifies a clock transition.
type Edge uint8

// Clock edges.
const (
	Rising Edge = iota
	Falling
)

func (e Edge) String() string {
	if e == Rising {
		return "rising"
	}
	return "falling"
}

// RegSnapshot is the architectural register state after a retiring
// instruction.
type RegSnapshot struct {
	// X is the integer register file. X[0] is always zero.
	X [32]uint32

	// F is the single-precision floating-point register file.
	F [32]uint32
}

// MemWrite is one write on the data memory port.
type MemWrite struct {
	// Addr is the word-aligned target address.
	Addr uint32

	// Data holds the store value positioned on its byte lanes.
	Data uint32

	// Mask is the 4-bit byte enable. Zero means no write.
	Mask uint8
}

// Valid reports whether w enables any byte.
func (w MemWrite) Valid() bool { return w.Mask != 0 }

// Signals is the set of hardware signals the verification core reads and
// writes. Output signals reflect the state after the most recent clock edge.
type Signals interface {
	// DriveInstruction presents an instruction word to be sampled on the
	// next rising edge.
	DriveInstruction(word uint32)

	// DriveIdle presents no instruction; the next rising edge inserts a
	// bubble.
	DriveIdle()

	// Ready reports whether the design will accept the driven word on the
	// next rising edge.
	Ready() bool

	// RegfileValid reports whether an instruction retired on the last edge.
	RegfileValid() bool

	// Regfile returns the register state after the retiring instruction.
	Regfile() RegSnapshot

	// PCValid reports whether the next-PC output is valid.
	PCValid() bool

	// PC returns the program counter that follows the retiring instruction.
	PC() uint32

	// MemWrite returns the data memory write performed on the last edge.
	MemWrite() (MemWrite, bool)

	// ReadRegister returns a named architectural register (x0..x31,
	// f0..f31) for test setup.
	ReadRegister(name string) (uint32, error)

	// WriteRegister overwrites a named architectural register.
	WriteRegister(name string, value uint32) error

	// SetReset drives the synchronous reset input.
	SetReset(asserted bool)

	// InReset reports whether the design is held in reset.
	InReset() bool
}

// Port is the view a task has of the design: the signals plus the ability
// to suspend until a clock edge.
type Port interface {
	Signals

	// AwaitEdge suspends the calling task until the next edge of the given
	// kind. Signals read after it returns reflect that edge.
	AwaitEdge(ctx context.Context, edge Edge) error

	// Cycle returns the number of rising edges seen so far.
	Cycle() uint64
}

// Task is a cooperative process bound to the clock.
type Task func(ctx context.Context, p Port) error

// Runtime schedules tasks against one clock.
type Runtime interface {
	// Spawn registers a background task. Background tasks are cancelled
	// when the main task returns.
	Spawn(name string, task Task)

	// Run executes main and every spawned task until main returns or any
	// task fails.
	Run(ctx context.Context, name string, main Task) error
}

// Model is a clocked design that a Sim can drive.
type Model interface {
	Signals

	// Tick advances the design by one clock edge.
	Tick(edge Edge)
}

// MemorySnapshot exposes the initial contents of the design's data memory
// so the reference memory can start identical.
type MemorySnapshot interface {
	// MemoryWords returns the number of 32-bit words in the snapshot.
	MemoryWords() int

	// ReadMemoryWord returns word i, which lives at byte address 4*i.
	ReadMemoryWord(i int) uint32
}

// AwaitCycles waits for n rising edges.
func AwaitCycles(ctx context.Context, p Port, n int) error {
	for range n {
		if err := p.AwaitEdge(ctx, Rising); err != nil {
			return err
		}
	}
	return nil
}

// AwaitReady waits on successive rising/falling edge pairs until the design
// is out of reset and ready, and returns the number of cycles spent
// waiting. The caller must be positioned just after a falling edge.
func AwaitReady(ctx context.Context, p Port) (int, error) {
	waited := 0
	for p.InReset() || !p.Ready() {
		if err := p.AwaitEdge(ctx, Rising); err != nil {
			return waited, err
		}
		if err := p.AwaitEdge(ctx, Falling); err != nil {
			return waited, err
		}
		waited++
	}
	return waited, nil
}
