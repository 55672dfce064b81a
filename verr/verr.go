// Package verr defines the error variants raised during a co-verification run.
//
// Every variant carries the structured context needed to reproduce the failure
// and reports its category through Kind. All of them are fatal to the run that
// raised them.
package verr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies an error variant.
type Kind uint8

const (
	// KindEncoding marks an instruction the codec cannot represent.
	KindEncoding Kind = iota + 1
	// KindAlignment marks a misaligned memory access.
	KindAlignment
	// KindReservation marks an inconsistent LR/SC reservation request.
	KindReservation
	// KindMismatch marks a divergence between hardware and model.
	KindMismatch
	// KindCoverage marks a post-run coverage shortfall.
	KindCoverage
)

var kindNames = map[Kind]string{
	KindEncoding:    "encoding",
	KindAlignment:   "alignment",
	KindReservation: "reservation",
	KindMismatch:    "mismatch",
	KindCoverage:    "coverage",
}

// String returns the kind name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Error is implemented by every variant in this package.
type Error interface {
	error
	Kind() Kind
}

// KindOf reports the kind of the first variant found in err's chain.
func KindOf(err error) (Kind, bool) {
	var e Error
	if errors.As(err, &e) {
		return e.Kind(), true
	}
	return 0, false
}

// EncodingError reports an operand the codec cannot represent, or a word it
// cannot decode.
type EncodingError struct {
	Op     string
	Field  string
	Value  int64
	Reason string
}

func (e *EncodingError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("encoding %s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("encoding %s: %s=%d %s", e.Op, e.Field, e.Value, e.Reason)
}

// Kind returns KindEncoding.
func (e *EncodingError) Kind() Kind { return KindEncoding }

// AlignmentError reports a memory access that is not naturally aligned.
type AlignmentError struct {
	Op        string
	Addr      uint32
	Alignment uint32
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("%s: address 0x%08x is not %d-byte aligned",
		e.Op, e.Addr, e.Alignment)
}

// Kind returns KindAlignment.
func (e *AlignmentError) Kind() Kind { return KindAlignment }

// ReservationProtocolViolation reports an LR/SC request the tracker cannot
// honor in its current state.
type ReservationProtocolViolation struct {
	Addr   uint32
	Reason string
}

func (e *ReservationProtocolViolation) Error() string {
	return fmt.Sprintf("reservation protocol violation at 0x%08x: %s",
		e.Addr, e.Reason)
}

// Kind returns KindReservation.
func (e *ReservationProtocolViolation) Kind() Kind { return KindReservation }

// MismatchError reports hardware output that differs from the prediction.
//
// Unexpected is set when the hardware produced a result with nothing queued
// for it. Missing is set when predictions were never matched by hardware
// output.
type MismatchError struct {
	Channel    string
	Field      string
	Expected   uint64
	Actual     uint64
	Cycle      uint64
	Seed       uint64
	Unexpected bool
	Missing    bool
	Diff       string
}

func (e *MismatchError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s mismatch at cycle %d (seed %d)", e.Channel, e.Cycle, e.Seed)
	switch {
	case e.Unexpected:
		fmt.Fprintf(&b, ": unexpected output 0x%x with empty queue", e.Actual)
	case e.Missing:
		fmt.Fprintf(&b, ": %d expectations never observed", e.Expected)
	default:
		if e.Field != "" {
			fmt.Fprintf(&b, ": %s", e.Field)
		}
		fmt.Fprintf(&b, " expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
	}
	if e.Diff != "" {
		fmt.Fprintf(&b, "\n%s", e.Diff)
	}

	return b.String()
}

// Kind returns KindMismatch.
func (e *MismatchError) Kind() Kind { return KindMismatch }

// CoverageError lists the mnemonics executed fewer than Min times.
type CoverageError struct {
	Min    int
	Failed []string
}

func (e *CoverageError) Error() string {
	return fmt.Sprintf("coverage below %d for %d mnemonics: %s",
		e.Min, len(e.Failed), strings.Join(e.Failed, ", "))
}

// Kind returns KindCoverage.
func (e *CoverageError) Kind() Kind { return KindCoverage }
