package refine

import (
	"fmt"

	"github.com/pkg/errors"
)

// Standard widths.
const (
	WidthBool = 1
	Width8    = 8
	Width16   = 16
	Width32   = 32
	Width64   = 64

	// WidthPtr is the width used for pointers, unsafe.Pointer & uintptr.
	WidthPtr = Width64
)

var (
	// Construction errors. These indicate a defect in the capturer and
	// must be propagated as hard failures.
	ErrInvalidOperator  = errors.New("invalid operator")
	ErrInvalidPredicate = errors.New("invalid predicate")
	ErrWidthMismatch    = errors.New("width mismatch")

	// ErrInconsistentConstraints is returned when the captured constraints
	// are jointly unsatisfiable.
	ErrInconsistentConstraints = errors.New("inconsistent constraints")

	ErrSolverUnavailable = errors.New("solver unavailable")

	// ErrSolverTimeout is a kind of ErrSolverUnavailable: the backend gave
	// no answer within its time limit.
	ErrSolverTimeout       = errors.WithMessage(ErrSolverUnavailable, "solver timeout")
	ErrSolverCanceled      = errors.New("solver canceled")
	ErrSolverResourceLimit = errors.New("solver resource limit")
	ErrSolverUnknown       = errors.New("solver unknown error")

	// ErrNoFixpoint is returned when the driver exceeds its round limit.
	ErrNoFixpoint = errors.New("fixpoint not reached")
)

// Validity is the result of checking a formula against the asserted set.
type Validity int

const (
	Unknown Validity = iota
	Valid
	Invalid
)

// String returns the string representation of the validity.
func (v Validity) String() string {
	switch v {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// assert panics if condition is false.
func assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("assert: "+format, args...))
	}
}
