package zen

import (
	"errors"
	"fmt"
)

// Standard widths.
const (
	WidthBool   = 1
	Width8      = 8
	Width16     = 16
	Width32     = 32
	Width64     = 64
	WidthChar   = 21
	WidthLength = Width16
)

// MaxChar is the largest valid character codepoint.
const MaxChar = 0x10FFFF

// MaxListCap is the largest capacity of a bounded list.
const MaxListCap = 1<<WidthLength - 1

var (
	// ErrType is returned for shape errors detected while building
	// expressions: unknown field names, missing object fields, constants
	// that do not match their declared type.
	ErrType = errors.New("type error")

	// ErrDomain is returned for values outside the valid range of a type.
	ErrDomain = errors.New("value out of domain")

	// ErrBackendNotApplicable is returned when an expression reaches a type
	// that a backend cannot encode. Use a general backend instead.
	ErrBackendNotApplicable = errors.New("backend not applicable")

	// ErrUnsupported is returned for operations a backend refuses to encode.
	ErrUnsupported = errors.New("unsupported operation")
)

var (
	ErrSolverTimeout       = errors.New("Solver timeout")
	ErrSolverCanceled      = errors.New("Solver canceled")
	ErrSolverResourceLimit = errors.New("Solver resource limit")
	ErrSolverUnknown       = errors.New("Solver unknown error")
)

// assert panics if condition is false.
func assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("assert: "+format, args...))
	}
}
