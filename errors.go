package cascade

import (
	"errors"
	"fmt"
)

var (
	// ErrNoConfigSpace is the panic value of New when called without a
	// configuration space.
	ErrNoConfigSpace = errors.New("configuration space must not be nil")
)

// ErrDuplicateConstraint indicates that a constraint wrapping the same
// logical function is already registered. Identity is the function name,
// not the wrapper's address: two wrappers around the same function
// collide.
type ErrDuplicateConstraint struct {
	Name string
}

func (e *ErrDuplicateConstraint) Error() string {
	return fmt.Sprintf("constraint %q already in solver", e.Name)
}

// ErrDimensionMismatch indicates a configuration or target vector of the
// wrong length.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrRhsInequalityRows indicates a bulk right-hand-side vector carrying
// non-neutral values on inequality rows. Only reported in strict mode;
// by default the values are silently projected away.
type ErrRhsInequalityRows struct {
	Level int
	Row   int
}

func (e *ErrRhsInequalityRows) Error() string {
	return fmt.Sprintf("right-hand side has non-neutral value on inequality row %d of level %d", e.Row, e.Level)
}
