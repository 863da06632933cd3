package constraint

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/kinodyn/cascade/manifold"
	"github.com/kinodyn/cascade/segment"
)

// Comparison tags one output row of a constraint.
type Comparison uint8

const (
	// Equality: the row's output must match the right-hand side.
	Equality Comparison = iota
	// Superior: the row's output must stay at or above the right-hand
	// side (one-sided, active only while violated).
	Superior
	// Inferior: the row's output must stay at or below the right-hand
	// side.
	Inferior
)

func (c Comparison) String() string {
	switch c {
	case Equality:
		return "Equality"
	case Superior:
		return "Superior"
	case Inferior:
		return "Inferior"
	default:
		return "Unknown"
	}
}

// Function is a differentiable map from the configuration space to an
// output manifold.
//
// Identity is the function name: two Function values with the same Name
// are treated as the same logical constraint function by the solver, even
// when they are distinct objects wrapping the same computation.
type Function interface {
	// Name identifies the function.
	Name() string

	// InputSize is the embedding dimension of the input configuration.
	InputSize() int

	// InputDerivativeSize is the tangent dimension of the input space,
	// i.e. the number of Jacobian columns.
	InputDerivativeSize() int

	// OutputSpace describes the output manifold.
	OutputSpace() manifold.Space

	// ActiveParameters holds the configuration indices the value depends
	// on.
	ActiveParameters() *roaring.Bitmap

	// ActiveDerivativeParameters holds the tangent indices with
	// potentially nonzero Jacobian columns.
	ActiveDerivativeParameters() *roaring.Bitmap

	// Value evaluates the function at q into out (length
	// OutputSpace().NQ()).
	Value(out, q []float64)

	// Jacobian fills dst, row-major OutputSpace().NV() ×
	// InputDerivativeSize(), with the tangent-space Jacobian at q.
	Jacobian(dst, q []float64)
}

// Constraint couples a Function with the metadata the solver needs:
// per-row comparison tags, the set of active output rows, and an optional
// time parameterization of the right-hand side. The right-hand side value
// itself is owned by the solver.
type Constraint struct {
	f           Function
	comparisons []Comparison
	activeRows  segment.Set
	rhsFunc     func(t float64) []float64
}

// Option configures a Constraint at construction time.
type Option func(*Constraint)

// WithComparisons sets the per-row comparison tags. len(comparisons) must
// equal the function's output tangent dimension; the default is Equality
// on every row.
func WithComparisons(comparisons []Comparison) Option {
	return func(c *Constraint) {
		c.comparisons = append([]Comparison(nil), comparisons...)
	}
}

// WithActiveRows restricts the constraint to the given output rows
// (tangent indices). Inactive rows are zeroed out of the residual and
// never enter the reduced system.
func WithActiveRows(rows segment.Set) Option {
	return func(c *Constraint) {
		c.activeRows = segment.Normalize(rows.Clone())
	}
}

// WithRightHandSideFunc attaches a trajectory t ↦ target value (length
// OutputSpace().NQ()) used by the solver's parametric target update.
func WithRightHandSideFunc(fn func(t float64) []float64) Option {
	return func(c *Constraint) { c.rhsFunc = fn }
}

// New wraps f. Without options every row is an active Equality row.
func New(f Function, opts ...Option) *Constraint {
	c := &Constraint{
		f:          f,
		activeRows: segment.All(f.OutputSpace().NV()),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.comparisons == nil {
		c.comparisons = make([]Comparison, f.OutputSpace().NV())
	}
	return c
}

// Function returns the wrapped function.
func (c *Constraint) Function() Function { return c.f }

// Comparisons returns the per-row comparison tags.
func (c *Constraint) Comparisons() []Comparison { return c.comparisons }

// ActiveRows returns the active output rows.
func (c *Constraint) ActiveRows() segment.Set { return c.activeRows }

// HasParametricRightHandSide reports whether a trajectory is attached.
func (c *Constraint) HasParametricRightHandSide() bool { return c.rhsFunc != nil }

// RightHandSideAt evaluates the attached trajectory. It panics when no
// trajectory is attached; probe with HasParametricRightHandSide first.
func (c *Constraint) RightHandSideAt(t float64) []float64 { return c.rhsFunc(t) }

// Equal reports whether both constraints wrap the same logical function.
func (c *Constraint) Equal(other *Constraint) bool {
	return other != nil && c.f.Name() == other.f.Name()
}

// SetInactiveRowsToZero zeroes the entries of err (output tangent
// coordinates) outside the active rows.
func (c *Constraint) SetInactiveRowsToZero(err []float64) {
	nv := c.f.OutputSpace().NV()
	inactive := segment.All(nv).Difference(c.activeRows)
	for _, seg := range inactive {
		for i := seg.Start; i < seg.End(); i++ {
			err[i] = 0
		}
	}
}

// Clone returns a deep copy of the wrapper. The function itself is
// shared: functions are stateless evaluators.
func (c *Constraint) Clone() *Constraint {
	out := &Constraint{
		f:           c.f,
		comparisons: append([]Comparison(nil), c.comparisons...),
		activeRows:  c.activeRows.Clone(),
		rhsFunc:     c.rhsFunc,
	}
	return out
}
