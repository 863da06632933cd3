package constraint

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/kinodyn/cascade/manifold"
)

// Set aggregates the constraints of one priority level into a single
// combined function: outputs, right-hand sides and Jacobian rows are
// concatenated in registration order.
type Set struct {
	items []*Constraint
	iq    []int // per-item offset in the combined output
	iv    []int // per-item offset in the combined tangent
	space *manifold.Product
}

// NewSet returns an empty aggregate.
func NewSet() *Set {
	return &Set{space: manifold.NewProduct()}
}

// Add appends c to the aggregate.
func (s *Set) Add(c *Constraint) {
	s.iq = append(s.iq, s.space.NQ())
	s.iv = append(s.iv, s.space.NV())
	s.items = append(s.items, c)

	spaces := make([]manifold.Space, len(s.items))
	for i, item := range s.items {
		spaces[i] = item.Function().OutputSpace()
	}
	s.space = manifold.NewProduct(spaces...)
}

// Len returns the number of aggregated constraints.
func (s *Set) Len() int { return len(s.items) }

// Items returns the aggregated constraints in order.
func (s *Set) Items() []*Constraint { return s.items }

// OffsetQ returns the combined-output offset of item i.
func (s *Set) OffsetQ(i int) int { return s.iq[i] }

// OffsetV returns the combined-tangent offset of item i.
func (s *Set) OffsetV(i int) int { return s.iv[i] }

// OutputSpace returns the product of the item output spaces.
func (s *Set) OutputSpace() manifold.Space { return s.space }

// NQ returns the combined output dimension.
func (s *Set) NQ() int { return s.space.NQ() }

// NV returns the combined output tangent dimension.
func (s *Set) NV() int { return s.space.NV() }

// Value evaluates every item into its slot of out (length NQ).
func (s *Set) Value(out, q []float64) {
	for i, c := range s.items {
		nq := c.Function().OutputSpace().NQ()
		c.Function().Value(out[s.iq[i]:s.iq[i]+nq], q)
	}
}

// Jacobian fills dst, row-major NV × nvIn, with the stacked item
// Jacobians.
func (s *Set) Jacobian(dst []float64, nvIn int, q []float64) {
	for i, c := range s.items {
		nv := c.Function().OutputSpace().NV()
		c.Function().Jacobian(dst[s.iv[i]*nvIn:(s.iv[i]+nv)*nvIn], q)
	}
}

// SetInactiveRowsToZero zeroes the combined residual rows every item
// marks inactive.
func (s *Set) SetInactiveRowsToZero(err []float64) {
	for i, c := range s.items {
		nv := c.Function().OutputSpace().NV()
		c.SetInactiveRowsToZero(err[s.iv[i] : s.iv[i]+nv])
	}
}

// ActiveParameters returns the union of the items' active configuration
// indices.
func (s *Set) ActiveParameters() *roaring.Bitmap {
	out := roaring.New()
	for _, c := range s.items {
		out.Or(c.Function().ActiveParameters())
	}
	return out
}

// ActiveDerivativeParameters returns the union of the items' active
// tangent indices.
func (s *Set) ActiveDerivativeParameters() *roaring.Bitmap {
	out := roaring.New()
	for _, c := range s.items {
		out.Or(c.Function().ActiveDerivativeParameters())
	}
	return out
}
