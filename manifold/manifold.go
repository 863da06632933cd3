// Package manifold describes solver configuration spaces.
//
// A Space couples an embedding representation of dimension NQ with a
// tangent (velocity) representation of dimension NV and provides the two
// operators the solver needs: Integrate (⊕) applies a tangent displacement
// to a configuration, Difference (⊖) maps a pair of configurations to the
// tangent displacement between them. They satisfy the round-trip law
//
//	Integrate(b, Difference(a, b)) == a
//
// Elements are plain []float64 slices, so a configuration may be a view
// into a larger buffer without copying.
package manifold

import (
	"fmt"
	"math"
	"strings"
)

// Space is a configuration-space descriptor. Implementations must be
// immutable after construction: a single Space is shared between a solver
// and all its clones.
type Space interface {
	// Name identifies the space. Used by persistence records.
	Name() string

	// NQ is the embedding dimension of a configuration.
	NQ() int

	// NV is the dimension of the tangent space.
	NV() int

	// Neutral returns a freshly allocated neutral configuration.
	Neutral() []float64

	// Integrate stores q ⊕ v into out. out must have length NQ and may
	// alias q.
	Integrate(q, v, out []float64)

	// Difference stores a ⊖ b into out: the tangent vector moving b onto
	// a. out must have length NV.
	Difference(a, b, out []float64)
}

// Vector is the flat space R^n: NQ == NV == n, ⊕ is addition and ⊖ is
// subtraction.
type Vector int

func (v Vector) Name() string { return fmt.Sprintf("R^%d", int(v)) }
func (v Vector) NQ() int      { return int(v) }
func (v Vector) NV() int      { return int(v) }

func (v Vector) Neutral() []float64 { return make([]float64, int(v)) }

func (v Vector) Integrate(q, t, out []float64) {
	for i := 0; i < int(v); i++ {
		out[i] = q[i] + t[i]
	}
}

func (v Vector) Difference(a, b, out []float64) {
	for i := 0; i < int(v); i++ {
		out[i] = a[i] - b[i]
	}
}

// Circle is the unit circle S¹ embedded as (cos θ, sin θ): NQ == 2,
// NV == 1. Difference wraps to (-π, π].
type Circle struct{}

func (Circle) Name() string { return "S^1" }
func (Circle) NQ() int      { return 2 }
func (Circle) NV() int      { return 1 }

func (Circle) Neutral() []float64 { return []float64{1, 0} }

func (Circle) Integrate(q, v, out []float64) {
	c, s := q[0], q[1]
	cv, sv := math.Cos(v[0]), math.Sin(v[0])
	out[0] = c*cv - s*sv
	out[1] = s*cv + c*sv
}

func (Circle) Difference(a, b, out []float64) {
	// Relative rotation b⁻¹·a.
	out[0] = math.Atan2(a[1]*b[0]-a[0]*b[1], a[0]*b[0]+a[1]*b[1])
}

// Product is the Cartesian product of component spaces, with
// configurations and tangents laid out as the concatenation of the
// components' blocks.
type Product struct {
	spaces []Space
	nq, nv int
}

// NewProduct builds the product of the given spaces. A product of zero
// spaces is the trivial space of dimension 0.
func NewProduct(spaces ...Space) *Product {
	p := &Product{spaces: append([]Space(nil), spaces...)}
	for _, s := range spaces {
		p.nq += s.NQ()
		p.nv += s.NV()
	}
	return p
}

// Spaces returns the component spaces in layout order.
func (p *Product) Spaces() []Space { return p.spaces }

func (p *Product) Name() string {
	if len(p.spaces) == 0 {
		return "{}"
	}
	names := make([]string, len(p.spaces))
	for i, s := range p.spaces {
		names[i] = s.Name()
	}
	return strings.Join(names, " x ")
}

func (p *Product) NQ() int { return p.nq }
func (p *Product) NV() int { return p.nv }

func (p *Product) Neutral() []float64 {
	out := make([]float64, 0, p.nq)
	for _, s := range p.spaces {
		out = append(out, s.Neutral()...)
	}
	return out
}

func (p *Product) Integrate(q, v, out []float64) {
	iq, iv := 0, 0
	for _, s := range p.spaces {
		nq, nv := s.NQ(), s.NV()
		s.Integrate(q[iq:iq+nq], v[iv:iv+nv], out[iq:iq+nq])
		iq += nq
		iv += nv
	}
}

func (p *Product) Difference(a, b, out []float64) {
	iq, iv := 0, 0
	for _, s := range p.spaces {
		nq, nv := s.NQ(), s.NV()
		s.Difference(a[iq:iq+nq], b[iq:iq+nq], out[iv:iv+nv])
		iq += nq
		iv += nv
	}
}
