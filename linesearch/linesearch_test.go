package linesearch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// quadProblem is a 1-D flat-space problem with squared residual
// E(q) = (q0 - target)².
type quadProblem struct {
	q      []float64
	target float64
	sigma  float64
}

func (p *quadProblem) NQ() int { return 1 }

func (p *quadProblem) SquaredNorm() float64 {
	d := p.q[0] - p.target
	return d * d
}

func (p *quadProblem) Sigma() float64 { return p.sigma }

func (p *quadProblem) ErrorAt(q []float64) float64 {
	d := q[0] - p.target
	return d * d
}

func (p *quadProblem) Integrate(from, v, out []float64) {
	out[0] = from[0] + v[0]
}

func TestConstant(t *testing.T) {
	p := &quadProblem{q: []float64{5}, sigma: 1}
	assert.Equal(t, 1.0, Constant{}.Scale(p, p.q, []float64{-5}))
}

func TestBacktracking_AcceptsFullNewtonStep(t *testing.T) {
	p := &quadProblem{q: []float64{5}, target: 0, sigma: 1}
	b := NewBacktracking()
	// Exact Newton direction: one full step solves the problem.
	alpha := b.Scale(p, p.q, []float64{-5})
	assert.Equal(t, 1.0, alpha)
}

func TestBacktracking_ShrinksOvershoot(t *testing.T) {
	p := &quadProblem{q: []float64{1}, target: 0, sigma: 1}
	b := NewBacktracking()
	// Direction overshoots by 4x: the full step increases the error.
	alpha := b.Scale(p, p.q, []float64{-4})
	assert.Less(t, alpha, 1.0)
	assert.GreaterOrEqual(t, alpha, b.SmallAlpha)

	// The accepted step must actually decrease the error.
	assert.Less(t, p.ErrorAt([]float64{1 - 4*alpha}), p.SquaredNorm())
}

func TestBacktracking_FloorsAtSmallAlpha(t *testing.T) {
	// Hostile problem: every candidate is rejected.
	p := &quadProblem{q: []float64{0}, target: 0, sigma: 1}
	b := NewBacktracking()
	// Zero current error with a nonzero direction: no candidate can
	// satisfy a strict decrease, so the floor is returned.
	alpha := b.Scale(p, p.q, []float64{3})
	assert.Equal(t, b.SmallAlpha, alpha)
}

func TestFixedSequence_Schedule(t *testing.T) {
	f := NewFixedSequence()
	p := &quadProblem{q: []float64{0}, sigma: 1}

	a1 := f.Scale(p, nil, nil)
	a2 := f.Scale(p, nil, nil)
	a3 := f.Scale(p, nil, nil)

	assert.InDelta(t, 0.2, a1, 1e-12)
	assert.InDelta(t, 0.95-0.8*(0.95-0.2), a2, 1e-12)
	assert.Greater(t, a3, a2)
	assert.Less(t, a3, 0.95)
}

func TestErrorNormBased_Calibration(t *testing.T) {
	const alphaMin = 0.2
	e := NewErrorNormBasedAuto(alphaMin)

	// r = 1: scale is 1 - delta.
	p := &quadProblem{q: []float64{3}, target: 0, sigma: 3}
	assert.InDelta(t, 0.98, e.Scale(p, p.q, nil), 1e-9)

	// Huge relative error: scale approaches the floor.
	p = &quadProblem{q: []float64{1e9}, target: 0, sigma: 1e-3}
	assert.InDelta(t, alphaMin, e.Scale(p, p.q, nil), 1e-6)

	// Tiny relative error: scale near 1.
	p = &quadProblem{q: []float64{1e-9}, target: 0, sigma: 10}
	assert.Greater(t, e.Scale(p, p.q, nil), 0.97)
}

func TestErrorNormBased_SigmaEdgeCases(t *testing.T) {
	e := NewErrorNormBasedAuto(0.2)

	// No decomposition yet (sigma = +Inf): full-confidence scale.
	p := &quadProblem{q: []float64{1}, target: 0, sigma: math.Inf(1)}
	assert.Greater(t, e.Scale(p, p.q, nil), 0.97)

	// Degenerate decomposition (sigma = 0): floor scale.
	p = &quadProblem{q: []float64{1}, target: 0, sigma: 0}
	assert.InDelta(t, 0.2, e.Scale(p, p.q, nil), 1e-9)
}
