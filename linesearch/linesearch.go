// Package linesearch implements the step-scale strategies applied to a
// computed descent direction. Each policy maps the solver's current state
// and candidate direction to a scale in (0, 1].
//
// Policies see the solver through the narrow Problem interface, so they
// can be unit-tested against synthetic problems.
package linesearch

import "math"

// Problem is the view of the solver a policy may query.
type Problem interface {
	// NQ is the configuration dimension.
	NQ() int

	// SquaredNorm is the current convergence score.
	SquaredNorm() float64

	// Sigma is the smallest retained singular value across levels from
	// the last decomposition, a conditioning diagnostic.
	Sigma() float64

	// ErrorAt evaluates the convergence score at q without touching
	// Jacobians. It overwrites the solver's residual buffers; callers
	// re-evaluate at the accepted configuration afterwards.
	ErrorAt(q []float64) float64

	// Integrate stores from ⊕ v into out.
	Integrate(from, v, out []float64)
}

// Policy computes the step scale for direction dq at configuration q.
// The solver applies the returned scale; dq is not modified.
type Policy interface {
	Scale(p Problem, q, dq []float64) float64
}

// Constant always takes the full step.
type Constant struct{}

func (Constant) Scale(Problem, []float64, []float64) float64 { return 1 }

// Backtracking shrinks the step by a fixed ratio until an Armijo
// sufficient-decrease condition holds or the floor scale is reached.
//
// For a Gauss-Newton direction J·dq ≈ -e the directional derivative of
// the squared residual at scale 0 is -2‖e‖², which is the slope used in
// the decrease test.
type Backtracking struct {
	C          float64 // decrease coefficient
	Tau        float64 // shrink ratio
	SmallAlpha float64 // floor scale
}

// NewBacktracking returns a policy with the default parameters.
func NewBacktracking() *Backtracking {
	return &Backtracking{C: 0.001, Tau: 0.7, SmallAlpha: 0.2}
}

func (b *Backtracking) Scale(p Problem, q, dq []float64) float64 {
	f0 := p.SquaredNorm()
	slope := -2 * f0

	qTmp := make([]float64, p.NQ())
	vTmp := make([]float64, len(dq))

	alpha := 1.0
	for alpha > b.SmallAlpha {
		for i, v := range dq {
			vTmp[i] = alpha * v
		}
		p.Integrate(q, vTmp, qTmp)
		if p.ErrorAt(qTmp) <= f0+b.C*alpha*slope {
			return alpha
		}
		alpha *= b.Tau
	}
	return b.SmallAlpha
}

// FixedSequence follows a geometric schedule approaching AlphaMax,
// independent of the error magnitude. The schedule advances on every
// call, so a FixedSequence instance must not be shared between
// concurrently solving instances.
type FixedSequence struct {
	Alpha    float64 // current scale
	AlphaMax float64 // ceiling
	K        float64 // decay
}

// NewFixedSequence returns a policy with the default schedule.
func NewFixedSequence() *FixedSequence {
	return &FixedSequence{Alpha: 0.2, AlphaMax: 0.95, K: 0.8}
}

func (f *FixedSequence) Scale(Problem, []float64, []float64) float64 {
	alpha := f.Alpha
	f.Alpha = f.AlphaMax - f.K*(f.AlphaMax-f.Alpha)
	return alpha
}

// ErrorNormBased derives the scale from a hyperbolic-tangent sigmoid of
// the ratio of the current error norm to the decomposition's conditioning
// diagnostic: near 1 for small errors, approaching a configured floor for
// large ones.
//
//	scale(r) = C - K·tanh(A·r + B),  r = ‖error‖ / σ
type ErrorNormBased struct {
	C, K, A, B float64
}

// NewErrorNormBased builds the policy from a floor scale and explicit
// sigmoid shape parameters.
func NewErrorNormBased(alphaMin, a, b float64) *ErrorNormBased {
	return &ErrorNormBased{
		C: 0.5 + alphaMin/2,
		K: (1 - alphaMin) / 2,
		A: a,
		B: b,
	}
}

// NewErrorNormBasedAuto calibrates the sigmoid from the floor alone:
// scale(1) = 1 - delta and scale(rHalf) = (1+alphaMin)/2, with
// delta = 0.02 and rHalf = 1e6.
func NewErrorNormBasedAuto(alphaMin float64) *ErrorNormBased {
	const (
		delta = 0.02
		rHalf = 1e6
	)
	c := 0.5 + alphaMin/2
	k := (1 - alphaMin) / 2
	a := math.Atanh((delta-1+c)/k) / (1 - rHalf)
	b := -rHalf * a
	return &ErrorNormBased{C: c, K: k, A: a, B: b}
}

func (e *ErrorNormBased) Scale(p Problem, q, dq []float64) float64 {
	sigma := p.Sigma()
	var r float64
	switch {
	case math.IsInf(sigma, 1):
		r = 0
	case sigma <= 0:
		r = math.Inf(1)
	default:
		r = math.Sqrt(p.SquaredNorm()) / sigma
	}
	return e.C - e.K*math.Tanh(e.A*r+e.B)
}
