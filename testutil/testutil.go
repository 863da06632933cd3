// Package testutil provides deterministic helpers shared by the test
// suites: a seeded RNG and simple affine constraint functions on flat
// configuration spaces.
package testutil

import (
	"math/rand"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/kinodyn/cascade/manifold"
)

// RNG encapsulates a seeded random number generator. It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Float64 returns a pseudo-random number in [0.0, 1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// FillUniform fills dst with random values in [lo, hi).
func (r *RNG) FillUniform(dst []float64, lo, hi float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = lo + (hi-lo)*r.rand.Float64()
	}
}

// Configs returns n random configurations of dimension dim in [lo, hi).
func (r *RNG) Configs(n, dim int, lo, hi float64) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, dim)
		r.FillUniform(out[i], lo, hi)
	}
	return out
}

// Affine is the test function q ↦ A·q + b on a flat configuration space:
// output space R^m, constant Jacobian A.
type Affine struct {
	name string
	a    [][]float64 // m×n
	b    []float64   // m
	n    int
	out  manifold.Space
	ap   *roaring.Bitmap
}

// NewAffine builds an affine function named name with matrix a (m rows of
// length n) and offset b (length m, nil for zero).
func NewAffine(name string, a [][]float64, b []float64) *Affine {
	m := len(a)
	n := 0
	if m > 0 {
		n = len(a[0])
	}
	if b == nil {
		b = make([]float64, m)
	}
	ap := roaring.New()
	for j := 0; j < n; j++ {
		for i := 0; i < m; i++ {
			if a[i][j] != 0 {
				ap.Add(uint32(j))
				break
			}
		}
	}
	return &Affine{
		name: name,
		a:    a,
		b:    append([]float64(nil), b...),
		n:    n,
		out:  manifold.Vector(m),
		ap:   ap,
	}
}

// Identity returns the function q ↦ q on R^n.
func Identity(name string, n int) *Affine {
	a := make([][]float64, n)
	for i := range a {
		a[i] = make([]float64, n)
		a[i][i] = 1
	}
	return NewAffine(name, a, make([]float64, n))
}

func (f *Affine) Name() string                { return f.name }
func (f *Affine) InputSize() int              { return f.n }
func (f *Affine) InputDerivativeSize() int    { return f.n }
func (f *Affine) OutputSpace() manifold.Space { return f.out }

func (f *Affine) ActiveParameters() *roaring.Bitmap           { return f.ap }
func (f *Affine) ActiveDerivativeParameters() *roaring.Bitmap { return f.ap }

func (f *Affine) Value(out, q []float64) {
	for i, row := range f.a {
		s := f.b[i]
		for j, v := range row {
			s += v * q[j]
		}
		out[i] = s
	}
}

func (f *Affine) Jacobian(dst, q []float64) {
	for i, row := range f.a {
		copy(dst[i*f.n:(i+1)*f.n], row)
	}
}
