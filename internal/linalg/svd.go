package linalg

import (
	"math"
	"sort"
)

const (
	jacobiTol    = 1e-11
	jacobiSweeps = 100
)

// SVD computes A = U·Σ·Vᵀ by one-sided Jacobi rotations and exposes the
// rank-revealing queries the solver cascade needs: minimal-norm
// least-squares solve, retained singular values and the null-space basis.
//
// Numerical rank counts singular values above relTol times the largest
// one. Rank deficiency is expected, not an error: the kernel columns feed
// the next priority level's projector.
//
// A decomposition instance is reusable: Compute may be called repeatedly
// with matrices of varying shape and recycles its workspace.
type SVD struct {
	relTol float64

	u    *Dense // m×n, columns 0..rank-1 orthonormal
	v    *Dense // n×n, right singular vectors as columns
	s    []float64
	rank int
}

// NewSVD returns a decomposition with the given relative rank threshold.
func NewSVD(relTol float64) *SVD {
	return &SVD{relTol: relTol, u: NewDense(0, 0), v: NewDense(0, 0)}
}

// Compute decomposes a. The input is not modified.
func (d *SVD) Compute(a *Dense) {
	m, n := a.Rows(), a.Cols()
	d.u.Reshape(m, n)
	copy(d.u.Data(), a.Data())
	d.v.Reshape(n, n)
	d.v.Zero()
	for i := 0; i < n; i++ {
		d.v.Set(i, i, 1)
	}
	if cap(d.s) < n {
		d.s = make([]float64, n)
	}
	d.s = d.s[:n]

	for sweep := 0; sweep < jacobiSweeps; sweep++ {
		if !d.sweep(m, n) {
			break
		}
	}

	// Singular values are the column norms of the rotated matrix; the
	// columns themselves normalize into U.
	for j := 0; j < n; j++ {
		sum := 0.0
		for i := 0; i < m; i++ {
			x := d.u.At(i, j)
			sum += x * x
		}
		sigma := math.Sqrt(sum)
		d.s[j] = sigma
		if sigma > 0 {
			inv := 1 / sigma
			for i := 0; i < m; i++ {
				d.u.Set(i, j, d.u.At(i, j)*inv)
			}
		}
	}

	d.sortDescending(m, n)

	d.rank = 0
	if n > 0 && d.s[0] > 0 {
		thr := d.relTol * d.s[0]
		for _, sigma := range d.s {
			if sigma > thr {
				d.rank++
			}
		}
	}
}

// sweep runs one pass of column-pair rotations, returning whether any
// rotation was applied.
func (d *SVD) sweep(m, n int) bool {
	changed := false
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			var alpha, beta, gamma float64
			for k := 0; k < m; k++ {
				ui, uj := d.u.At(k, i), d.u.At(k, j)
				alpha += ui * ui
				beta += uj * uj
				gamma += ui * uj
			}
			if alpha < 1e-30 || beta < 1e-30 {
				continue
			}
			if math.Abs(gamma) < jacobiTol*math.Sqrt(alpha*beta) {
				continue
			}
			changed = true
			d.rotate(m, n, i, j, alpha, beta, gamma)
		}
	}
	return changed
}

func (d *SVD) rotate(m, n, i, j int, alpha, beta, gamma float64) {
	zeta := (beta - alpha) / (2 * gamma)
	var t float64
	if zeta > 0 {
		t = 1 / (zeta + math.Sqrt(1+zeta*zeta))
	} else {
		t = -1 / (-zeta + math.Sqrt(1+zeta*zeta))
	}
	c := 1 / math.Sqrt(1+t*t)
	s := c * t

	for k := 0; k < m; k++ {
		t1, t2 := d.u.At(k, i), d.u.At(k, j)
		d.u.Set(k, i, c*t1-s*t2)
		d.u.Set(k, j, s*t1+c*t2)
	}
	for k := 0; k < n; k++ {
		t1, t2 := d.v.At(k, i), d.v.At(k, j)
		d.v.Set(k, i, c*t1-s*t2)
		d.v.Set(k, j, s*t1+c*t2)
	}
}

// sortDescending reorders singular values (and the matching U/V columns)
// from largest to smallest. Jacobi rotations leave them unordered.
func (d *SVD) sortDescending(m, n int) {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool { return d.s[perm[a]] > d.s[perm[b]] })

	sorted := make([]float64, n)
	for i, p := range perm {
		sorted[i] = d.s[p]
	}
	copy(d.s, sorted)

	d.u = permuteCols(d.u, m, n, perm)
	d.v = permuteCols(d.v, n, n, perm)
}

func permuteCols(src *Dense, rows, cols int, perm []int) *Dense {
	out := NewDense(rows, cols)
	for i := 0; i < rows; i++ {
		srow, orow := src.Row(i), out.Row(i)
		for j, p := range perm {
			orow[j] = srow[p]
		}
	}
	return out
}

// Rank returns the numerical rank of the last decomposed matrix.
func (d *SVD) Rank() int { return d.rank }

// Singular returns the i-th largest singular value.
func (d *SVD) Singular(i int) float64 { return d.s[i] }

// NumSingular returns the number of computed singular values.
func (d *SVD) NumSingular() int { return len(d.s) }

// VCols returns the number of right singular vectors.
func (d *SVD) VCols() int { return d.v.Cols() }

// Solve stores into out the minimal-norm least-squares solution of
// A·x ≈ b, using only the singular values above the rank threshold.
// out must have length A.Cols.
func (d *SVD) Solve(b, out []float64) {
	n := d.v.Rows()
	for j := 0; j < n; j++ {
		out[j] = 0
	}
	m := d.u.Rows()
	for k := 0; k < d.rank; k++ {
		ub := 0.0
		for i := 0; i < m; i++ {
			ub += d.u.At(i, k) * b[i]
		}
		coef := ub / d.s[k]
		for j := 0; j < n; j++ {
			out[j] += coef * d.v.At(j, k)
		}
	}
}

// Kernel returns the right singular vectors beyond the rank as columns of
// an n×(n-rank) matrix: an orthonormal basis of the null space. The
// result has zero columns for a full-rank matrix.
func (d *SVD) Kernel() *Dense {
	n := d.v.Rows()
	out := NewDense(n, n-d.rank)
	for i := 0; i < n; i++ {
		for j := d.rank; j < n; j++ {
			out.Set(i, j-d.rank, d.v.At(i, j))
		}
	}
	return out
}
