// Package linalg provides the dense float64 linear algebra the solver
// needs: row-major matrices and a rank-revealing singular value
// decomposition with least-squares solve and null-space extraction.
package linalg

// Dense is a row-major matrix backed by a flat slice.
type Dense struct {
	rows, cols int
	data       []float64
}

// NewDense returns a zeroed rows×cols matrix.
func NewDense(rows, cols int) *Dense {
	return &Dense{rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

// FromSlice wraps an existing row-major slice as a rows×cols matrix.
// The matrix aliases data; it does not copy.
func FromSlice(rows, cols int, data []float64) *Dense {
	if len(data) != rows*cols {
		panic("linalg: slice length does not match dimensions")
	}
	return &Dense{rows: rows, cols: cols, data: data}
}

// Rows returns the number of rows.
func (m *Dense) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Dense) Cols() int { return m.cols }

// Data returns the backing row-major slice.
func (m *Dense) Data() []float64 { return m.data }

// At returns the element at row i, column j.
func (m *Dense) At(i, j int) float64 { return m.data[i*m.cols+j] }

// Set stores v at row i, column j.
func (m *Dense) Set(i, j int, v float64) { m.data[i*m.cols+j] = v }

// Row returns row i as a view into the backing slice.
func (m *Dense) Row(i int) []float64 { return m.data[i*m.cols : (i+1)*m.cols] }

// Zero sets every element to 0.
func (m *Dense) Zero() {
	for i := range m.data {
		m.data[i] = 0
	}
}

// ZeroCol sets column j to 0.
func (m *Dense) ZeroCol(j int) {
	for i := 0; i < m.rows; i++ {
		m.data[i*m.cols+j] = 0
	}
}

// Clone returns a deep copy of m.
func (m *Dense) Clone() *Dense {
	out := NewDense(m.rows, m.cols)
	copy(out.data, m.data)
	return out
}

// Reshape resizes m to rows×cols, reusing the backing slice when it is
// large enough. Contents are unspecified afterwards.
func (m *Dense) Reshape(rows, cols int) {
	n := rows * cols
	if cap(m.data) < n {
		m.data = make([]float64, n)
	}
	m.data = m.data[:n]
	m.rows, m.cols = rows, cols
}

// Mul returns the product a·b as a new matrix.
func Mul(a, b *Dense) *Dense {
	if a.cols != b.rows {
		panic("linalg: dimension mismatch in Mul")
	}
	out := NewDense(a.rows, b.cols)
	for i := 0; i < a.rows; i++ {
		arow := a.Row(i)
		orow := out.Row(i)
		for k, aik := range arow {
			if aik == 0 {
				continue
			}
			brow := b.Row(k)
			for j, bkj := range brow {
				orow[j] += aik * bkj
			}
		}
	}
	return out
}

// MulVec stores m·x into out. out must have length m.Rows and must not
// alias x.
func MulVec(m *Dense, x, out []float64) {
	for i := 0; i < m.rows; i++ {
		row := m.Row(i)
		s := 0.0
		for j, v := range row {
			s += v * x[j]
		}
		out[i] = s
	}
}

// MulTVec stores mᵀ·x into out. out must have length m.Cols and must not
// alias x.
func MulTVec(m *Dense, x, out []float64) {
	for j := 0; j < m.cols; j++ {
		out[j] = 0
	}
	for i := 0; i < m.rows; i++ {
		row := m.Row(i)
		xi := x[i]
		if xi == 0 {
			continue
		}
		for j, v := range row {
			out[j] += v * xi
		}
	}
}

// Dot returns the inner product of a and b.
func Dot(a, b []float64) float64 {
	s := 0.0
	for i, v := range a {
		s += v * b[i]
	}
	return s
}

// SquaredNorm returns the squared Euclidean norm of v.
func SquaredNorm(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x * x
	}
	return s
}
