// Package cmatrix provides dense complex matrices backed by gonum.
//
// Storage is row-major. Eigen, singular value and functional-calculus routines
// work on the real lift of a complex matrix (see Lift), which lets the real
// symmetric solvers in gonum/mat serve complex Hermitian problems.
package cmatrix

import (
	"errors"
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/cmplxs"
)

var (
	// ErrShape is raised when operand shapes are incompatible.
	ErrShape = errors.New("cmatrix: dimension mismatch")
	// ErrNotSquare is returned when a square matrix is required.
	ErrNotSquare = errors.New("cmatrix: matrix is not square")
	// ErrRagged is returned by FromRows for rows of unequal length.
	ErrRagged = errors.New("cmatrix: ragged rows")
	// ErrNoConvergence is returned when an eigen or singular value
	// decomposition fails to converge.
	ErrNoConvergence = errors.New("cmatrix: decomposition did not converge")
)

// Matrix is a dense complex matrix.
type Matrix struct {
	rows, cols int
	data       []complex128
}

// New creates an r×c matrix. A nil data slice allocates zeros; otherwise data
// is used directly and must hold r*c elements in row-major order.
func New(r, c int, data []complex128) *Matrix {
	if r <= 0 || c <= 0 {
		panic(ErrShape)
	}
	if data == nil {
		data = make([]complex128, r*c)
	}
	if len(data) != r*c {
		panic(ErrShape)
	}
	return &Matrix{rows: r, cols: c, data: data}
}

// Identity returns the n×n identity.
func Identity(n int) *Matrix {
	m := New(n, n, nil)
	for i := 0; i < n; i++ {
		m.data[i*n+i] = 1
	}
	return m
}

// FromRows builds a matrix from row slices, copying the values.
func FromRows(rows [][]complex128) (*Matrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("empty matrix: %w", ErrShape)
	}
	c := len(rows[0])
	m := New(len(rows), c, nil)
	for i, row := range rows {
		if len(row) != c {
			return nil, fmt.Errorf("row %d has %d columns, expected %d: %w", i, len(row), c, ErrRagged)
		}
		copy(m.data[i*c:(i+1)*c], row)
	}
	return m, nil
}

// Dims returns the number of rows and columns.
func (m *Matrix) Dims() (r, c int) { return m.rows, m.cols }

// IsSquare reports whether m has as many rows as columns.
func (m *Matrix) IsSquare() bool { return m.rows == m.cols }

// At returns the element at row i, column j.
func (m *Matrix) At(i, j int) complex128 { return m.data[i*m.cols+j] }

// Set sets the element at row i, column j.
func (m *Matrix) Set(i, j int, v complex128) { m.data[i*m.cols+j] = v }

// RawData returns the backing row-major slice.
func (m *Matrix) RawData() []complex128 { return m.data }

// Clone returns a deep copy of m.
func (m *Matrix) Clone() *Matrix {
	data := make([]complex128, len(m.data))
	copy(data, m.data)
	return &Matrix{rows: m.rows, cols: m.cols, data: data}
}

// Rows returns a copy of m as row slices.
func (m *Matrix) Rows() [][]complex128 {
	out := make([][]complex128, m.rows)
	for i := range out {
		out[i] = make([]complex128, m.cols)
		copy(out[i], m.data[i*m.cols:(i+1)*m.cols])
	}
	return out
}

func (m *Matrix) general() cblas128.General {
	return cblas128.General{Rows: m.rows, Cols: m.cols, Stride: m.cols, Data: m.data}
}

func sameShape(a, b *Matrix) {
	if a.rows != b.rows || a.cols != b.cols {
		panic(ErrShape)
	}
}

// Add returns a + b.
func Add(a, b *Matrix) *Matrix {
	sameShape(a, b)
	out := a.Clone()
	cmplxs.Add(out.data, b.data)
	return out
}

// Sub returns a - b.
func Sub(a, b *Matrix) *Matrix {
	sameShape(a, b)
	out := a.Clone()
	cmplxs.Sub(out.data, b.data)
	return out
}

// Scale returns alpha * a.
func Scale(alpha complex128, a *Matrix) *Matrix {
	out := a.Clone()
	cmplxs.Scale(alpha, out.data)
	return out
}

// Mul returns the matrix product a * b.
func Mul(a, b *Matrix) *Matrix {
	if a.cols != b.rows {
		panic(ErrShape)
	}
	out := New(a.rows, b.cols, nil)
	cblas128.Gemm(blas.NoTrans, blas.NoTrans, 1, a.general(), b.general(), 0, out.general())
	return out
}

// H returns the conjugate transpose of a.
func H(a *Matrix) *Matrix {
	out := New(a.cols, a.rows, nil)
	for i := 0; i < a.rows; i++ {
		for j := 0; j < a.cols; j++ {
			out.data[j*a.rows+i] = cmplx.Conj(a.data[i*a.cols+j])
		}
	}
	return out
}

// Trace returns the sum of the diagonal of a square matrix.
func Trace(a *Matrix) complex128 {
	if !a.IsSquare() {
		panic(ErrNotSquare)
	}
	var tr complex128
	for i := 0; i < a.rows; i++ {
		tr += a.data[i*a.cols+i]
	}
	return tr
}

// Kron returns the Kronecker product a ⊗ b.
func Kron(a, b *Matrix) *Matrix {
	out := New(a.rows*b.rows, a.cols*b.cols, nil)
	for i := 0; i < a.rows; i++ {
		for j := 0; j < a.cols; j++ {
			aij := a.data[i*a.cols+j]
			if aij == 0 {
				continue
			}
			for k := 0; k < b.rows; k++ {
				for l := 0; l < b.cols; l++ {
					out.data[(i*b.rows+k)*out.cols+j*b.cols+l] = aij * b.data[k*b.cols+l]
				}
			}
		}
	}
	return out
}

// Vec stacks the columns of a into a single vector.
func Vec(a *Matrix) []complex128 {
	v := make([]complex128, a.rows*a.cols)
	for j := 0; j < a.cols; j++ {
		for i := 0; i < a.rows; i++ {
			v[j*a.rows+i] = a.data[i*a.cols+j]
		}
	}
	return v
}

// Outer returns the rank-one matrix u v†.
func Outer(u, v []complex128) *Matrix {
	out := New(len(u), len(v), nil)
	for i, ui := range u {
		for j, vj := range v {
			out.data[i*len(v)+j] = ui * cmplx.Conj(vj)
		}
	}
	return out
}

// Form returns the sesquilinear form u† a v.
func Form(u []complex128, a *Matrix, v []complex128) complex128 {
	if len(u) != a.rows || len(v) != a.cols {
		panic(ErrShape)
	}
	var sum complex128
	for i := 0; i < a.rows; i++ {
		var row complex128
		for j := 0; j < a.cols; j++ {
			row += a.data[i*a.cols+j] * v[j]
		}
		sum += cmplx.Conj(u[i]) * row
	}
	return sum
}

// HermitianPart returns (a + a†)/2.
func HermitianPart(a *Matrix) *Matrix {
	if !a.IsSquare() {
		panic(ErrNotSquare)
	}
	out := Add(a, H(a))
	cmplxs.Scale(0.5, out.data)
	return out
}

// MaxAbs returns the largest element modulus of a.
func MaxAbs(a *Matrix) float64 {
	var max float64
	for _, v := range a.data {
		if abs := cmplx.Abs(v); abs > max {
			max = abs
		}
	}
	return max
}

// IsZero reports whether every element of a is exactly zero.
func IsZero(a *Matrix) bool {
	for _, v := range a.data {
		if v != 0 {
			return false
		}
	}
	return true
}

// EqualApprox reports whether a and b have the same shape and every pair of
// elements differs by at most tol in modulus.
func EqualApprox(a, b *Matrix, tol float64) bool {
	if a.rows != b.rows || a.cols != b.cols {
		return false
	}
	for i := range a.data {
		if cmplx.Abs(a.data[i]-b.data[i]) > tol {
			return false
		}
	}
	return true
}
