package cmatrix

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Lift maps an n×m complex matrix A = R + iI to the 2n×2m real matrix
//
//	[ R  -I ]
//	[ I   R ]
//
// The map is an injective *-homomorphism: Lift(AB) = Lift(A)Lift(B) and
// Lift(A†) = Lift(A)ᵀ. A Hermitian A lifts to a symmetric matrix with the
// same spectrum, every eigenvalue doubled in multiplicity.
func Lift(a *Matrix) *mat.Dense {
	r, c := a.rows, a.cols
	out := mat.NewDense(2*r, 2*c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := a.data[i*c+j]
			re, im := real(v), imag(v)
			out.Set(i, j, re)
			out.Set(r+i, c+j, re)
			out.Set(i, c+j, -im)
			out.Set(r+i, j, im)
		}
	}
	return out
}

// Unlift inverts Lift. Both copies of each block are averaged so that a
// lifted matrix carrying rounding noise maps to its nearest complex preimage.
func Unlift(l mat.Matrix) *Matrix {
	r2, c2 := l.Dims()
	if r2%2 != 0 || c2%2 != 0 {
		panic(ErrShape)
	}
	r, c := r2/2, c2/2
	out := New(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			re := (l.At(i, j) + l.At(r+i, c+j)) / 2
			im := (l.At(r+i, j) - l.At(i, c+j)) / 2
			out.data[i*c+j] = complex(re, im)
		}
	}
	return out
}

// liftSym lifts the Hermitian part of a into a symmetric matrix.
func liftSym(a *Matrix) *mat.SymDense {
	if !a.IsSquare() {
		panic(ErrNotSquare)
	}
	l := Lift(a)
	n, _ := l.Dims()
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, (l.At(i, j)+l.At(j, i))/2)
		}
	}
	return sym
}

// pairs collapses the doubled spectrum of a lifted matrix. Values must be
// sorted so that the two copies of every eigenvalue are adjacent.
func pairs(vals []float64) []float64 {
	out := make([]float64, len(vals)/2)
	for k := range out {
		out[k] = (vals[2*k] + vals[2*k+1]) / 2
	}
	return out
}

// EigenvaluesHermitian returns the eigenvalues of the Hermitian part of a in
// ascending order.
func EigenvaluesHermitian(a *Matrix) ([]float64, error) {
	var eig mat.EigenSym
	if ok := eig.Factorize(liftSym(a), false); !ok {
		return nil, ErrNoConvergence
	}
	return pairs(eig.Values(nil)), nil
}

// EigenHermitian returns the eigenvalues of the Hermitian part of a together
// with eigenvectors, both taken from the real lift. Every eigenpair therefore
// appears twice: values has length 2n, and the two vectors of a pair span the
// same complex line. For a degenerate eigenvalue the returned vectors span its
// eigenspace.
func EigenHermitian(a *Matrix) ([]float64, [][]complex128, error) {
	vals, vecs, err := eigenSym(a)
	if err != nil {
		return nil, nil, err
	}

	n := a.rows
	out := make([][]complex128, len(vals))
	for k := range vals {
		v := make([]complex128, n)
		for i := 0; i < n; i++ {
			v[i] = complex(vecs.At(i, k), vecs.At(n+i, k))
		}
		out[k] = v
	}
	return vals, out, nil
}

// ApplyHermitian evaluates f on the Hermitian part of a through its spectral
// decomposition, returning V f(Λ) V†.
func ApplyHermitian(a *Matrix, f func(float64) float64) (*Matrix, error) {
	vals, vecs, err := eigenSym(a)
	if err != nil {
		return nil, err
	}
	return reconstruct(vals, vecs, f), nil
}

// SqrtPSD returns the principal square root of the Hermitian part of a,
// treating it as positive semidefinite. Eigenvalues at or below tol times the
// largest eigenvalue magnitude are clipped to zero before reconstruction, so
// negative eigenvalues from rounding or from non-positive inputs never reach
// the square root. A tol of zero clips only strictly negative eigenvalues.
func SqrtPSD(a *Matrix, tol float64) (*Matrix, error) {
	vals, vecs, err := eigenSym(a)
	if err != nil {
		return nil, err
	}
	cut := clipThreshold(vals, tol)
	return reconstruct(vals, vecs, func(v float64) float64 {
		if v <= cut {
			return 0
		}
		return math.Sqrt(v)
	}), nil
}

// eigenSym factorizes the real lift of the Hermitian part of a.
func eigenSym(a *Matrix) ([]float64, *mat.Dense, error) {
	var eig mat.EigenSym
	if ok := eig.Factorize(liftSym(a), true); !ok {
		return nil, nil, ErrNoConvergence
	}
	vecs := new(mat.Dense)
	eig.VectorsTo(vecs)
	return eig.Values(nil), vecs, nil
}

// reconstruct returns the unlifted V f(Λ) Vᵀ.
func reconstruct(vals []float64, vecs *mat.Dense, f func(float64) float64) *Matrix {
	n := len(vals)
	scaled := mat.NewDense(n, n, nil)
	for j, v := range vals {
		fv := f(v)
		for i := 0; i < n; i++ {
			scaled.Set(i, j, vecs.At(i, j)*fv)
		}
	}
	var out mat.Dense
	out.Mul(scaled, vecs.T())
	return Unlift(&out)
}

// TraceSqrtPSD returns Tr[sqrt(a)] for the Hermitian part of a, clipping
// eigenvalues exactly as SqrtPSD does.
func TraceSqrtPSD(a *Matrix, tol float64) (float64, error) {
	vals, err := EigenvaluesHermitian(a)
	if err != nil {
		return 0, err
	}
	cut := clipThreshold(vals, tol)
	var sum float64
	for _, v := range vals {
		if v > cut {
			sum += math.Sqrt(v)
		}
	}
	return sum, nil
}

func clipThreshold(vals []float64, tol float64) float64 {
	var max float64
	for _, v := range vals {
		max = math.Max(max, math.Abs(v))
	}
	return math.Max(0, tol*max)
}

// SingularValues returns the singular values of a in descending order.
func SingularValues(a *Matrix) ([]float64, error) {
	var svd mat.SVD
	if ok := svd.Factorize(Lift(a), mat.SVDNone); !ok {
		return nil, ErrNoConvergence
	}
	return pairs(svd.Values(nil)), nil
}

// OpNorm returns the operator (spectral) norm of a.
func OpNorm(a *Matrix) (float64, error) {
	sv, err := SingularValues(a)
	if err != nil {
		return 0, err
	}
	return sv[0], nil
}

// TraceNorm returns the sum of the singular values of a.
func TraceNorm(a *Matrix) (float64, error) {
	sv, err := SingularValues(a)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, s := range sv {
		sum += s
	}
	return sum, nil
}
