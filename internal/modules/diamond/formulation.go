package diamond

import (
	"math/cmplx"

	"github.com/aristath/qfidelity/internal/modules/choi"
	"github.com/aristath/qfidelity/internal/sdp"
)

// LiftScale multiplies Re J and Im J in the objective weights. The weights are
// the real inner product of the lifted J with the lifted X block, which
// counts every complex entry twice.
const LiftScale = 2

// Block indices of the formulated problem.
const (
	blockRho0 = iota
	blockRho1
	blockJoint
)

// hermEntry is an upper-triangle element (Row <= Col) of a complex Hermitian
// matrix. Off-diagonal elements imply their conjugate mirror.
type hermEntry struct {
	row, col int
	val      complex128
}

// addLifted adds the real lift of a Hermitian element to block of m, where
// the complex matrix has side size. Only the upper triangle of the lift is
// written:
//
//	(p,q) → (p,q) and (size+p, size+q) carry Re v,
//	        (p, size+q) carries −Im v and (q, size+p) carries Im v.
func addLifted(m *sdp.Matrix, block, size int, e hermEntry) {
	p, q, v := e.row, e.col, e.val
	if p > q {
		p, q, v = q, p, cmplx.Conj(v)
	}
	if p == q {
		m.Add(block, p, p, real(v))
		m.Add(block, size+p, size+p, real(v))
		return
	}
	m.Add(block, p, q, real(v))
	m.Add(block, size+p, size+q, real(v))
	m.Add(block, p, size+q, -imag(v))
	m.Add(block, q, size+p, imag(v))
}

// tracelessBasis returns a basis of the traceless Hermitian d×d matrices:
// E_jk+E_kj and i(E_jk−E_kj) for j<k, then E_jj−E_{d−1,d−1}.
func tracelessBasis(d int) [][]hermEntry {
	var basis [][]hermEntry
	for j := 0; j < d; j++ {
		for k := j + 1; k < d; k++ {
			basis = append(basis, []hermEntry{{j, k, 1}})
			basis = append(basis, []hermEntry{{j, k, 1i}})
		}
	}
	for j := 0; j < d-1; j++ {
		basis = append(basis, []hermEntry{{j, j, 1}, {d - 1, d - 1, -1}})
	}
	return basis
}

// Formulate builds the diamond-norm SDP for the map with Choi matrix j:
//
//	maximize    Re Tr(J† X)
//	subject to  [[1⊗ρ₀, X], [X†, 1⊗ρ₁]] ⪰ 0,  ρ₀, ρ₁ ⪰ 0,  Tr ρ₀ = Tr ρ₁ = 1
//
// with J reordered output-major so that 1⊗ρ acts on the same index space.
// The trace constraints are removed by writing ρ = I/d + Σₖ yₖGₖ over a
// traceless Hermitian basis. X contributes one variable per real and per
// imaginary part of each entry. Every complex block is lifted to a real one
// of twice the size and the objective weights are set to LiftScale·Re J and
// LiftScale·Im J, so the optimal value is LiftScale times the norm.
func Formulate(j *choi.Choi) *sdp.Problem {
	d := j.InputDim()
	n := d * j.OutputDim()
	jw := j.OutputMajor()

	p := &sdp.Problem{BlockSizes: []int{2 * d, 2 * d, 4 * n}}

	inv := complex(1/float64(d), 0)
	for i := 0; i < d; i++ {
		addLifted(&p.F0, blockRho0, d, hermEntry{i, i, inv})
		addLifted(&p.F0, blockRho1, d, hermEntry{i, i, inv})
	}
	for i := 0; i < 2*n; i++ {
		addLifted(&p.F0, blockJoint, 2*n, hermEntry{i, i, inv})
	}

	basis := tracelessBasis(d)
	for side, block := range []int{blockRho0, blockRho1} {
		offset := side * n
		for _, g := range basis {
			var f sdp.Matrix
			for _, e := range g {
				addLifted(&f, block, d, e)
				for o := 0; o < j.OutputDim(); o++ {
					shifted := hermEntry{offset + o*d + e.row, offset + o*d + e.col, e.val}
					addLifted(&f, blockJoint, 2*n, shifted)
				}
			}
			p.F = append(p.F, f)
			p.B = append(p.B, 0)
		}
	}

	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			jrc := jw.At(r, c)

			var re sdp.Matrix
			addLifted(&re, blockJoint, 2*n, hermEntry{r, n + c, 1})
			p.F = append(p.F, re)
			p.B = append(p.B, LiftScale*real(jrc))

			var im sdp.Matrix
			addLifted(&im, blockJoint, 2*n, hermEntry{r, n + c, 1i})
			p.F = append(p.F, im)
			p.B = append(p.B, LiftScale*imag(jrc))
		}
	}
	return p
}
