package sdp

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// blocks is a block-diagonal matrix stored as one dense matrix per block.
type blocks []*mat.Dense

func newBlocks(sizes []int) blocks {
	out := make(blocks, len(sizes))
	for k, n := range sizes {
		out[k] = mat.NewDense(n, n, nil)
	}
	return out
}

func identityBlocks(sizes []int, scale float64) blocks {
	out := newBlocks(sizes)
	for k, n := range sizes {
		for i := 0; i < n; i++ {
			out[k].Set(i, i, scale)
		}
	}
	return out
}

func (b blocks) clone() blocks {
	out := make(blocks, len(b))
	for k, m := range b {
		out[k] = mat.DenseCopyOf(m)
	}
	return out
}

// addScaled sets b = b + alpha·o.
func (b blocks) addScaled(alpha float64, o blocks) {
	for k := range b {
		var t mat.Dense
		t.Scale(alpha, o[k])
		b[k].Add(b[k], &t)
	}
}

// dot returns the trace inner product Σ_k Tr(b_kᵀ o_k).
func (b blocks) dot(o blocks) float64 {
	var sum float64
	for k, m := range b {
		r, c := m.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				sum += m.At(i, j) * o[k].At(i, j)
			}
		}
	}
	return sum
}

// norm returns the Frobenius norm.
func (b blocks) norm() float64 {
	return math.Sqrt(b.dot(b))
}

func (b blocks) symmetrize() {
	for _, m := range b {
		n, _ := m.Dims()
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				v := (m.At(i, j) + m.At(j, i)) / 2
				m.Set(i, j, v)
				m.Set(j, i, v)
			}
		}
	}
}

// symmetric returns (m + mᵀ)/2.
func symmetric(m mat.Matrix) *mat.SymDense {
	n, _ := m.Dims()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, (m.At(i, j)+m.At(j, i))/2)
		}
	}
	return out
}

// term is one element of an expanded symmetric coefficient matrix.
type term struct {
	row, col int
	val      float64
}

// expand lists both triangles of m, grouped by block.
func expand(m Matrix, numBlocks int, scale float64) [][]term {
	out := make([][]term, numBlocks)
	for _, e := range m.Entries {
		v := scale * e.Value
		out[e.Block] = append(out[e.Block], term{row: e.Row, col: e.Col, val: v})
		if e.Row != e.Col {
			out[e.Block] = append(out[e.Block], term{row: e.Col, col: e.Row, val: v})
		}
	}
	return out
}

// Dense expands m into one dense matrix per block. It is mainly useful for
// inspecting a formulation.
func (m Matrix) Dense(sizes []int) []*mat.Dense {
	out := newBlocks(sizes)
	for k, ts := range expand(m, len(sizes), 1) {
		for _, t := range ts {
			out[k].Set(t.row, t.col, out[k].At(t.row, t.col)+t.val)
		}
	}
	return out
}
