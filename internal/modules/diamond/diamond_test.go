package diamond

import (
	"context"
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/aristath/qfidelity/internal/modules/choi"
	"github.com/aristath/qfidelity/internal/sdp"
	"github.com/aristath/qfidelity/pkg/cmatrix"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newTestCalculator() *Calculator {
	return NewCalculator(sdp.NewInteriorPoint(sdp.DefaultOptions()), 64, zerolog.New(nil).Level(zerolog.Disabled))
}

func label(t *testing.T, l string) *choi.Operator {
	t.Helper()
	op, err := choi.OperatorFromLabel(l)
	require.NoError(t, err)
	return op
}

func choiOf(t *testing.T, r choi.Representation) *choi.Choi {
	t.Helper()
	c, err := choi.Adapt(r)
	require.NoError(t, err)
	return c
}

// pauliCombination returns Σ cᵢ·Choi(Pᵢ) over the n-qubit labels II.., XX.., YY.., ZZ...
func pauliCombination(t *testing.T, qubits int, coeffs []float64) *choi.Choi {
	t.Helper()
	var out *choi.Choi
	for i, p := range []string{"I", "X", "Y", "Z"} {
		l := ""
		for q := 0; q < qubits; q++ {
			l += p
		}
		term := choiOf(t, label(t, l)).Scale(complex(coeffs[i], 0))
		if out == nil {
			out = term
			continue
		}
		var err error
		out, err = out.Add(term)
		require.NoError(t, err)
	}
	return out
}

func rz(t *testing.T, theta float64) *choi.Operator {
	t.Helper()
	m := cmatrix.New(2, 2, nil)
	m.Set(0, 0, cmplx.Exp(complex(0, -theta/2)))
	m.Set(1, 1, cmplx.Exp(complex(0, theta/2)))
	op, err := choi.NewOperator(m)
	require.NoError(t, err)
	return op
}

func TestAddLifted_MatchesDenseLift(t *testing.T) {
	h, err := cmatrix.FromRows([][]complex128{
		{1, 2 - 1i, 0.5i},
		{2 + 1i, -3, 4},
		{-0.5i, 4, 0.25},
	})
	require.NoError(t, err)

	var m sdp.Matrix
	for p := 0; p < 3; p++ {
		for q := p; q < 3; q++ {
			addLifted(&m, 0, 3, hermEntry{p, q, h.At(p, q)})
		}
	}
	got := m.Dense([]int{6})[0]
	assert.True(t, mat.EqualApprox(cmatrix.Lift(h), got, 0))

	// A lower-triangle element is conjugated onto the upper triangle.
	var lower, upper sdp.Matrix
	addLifted(&lower, 0, 3, hermEntry{2, 0, 0.5i})
	addLifted(&upper, 0, 3, hermEntry{0, 2, -0.5i})
	assert.Equal(t, upper.Entries, lower.Entries)
}

func TestTracelessBasis(t *testing.T) {
	for d := 1; d <= 4; d++ {
		basis := tracelessBasis(d)
		assert.Len(t, basis, d*d-1)
		for _, g := range basis {
			var tr complex128
			for _, e := range g {
				assert.LessOrEqual(t, e.row, e.col)
				if e.row == e.col {
					tr += e.val
				}
			}
			assert.Equal(t, complex128(0), tr)
		}
	}
}

func TestFormulate_Structure(t *testing.T) {
	j := pauliCombination(t, 1, []float64{-1, 0.5, 2.5, -0.1})
	p := Formulate(j)
	require.NoError(t, p.Validate())

	assert.Equal(t, []int{4, 4, 16}, p.BlockSizes)
	// 3 + 3 density parameters, 16 real and 16 imaginary parts of X
	assert.Equal(t, 38, p.NumVariables())

	// ρ = I/2 and X = 0 is strictly feasible.
	for _, block := range p.F0.Dense(p.BlockSizes) {
		var chol mat.Cholesky
		assert.True(t, chol.Factorize(symmetrize(block)))
	}

	// Density parameters carry no objective weight.
	for k := 0; k < 6; k++ {
		assert.Equal(t, 0.0, p.B[k])
	}
	jw := j.OutputMajor()
	assert.Equal(t, LiftScale*real(jw.At(0, 0)), p.B[6])
	assert.Equal(t, LiftScale*imag(jw.At(0, 0)), p.B[7])
}

func symmetrize(m *mat.Dense) *mat.SymDense {
	n, _ := m.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, (m.At(i, j)+m.At(j, i))/2)
		}
	}
	return s
}

func TestNorm_PauliCombination(t *testing.T) {
	coeffs := []float64{-1.0, 0.5, 2.5, -0.1}
	calc := newTestCalculator()

	for _, qubits := range []int{1, 2, 3} {
		if qubits > 1 && testing.Short() {
			continue
		}
		value, err := calc.Norm(context.Background(), pauliCombination(t, qubits, coeffs))
		require.NoError(t, err)
		assert.InDelta(t, 4.1, value, 1e-4, "qubits=%d", qubits)
	}
}

func TestNorm_Properties(t *testing.T) {
	calc := newTestCalculator()
	ctx := context.Background()

	t.Run("zero map", func(t *testing.T) {
		zero, err := choi.New(cmatrix.New(4, 4, nil), 2, 2)
		require.NoError(t, err)
		value, err := calc.Norm(ctx, zero)
		require.NoError(t, err)
		assert.Equal(t, 0.0, value)
	})

	t.Run("channel has unit norm", func(t *testing.T) {
		value, err := calc.Norm(ctx, label(t, "Y"))
		require.NoError(t, err)
		assert.InDelta(t, 1.0, value, 1e-4)
	})

	t.Run("discard channel", func(t *testing.T) {
		trace, err := choi.New(cmatrix.Identity(2), 2, 1)
		require.NoError(t, err)
		value, err := calc.Norm(ctx, trace)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, value, 1e-4)
	})

	t.Run("absolute homogeneity", func(t *testing.T) {
		phi, err := choiOf(t, label(t, "I")).Sub(choiOf(t, label(t, "Z")).Scale(0.5))
		require.NoError(t, err)
		base, err := calc.Norm(ctx, phi)
		require.NoError(t, err)
		scaled, err := calc.Norm(ctx, phi.Scale(-2.5))
		require.NoError(t, err)
		assert.InDelta(t, 2.5*base, scaled, 1e-4)
		assert.InDelta(t, 1.5, base, 1e-4)
	})
}

func TestDistance(t *testing.T) {
	calc := newTestCalculator()
	ctx := context.Background()

	t.Run("orthogonal unitaries are perfectly distinguishable", func(t *testing.T) {
		value, err := calc.Distance(ctx, label(t, "I"), label(t, "X"))
		require.NoError(t, err)
		assert.InDelta(t, 2.0, value, 1e-4)
	})

	t.Run("identical channels", func(t *testing.T) {
		value, err := calc.Distance(ctx, label(t, "X"), label(t, "X").Scale(1i))
		require.NoError(t, err)
		assert.InDelta(t, 0.0, value, 1e-4)
	})

	t.Run("symmetric", func(t *testing.T) {
		a := rz(t, 0.9)
		b, err := choiOf(t, label(t, "I")).Scale(0.7).Add(choiOf(t, label(t, "Z")).Scale(0.3))
		require.NoError(t, err)

		ab, err := calc.Distance(ctx, a, b)
		require.NoError(t, err)
		ba, err := calc.Distance(ctx, b, a)
		require.NoError(t, err)
		assert.InDelta(t, ab, ba, 1e-4)
	})

	t.Run("rotation matches the analytic value", func(t *testing.T) {
		theta := 1.0
		value, err := calc.Distance(ctx, rz(t, theta), label(t, "I"))
		require.NoError(t, err)
		assert.InDelta(t, 2*math.Sin(theta/2), value, 1e-4)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := calc.Distance(ctx, label(t, "X"), label(t, "XX"))
		assert.ErrorIs(t, err, choi.ErrDimensionMismatch)
	})
}

func TestUnitaryDistance(t *testing.T) {
	for k := 0; k < 10; k++ {
		theta := 2 * math.Pi * float64(k) / 10
		d2 := math.Pow(math.Cos(theta/2), 2)
		expected := 2 * math.Sqrt(1-d2)

		value, err := UnitaryDistance(rz(t, theta), label(t, "I"))
		require.NoError(t, err)
		assert.InDelta(t, expected, value, 1e-7, "theta=%v", theta)
	}

	value, err := UnitaryDistance(label(t, "XZ"), label(t, "XZ").Scale(-1))
	require.NoError(t, err)
	assert.InDelta(t, 0.0, value, 1e-7)

	value, err = UnitaryDistance(label(t, "X"), label(t, "Z"))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, value, 1e-7)

	_, err = UnitaryDistance(label(t, "X"), label(t, "XX"))
	assert.ErrorIs(t, err, choi.ErrDimensionMismatch)
}

// Two eigenvalues of U†V placed symmetrically about atan(c) make
// H₁ + cH₂ degenerate for the first mixing constant.
func TestUnitaryDistance_SymmetricEigenvalues(t *testing.T) {
	phi0 := math.Atan(mixingConstants[0])
	s := complex(1/math.Sqrt2, 0)
	hadamard, err := cmatrix.FromRows([][]complex128{{s, s}, {s, -s}})
	require.NoError(t, err)
	phases := cmatrix.New(2, 2, nil)
	phases.Set(0, 0, cmplx.Exp(complex(0, phi0+1)))
	phases.Set(1, 1, cmplx.Exp(complex(0, phi0-1)))
	v, err := choi.NewOperator(cmatrix.Mul(cmatrix.Mul(hadamard, phases), hadamard))
	require.NoError(t, err)

	value, err := UnitaryDistance(label(t, "I"), v)
	require.NoError(t, err)
	assert.InDelta(t, 2*math.Sin(1), value, 1e-7)

	if testing.Short() {
		return
	}
	numeric, err := newTestCalculator().Distance(context.Background(), label(t, "I"), v)
	require.NoError(t, err)
	assert.InDelta(t, value, numeric, 1e-4)
}

func TestEigenpairs_RejectsMixedVectors(t *testing.T) {
	w := cmatrix.New(2, 2, nil)
	w.Set(0, 0, 1)
	w.Set(1, 1, 1i)

	got, ok := eigenpairs(w, [][]complex128{{1, 0}, {0, 1}})
	require.True(t, ok)
	assert.Equal(t, []complex128{1, 1i}, got)

	_, ok = eigenpairs(w, [][]complex128{{1, 1}})
	assert.False(t, ok)
}

func TestUnitaryDistance_AgreesWithSDP(t *testing.T) {
	calc := newTestCalculator()
	pairs := [][2]*choi.Operator{
		{rz(t, 2.2), label(t, "I")},
		{rz(t, 0.4), label(t, "Z")},
	}
	for _, p := range pairs {
		analytic, err := UnitaryDistance(p[0], p[1])
		require.NoError(t, err)
		numeric, err := calc.Distance(context.Background(), p[0], p[1])
		require.NoError(t, err)
		assert.InDelta(t, analytic, numeric, 1e-4)
	}
}

type statusSolver struct{ status sdp.Status }

func (s statusSolver) Name() string { return "status" }

func (s statusSolver) Solve(context.Context, *sdp.Problem) (*sdp.Result, error) {
	return &sdp.Result{Status: s.status, Iterations: 3}, nil
}

func TestNorm_Errors(t *testing.T) {
	ctx := context.Background()
	log := zerolog.New(nil).Level(zerolog.Disabled)

	t.Run("no solver", func(t *testing.T) {
		calc := NewCalculator(nil, 0, log)
		assert.False(t, calc.Available())

		_, err := calc.Norm(ctx, label(t, "X"))
		assert.ErrorIs(t, err, sdp.ErrSolverUnavailable)
		_, err = calc.Distance(ctx, label(t, "X"), label(t, "I"))
		assert.ErrorIs(t, err, sdp.ErrSolverUnavailable)
	})

	t.Run("non-optimal status", func(t *testing.T) {
		calc := NewCalculator(statusSolver{status: sdp.StatusInfeasible}, 0, log)
		_, err := calc.Norm(ctx, label(t, "X"))

		var statusErr *sdp.StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, sdp.StatusInfeasible, statusErr.Status)
		assert.Equal(t, 3, statusErr.Iterations)
	})

	t.Run("nil channel", func(t *testing.T) {
		_, err := newTestCalculator().Norm(ctx, nil)
		assert.ErrorIs(t, err, choi.ErrNilRepresentation)
	})

	t.Run("map above the dimension cap", func(t *testing.T) {
		// An infeasible status would surface as *sdp.StatusError if the
		// solver were reached.
		calc := NewCalculator(statusSolver{status: sdp.StatusInfeasible}, 0, log)
		assert.Equal(t, DefaultMaxDimension, calc.MaxDimension())

		_, err := calc.Norm(ctx, label(t, "XXX"))
		assert.ErrorIs(t, err, choi.ErrDimension)
		_, err = calc.Distance(ctx, label(t, "XXX"), label(t, "ZZZ"))
		assert.ErrorIs(t, err, choi.ErrDimension)

		calc = NewCalculator(statusSolver{status: sdp.StatusInfeasible}, 3, log)
		_, err = calc.Norm(ctx, label(t, "X"))
		assert.ErrorIs(t, err, choi.ErrDimension)
	})
}
