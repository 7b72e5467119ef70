package sdp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scalarProblem(f0 []float64, f [][]float64, b []float64) *Problem {
	p := &Problem{B: b}
	for range f0 {
		p.BlockSizes = append(p.BlockSizes, 1)
	}
	for k, v := range f0 {
		p.F0.Add(k, 0, 0, v)
	}
	for _, coeffs := range f {
		var m Matrix
		for k, v := range coeffs {
			m.Add(k, 0, 0, v)
		}
		p.F = append(p.F, m)
	}
	return p
}

func TestInteriorPoint_LinearProblems(t *testing.T) {
	testCases := []struct {
		name     string
		problem  *Problem
		expected float64
		y        []float64
	}{
		{
			// max y  s.t. 1 - y >= 0
			name:     "single bound",
			problem:  scalarProblem([]float64{1}, [][]float64{{-1}}, []float64{1}),
			expected: 1,
			y:        []float64{1},
		},
		{
			// max y1 + 2 y2  s.t. y1 <= 1, y2 <= 1
			name:     "two bounds",
			problem:  scalarProblem([]float64{1, 1}, [][]float64{{-1, 0}, {0, -1}}, []float64{1, 2}),
			expected: 3,
			y:        []float64{1, 1},
		},
		{
			// max y  s.t. 2 - y >= 0, y + 1 >= 0
			name:     "interval",
			problem:  scalarProblem([]float64{2, 1}, [][]float64{{-1, 1}}, []float64{1}),
			expected: 2,
			y:        []float64{2},
		},
	}

	solver := NewInteriorPoint(DefaultOptions())
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := solver.Solve(context.Background(), tc.problem)
			require.NoError(t, err)
			require.Equal(t, StatusOptimal, res.Status)
			assert.InDelta(t, tc.expected, res.Value, 1e-6)
			require.Len(t, res.Y, len(tc.y))
			for i := range tc.y {
				assert.InDelta(t, tc.y[i], res.Y[i], 1e-5)
			}
			assert.NoError(t, CheckStatus(res))
		})
	}
}

func TestInteriorPoint_MaxEigenvalue(t *testing.T) {
	// max -t  s.t. t·I - A ⪰ 0 with A = [[2,1],[1,2]] gives -λmax(A) = -3.
	p := &Problem{BlockSizes: []int{2}, B: []float64{-1}}
	p.F0.Add(0, 0, 0, -2)
	p.F0.Add(0, 0, 1, -1)
	p.F0.Add(0, 1, 1, -2)
	var f Matrix
	f.Add(0, 0, 0, 1)
	f.Add(0, 1, 1, 1)
	p.F = []Matrix{f}

	res, err := NewInteriorPoint(Options{}).Solve(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, res.Status)
	assert.InDelta(t, -3.0, res.Value, 1e-6)
	assert.InDelta(t, res.PrimalObjective, res.DualObjective, 1e-5)
	assert.Less(t, res.Iterations, DefaultOptions().MaxIterations)
}

func TestInteriorPoint_CoupledBlock(t *testing.T) {
	// max 2x  s.t. [[1, x],[x, 1]] ⪰ 0 gives x = 1.
	p := &Problem{BlockSizes: []int{2}, B: []float64{2}}
	p.F0.Add(0, 0, 0, 1)
	p.F0.Add(0, 1, 1, 1)
	var f Matrix
	f.Add(0, 1, 0, 1)
	p.F = []Matrix{f}

	res, err := NewInteriorPoint(DefaultOptions()).Solve(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, res.Status)
	assert.InDelta(t, 2.0, res.Value, 1e-6)
	assert.InDelta(t, 1.0, res.Y[0], 1e-5)
}

func TestInteriorPoint_NonOptimalStatuses(t *testing.T) {
	solver := NewInteriorPoint(DefaultOptions())

	t.Run("unbounded", func(t *testing.T) {
		// max y  s.t. y >= 0
		res, err := solver.Solve(context.Background(), scalarProblem([]float64{0}, [][]float64{{1}}, []float64{1}))
		require.NoError(t, err)
		assert.NotEqual(t, StatusOptimal, res.Status)

		var statusErr *StatusError
		require.True(t, errors.As(CheckStatus(res), &statusErr))
		assert.Equal(t, res.Status, statusErr.Status)
	})

	t.Run("infeasible", func(t *testing.T) {
		// y >= 1 and y <= 0
		res, err := solver.Solve(context.Background(), scalarProblem([]float64{-1, 0}, [][]float64{{1, -1}}, []float64{0}))
		require.NoError(t, err)
		assert.NotEqual(t, StatusOptimal, res.Status)
		assert.Error(t, CheckStatus(res))
	})
}

func TestInteriorPoint_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewInteriorPoint(DefaultOptions()).Solve(ctx, scalarProblem([]float64{1}, [][]float64{{-1}}, []float64{1}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProblem_Validate(t *testing.T) {
	valid := scalarProblem([]float64{1}, [][]float64{{-1}}, []float64{1})
	require.NoError(t, valid.Validate())

	testCases := []struct {
		name   string
		mutate func(p *Problem)
	}{
		{"no blocks", func(p *Problem) { p.BlockSizes = nil }},
		{"zero block", func(p *Problem) { p.BlockSizes[0] = 0 }},
		{"objective length", func(p *Problem) { p.B = append(p.B, 1) }},
		{"unknown block", func(p *Problem) { p.F[0].Entries[0].Block = 3 }},
		{"outside block", func(p *Problem) { p.F0.Entries[0].Row = 1; p.F0.Entries[0].Col = 1 }},
		{"lower triangle", func(p *Problem) {
			p.BlockSizes[0] = 2
			p.F0.Entries = append(p.F0.Entries, Entry{Block: 0, Row: 1, Col: 0, Value: 1})
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := scalarProblem([]float64{1}, [][]float64{{-1}}, []float64{1})
			tc.mutate(p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidProblem)
		})
	}

	var nilProblem *Problem
	assert.ErrorIs(t, nilProblem.Validate(), ErrInvalidProblem)
}

func TestMatrix_AddMirrorsLowerEntries(t *testing.T) {
	var m Matrix
	m.Add(0, 2, 1, 3)
	m.Add(0, 1, 1, 0)
	require.Len(t, m.Entries, 1)
	assert.Equal(t, Entry{Block: 0, Row: 1, Col: 2, Value: 3}, m.Entries[0])

	dense := m.Dense([]int{3})
	assert.Equal(t, 3.0, dense[0].At(1, 2))
	assert.Equal(t, 3.0, dense[0].At(2, 1))
}

func TestLookup(t *testing.T) {
	s, err := Lookup("interior-point", Options{MaxIterations: 7})
	require.NoError(t, err)
	assert.Equal(t, NameInteriorPoint, s.Name())
	assert.Equal(t, 7, s.(*InteriorPoint).Options().MaxIterations)
	assert.Equal(t, DefaultOptions().Tolerance, s.(*InteriorPoint).Options().Tolerance)

	_, err = Lookup("none", DefaultOptions())
	assert.ErrorIs(t, err, ErrSolverUnavailable)

	_, err = Lookup("", DefaultOptions())
	assert.ErrorIs(t, err, ErrSolverUnavailable)

	_, err = Lookup("cvx", DefaultOptions())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSolverUnavailable)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "optimal", StatusOptimal.String())
	assert.Equal(t, "infeasible", StatusInfeasible.String())
	assert.Equal(t, "unbounded", StatusUnbounded.String())
	assert.Equal(t, "error", StatusFailed.String())
	assert.Contains(t, (&StatusError{Status: StatusInfeasible, Iterations: 4}).Error(), "infeasible")
}
