// Package diamond computes the diamond norm of a linear map given by its
// Choi matrix, and the diamond distance between two operations.
package diamond

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sort"
	"time"

	"github.com/aristath/qfidelity/internal/modules/choi"
	"github.com/aristath/qfidelity/internal/sdp"
	"github.com/aristath/qfidelity/pkg/cmatrix"
	"github.com/rs/zerolog"
)

// DefaultMaxDimension caps d_in·d_out of a map whose norm is solved. The
// interior-point Schur matrix has side about 2(d_in·d_out)², which at three
// qubits is already 8192.
const DefaultMaxDimension = 16

// Calculator evaluates diamond norms through an SDP solver.
type Calculator struct {
	solver sdp.Solver
	maxDim int
	log    zerolog.Logger
}

// NewCalculator creates a calculator. A nil solver is allowed; every norm
// request then fails with sdp.ErrSolverUnavailable. Maps with d_in·d_out
// above maxDim are rejected with choi.ErrDimension before any solve; a
// non-positive maxDim selects DefaultMaxDimension.
func NewCalculator(solver sdp.Solver, maxDim int, log zerolog.Logger) *Calculator {
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}
	return &Calculator{
		solver: solver,
		maxDim: maxDim,
		log:    log.With().Str("component", "diamond").Logger(),
	}
}

// MaxDimension returns the largest d_in·d_out accepted by Norm.
func (c *Calculator) MaxDimension() int { return c.maxDim }

// Available reports whether a solver is configured.
func (c *Calculator) Available() bool { return c.solver != nil }

// SolverName returns the configured solver's name, or "none".
func (c *Calculator) SolverName() string {
	if c.solver == nil {
		return sdp.NameNone
	}
	return c.solver.Name()
}

// Norm returns the diamond norm of the map represented by r. The map need
// not be completely positive or trace preserving.
func (c *Calculator) Norm(ctx context.Context, r choi.Representation) (float64, error) {
	if c.solver == nil {
		return 0, sdp.ErrSolverUnavailable
	}
	j, err := choi.Adapt(r)
	if err != nil {
		return 0, err
	}
	if n := j.InputDim() * j.OutputDim(); n > c.maxDim {
		return 0, fmt.Errorf("map %d->%d exceeds the diamond norm limit of %d on d_in·d_out: %w",
			j.InputDim(), j.OutputDim(), c.maxDim, choi.ErrDimension)
	}
	if cmatrix.IsZero(j.Matrix()) {
		return 0, nil
	}

	problem := Formulate(j)
	start := time.Now()
	res, err := c.solver.Solve(ctx, problem)
	if err != nil {
		return 0, fmt.Errorf("solve diamond norm: %w", err)
	}
	if err := sdp.CheckStatus(res); err != nil {
		c.log.Error().
			Str("solver", c.solver.Name()).
			Str("status", res.Status.String()).
			Int("iterations", res.Iterations).
			Msg("Diamond norm solve did not reach optimality")
		return 0, err
	}

	c.log.Debug().
		Str("solver", c.solver.Name()).
		Int("variables", problem.NumVariables()).
		Int("iterations", res.Iterations).
		Float64("gap", res.Gap).
		Bool("inaccurate", res.Inaccurate).
		Dur("duration", time.Since(start)).
		Msg("Diamond norm solved")

	// Objective weights carry LiftScale; see Formulate.
	return math.Max(0, res.Value/LiftScale), nil
}

// Distance returns the diamond norm of Choi(a) − Choi(b). Neither input is
// validated: the difference of two channels is not itself a channel.
func (c *Calculator) Distance(ctx context.Context, a, b choi.Representation) (float64, error) {
	if c.solver == nil {
		return 0, sdp.ErrSolverUnavailable
	}
	ja, err := choi.Adapt(a)
	if err != nil {
		return 0, fmt.Errorf("first operand: %w", err)
	}
	jb, err := choi.Adapt(b)
	if err != nil {
		return 0, fmt.Errorf("second operand: %w", err)
	}
	diff, err := ja.Sub(jb)
	if err != nil {
		return 0, err
	}
	return c.Norm(ctx, diff)
}

// mixingConstants weight the anti-Hermitian part of U†V when it is
// diagonalized together with the Hermitian part. A pair of eigenvalues
// symmetric about atan(c) makes H₁ + cH₂ degenerate, so the next constant is
// tried when an eigenpair fails its residual check.
var mixingConstants = []float64{
	math.Sqrt2 - 1/math.Pi,
	math.E/math.Pi - 0.5,
	math.Sqrt(3) / 7,
	math.Pi / 11,
}

// residualTolerance bounds ‖Wv − λv‖ for a unit eigenvector v of W.
const residualTolerance = 1e-8

// ErrNoSpectrum is returned when no mixing constant separates the
// eigenvalues of U†V.
var ErrNoSpectrum = errors.New("diamond: eigenvalues of U†V could not be resolved")

// UnitaryDistance returns the diamond distance between the unitary channels
// of u and v without solving an SDP: 2·sqrt(1 − δ²), where δ is the distance
// from the origin to the convex hull of the eigenvalues of U†V.
func UnitaryDistance(u, v *choi.Operator) (float64, error) {
	if u == nil || v == nil {
		return 0, choi.ErrNilRepresentation
	}
	if u.Dim() != v.Dim() {
		return 0, fmt.Errorf("operators on %d and %d levels: %w", u.Dim(), v.Dim(), choi.ErrDimensionMismatch)
	}
	w := cmatrix.Mul(cmatrix.H(u.Matrix()), v.Matrix())

	eigs, err := normalEigenvalues(w)
	if err != nil {
		return 0, err
	}
	delta := hullDistance(eigs)
	return 2 * math.Sqrt(math.Max(0, 1-delta*delta)), nil
}

// normalEigenvalues returns the eigenvalues of a normal matrix w, possibly
// repeated. H₁ = (W+W†)/2 and H₂ = (W−W†)/2i commute, so eigenvectors of
// H₁ + cH₂ are eigenvectors of W as long as no two eigenvalues of W collapse
// onto one eigenvalue of H₁ + cH₂.
func normalEigenvalues(w *cmatrix.Matrix) ([]complex128, error) {
	wh := cmatrix.H(w)
	h1 := cmatrix.Scale(0.5, cmatrix.Add(w, wh))
	h2 := cmatrix.Scale(-0.5i, cmatrix.Sub(w, wh))

	for _, c := range mixingConstants {
		k := cmatrix.Add(h1, cmatrix.Scale(complex(c, 0), h2))
		_, vecs, err := cmatrix.EigenHermitian(k)
		if err != nil {
			return nil, err
		}
		if out, ok := eigenpairs(w, vecs); ok {
			return out, nil
		}
	}
	return nil, ErrNoSpectrum
}

// eigenpairs takes the Rayleigh quotient of w at every vector and reports
// whether each vector is an eigenvector of w within residualTolerance.
func eigenpairs(w *cmatrix.Matrix, vecs [][]complex128) ([]complex128, bool) {
	out := make([]complex128, len(vecs))
	for i, vec := range vecs {
		norm := real(cmatrix.Form(vec, cmatrix.Identity(len(vec)), vec))
		if norm == 0 {
			return nil, false
		}
		lambda := cmatrix.Form(vec, w, vec) / complex(norm, 0)

		var res float64
		for r := range vec {
			var wv complex128
			for c := range vec {
				wv += w.At(r, c) * vec[c]
			}
			d := cmplx.Abs(wv - lambda*vec[r])
			res += d * d
		}
		if math.Sqrt(res/norm) > residualTolerance {
			return nil, false
		}
		out[i] = lambda
	}
	return out, true
}

// hullDistance returns the distance from the origin to the convex hull of
// points on the unit circle. The hull contains the origin unless all points
// fit in an open half circle; otherwise the nearest hull point lies on the
// chord spanning the occupied arc.
func hullDistance(points []complex128) float64 {
	angles := make([]float64, len(points))
	for i, p := range points {
		a := math.Atan2(imag(p), real(p))
		if a < 0 {
			a += 2 * math.Pi
		}
		angles[i] = a
	}
	sort.Float64s(angles)

	gap := angles[0] + 2*math.Pi - angles[len(angles)-1]
	for i := 1; i < len(angles); i++ {
		gap = math.Max(gap, angles[i]-angles[i-1])
	}
	if gap <= math.Pi {
		return 0
	}
	return math.Cos((2*math.Pi - gap) / 2)
}
