// Package fidelity computes process fidelity, average gate fidelity and gate
// error between a channel and a target operation.
package fidelity

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/aristath/qfidelity/internal/modules/choi"
	"github.com/aristath/qfidelity/internal/modules/validity"
	"github.com/aristath/qfidelity/pkg/cmatrix"
	"github.com/rs/zerolog"
)

const componentName = "fidelity"

// DefaultEigenTolerance is the relative cut below which eigenvalues are
// treated as zero inside matrix square roots.
const DefaultEigenTolerance = 1e-12

// Calculator evaluates fidelity-family measures.
type Calculator struct {
	validator *validity.Validator
	eigenTol  float64
	log       zerolog.Logger
}

// NewCalculator creates a calculator. A non-positive eigenTol selects
// DefaultEigenTolerance.
func NewCalculator(validator *validity.Validator, eigenTol float64, log zerolog.Logger) *Calculator {
	if eigenTol <= 0 {
		eigenTol = DefaultEigenTolerance
	}
	return &Calculator{
		validator: validator,
		eigenTol:  eigenTol,
		log:       log.With().Str("component", componentName).Logger(),
	}
}

// ProcessFidelity returns the process fidelity of channel against target.
// A nil target is the identity channel on the channel's input space.
//
// When either side is a unitary *choi.Operator the fidelity is the overlap
// with a pure state and is evaluated directly. Otherwise both Choi matrices
// are normalized by d_in and compared with the Uhlmann fidelity
// (Tr sqrt(sqrt(ρ) σ sqrt(ρ)))². The value is clipped to [0, 1].
func (c *Calculator) ProcessFidelity(channel, target choi.Representation, opts Options) (Result, error) {
	res, _, err := c.processFidelity(channel, target, opts)
	return res, err
}

// AverageGateFidelity returns (d·F + 1)/(d + 1) where F is the process
// fidelity and d the channel's input dimension.
func (c *Calculator) AverageGateFidelity(channel, target choi.Representation, opts Options) (Result, error) {
	res, d, err := c.processFidelity(channel, target, opts)
	if err != nil {
		return Result{}, err
	}
	res.Value = AverageFromProcess(res.Value, d)
	return res, nil
}

// GateError returns 1 - AverageGateFidelity.
func (c *Calculator) GateError(channel, target choi.Representation, opts Options) (Result, error) {
	res, err := c.AverageGateFidelity(channel, target, opts)
	if err != nil {
		return Result{}, err
	}
	res.Value = 1 - res.Value
	return res, nil
}

// AverageFromProcess converts a process fidelity on a d-level system into the
// average gate fidelity.
func AverageFromProcess(f float64, d int) float64 {
	fd := float64(d)
	return (fd*f + 1) / (fd + 1)
}

func (c *Calculator) processFidelity(channel, target choi.Representation, opts Options) (Result, int, error) {
	chanChoi, err := choi.Adapt(channel)
	if err != nil {
		return Result{}, 0, fmt.Errorf("channel: %w", err)
	}

	var targetChoi *choi.Choi
	if target != nil {
		targetChoi, err = choi.Adapt(target)
		if err != nil {
			return Result{}, 0, fmt.Errorf("target: %w", err)
		}
		if !chanChoi.SameDims(targetChoi) {
			return Result{}, 0, fmt.Errorf("channel (%d->%d) vs target (%d->%d): %w",
				chanChoi.InputDim(), chanChoi.OutputDim(),
				targetChoi.InputDim(), targetChoi.OutputDim(), choi.ErrDimensionMismatch)
		}
	} else if chanChoi.InputDim() != chanChoi.OutputDim() {
		return Result{}, 0, fmt.Errorf("identity target needs equal input and output dimensions, got %d->%d: %w",
			chanChoi.InputDim(), chanChoi.OutputDim(), choi.ErrDimensionMismatch)
	}

	var result Result
	if opts.RequireCP || opts.RequireTP {
		diags, err := c.check(SubjectChannel, chanChoi, opts)
		if err != nil {
			return Result{}, 0, err
		}
		result.Diagnostics = append(result.Diagnostics, diags...)
		if targetChoi != nil {
			diags, err := c.check(SubjectTarget, targetChoi, opts)
			if err != nil {
				return Result{}, 0, err
			}
			result.Diagnostics = append(result.Diagnostics, diags...)
		}
	}

	value, err := c.fidelity(channel, target, chanChoi, targetChoi)
	if err != nil {
		return Result{}, 0, err
	}
	result.Value = clip01(value)
	return result, chanChoi.InputDim(), nil
}

func (c *Calculator) fidelity(channel, target choi.Representation, chanChoi, targetChoi *choi.Choi) (float64, error) {
	u, chanUnitary := channel.(*choi.Operator)
	v, targetUnitary := target.(*choi.Operator)

	switch {
	case chanUnitary && targetUnitary:
		return unitaryOverlap(u.Matrix(), v.Matrix()), nil
	case target == nil && chanUnitary:
		return unitaryOverlap(u.Matrix(), cmatrix.Identity(u.Dim())), nil
	case target == nil:
		return pureOverlap(chanChoi, cmatrix.Identity(chanChoi.InputDim())), nil
	case targetUnitary:
		return pureOverlap(chanChoi, v.Matrix()), nil
	case chanUnitary:
		return pureOverlap(targetChoi, u.Matrix()), nil
	}
	return c.uhlmann(chanChoi.Normalized(), targetChoi.Normalized())
}

// unitaryOverlap is |Tr(U†V)|² / d².
func unitaryOverlap(u, v *cmatrix.Matrix) float64 {
	d, _ := u.Dims()
	tr := cmatrix.Trace(cmatrix.Mul(cmatrix.H(u), v))
	return math.Pow(cmplx.Abs(tr)/float64(d), 2)
}

// pureOverlap is vec(V)† J vec(V) / d², the fidelity of J/d against the pure
// Choi state of V.
func pureOverlap(j *choi.Choi, v *cmatrix.Matrix) float64 {
	d := float64(j.InputDim())
	vec := cmatrix.Vec(v)
	return real(cmatrix.Form(vec, j.Matrix(), vec)) / (d * d)
}

func (c *Calculator) uhlmann(rho, sigma *cmatrix.Matrix) (float64, error) {
	sqrtRho, err := cmatrix.SqrtPSD(rho, c.eigenTol)
	if err != nil {
		return 0, fmt.Errorf("sqrt of channel state: %w", err)
	}
	inner := cmatrix.Mul(cmatrix.Mul(sqrtRho, sigma), sqrtRho)
	tr, err := cmatrix.TraceSqrtPSD(inner, c.eigenTol)
	if err != nil {
		return 0, fmt.Errorf("sqrt of fidelity kernel: %w", err)
	}
	return tr * tr, nil
}

func (c *Calculator) check(subject string, j *choi.Choi, opts Options) ([]Diagnostic, error) {
	report, err := c.validator.Check(j)
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", subject, err)
	}

	var diags []Diagnostic
	if opts.RequireCP && !report.IsCP {
		diags = append(diags, Diagnostic{
			Component: componentName,
			Subject:   subject,
			Kind:      KindCP,
			Magnitude: math.Max(report.CPViolation, report.HermitianViolation),
		})
	}
	if opts.RequireTP && !report.IsTP {
		diags = append(diags, Diagnostic{
			Component: componentName,
			Subject:   subject,
			Kind:      KindTP,
			Magnitude: report.TPViolation,
		})
	}
	for _, d := range diags {
		c.log.Warn().
			Str("subject", d.Subject).
			Str("violation_kind", d.Kind).
			Float64("magnitude", d.Magnitude).
			Msgf("%s is not %s", d.Subject, describe(d.Kind))
	}
	return diags, nil
}

func describe(kind string) string {
	if kind == KindCP {
		return "completely positive"
	}
	return "trace preserving"
}

func clip01(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return math.Min(1, math.Max(0, x))
}
