// Package validity checks whether a Choi matrix describes a physical quantum
// channel: completely positive (CP) and trace preserving (TP).
package validity

import (
	"fmt"
	"math"

	"github.com/aristath/qfidelity/internal/modules/choi"
	"github.com/aristath/qfidelity/pkg/cmatrix"
)

// Tolerance bounds the numerical slack allowed by the checks. The CP bound is
// Atol + Rtol·‖J‖ and the TP bound is Atol + Rtol.
type Tolerance struct {
	Atol float64
	Rtol float64
}

// DefaultTolerance returns the tolerances used when none are configured.
func DefaultTolerance() Tolerance {
	return Tolerance{Atol: 1e-8, Rtol: 1e-5}
}

// Validate rejects negative or NaN tolerances.
func (t Tolerance) Validate() error {
	if !(t.Atol >= 0) || !(t.Rtol >= 0) {
		return fmt.Errorf("tolerances must be non-negative (atol=%g, rtol=%g)", t.Atol, t.Rtol)
	}
	return nil
}

// Report is the outcome of one validation.
type Report struct {
	IsCP bool `json:"is_cp" msgpack:"is_cp"`
	IsTP bool `json:"is_tp" msgpack:"is_tp"`
	// CPViolation is the magnitude of the most negative eigenvalue of the
	// Hermitian part of J, or zero when positivity holds within tolerance.
	CPViolation float64 `json:"cp_violation" msgpack:"cp_violation"`
	// TPViolation is ‖Tr_out J − I‖ in operator norm.
	TPViolation float64 `json:"tp_violation" msgpack:"tp_violation"`
	// HermitianViolation is ‖J − J†‖/2 in operator norm. A non-Hermitian J
	// is never CP.
	HermitianViolation float64 `json:"hermitian_violation" msgpack:"hermitian_violation"`
}

// Validator runs CP/TP checks with a fixed tolerance.
type Validator struct {
	tol Tolerance
}

// NewValidator creates a validator.
func NewValidator(tol Tolerance) *Validator {
	return &Validator{tol: tol}
}

// Tolerance returns the configured tolerance.
func (v *Validator) Tolerance() Tolerance { return v.tol }

// Check validates c. Numerical failures inside the eigen or singular value
// routines are reported as errors; validity problems never are.
func (v *Validator) Check(c *choi.Choi) (Report, error) {
	if c == nil {
		return Report{}, choi.ErrNilRepresentation
	}
	j := c.Matrix()

	antiHermitian := cmatrix.Scale(0.5, cmatrix.Sub(j, cmatrix.H(j)))
	hermDev, err := cmatrix.OpNorm(antiHermitian)
	if err != nil {
		return Report{}, fmt.Errorf("hermiticity check: %w", err)
	}

	vals, err := cmatrix.EigenvaluesHermitian(j)
	if err != nil {
		return Report{}, fmt.Errorf("cp check: %w", err)
	}
	minEig, maxAbs := vals[0], 0.0
	for _, val := range vals {
		maxAbs = math.Max(maxAbs, math.Abs(val))
	}
	cpTol := v.tol.Atol + v.tol.Rtol*maxAbs

	pt := c.PartialTraceOutput()
	tpDev, err := cmatrix.OpNorm(cmatrix.Sub(pt, cmatrix.Identity(c.InputDim())))
	if err != nil {
		return Report{}, fmt.Errorf("tp check: %w", err)
	}
	tpTol := v.tol.Atol + v.tol.Rtol

	positive := minEig >= -cpTol
	cpViolation := 0.0
	if !positive {
		cpViolation = -minEig
	}

	return Report{
		IsCP:               positive && hermDev <= cpTol,
		IsTP:               tpDev <= tpTol,
		CPViolation:        cpViolation,
		TPViolation:        tpDev,
		HermitianViolation: hermDev,
	}, nil
}
