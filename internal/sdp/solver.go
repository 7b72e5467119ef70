package sdp

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrSolverUnavailable is returned when no solver is configured. Callers are
// expected to treat it as a missing feature rather than a failure.
var ErrSolverUnavailable = errors.New("sdp: no solver available")

// Status is the termination state reported by a solver.
type Status int

const (
	StatusOptimal Status = iota
	StatusInfeasible
	StatusUnbounded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	default:
		return "error"
	}
}

// Result is what a solver returns for one problem.
type Result struct {
	Status Status
	// Value is the optimal objective bᵀy. Only meaningful when Status is
	// StatusOptimal.
	Value           float64
	Y               []float64
	Iterations      int
	PrimalObjective float64
	DualObjective   float64
	// Gap is the relative duality gap at termination.
	Gap float64
	// Inaccurate is set when the iteration limit or a numerical stall ended
	// the solve with residuals above the target tolerance but within a
	// looser acceptance bound.
	Inaccurate bool
}

// StatusError reports a solve that ended without an optimal status.
type StatusError struct {
	Status     Status
	Iterations int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sdp: solver returned status %s after %d iterations", e.Status, e.Iterations)
}

// CheckStatus converts a non-optimal result into a *StatusError.
func CheckStatus(r *Result) error {
	if r == nil {
		return &StatusError{Status: StatusFailed}
	}
	if r.Status != StatusOptimal {
		return &StatusError{Status: r.Status, Iterations: r.Iterations}
	}
	return nil
}

// Solver solves LMI problems. Implementations must be safe for concurrent
// use by independent calls.
type Solver interface {
	Name() string
	Solve(ctx context.Context, p *Problem) (*Result, error)
}

// Registered solver names.
const (
	NameInteriorPoint = "interior-point"
	NameNone          = "none"
)

// Lookup returns the solver registered under name. "none" and the empty
// string yield ErrSolverUnavailable.
func Lookup(name string, opts Options) (Solver, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameInteriorPoint:
		return NewInteriorPoint(opts), nil
	case NameNone, "":
		return nil, ErrSolverUnavailable
	default:
		return nil, fmt.Errorf("unknown solver %q", name)
	}
}
