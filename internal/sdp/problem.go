// Package sdp defines the semidefinite-program contract used by the diamond
// norm and ships a primal-dual interior-point backend for it.
//
// A Problem is a real linear matrix inequality in block-diagonal form:
//
//	maximize    bᵀy
//	subject to  F₀ + Σₖ yₖ Fₖ ⪰ 0
//
// Complex Hermitian constraints are expressed by lifting them to real
// symmetric blocks of twice the size before they reach this package.
package sdp

import (
	"errors"
	"fmt"
)

// ErrInvalidProblem is returned for structurally malformed problems.
var ErrInvalidProblem = errors.New("sdp: invalid problem")

// Entry is one stored element of a symmetric block-diagonal matrix.
// Only the upper triangle is stored (Row <= Col); an off-diagonal entry
// implies its mirror.
type Entry struct {
	Block int
	Row   int
	Col   int
	Value float64
}

// Matrix is a sparse symmetric block-diagonal matrix.
type Matrix struct {
	Entries []Entry
}

// Add accumulates v at (row, col) of block and, implicitly, at (col, row).
// Zero values are dropped.
func (m *Matrix) Add(block, row, col int, v float64) {
	if v == 0 {
		return
	}
	if row > col {
		row, col = col, row
	}
	m.Entries = append(m.Entries, Entry{Block: block, Row: row, Col: col, Value: v})
}

// Problem is an LMI in the form described in the package documentation.
type Problem struct {
	// BlockSizes lists the side of each diagonal block.
	BlockSizes []int
	F0         Matrix
	// F holds one coefficient matrix per variable, aligned with B.
	F []Matrix
	B []float64
}

// NumVariables returns the number of scalar decision variables.
func (p *Problem) NumVariables() int { return len(p.B) }

// Validate checks that every entry fits its block and that F and B agree.
func (p *Problem) Validate() error {
	if p == nil {
		return fmt.Errorf("nil problem: %w", ErrInvalidProblem)
	}
	if len(p.BlockSizes) == 0 {
		return fmt.Errorf("no blocks: %w", ErrInvalidProblem)
	}
	for i, s := range p.BlockSizes {
		if s <= 0 {
			return fmt.Errorf("block %d has size %d: %w", i, s, ErrInvalidProblem)
		}
	}
	if len(p.F) != len(p.B) {
		return fmt.Errorf("%d coefficient matrices for %d objective weights: %w", len(p.F), len(p.B), ErrInvalidProblem)
	}
	if len(p.B) == 0 {
		return fmt.Errorf("no variables: %w", ErrInvalidProblem)
	}
	if err := p.checkEntries("F0", p.F0); err != nil {
		return err
	}
	for k, f := range p.F {
		if err := p.checkEntries(fmt.Sprintf("F%d", k+1), f); err != nil {
			return err
		}
	}
	return nil
}

func (p *Problem) checkEntries(name string, m Matrix) error {
	for _, e := range m.Entries {
		if e.Block < 0 || e.Block >= len(p.BlockSizes) {
			return fmt.Errorf("%s: entry in unknown block %d: %w", name, e.Block, ErrInvalidProblem)
		}
		s := p.BlockSizes[e.Block]
		if e.Row < 0 || e.Col < 0 || e.Row >= s || e.Col >= s {
			return fmt.Errorf("%s: entry (%d,%d) outside block %d of size %d: %w",
				name, e.Row, e.Col, e.Block, s, ErrInvalidProblem)
		}
		if e.Row > e.Col {
			return fmt.Errorf("%s: entry (%d,%d) below the diagonal: %w", name, e.Row, e.Col, ErrInvalidProblem)
		}
	}
	return nil
}
