package choi

import (
	"fmt"
	"strings"

	"github.com/aristath/qfidelity/pkg/cmatrix"
)

// Operator is a unitary operator acting on a d-level system. Unitarity is
// the caller's guarantee; it is not checked on construction.
type Operator struct {
	data *cmatrix.Matrix
}

// NewOperator wraps a square matrix as an operator.
func NewOperator(m *cmatrix.Matrix) (*Operator, error) {
	if m == nil {
		return nil, ErrNilRepresentation
	}
	if !m.IsSquare() {
		r, c := m.Dims()
		return nil, fmt.Errorf("operator is %dx%d, not square: %w", r, c, ErrDimension)
	}
	return &Operator{data: m.Clone()}, nil
}

// Dim returns the dimension of the system the operator acts on.
func (o *Operator) Dim() int {
	d, _ := o.data.Dims()
	return d
}

// Matrix returns a copy of the operator matrix.
func (o *Operator) Matrix() *cmatrix.Matrix { return o.data.Clone() }

// Choi implements Representation.
func (o *Operator) Choi() (*Choi, error) {
	if o == nil {
		return nil, ErrNilRepresentation
	}
	return FromUnitary(o.data)
}

// Scale returns alpha·U. A unit-modulus alpha is a global phase.
func (o *Operator) Scale(alpha complex128) *Operator {
	return &Operator{data: cmatrix.Scale(alpha, o.data)}
}

var paulis = map[rune][]complex128{
	'I': {1, 0, 0, 1},
	'X': {0, 1, 1, 0},
	'Y': {0, -1i, 1i, 0},
	'Z': {1, 0, 0, -1},
}

// Pauli returns the single-qubit Pauli matrix named by p (I, X, Y or Z).
func Pauli(p rune) (*cmatrix.Matrix, error) {
	data, ok := paulis[p]
	if !ok {
		return nil, fmt.Errorf("%q: %w", p, ErrUnknownPauli)
	}
	m := cmatrix.New(2, 2, nil)
	copy(m.RawData(), data)
	return m, nil
}

// OperatorFromLabel builds the tensor product of single-qubit Paulis named by
// label, leftmost factor most significant ("XZ" = X ⊗ Z).
func OperatorFromLabel(label string) (*Operator, error) {
	label = strings.ToUpper(strings.TrimSpace(label))
	if label == "" {
		return nil, fmt.Errorf("empty pauli label: %w", ErrDimension)
	}
	var out *cmatrix.Matrix
	for _, r := range label {
		p, err := Pauli(r)
		if err != nil {
			return nil, fmt.Errorf("label %q: %w", label, err)
		}
		if out == nil {
			out = p
			continue
		}
		out = cmatrix.Kron(out, p)
	}
	return &Operator{data: out}, nil
}
