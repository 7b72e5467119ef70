// Package choi normalizes quantum operations into the canonical Choi-matrix
// representation used by every measure in this service.
//
// Convention: a map Φ from a d_in-level to a d_out-level system has Choi
// matrix J = Σ_ab |a⟩⟨b| ⊗ Φ(|a⟩⟨b|), indexed by (input, output) with the
// input index most significant. The matrix is unnormalized, so a trace
// preserving channel has Tr J = d_in. For a unitary U the Choi matrix is
// vec(U) vec(U)† with column-stacking vectorization.
package choi

import (
	"errors"
	"fmt"
	"math"

	"github.com/aristath/qfidelity/pkg/cmatrix"
)

var (
	// ErrDimension reports a malformed matrix: not square, or its side is
	// not the product of the stated dimensions.
	ErrDimension = errors.New("choi: invalid dimensions")
	// ErrDimensionMismatch reports two operations whose dimensions differ.
	ErrDimensionMismatch = errors.New("choi: dimension mismatch")
	// ErrNilRepresentation is returned when no operation was supplied.
	ErrNilRepresentation = errors.New("choi: nil representation")
	// ErrUnknownPauli is returned for a label character outside IXYZ.
	ErrUnknownPauli = errors.New("choi: unknown pauli")
)

// Representation is anything that can be expressed as a Choi matrix.
type Representation interface {
	Choi() (*Choi, error)
}

// Choi is a quantum operation in canonical Choi form. Values are immutable:
// every method returns a new matrix.
type Choi struct {
	inputDim  int
	outputDim int
	data      *cmatrix.Matrix
}

// New wraps m as the Choi matrix of a map from inputDim to outputDim levels.
func New(m *cmatrix.Matrix, inputDim, outputDim int) (*Choi, error) {
	if m == nil {
		return nil, ErrNilRepresentation
	}
	if inputDim <= 0 || outputDim <= 0 {
		return nil, fmt.Errorf("input_dim=%d output_dim=%d must be positive: %w", inputDim, outputDim, ErrDimension)
	}
	r, c := m.Dims()
	if r != c {
		return nil, fmt.Errorf("matrix is %dx%d, not square: %w", r, c, ErrDimension)
	}
	if r != inputDim*outputDim {
		return nil, fmt.Errorf("matrix side %d != input_dim*output_dim = %d: %w", r, inputDim*outputDim, ErrDimension)
	}
	return &Choi{inputDim: inputDim, outputDim: outputDim, data: m.Clone()}, nil
}

// NewSquare wraps m as the Choi matrix of a map with equal input and output
// dimension d, inferring d from the side length d².
func NewSquare(m *cmatrix.Matrix) (*Choi, error) {
	if m == nil {
		return nil, ErrNilRepresentation
	}
	r, _ := m.Dims()
	d := int(math.Round(math.Sqrt(float64(r))))
	if d*d != r {
		return nil, fmt.Errorf("matrix side %d is not a perfect square: %w", r, ErrDimension)
	}
	return New(m, d, d)
}

// Identity returns the Choi matrix of the identity channel on d levels.
func Identity(d int) *Choi {
	c, err := FromUnitary(cmatrix.Identity(d))
	if err != nil {
		panic(err)
	}
	return c
}

// FromUnitary returns the Choi matrix vec(U) vec(U)† of the map ρ ↦ UρU†.
func FromUnitary(u *cmatrix.Matrix) (*Choi, error) {
	if u == nil {
		return nil, ErrNilRepresentation
	}
	if !u.IsSquare() {
		r, c := u.Dims()
		return nil, fmt.Errorf("operator is %dx%d, not square: %w", r, c, ErrDimension)
	}
	d, _ := u.Dims()
	v := cmatrix.Vec(u)
	return &Choi{inputDim: d, outputDim: d, data: cmatrix.Outer(v, v)}, nil
}

// Choi implements Representation.
func (c *Choi) Choi() (*Choi, error) {
	if c == nil {
		return nil, ErrNilRepresentation
	}
	return c, nil
}

// InputDim returns the input dimension.
func (c *Choi) InputDim() int { return c.inputDim }

// OutputDim returns the output dimension.
func (c *Choi) OutputDim() int { return c.outputDim }

// Matrix returns a copy of the Choi matrix.
func (c *Choi) Matrix() *cmatrix.Matrix { return c.data.Clone() }

// SameDims reports whether c and o act between spaces of equal dimension.
func (c *Choi) SameDims(o *Choi) bool {
	return c.inputDim == o.inputDim && c.outputDim == o.outputDim
}

func (c *Choi) checkDims(o *Choi) error {
	if !c.SameDims(o) {
		return fmt.Errorf("(%d->%d) vs (%d->%d): %w",
			c.inputDim, c.outputDim, o.inputDim, o.outputDim, ErrDimensionMismatch)
	}
	return nil
}

// Add returns the Choi matrix of the map c + o.
func (c *Choi) Add(o *Choi) (*Choi, error) {
	if err := c.checkDims(o); err != nil {
		return nil, err
	}
	return &Choi{inputDim: c.inputDim, outputDim: c.outputDim, data: cmatrix.Add(c.data, o.data)}, nil
}

// Sub returns the Choi matrix of the map c - o.
func (c *Choi) Sub(o *Choi) (*Choi, error) {
	if err := c.checkDims(o); err != nil {
		return nil, err
	}
	return &Choi{inputDim: c.inputDim, outputDim: c.outputDim, data: cmatrix.Sub(c.data, o.data)}, nil
}

// Scale returns the Choi matrix of the map alpha·c.
func (c *Choi) Scale(alpha complex128) *Choi {
	return &Choi{inputDim: c.inputDim, outputDim: c.outputDim, data: cmatrix.Scale(alpha, c.data)}
}

// Normalized returns J / d_in, a unit-trace matrix for trace preserving maps.
func (c *Choi) Normalized() *cmatrix.Matrix {
	return cmatrix.Scale(complex(1/float64(c.inputDim), 0), c.data)
}

// PartialTraceOutput traces out the output subsystem, returning the
// d_in×d_in matrix Σ_o J[(a,o),(b,o)]. It is the identity exactly when the
// map is trace preserving.
func (c *Choi) PartialTraceOutput() *cmatrix.Matrix {
	din, dout := c.inputDim, c.outputDim
	out := cmatrix.New(din, din, nil)
	for a := 0; a < din; a++ {
		for b := 0; b < din; b++ {
			var sum complex128
			for o := 0; o < dout; o++ {
				sum += c.data.At(a*dout+o, b*dout+o)
			}
			out.Set(a, b, sum)
		}
	}
	return out
}

// OutputMajor reorders J so that the output index is most significant,
// i.e. J_W[(o,a),(p,b)] = J[(a,o),(b,p)]. This is the ordering in which
// 1_out ⊗ ρ acts on the same index space.
func (c *Choi) OutputMajor() *cmatrix.Matrix {
	din, dout := c.inputDim, c.outputDim
	n := din * dout
	out := cmatrix.New(n, n, nil)
	for a := 0; a < din; a++ {
		for o := 0; o < dout; o++ {
			for b := 0; b < din; b++ {
				for p := 0; p < dout; p++ {
					out.Set(o*din+a, p*din+b, c.data.At(a*dout+o, b*dout+p))
				}
			}
		}
	}
	return out
}

// Adapt converts any representation into its Choi form.
func Adapt(r Representation) (*Choi, error) {
	if r == nil {
		return nil, ErrNilRepresentation
	}
	c, err := r.Choi()
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNilRepresentation
	}
	return c, nil
}
