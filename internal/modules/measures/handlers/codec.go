package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aristath/qfidelity/internal/modules/choi"
	"github.com/aristath/qfidelity/pkg/cmatrix"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeMsgpack = "application/msgpack"

	maxBodyBytes = 4 << 20
)

var errBadOperand = errors.New("invalid operand")

// Complex is a complex number encoded as [re, im].
type Complex [2]float64

// Operand describes one operation. Exactly one of Label, Unitary or Choi
// must be set. A Choi matrix without dimensions is taken to act on equal
// input and output spaces.
type Operand struct {
	Label     string      `json:"label,omitempty" msgpack:"label,omitempty"`
	Unitary   [][]Complex `json:"unitary,omitempty" msgpack:"unitary,omitempty"`
	Choi      [][]Complex `json:"choi,omitempty" msgpack:"choi,omitempty"`
	InputDim  int         `json:"input_dim,omitempty" msgpack:"input_dim,omitempty"`
	OutputDim int         `json:"output_dim,omitempty" msgpack:"output_dim,omitempty"`
}

// Representation converts the operand into a choi.Representation. Labels
// and unitaries become *choi.Operator values so that fidelity can take its
// pure-state paths.
func (o *Operand) Representation() (choi.Representation, error) {
	if o == nil {
		return nil, choi.ErrNilRepresentation
	}
	set := 0
	for _, present := range []bool{o.Label != "", len(o.Unitary) > 0, len(o.Choi) > 0} {
		if present {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("exactly one of label, unitary or choi is required: %w", errBadOperand)
	}

	switch {
	case o.Label != "":
		return choi.OperatorFromLabel(o.Label)
	case len(o.Unitary) > 0:
		m, err := toMatrix(o.Unitary)
		if err != nil {
			return nil, err
		}
		return choi.NewOperator(m)
	default:
		m, err := toMatrix(o.Choi)
		if err != nil {
			return nil, err
		}
		if o.InputDim == 0 && o.OutputDim == 0 {
			return choi.NewSquare(m)
		}
		return choi.New(m, o.InputDim, o.OutputDim)
	}
}

func toMatrix(rows [][]Complex) (*cmatrix.Matrix, error) {
	data := make([][]complex128, len(rows))
	for i, row := range rows {
		data[i] = make([]complex128, len(row))
		for j, v := range row {
			data[i][j] = complex(v[0], v[1])
		}
	}
	return cmatrix.FromRows(data)
}

// MeasureRequest is the body of every measure endpoint.
type MeasureRequest struct {
	Channel   *Operand `json:"channel" msgpack:"channel"`
	Target    *Operand `json:"target,omitempty" msgpack:"target,omitempty"`
	RequireCP *bool    `json:"require_cp,omitempty" msgpack:"require_cp,omitempty"`
	RequireTP *bool    `json:"require_tp,omitempty" msgpack:"require_tp,omitempty"`
	// Analytic selects the closed form for a pair of unitary operators in
	// the diamond distance endpoint.
	Analytic bool `json:"analytic,omitempty" msgpack:"analytic,omitempty"`
}

func isMsgpack(header string) bool {
	return strings.Contains(strings.ToLower(header), contentTypeMsgpack)
}

// decode reads a JSON or msgpack body depending on Content-Type.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if isMsgpack(r.Header.Get("Content-Type")) {
		return msgpack.NewDecoder(body).Decode(v)
	}
	return json.NewDecoder(body).Decode(v)
}
