// Package handlers provides HTTP handlers for quantum channel measures.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/qfidelity/internal/modules/choi"
	"github.com/aristath/qfidelity/internal/modules/diamond"
	"github.com/aristath/qfidelity/internal/modules/fidelity"
	"github.com/aristath/qfidelity/internal/modules/validity"
	"github.com/aristath/qfidelity/internal/sdp"
	"github.com/aristath/qfidelity/pkg/cmatrix"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Handler handles measure HTTP requests
type Handler struct {
	validator *validity.Validator
	fidelity  *fidelity.Calculator
	diamond   *diamond.Calculator
	log       zerolog.Logger
}

// NewHandler creates a new measures handler
func NewHandler(
	validator *validity.Validator,
	fidelityCalc *fidelity.Calculator,
	diamondCalc *diamond.Calculator,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		validator: validator,
		fidelity:  fidelityCalc,
		diamond:   diamondCalc,
		log:       log.With().Str("handler", "measures").Logger(),
	}
}

// HandleValidate handles POST /api/measures/validate
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	rep, err := req.Channel.Representation()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := choi.Adapt(rep)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	report, err := h.validator.Check(c)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeResponse(w, r, map[string]interface{}{
		"input_dim":  c.InputDim(),
		"output_dim": c.OutputDim(),
		"report":     report,
		"tolerance":  h.validator.Tolerance(),
	})
}

// HandleProcessFidelity handles POST /api/measures/process-fidelity
func (h *Handler) HandleProcessFidelity(w http.ResponseWriter, r *http.Request) {
	h.handleFidelity(w, r, "process_fidelity", fidelity.ProcessOptions(), h.fidelity.ProcessFidelity)
}

// HandleAverageGateFidelity handles POST /api/measures/average-gate-fidelity
func (h *Handler) HandleAverageGateFidelity(w http.ResponseWriter, r *http.Request) {
	h.handleFidelity(w, r, "average_gate_fidelity", fidelity.GateOptions(), h.fidelity.AverageGateFidelity)
}

// HandleGateError handles POST /api/measures/gate-error
func (h *Handler) HandleGateError(w http.ResponseWriter, r *http.Request) {
	h.handleFidelity(w, r, "gate_error", fidelity.GateOptions(), h.fidelity.GateError)
}

type fidelityFunc func(channel, target choi.Representation, opts fidelity.Options) (fidelity.Result, error)

func (h *Handler) handleFidelity(w http.ResponseWriter, r *http.Request, measure string, opts fidelity.Options, fn fidelityFunc) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	if req.RequireCP != nil {
		opts.RequireCP = *req.RequireCP
	}
	if req.RequireTP != nil {
		opts.RequireTP = *req.RequireTP
	}

	channel, err := req.Channel.Representation()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var target choi.Representation
	if req.Target != nil {
		if target, err = req.Target.Representation(); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	res, err := fn(channel, target, opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	diags := res.Diagnostics
	if diags == nil {
		diags = []fidelity.Diagnostic{}
	}

	h.writeResponse(w, r, map[string]interface{}{
		"measure":     measure,
		"value":       res.Value,
		"valid":       res.Valid(),
		"diagnostics": diags,
		"options":     opts,
	})
}

// HandleDiamondNorm handles POST /api/measures/diamond-norm
func (h *Handler) HandleDiamondNorm(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	channel, err := req.Channel.Representation()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	value, err := h.diamond.Norm(r.Context(), channel)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeResponse(w, r, map[string]interface{}{
		"measure": "diamond_norm",
		"value":   value,
	})
}

// HandleDiamondDistance handles POST /api/measures/diamond-distance
func (h *Handler) HandleDiamondDistance(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	if req.Target == nil {
		http.Error(w, "target is required", http.StatusBadRequest)
		return
	}
	a, err := req.Channel.Representation()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	b, err := req.Target.Representation()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	method := "sdp"
	var value float64
	u, uok := a.(*choi.Operator)
	v, vok := b.(*choi.Operator)
	if req.Analytic && uok && vok {
		method = "analytic"
		value, err = diamond.UnitaryDistance(u, v)
	} else {
		value, err = h.diamond.Distance(r.Context(), a, b)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeResponse(w, r, map[string]interface{}{
		"measure": "diamond_distance",
		"method":  method,
		"value":   value,
	})
}

func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request) (*MeasureRequest, bool) {
	var req MeasureRequest
	if err := decode(w, r, &req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return nil, false
	}
	if req.Channel == nil {
		http.Error(w, "channel is required", http.StatusBadRequest)
		return nil, false
	}
	return &req, true
}

// statusFor maps measure errors onto HTTP status codes. Solver status
// errors fall through to 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, choi.ErrDimension),
		errors.Is(err, choi.ErrDimensionMismatch),
		errors.Is(err, choi.ErrNilRepresentation),
		errors.Is(err, choi.ErrUnknownPauli),
		errors.Is(err, cmatrix.ErrShape),
		errors.Is(err, cmatrix.ErrRagged),
		errors.Is(err, errBadOperand):
		return http.StatusBadRequest
	case errors.Is(err, sdp.ErrSolverUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("Measure failed")
	}
	http.Error(w, err.Error(), status)
}

// writeResponse wraps data in the standard envelope and encodes it as
// msgpack when the client accepts it, JSON otherwise.
func (h *Handler) writeResponse(w http.ResponseWriter, r *http.Request, data map[string]interface{}) {
	response := map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp":     time.Now().Format(time.RFC3339),
			"evaluation_id": uuid.New().String(),
		},
	}

	if isMsgpack(r.Header.Get("Accept")) {
		w.Header().Set("Content-Type", contentTypeMsgpack)
		w.WriteHeader(http.StatusOK)
		if err := msgpack.NewEncoder(w).Encode(response); err != nil {
			h.log.Error().Err(err).Msg("Failed to encode msgpack response")
		}
		return
	}
	h.writeJSON(w, http.StatusOK, response)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
