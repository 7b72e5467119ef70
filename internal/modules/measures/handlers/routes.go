package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all measure routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/measures", func(r chi.Router) {
		r.Post("/validate", h.HandleValidate)
		r.Post("/process-fidelity", h.HandleProcessFidelity)
		r.Post("/average-gate-fidelity", h.HandleAverageGateFidelity)
		r.Post("/gate-error", h.HandleGateError)
		r.Post("/diamond-norm", h.HandleDiamondNorm)
		r.Post("/diamond-distance", h.HandleDiamondDistance)
	})
}
