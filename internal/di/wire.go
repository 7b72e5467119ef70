// Package di provides dependency injection wiring and initialization.
package di

import (
	"errors"
	"fmt"

	"github.com/aristath/qfidelity/internal/config"
	"github.com/aristath/qfidelity/internal/modules/diamond"
	"github.com/aristath/qfidelity/internal/modules/fidelity"
	"github.com/aristath/qfidelity/internal/modules/measures/handlers"
	"github.com/aristath/qfidelity/internal/modules/validity"
	"github.com/aristath/qfidelity/internal/scheduler"
	"github.com/aristath/qfidelity/internal/sdp"
	"github.com/rs/zerolog"
)

// Wire initializes all dependencies and returns a fully configured container
// Order of operations:
// 1. Resolve the SDP solver
// 2. Build the calculators and the HTTP handler
// 3. Register the solver self-test job
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// Step 1: Solver. "none" is a supported configuration, not a failure.
	solver, err := sdp.Lookup(cfg.Solver.Name, sdp.Options{
		MaxIterations: cfg.Solver.MaxIterations,
		Tolerance:     cfg.Solver.Tolerance,
	})
	switch {
	case errors.Is(err, sdp.ErrSolverUnavailable):
		log.Warn().Str("solver", cfg.Solver.Name).Msg("No SDP solver configured, diamond measures unavailable")
	case err != nil:
		return nil, fmt.Errorf("failed to resolve solver: %w", err)
	default:
		container.Solver = solver
	}

	// Step 2: Calculators and handler
	tol := validity.Tolerance{Atol: cfg.Measures.Atol, Rtol: cfg.Measures.Rtol}
	if err := tol.Validate(); err != nil {
		return nil, fmt.Errorf("invalid validity tolerance: %w", err)
	}
	container.Validator = validity.NewValidator(tol)
	container.FidelityCalc = fidelity.NewCalculator(container.Validator, cfg.Measures.EigenTol, log)
	container.DiamondCalc = diamond.NewCalculator(container.Solver, cfg.Solver.MaxMapDim, log)
	container.MeasuresHandler = handlers.NewHandler(
		container.Validator,
		container.FidelityCalc,
		container.DiamondCalc,
		log,
	)

	// Step 3: Jobs
	container.Scheduler = scheduler.New(log)
	container.SelfTestStatus = scheduler.NewSelfTestStatus()
	if container.Solver != nil {
		container.SelfTestJob = scheduler.NewSolverSelfTestJob(scheduler.SolverSelfTestConfig{
			Log:     log,
			Diamond: container.DiamondCalc,
			Status:  container.SelfTestStatus,
		})
		if cfg.SelfTestSchedule != "" {
			if err := container.Scheduler.AddJob(cfg.SelfTestSchedule, container.SelfTestJob); err != nil {
				return nil, fmt.Errorf("failed to register solver self-test: %w", err)
			}
			container.SelfTestScheduled = true
		}
	}

	log.Info().
		Str("solver", container.DiamondCalc.SolverName()).
		Bool("self_test_scheduled", container.SelfTestScheduled).
		Msg("Dependency injection wiring completed successfully")

	return container, nil
}
