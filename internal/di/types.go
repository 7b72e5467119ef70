/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the server for access to handlers and status.
 */
package di

import (
	"github.com/aristath/qfidelity/internal/modules/diamond"
	"github.com/aristath/qfidelity/internal/modules/fidelity"
	"github.com/aristath/qfidelity/internal/modules/measures/handlers"
	"github.com/aristath/qfidelity/internal/modules/validity"
	"github.com/aristath/qfidelity/internal/scheduler"
	"github.com/aristath/qfidelity/internal/sdp"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Solver: the SDP backend (nil when SDP_SOLVER=none)
 * - Calculators: validity, fidelity and diamond measures
 * - Handlers: HTTP surface over the calculators
 * - Scheduler: cron runner with the solver self-test job
 */
type Container struct {
	Solver sdp.Solver // nil when no solver is configured

	Validator         *validity.Validator
	FidelityCalc      *fidelity.Calculator
	DiamondCalc       *diamond.Calculator
	MeasuresHandler   *handlers.Handler
	Scheduler         *scheduler.Scheduler
	SelfTestJob       *scheduler.SolverSelfTestJob // nil when no solver is configured
	SelfTestStatus    *scheduler.SelfTestStatus
	SelfTestScheduled bool
}
