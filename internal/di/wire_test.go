package di

import (
	"testing"

	"github.com/aristath/qfidelity/internal/config"
	"github.com/aristath/qfidelity/internal/sdp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:     8001,
		Measures: config.MeasuresConfig{Atol: 1e-8, Rtol: 1e-5, EigenTol: 1e-12},
		Solver: config.SolverConfig{
			Name:          sdp.NameInteriorPoint,
			MaxIterations: 100,
			Tolerance:     1e-8,
			MaxMapDim:     16,
		},
		SelfTestSchedule: "@every 10m",
	}
}

func TestWire(t *testing.T) {
	container, err := Wire(testConfig(), zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, container)

	assert.NotNil(t, container.Solver)
	assert.NotNil(t, container.Validator)
	assert.NotNil(t, container.FidelityCalc)
	assert.NotNil(t, container.DiamondCalc)
	assert.True(t, container.DiamondCalc.Available())
	assert.Equal(t, 16, container.DiamondCalc.MaxDimension())
	assert.NotNil(t, container.MeasuresHandler)
	assert.NotNil(t, container.SelfTestJob)
	assert.True(t, container.SelfTestScheduled)
	assert.Equal(t, 1, container.Scheduler.Entries())
	assert.Equal(t, 1e-8, container.Validator.Tolerance().Atol)
}

func TestWire_NoSolver(t *testing.T) {
	cfg := testConfig()
	cfg.Solver.Name = sdp.NameNone

	container, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)

	assert.Nil(t, container.Solver)
	assert.False(t, container.DiamondCalc.Available())
	assert.Nil(t, container.SelfTestJob)
	assert.False(t, container.SelfTestScheduled)
	assert.NotNil(t, container.SelfTestStatus)
	assert.Equal(t, 0, container.Scheduler.Entries())
}

func TestWire_Errors(t *testing.T) {
	t.Run("unknown solver", func(t *testing.T) {
		cfg := testConfig()
		cfg.Solver.Name = "simplex"
		_, err := Wire(cfg, zerolog.Nop())
		assert.Error(t, err)
	})

	t.Run("bad schedule", func(t *testing.T) {
		cfg := testConfig()
		cfg.SelfTestSchedule = "sometimes"
		_, err := Wire(cfg, zerolog.Nop())
		assert.Error(t, err)
	})

	t.Run("empty schedule disables the job", func(t *testing.T) {
		cfg := testConfig()
		cfg.SelfTestSchedule = ""
		container, err := Wire(cfg, zerolog.Nop())
		require.NoError(t, err)
		assert.NotNil(t, container.SelfTestJob)
		assert.False(t, container.SelfTestScheduled)
	})
}
