// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	LogLevel string
	Port     int
	DevMode  bool

	Measures MeasuresConfig
	Solver   SolverConfig

	// SelfTestSchedule is the cron schedule of the solver self-test.
	// Empty disables the job.
	SelfTestSchedule string
}

// MeasuresConfig holds the numerical tolerances of the channel measures
type MeasuresConfig struct {
	Atol     float64 // absolute validity tolerance
	Rtol     float64 // relative validity tolerance
	EigenTol float64 // relative eigenvalue clipping tolerance for PSD square roots
}

// SolverConfig selects and tunes the SDP backend used by the diamond norm
type SolverConfig struct {
	Name          string // "interior-point" or "none"
	MaxIterations int
	Tolerance     float64
	MaxMapDim     int // largest d_in*d_out accepted for a diamond norm
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnvAsInt("GO_PORT", 8001),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		Measures: MeasuresConfig{
			Atol:     getEnvAsFloat("MEASURES_ATOL", 1e-8),
			Rtol:     getEnvAsFloat("MEASURES_RTOL", 1e-5),
			EigenTol: getEnvAsFloat("MEASURES_EIGEN_TOL", 1e-12),
		},
		Solver: SolverConfig{
			Name:          getEnv("SDP_SOLVER", "interior-point"),
			MaxIterations: getEnvAsInt("SDP_MAX_ITERATIONS", 100),
			Tolerance:     getEnvAsFloat("SDP_TOLERANCE", 1e-8),
			MaxMapDim:     getEnvAsInt("SDP_MAX_MAP_DIM", 16),
		},
		SelfTestSchedule: lookupEnv("SELFTEST_SCHEDULE", "@every 10m"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that tolerances and limits are usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if !(c.Measures.Atol > 0) || !(c.Measures.Rtol > 0) {
		return fmt.Errorf("validity tolerances must be positive (atol=%g, rtol=%g)", c.Measures.Atol, c.Measures.Rtol)
	}
	if !(c.Measures.EigenTol > 0) {
		return fmt.Errorf("eigenvalue tolerance must be positive, got %g", c.Measures.EigenTol)
	}
	if c.Solver.MaxIterations <= 0 {
		return fmt.Errorf("solver iteration cap must be positive, got %d", c.Solver.MaxIterations)
	}
	if !(c.Solver.Tolerance > 0) {
		return fmt.Errorf("solver tolerance must be positive, got %g", c.Solver.Tolerance)
	}
	if c.Solver.MaxMapDim <= 0 {
		return fmt.Errorf("diamond norm map dimension cap must be positive, got %d", c.Solver.MaxMapDim)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// lookupEnv distinguishes an unset variable from one set to the empty string.
func lookupEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
