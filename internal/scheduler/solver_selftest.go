package scheduler

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/aristath/qfidelity/internal/modules/choi"
	"github.com/rs/zerolog"
)

// DiamondNormInterface defines the contract for diamond norm evaluation
// Used by scheduler to enable testing with mocks
type DiamondNormInterface interface {
	Norm(ctx context.Context, r choi.Representation) (float64, error)
	SolverName() string
}

// Self-test reference problem: the map −1·I + 0.5·X + 2.5·Y − 0.1·Z
// (Choi matrices of the single-qubit Paulis) has diamond norm 4.1.
var (
	selfTestLabels = []string{"I", "X", "Y", "Z"}
	selfTestCoeffs = []float64{-1, 0.5, 2.5, -0.1}
)

const (
	SelfTestExpected  = 4.1
	SelfTestTolerance = 1e-4
	selfTestTimeout   = 30 * time.Second
)

// SelfTestResult is the outcome of the most recent solver self-test
type SelfTestResult struct {
	Ran        bool      `json:"ran"`
	Passed     bool      `json:"passed"`
	Solver     string    `json:"solver"`
	Value      float64   `json:"value"`
	Expected   float64   `json:"expected"`
	DurationMs int64     `json:"duration_ms"`
	CheckedAt  time.Time `json:"checked_at"`
	Error      string    `json:"error,omitempty"`
}

// SelfTestStatus holds the last self-test result; safe for concurrent use.
type SelfTestStatus struct {
	mu   sync.RWMutex
	last SelfTestResult
}

// NewSelfTestStatus creates an empty status holder
func NewSelfTestStatus() *SelfTestStatus {
	return &SelfTestStatus{}
}

// Record stores a result
func (s *SelfTestStatus) Record(r SelfTestResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = r
}

// Last returns the most recent result. Ran is false until the first run.
func (s *SelfTestStatus) Last() SelfTestResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// SolverSelfTestJob solves a diamond norm with a known value and records
// whether the configured solver reproduced it
type SolverSelfTestJob struct {
	log     zerolog.Logger
	diamond DiamondNormInterface
	status  *SelfTestStatus
	timeout time.Duration
	now     func() time.Time
}

// SolverSelfTestConfig holds configuration for the self-test job
type SolverSelfTestConfig struct {
	Log     zerolog.Logger
	Diamond DiamondNormInterface
	Status  *SelfTestStatus
	Timeout time.Duration // defaults to 30s
}

// NewSolverSelfTestJob creates a new solver self-test job
func NewSolverSelfTestJob(cfg SolverSelfTestConfig) *SolverSelfTestJob {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = selfTestTimeout
	}
	status := cfg.Status
	if status == nil {
		status = NewSelfTestStatus()
	}
	return &SolverSelfTestJob{
		log:     cfg.Log.With().Str("job", "solver_self_test").Logger(),
		diamond: cfg.Diamond,
		status:  status,
		timeout: timeout,
		now:     time.Now,
	}
}

// Name returns the job name
func (j *SolverSelfTestJob) Name() string {
	return "solver_self_test"
}

// Status returns the holder the job records into
func (j *SolverSelfTestJob) Status() *SelfTestStatus {
	return j.status
}

// Run executes the self-test. A value outside tolerance is returned as an
// error so the scheduler logs it.
func (j *SolverSelfTestJob) Run() error {
	result := SelfTestResult{
		Ran:      true,
		Solver:   j.diamond.SolverName(),
		Expected: SelfTestExpected,
	}
	start := j.now()
	result.CheckedAt = start

	reference, err := referenceMap()
	if err != nil {
		result.Error = err.Error()
		j.status.Record(result)
		return fmt.Errorf("build reference map: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	value, err := j.diamond.Norm(ctx, reference)
	result.DurationMs = j.now().Sub(start).Milliseconds()
	if err != nil {
		result.Error = err.Error()
		j.status.Record(result)
		j.log.Error().Err(err).Str("solver", result.Solver).Msg("Solver self-test failed")
		return fmt.Errorf("solver self-test: %w", err)
	}

	result.Value = value
	result.Passed = math.Abs(value-SelfTestExpected) <= SelfTestTolerance
	j.status.Record(result)

	if !result.Passed {
		j.log.Warn().
			Str("solver", result.Solver).
			Float64("value", value).
			Float64("expected", SelfTestExpected).
			Msg("Solver self-test out of tolerance")
		return fmt.Errorf("solver self-test: got %.8f, want %.1f ± %g", value, SelfTestExpected, SelfTestTolerance)
	}

	j.log.Info().
		Str("solver", result.Solver).
		Float64("value", value).
		Int64("duration_ms", result.DurationMs).
		Msg("Solver self-test passed")
	return nil
}

func referenceMap() (*choi.Choi, error) {
	var sum *choi.Choi
	for i, label := range selfTestLabels {
		op, err := choi.OperatorFromLabel(label)
		if err != nil {
			return nil, err
		}
		c, err := op.Choi()
		if err != nil {
			return nil, err
		}
		term := c.Scale(complex(selfTestCoeffs[i], 0))
		if sum == nil {
			sum = term
			continue
		}
		if sum, err = sum.Add(term); err != nil {
			return nil, err
		}
	}
	return sum, nil
}
