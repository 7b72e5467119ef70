package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/aristath/qfidelity/internal/scheduler"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Health states reported by /health and /api/system/status
const (
	StatusHealthy     = "healthy"
	StatusDegraded    = "degraded"
	StatusUnavailable = "unavailable"
)

// SolverInfo is what the system handlers need to know about the diamond backend
type SolverInfo interface {
	Available() bool
	SolverName() string
}

// SystemHandlers handles system-wide monitoring endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	solver      SolverInfo
	selfTest    *scheduler.SelfTestStatus
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger, solver SolverInfo, selfTest *scheduler.SelfTestStatus) *SystemHandlers {
	if selfTest == nil {
		selfTest = scheduler.NewSelfTestStatus()
	}
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		startupTime: time.Now(),
		solver:      solver,
		selfTest:    selfTest,
	}
}

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	Status        string                   `json:"status"`
	UptimeSeconds float64                  `json:"uptime_seconds"`
	CPUPercent    float64                  `json:"cpu_percent"`
	MemoryPercent float64                  `json:"memory_percent"`
	Runtime       RuntimeStats             `json:"runtime"`
	Solver        string                   `json:"solver"`
	SelfTest      scheduler.SelfTestResult `json:"self_test"`
}

// RuntimeStats holds Go runtime figures for this process
type RuntimeStats struct {
	GoVersion   string  `json:"go_version"`
	Goroutines  int     `json:"goroutines"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	NumGC       uint32  `json:"num_gc"`
}

// Health derives the service state from solver availability and the last self-test.
// A self-test that has not run yet does not degrade the service.
func (h *SystemHandlers) Health() string {
	if h.solver == nil || !h.solver.Available() {
		return StatusUnavailable
	}
	if last := h.selfTest.Last(); last.Ran && !last.Passed {
		return StatusDegraded
	}
	return StatusHealthy
}

func (h *SystemHandlers) solverName() string {
	if h.solver == nil {
		return "none"
	}
	return h.solver.SolverName()
}

// HandleSystemStatus returns comprehensive system status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, memPercent := h.getSystemStats()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	response := SystemStatusResponse{
		Status:        h.Health(),
		UptimeSeconds: time.Since(h.startupTime).Seconds(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Runtime: RuntimeStats{
			GoVersion:   runtime.Version(),
			Goroutines:  runtime.NumGoroutine(),
			HeapAllocMB: float64(ms.HeapAlloc) / 1024 / 1024,
			NumGC:       ms.NumGC,
		},
		Solver:   h.solverName(),
		SelfTest: h.selfTest.Last(),
	}

	h.writeJSON(w, response)
}

// getSystemStats calculates CPU and RAM usage percentages
// Uses a short interval (100ms) so the status call stays fast
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
