package handlers

import (
	"net/http"
	"runtime"
	"time"

	"anim-converter/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	FFmpeg  bool   `json:"ffmpeg"`

	// Conversion slots
	Workers       int `json:"workers"`
	ActiveWorkers int `json:"activeWorkers"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	limiter := h.converter.Limiter()

	response := HealthResponse{
		Status:        statusHealthy,
		Ready:         h.ffmpegAvailable,
		Version:       startup.Version,
		Uptime:        time.Since(h.startTime).Round(time.Second).String(),
		FFmpeg:        h.ffmpegAvailable,
		Workers:       limiter.Capacity(),
		ActiveWorkers: limiter.InUse(),
		GoVersion:     runtime.Version(),
		NumCPU:        runtime.NumCPU(),
		NumGoroutine:  runtime.NumGoroutine(),
	}

	w.Header().Set("Content-Type", "application/json")

	// Without ffmpeg every conversion fails, so report unavailable
	if !h.ffmpegAvailable {
		response.Status = statusDegraded
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the service can run conversions
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.ffmpegAvailable {
		writeJSONStatus(w, "ready", http.StatusOK)
	} else {
		writeJSONStatus(w, "not_ready", http.StatusServiceUnavailable)
	}
}
