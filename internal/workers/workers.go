package workers

import (
	"os"
	"runtime"
	"strconv"

	"anim-converter/internal/logging"
)

// EnvOverride is the environment variable that pins the worker count.
const EnvOverride = "CONVERT_WORKERS"

// Count returns the number of concurrent workers for a task type. It
// respects container CPU limits via GOMAXPROCS.
//
// The multiplier scales workers per available CPU: 1.0 for CPU-bound work
// such as ffmpeg encodes, higher for work that mostly waits on I/O. The
// limit caps the result; use 0 for no cap. A positive integer in
// CONVERT_WORKERS overrides the calculation (still subject to limit).
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(EnvOverride); override != "" {
		count, err := strconv.Atoi(override)
		if err == nil && count > 0 {
			return capAt(count, limit)
		}
		logging.Warn("Ignoring invalid %s=%q", EnvOverride, override)
	}

	// GOMAXPROCS is automatically set to container CPU limit in Go 1.19+
	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)
	if workers < 1 {
		workers = 1
	}

	return capAt(workers, limit)
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

func capAt(n, limit int) int {
	if limit > 0 && n > limit {
		return limit
	}
	return n
}
