package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"anim-converter/internal/logging"

	"github.com/dustin/go-humanize"
)

// DefaultMemoryRatio is the share of container memory given to the Go
// heap. ffmpeg runs as child processes in the same container and needs the
// rest.
const DefaultMemoryRatio = 0.5

// Sources reported in ConfigResult.Source.
const (
	SourceNone        = "none"
	SourceGOMEMLIMIT  = "GOMEMLIMIT"
	SourceMemoryLimit = "MEMORY_LIMIT"
)

// ConfigResult describes what ConfigureFromEnv did.
type ConfigResult struct {
	Configured     bool
	Source         string
	ContainerLimit int64 // bytes, 0 unless taken from MEMORY_LIMIT
	GoMemLimit     int64 // bytes, 0 when not configured
	Ratio          float64
}

// ConfigureFromEnv sets the Go soft memory limit. Call it first in main.
//
// An explicit GOMEMLIMIT is left alone and only reported. Otherwise
// MEMORY_LIMIT (plain bytes or a size such as 512MiB) is scaled by
// MEMORY_RATIO, which defaults to DefaultMemoryRatio.
func ConfigureFromEnv() ConfigResult {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		logging.Info("GOMEMLIMIT set via environment: %s", env)
		return currentLimit()
	}

	raw := os.Getenv("MEMORY_LIMIT")
	if raw == "" {
		logging.Debug("MEMORY_LIMIT not set, leaving GOMEMLIMIT unconfigured")
		return ConfigResult{Source: SourceNone}
	}

	container, err := humanize.ParseBytes(raw)
	if err != nil || container == 0 || container > math.MaxInt64 {
		logging.Warn("Ignoring MEMORY_LIMIT %q: not a positive size", raw)
		return ConfigResult{Source: SourceNone}
	}

	ratio := ratioFromEnv()
	limit := int64(float64(container) * ratio)
	debug.SetMemoryLimit(limit)

	logging.Info("Configured GOMEMLIMIT: %s (%.0f%% of %s container limit)",
		humanize.IBytes(uint64(limit)), ratio*100, humanize.IBytes(container))

	return ConfigResult{
		Configured:     true,
		Source:         SourceMemoryLimit,
		ContainerLimit: int64(container),
		GoMemLimit:     limit,
		Ratio:          ratio,
	}
}

// currentLimit reports the limit the runtime picked up from GOMEMLIMIT.
func currentLimit() ConfigResult {
	limit := debug.SetMemoryLimit(-1)
	if limit <= 0 || limit == math.MaxInt64 {
		return ConfigResult{Source: SourceGOMEMLIMIT}
	}
	return ConfigResult{Configured: true, Source: SourceGOMEMLIMIT, GoMemLimit: limit}
}

func ratioFromEnv() float64 {
	raw := os.Getenv("MEMORY_RATIO")
	if raw == "" {
		return DefaultMemoryRatio
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil || ratio <= 0 || ratio > 1 {
		logging.Warn("Ignoring MEMORY_RATIO %q (want 0 < ratio <= 1), using %.2f", raw, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	return ratio
}
