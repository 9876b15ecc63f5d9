package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"media-ingest/internal/logging"
)

// DefaultMemoryRatio is the fraction of container memory given to the
// Go heap. The rest is reserved for ffmpeg children, libvips buffers
// and goroutine stacks.
const DefaultMemoryRatio = 0.80

// ConfigResult reports how the memory limit was configured.
type ConfigResult struct {
	// Configured indicates whether GOMEMLIMIT was set.
	Configured bool
	// Source is "GOMEMLIMIT", "MEMORY_LIMIT", or "none".
	Source string
	// ContainerLimit is the container memory limit in bytes (0 if unset).
	ContainerLimit int64
	// GoMemLimit is the configured GOMEMLIMIT in bytes (0 if unset).
	GoMemLimit int64
	// Ratio is the memory ratio applied (0 if not applicable).
	Ratio float64
}

// ConfigureFromEnv sets GOMEMLIMIT from the container memory limit.
// Call this early in main() before significant allocations.
//
// Environment variables:
//   - GOMEMLIMIT: if set, takes precedence (standard Go env var)
//   - MEMORY_LIMIT: container memory limit in bytes
//   - MEMORY_RATIO: optional heap fraction (default 0.80)
func ConfigureFromEnv() ConfigResult {
	result := ConfigResult{Source: "none"}

	if goMemLimitEnv := os.Getenv("GOMEMLIMIT"); goMemLimitEnv != "" {
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.Source = "GOMEMLIMIT"
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", goMemLimitEnv)
		return result
	}

	memLimitStr := os.Getenv("MEMORY_LIMIT")
	if memLimitStr == "" {
		logging.Debug("No MEMORY_LIMIT in environment, leaving GOMEMLIMIT unset")
		return result
	}

	containerLimit, err := strconv.ParseInt(memLimitStr, 10, 64)
	if err != nil || containerLimit <= 0 {
		logging.Warn("Invalid MEMORY_LIMIT %q: %v", memLimitStr, err)
		return result
	}

	ratio := DefaultMemoryRatio
	if ratioStr := os.Getenv("MEMORY_RATIO"); ratioStr != "" {
		if r, err := strconv.ParseFloat(ratioStr, 64); err == nil && r > 0 && r <= 1 {
			ratio = r
		} else {
			logging.Warn("Invalid MEMORY_RATIO %q, using %.2f", ratioStr, DefaultMemoryRatio)
		}
	}

	goLimit := int64(float64(containerLimit) * ratio)
	debug.SetMemoryLimit(goLimit)
	logging.Info("GOMEMLIMIT set to %d bytes (%.0f%% of %d byte container limit)",
		goLimit, ratio*100, containerLimit)

	return ConfigResult{
		Configured:     true,
		Source:         "MEMORY_LIMIT",
		ContainerLimit: containerLimit,
		GoMemLimit:     goLimit,
		Ratio:          ratio,
	}
}
