package startup

import (
	"fmt"

	"media-ingest/internal/logging"
	"media-ingest/internal/memory"
)

// formatBytesStartup formats a byte count for startup logs.
func formatBytesStartup(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// LogMemoryConfig logs how the memory limit was resolved.
func LogMemoryConfig(mc memory.ConfigResult) {
	logging.Info("------------------------------------------------------------")
	logging.Info("MEMORY CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	if !mc.Configured {
		logging.Info("  No memory limit configured")
		logging.Info("  Set MEMORY_LIMIT (bytes) or GOMEMLIMIT to enable backpressure")
		logging.Info("")
		return
	}

	switch mc.Source {
	case "GOMEMLIMIT":
		logging.Info("  Source:          GOMEMLIMIT (environment)")
		logging.Info("  Go heap limit:   %s", formatBytesStartup(mc.GoMemLimit))
	case "MEMORY_LIMIT":
		logging.Info("  Source:          MEMORY_LIMIT (container)")
		logging.Info("  Container limit: %s", formatBytesStartup(mc.ContainerLimit))
		logging.Info("  Go heap limit:   %s (%.0f%%)", formatBytesStartup(mc.GoMemLimit), mc.Ratio*100)
	}
	logging.Info("")
}
