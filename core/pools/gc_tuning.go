package pools

import (
	"runtime/debug"
)

// GCConfig holds GC tuning parameters
type GCConfig struct {
	// Percent sets the GOGC target. 0 leaves it unchanged, a negative
	// value disables collection until MemoryLimit is reached.
	Percent int

	// MemoryLimit sets the soft memory limit in bytes. 0 leaves it unchanged.
	MemoryLimit int64
}

// ApplyGCConfig applies cfg and returns the settings it replaced so they
// can be restored with another ApplyGCConfig call.
func ApplyGCConfig(cfg GCConfig) GCConfig {
	var prev GCConfig

	if cfg.Percent != 0 {
		prev.Percent = debug.SetGCPercent(cfg.Percent)
	}
	if cfg.MemoryLimit > 0 {
		prev.MemoryLimit = debug.SetMemoryLimit(cfg.MemoryLimit)
	}
	return prev
}
