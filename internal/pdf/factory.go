package pdf

import (
	"fmt"

	"github.com/jharjadi/docingest/internal/config"
)

// NewOptimizer builds the configured optimizer strategy (spec §2, §6).
func NewOptimizer(cfg *config.Config) (Optimizer, error) {
	timeout := cfg.OptimizationTimeout()
	switch cfg.OptimizerStrategy {
	case config.OptimizerNone:
		return NoopOptimizer{}, nil
	case config.OptimizerGhostscript:
		return GhostscriptOptimizer{Preset: cfg.GhostscriptPreset, Timeout: timeout}, nil
	case config.OptimizerQPDF:
		return QPDFOptimizer{Options: cfg.QPDFOptimizerOptions, Timeout: timeout}, nil
	default:
		return nil, fmt.Errorf("unknown pdf optimizer strategy %q", cfg.OptimizerStrategy)
	}
}
