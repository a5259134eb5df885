package preflight

import (
	"context"

	"reelsmith/internal/config"
)

// MinStagingFreeBytes is the free space a staging filesystem needs before a run starts.
const MinStagingFreeBytes = 1 << 30

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckFreeSpace("Staging free space", cfg.Paths.StagingDir, MinStagingFreeBytes),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
	}

	if cfg.Paths.AudioDir != "" {
		results = append(results, CheckReadableDirectory("Audio directory", cfg.Paths.AudioDir))
	}

	if cfg.Kafka.Enabled {
		results = append(results, CheckBrokers(ctx, cfg.Kafka.Brokers))
	}

	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
