package preflight

import (
	"context"

	"clarifai/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	// Optional results never fail a run.
	Optional bool
	Detail   string
}

// Options selects the checks RunAll performs.
type Options struct {
	// SkipLLM omits the oracle round trip, for offline validation.
	SkipLLM bool
}

// RunAll executes every applicable preflight check for cfg.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	results := CheckBinaries(cfg)
	results = append(results,
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckNotifications(cfg.Notifications),
		CheckPublish(cfg.Publish),
	)
	if !opts.SkipLLM {
		results = append(results, CheckLLM(ctx, "Oracle LLM", cfg.GetLLM()))
	}
	return results
}

// Failed returns the non-optional results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, result := range results {
		if !result.Passed && !result.Optional {
			out = append(out, result)
		}
	}
	return out
}
