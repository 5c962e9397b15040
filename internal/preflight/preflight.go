package preflight

import (
	"context"

	"assetwatch/internal/config"
)

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
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Snapshot directory", cfg.Paths.DataDir),
	}

	// Frames go beside the snapshot unless a scratch directory is configured.
	if cfg.Conversion.Enabled && cfg.Paths.WorkDir != "" {
		results = append(results, CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir))
	}

	results = append(results, CheckOrigin(ctx, cfg.Origin.BaseURL, cfg.Origin.UserAgent))
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
