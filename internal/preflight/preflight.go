package preflight

import (
	"context"

	"eventsync/internal/config"
	"eventsync/internal/deps"
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

	var results []Result

	results = append(results, CheckDirectoryAccess("Dataset directory", cfg.Paths.DatasetDir))
	results = append(results, CheckDatasetLayout(cfg.Paths.DatasetDir))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	if cfg.Matching.OverridesFile != "" {
		results = append(results, CheckOverrides(cfg.Matching.OverridesFile))
	}

	if cfg.Dataset.Manager == config.ManagerDatalad {
		statuses := CheckSystemDeps(ctx, cfg)
		for _, status := range statuses {
			if status.Optional || !status.Available {
				continue
			}
			results = append(results, Result{Name: status.Name, Passed: true, Detail: statusDetail(status)})
		}
		for _, status := range deps.Missing(statuses) {
			detail := statusDetail(status)
			if status.Description != "" {
				detail += " (" + status.Description + ")"
			}
			results = append(results, Result{Name: status.Name, Detail: detail})
		}
	}

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

func statusDetail(status deps.Status) string {
	if status.Detail != "" {
		return status.Detail
	}
	if status.Available {
		return status.Command
	}
	return "not available"
}
