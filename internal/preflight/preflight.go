package preflight

import (
	"context"

	"reelforge/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Directory and binary checks always run; service checks are only run when
// the corresponding API key is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Directories (staging and logs always, cache and output when configured)
	results = append(results, CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	if cfg.Cache.Dir != "" {
		results = append(results, CheckDirectoryAccess("Cache directory", cfg.Cache.Dir))
	}
	if cfg.Paths.OutputDir != "" {
		results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	}

	// Required binaries
	for _, status := range CheckSystemDeps(cfg) {
		results = append(results, binaryResult(status))
	}

	// Narration LLM
	if cfg.Narration.APIKey != "" {
		results = append(results, CheckLLM(ctx, "Narration LLM", cfg.NarrationLLM()))
	}

	// Footage provider
	if cfg.Footage.APIKey != "" {
		results = append(results, CheckFootageProvider(ctx, cfg.Footage.APIKey, cfg.Footage.BaseURL))
	}

	return results
}

// RequiredBinaryFailures filters RunAll-style binary statuses down to the
// non-optional misses. The daemon refuses to start when this is non-empty;
// accepting submissions that can never assemble would only fill the queue
// with doomed jobs.
func RequiredBinaryFailures(cfg *config.Config) []string {
	var missing []string
	for _, status := range CheckSystemDeps(cfg) {
		if status.Available || status.Optional {
			continue
		}
		missing = append(missing, status.Name)
	}
	return missing
}
