package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"reelforge/internal/config"
	"reelforge/internal/deps"
	"reelforge/internal/services/llm"
	"reelforge/internal/services/pexels"
)

// CheckLLM verifies that the narration LLM API is reachable and the key is
// valid. It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg config.LLMConfig) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Referer: cfg.Referer,
		Title:   cfg.Title,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeHealthError(err, "LLM API")}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckFootageProvider verifies footage provider connectivity and
// authentication with a minimal one-result search.
func CheckFootageProvider(ctx context.Context, apiKey, baseURL string) Result {
	const name = "Footage API"

	if apiKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	client, err := pexels.New(apiKey, baseURL)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := client.SearchVideos(checkCtx, "nature", pexels.SearchOptions{PerPage: 1}); err != nil {
		return Result{Name: name, Detail: summarizeHealthError(err, "footage API")}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries the pipeline shells out to.
// Both the daemon and the CLI status command use this to avoid duplicating
// the requirements list. Service checks are not included here because they
// need network access and a context.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for reel assembly",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Required for media duration checks",
		},
		{
			Name:        "TTS engine",
			Command:     deps.HeadCommand(cfg.TTSCommand()),
			Description: "Required for narration audio synthesis",
		},
	}
	return deps.CheckBinaries(requirements)
}

// binaryResult folds a dependency status into a preflight result. Missing
// optional binaries still pass so status output reads clean.
func binaryResult(status deps.Status) Result {
	result := Result{Name: status.Name}
	switch {
	case status.Available:
		result.Passed = true
		result.Detail = status.Command
	case status.Optional:
		result.Passed = true
		result.Detail = fmt.Sprintf("optional: %s", status.Detail)
	default:
		result.Detail = status.Detail
	}
	return result
}

// summarizeHealthError produces a human-readable summary for service health
// check failures.
func summarizeHealthError(err error, api string) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("health check timed out (%s unresponsive)", api)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("health check timed out (%s unreachable)", api)
	}
	return err.Error()
}
