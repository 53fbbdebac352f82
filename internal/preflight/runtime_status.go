package preflight

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"reelforge/internal/config"
)

// CheckNarrationFromConfig evaluates narration LLM status from config and
// connectivity.
func CheckNarrationFromConfig(cfg *config.Config) Result {
	const name = "Narration LLM"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.Narration.APIKey) == "" {
		return Result{Name: name, Detail: "Missing API key"}
	}
	return CheckLLM(context.Background(), name, cfg.NarrationLLM())
}

// CheckFootageFromConfig evaluates footage provider status from config and
// connectivity.
func CheckFootageFromConfig(cfg *config.Config) Result {
	const name = "Footage API"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.Footage.APIKey) == "" {
		return Result{Name: name, Detail: "Missing API key"}
	}
	return CheckFootageProvider(context.Background(), cfg.Footage.APIKey, cfg.Footage.BaseURL)
}

// FFmpegProbe reports the ffmpeg build visible on PATH.
type FFmpegProbe struct {
	Detected bool
	Command  string
	Version  string
}

// ProbeFFmpeg attempts to detect the ffmpeg binary and read its version.
func ProbeFFmpeg(command string) FFmpegProbe {
	command = strings.TrimSpace(command)
	if command == "" {
		command = "ffmpeg"
	}
	if _, err := exec.LookPath(command); err != nil {
		return FFmpegProbe{Command: command}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, command, "-version")
	output, err := cmd.Output()
	if err != nil {
		// The binary exists but did not answer; report presence without a version.
		return FFmpegProbe{Detected: true, Command: command}
	}
	return FFmpegProbe{
		Detected: true,
		Command:  command,
		Version:  parseFFmpegVersion(string(output)),
	}
}

// parseFFmpegVersion extracts the version token from `ffmpeg -version` output,
// whose first line reads "ffmpeg version N.N.N ...".
func parseFFmpegVersion(output string) string {
	line := output
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	fields := strings.Fields(line)
	if len(fields) >= 3 && fields[0] == "ffmpeg" && fields[1] == "version" {
		return fields[2]
	}
	return ""
}

// Detail renders a display-friendly summary for status UIs.
func (p FFmpegProbe) Detail() string {
	if !p.Detected {
		return fmt.Sprintf("%s not found", p.Command)
	}
	if p.Version == "" {
		return p.Command
	}
	return fmt.Sprintf("%s %s", p.Command, p.Version)
}
