package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var commandContext = exec.CommandContext

// Request describes one narration rendering.
type Request struct {
	Text       string
	Voice      string
	OutputPath string
}

// Result reports the rendered audio file.
type Result struct {
	AudioPath string
	Seconds   float64
}

// Client defines speech synthesis behaviour.
type Client interface {
	Synthesize(ctx context.Context, req Request) (Result, error)
}

// DurationFunc measures the playable seconds of a rendered audio file.
type DurationFunc func(ctx context.Context, path string) (float64, error)

// Option configures the CLI client.
type Option func(*CLI)

// WithDurationProbe supplies the probe used to measure rendered audio.
func WithDurationProbe(probe DurationFunc) Option {
	return func(c *CLI) {
		c.probe = probe
	}
}

// CLI wraps a command-line text-to-speech engine.
type CLI struct {
	command string
	probe   DurationFunc
}

// NewCLI constructs a CLI client around the supplied command template.
func NewCLI(command string, opts ...Option) *CLI {
	cli := &CLI{command: strings.TrimSpace(command)}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Synthesize renders req.Text to req.OutputPath and returns the result.
func (c *CLI) Synthesize(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return Result{}, errors.New("narration text required")
	}
	output := strings.TrimSpace(req.OutputPath)
	if output == "" {
		return Result{}, errors.New("output path required")
	}
	if c.command == "" {
		return Result{}, errors.New("tts command not configured")
	}

	outputDir := filepath.Dir(output)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}
	textFile, err := os.CreateTemp(outputDir, "narration-*.txt")
	if err != nil {
		return Result{}, fmt.Errorf("create narration file: %w", err)
	}
	textPath := textFile.Name()
	defer os.Remove(textPath)
	if _, err := textFile.WriteString(req.Text); err != nil {
		_ = textFile.Close()
		return Result{}, fmt.Errorf("write narration file: %w", err)
	}
	if err := textFile.Close(); err != nil {
		return Result{}, fmt.Errorf("close narration file: %w", err)
	}

	argv := renderCommand(c.command, map[string]string{
		"{text_file}": textPath,
		"{voice}":     strings.TrimSpace(req.Voice),
		"{output}":    output,
	})
	if len(argv) == 0 {
		return Result{}, errors.New("tts command not configured")
	}

	var combined bytes.Buffer
	cmd := commandContext(ctx, argv[0], argv[1:]...) //nolint:gosec
	cmd.Stdout = &combined
	cmd.Stderr = &combined
	if err := cmd.Run(); err != nil {
		return Result{}, fmt.Errorf("tts engine failed: %w (output: %s)", err, outputTail(combined.String()))
	}

	info, err := os.Stat(output)
	if err != nil {
		return Result{}, fmt.Errorf("tts produced no audio at %s: %w", output, err)
	}
	if info.Size() == 0 {
		return Result{}, fmt.Errorf("tts produced empty audio at %s", output)
	}

	result := Result{AudioPath: output}
	if c.probe != nil {
		seconds, err := c.probe(ctx, output)
		if err != nil {
			return Result{}, fmt.Errorf("probe audio duration: %w", err)
		}
		result.Seconds = seconds
	}
	return result, nil
}

// renderCommand splits the template into argv tokens before substitution so
// paths containing spaces stay single arguments. Tokens that substitute to
// nothing are dropped.
func renderCommand(template string, placeholders map[string]string) []string {
	fields := strings.Fields(template)
	argv := make([]string, 0, len(fields))
	for _, field := range fields {
		for placeholder, value := range placeholders {
			field = strings.ReplaceAll(field, placeholder, value)
		}
		if field == "" {
			continue
		}
		argv = append(argv, field)
	}
	return argv
}

func outputTail(output string) string {
	clean := strings.Join(strings.Fields(output), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 400
	runes := []rune(clean)
	if len(runes) > limit {
		clean = "..." + string(runes[len(runes)-limit:])
	}
	return clean
}

var _ Client = (*CLI)(nil)
