package assembly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/media/ffprobe"
	"reelforge/internal/queue"
)

// commandRunner executes one external command.
type commandRunner func(ctx context.Context, name string, args ...string) error

// defaultCommandRunner executes ffmpeg commands.
func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// OutputProbe inspects a rendered container for verification.
type OutputProbe func(ctx context.Context, path string) (ffprobe.Result, error)

// SegmentError identifies the clip whose segment failed to render.
type SegmentError struct {
	SourceID string
	Err      error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment for clip %s: %v", e.SourceID, e.Err)
}

func (e *SegmentError) Unwrap() error { return e.Err }

// Renderer drives ffmpeg to cut, normalize, concatenate, and mux a reel.
type Renderer struct {
	cfg    *config.Config
	logger *slog.Logger
	run    commandRunner
	probe  OutputProbe
}

// NewRenderer constructs a renderer bound to the configured binaries.
func NewRenderer(cfg *config.Config, logger *slog.Logger) *Renderer {
	r := &Renderer{cfg: cfg, run: defaultCommandRunner}
	r.probe = func(ctx context.Context, path string) (ffprobe.Result, error) {
		return ffprobe.Inspect(ctx, cfg.FFprobeBinary(), path)
	}
	r.SetLogger(logger)
	return r
}

// SetLogger updates the renderer's logging destination.
func (r *Renderer) SetLogger(logger *slog.Logger) {
	if r == nil {
		return
	}
	r.logger = logging.NewComponentLogger(logger, "renderer")
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (r *Renderer) WithCommandRunner(run commandRunner) {
	if r != nil && run != nil {
		r.run = run
	}
}

// WithOutputProbe allows injecting a custom output probe for tests.
func (r *Renderer) WithOutputProbe(probe OutputProbe) {
	if r != nil && probe != nil {
		r.probe = probe
	}
}

// Render produces <workDir>/reel.mp4 from the plan. The output lands in a
// temp file first and is renamed only after ffmpeg succeeds, then verified
// against the plan duration. progress may be nil.
func (r *Renderer) Render(ctx context.Context, plan queue.AssemblyPlan, workDir string, progress func(message string, percent float64)) (string, error) {
	if len(plan.Segments) == 0 {
		return "", errors.New("plan has no segments")
	}
	if strings.TrimSpace(plan.AudioFile) == "" {
		return "", errors.New("plan has no audio track")
	}
	segDir := filepath.Join(workDir, "segments")
	if err := os.MkdirAll(segDir, 0o755); err != nil {
		return "", fmt.Errorf("create segment dir: %w", err)
	}
	report := func(message string, percent float64) {
		if progress != nil {
			progress(message, percent)
		}
	}

	total := len(plan.Segments)
	segmentFiles := make([]string, total)
	for i, seg := range plan.Segments {
		out := filepath.Join(segDir, fmt.Sprintf("seg-%03d.mp4", i))
		if err := r.renderSegment(ctx, seg, out); err != nil {
			return "", &SegmentError{SourceID: seg.Clip.SourceID, Err: err}
		}
		segmentFiles[i] = out
		report(fmt.Sprintf("Rendering segments (%d/%d)", i+1, total), 10+60*float64(i+1)/float64(total))
	}

	listPath := filepath.Join(workDir, "concat.txt")
	if err := writeConcatList(listPath, segmentFiles); err != nil {
		return "", err
	}

	digest, err := plan.Digest()
	if err != nil {
		return "", fmt.Errorf("plan digest: %w", err)
	}
	report("Muxing narration", 80)
	output := filepath.Join(workDir, "reel.mp4")
	tmp := filepath.Join(workDir, ".reel-"+digest[:12]+".part")
	// The temp name hides the container extension, so the format is forced.
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "concat", "-safe", "0", "-i", listPath,
		"-i", plan.AudioFile,
		"-map", "0:v:0", "-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac", "-b:a", "192k",
		"-movflags", "+faststart",
		"-shortest",
		"-f", "mp4",
		tmp,
	}
	if err := r.run(ctx, r.cfg.FFmpegBinary(), args...); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("mux reel: %w", err)
	}
	if err := os.Rename(tmp, output); err != nil {
		return "", fmt.Errorf("finalize reel: %w", err)
	}

	report("Verifying output", 92)
	probed, err := r.probe(ctx, output)
	if err != nil {
		return "", fmt.Errorf("probe output: %w", err)
	}
	if err := r.checkOutput(probed, plan); err != nil {
		return "", err
	}
	attrs := []logging.Attr{
		logging.Float64("duration_sec", probed.DurationSeconds()),
		logging.Int64("size_bytes", probed.SizeBytes()),
		logging.Int64("bit_rate", probed.BitRate()),
	}
	if video, ok := probed.FirstVideoStream(); ok && video.CodecName != "" {
		attrs = append(attrs, logging.String("video_codec", video.CodecName))
	}
	r.logger.Info("render verified", logging.Args(attrs...)...)
	return output, nil
}

// checkOutput rejects renders that do not match the plan. A missing stream
// means the mux mapping failed, the wrong geometry means a segment skipped
// normalization, and a drifted duration points at a truncated concat.
func (r *Renderer) checkOutput(probed ffprobe.Result, plan queue.AssemblyPlan) error {
	if v, a := probed.VideoStreamCount(), probed.AudioStreamCount(); v == 0 || a == 0 {
		return fmt.Errorf("output has %d video and %d audio streams, want at least one of each", v, a)
	}
	if video, ok := probed.FirstVideoStream(); ok && video.Width > 0 && video.Height > 0 {
		if video.Width != r.cfg.Assembly.Width || video.Height != r.cfg.Assembly.Height {
			return fmt.Errorf("output geometry %dx%d does not match the configured %dx%d",
				video.Width, video.Height, r.cfg.Assembly.Width, r.cfg.Assembly.Height)
		}
	}
	measured := probed.DurationSeconds()
	if diff := math.Abs(measured - plan.TotalSeconds); diff > r.cfg.Assembly.DurationToleranceSeconds {
		return fmt.Errorf("output duration %.2fs deviates %.2fs from the %.2fs plan", measured, diff, plan.TotalSeconds)
	}
	return nil
}

// renderSegment cuts one in-clip range and normalizes it to the target
// geometry with square pixels and a constant frame rate.
func (r *Renderer) renderSegment(ctx context.Context, seg queue.PlanSegment, out string) error {
	source := strings.TrimSpace(seg.Clip.LocalFile)
	if source == "" {
		return errors.New("segment clip has no local file")
	}
	width, height := r.cfg.Assembly.Width, r.cfg.Assembly.Height
	filter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%d",
		width, height, width, height, r.cfg.Assembly.FPS)
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", formatSeconds(seg.Start),
		"-t", formatSeconds(seg.Duration()),
		"-i", source,
		"-vf", filter,
		"-an",
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "23",
		"-pix_fmt", "yuv420p",
		out,
	}
	if err := r.run(ctx, r.cfg.FFmpegBinary(), args...); err != nil {
		return fmt.Errorf("render segment: %w", err)
	}
	return nil
}

func writeConcatList(path string, files []string) error {
	var b strings.Builder
	for _, file := range files {
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(file, "'", `'\''`))
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	return nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
