package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result is the decoded ffprobe report for one media file.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes one stream in the probed container.
type Stream struct {
	Index     int    `json:"index"`
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Format carries container-level metadata. ffprobe encodes numerics as
// strings and omits what it cannot measure.
type Format struct {
	Duration string `json:"duration"`
	Size     string `json:"size"`
	BitRate  string `json:"bit_rate"`
}

// Inspect runs ffprobe against path and decodes its JSON report.
func Inspect(ctx context.Context, binary, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	args := []string{"-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path}
	output, err := exec.CommandContext(ctx, binary, args...).CombinedOutput()
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// DurationSeconds reports the container duration, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return parseNonNegative(r.Format.Duration)
}

// SizeBytes reports the container size, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	return int64(parseNonNegative(r.Format.Size))
}

// BitRate reports the container bitrate in bits per second, or 0 when
// unavailable.
func (r Result) BitRate() int64 {
	return int64(parseNonNegative(r.Format.BitRate))
}

// VideoStreamCount reports how many video streams the container carries.
func (r Result) VideoStreamCount() int { return r.countStreams("video") }

// AudioStreamCount reports how many audio streams the container carries.
func (r Result) AudioStreamCount() int { return r.countStreams("audio") }

// FirstVideoStream returns the first video stream, if any.
func (r Result) FirstVideoStream() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream, true
		}
	}
	return Stream{}, false
}

func (r Result) countStreams(codecType string) int {
	n := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, codecType) {
			n++
		}
	}
	return n
}

// parseNonNegative collapses blank, malformed, and negative values to 0 so
// callers can treat 0 as "not measurable" without NaN leaking into
// comparisons.
func parseNonNegative(value string) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(parsed) || parsed < 0 {
		return 0
	}
	return parsed
}
