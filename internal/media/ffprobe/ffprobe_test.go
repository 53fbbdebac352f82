package ffprobe

import (
	"context"
	"testing"
)

func TestResultStreamAccessors(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{Index: 0, CodecType: "video", CodecName: "h264", Width: 1080, Height: 1920},
			{Index: 1, CodecType: "audio", CodecName: "aac"},
			{Index: 2, CodecType: "audio", CodecName: "aac"},
		},
		Format: Format{Duration: "123.45", Size: "1000", BitRate: "32000"},
	}

	if got := result.VideoStreamCount(); got != 1 {
		t.Fatalf("VideoStreamCount = %d, want 1", got)
	}
	if got := result.AudioStreamCount(); got != 2 {
		t.Fatalf("AudioStreamCount = %d, want 2", got)
	}
	video, ok := result.FirstVideoStream()
	if !ok || video.CodecName != "h264" || video.Width != 1080 || video.Height != 1920 {
		t.Fatalf("FirstVideoStream = %#v ok=%v", video, ok)
	}
	if got := result.DurationSeconds(); got != 123.45 {
		t.Fatalf("DurationSeconds = %v, want 123.45", got)
	}
	if got := result.SizeBytes(); got != 1000 {
		t.Fatalf("SizeBytes = %d, want 1000", got)
	}
	if got := result.BitRate(); got != 32000 {
		t.Fatalf("BitRate = %d, want 32000", got)
	}
}

func TestResultNoVideoStream(t *testing.T) {
	result := Result{Streams: []Stream{{CodecType: "audio"}}}
	if _, ok := result.FirstVideoStream(); ok {
		t.Fatal("expected no video stream")
	}
	if got := result.VideoStreamCount(); got != 0 {
		t.Fatalf("VideoStreamCount = %d, want 0", got)
	}
}

func TestResultCollapsesUnmeasurableNumerics(t *testing.T) {
	result := Result{Format: Format{Duration: "bad", Size: "-1", BitRate: ""}}
	if got := result.DurationSeconds(); got != 0 {
		t.Fatalf("DurationSeconds = %v, want 0 for malformed input", got)
	}
	if got := result.SizeBytes(); got != 0 {
		t.Fatalf("SizeBytes = %d, want 0 for negative input", got)
	}
	if got := result.BitRate(); got != 0 {
		t.Fatalf("BitRate = %d, want 0 for blank input", got)
	}
}

func TestInspectRejectsEmptyPath(t *testing.T) {
	if _, err := Inspect(context.Background(), "ffprobe", "   "); err == nil {
		t.Fatal("expected an error for a blank path")
	}
}
