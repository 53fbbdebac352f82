package planner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"reelforge/internal/assetcache"
	"reelforge/internal/logging"
	"reelforge/internal/queue"
	"reelforge/internal/services"
	"reelforge/internal/testsupport"
)

type stubDownloader struct {
	calls atomic.Int64
}

func (d *stubDownloader) Download(ctx context.Context, link, dest string) error {
	d.calls.Add(1)
	return os.WriteFile(dest, []byte("clip-bytes"), 0o644)
}

func newPlannerHandler(t *testing.T) (*Handler, *queue.Store, *stubDownloader) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	cache, err := assetcache.New(cfg.Cache.Dir, 0, 0, nil)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	downloader := &stubDownloader{}
	handler := NewHandlerWithDependencies(cfg, store, cache, logging.NewNop(), downloader)
	return handler, store, downloader
}

func plannedReel(t *testing.T, store *queue.Store, clipFiles bool) *queue.Job {
	t.Helper()
	job := testsupport.NewReel(t, store, "harbor at dawn", queue.ReelParams{TargetDuration: 12})
	job.Fingerprint = strings.Repeat("a", 64)

	audio := filepath.Join(t.TempDir(), "narration.wav")
	if err := os.WriteFile(audio, []byte("RIFFaudio"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	script := queue.ScriptAsset{
		Fingerprint:  job.Fingerprint,
		Narration:    "Boats drift out as the harbor wakes.",
		AudioFile:    audio,
		WordCount:    7,
		AudioSeconds: 12,
		GeneratedAt:  time.Now().UTC(),
	}
	encodedScript, err := script.Encode()
	if err != nil {
		t.Fatalf("encode script: %v", err)
	}
	job.ScriptJSON = encodedScript
	job.AudioFile = audio

	clips := []queue.FootageClip{
		{SourceID: "pexels-1", URL: "https://cdn.example/1.mp4", Seconds: 6, Width: 1080, Height: 1920},
		{SourceID: "pexels-2", URL: "https://cdn.example/2.mp4", Seconds: 6, Width: 1080, Height: 1920},
		{SourceID: "pexels-3", URL: "https://cdn.example/3.mp4", Seconds: 6, Width: 1080, Height: 1920},
	}
	if clipFiles {
		dir := t.TempDir()
		for i := range clips {
			path := filepath.Join(dir, clips[i].SourceID+".mp4")
			if err := os.WriteFile(path, []byte("clip"), 0o644); err != nil {
				t.Fatalf("write clip: %v", err)
			}
			clips[i].LocalFile = path
		}
	}
	encodedClips, err := queue.EncodeClips(clips)
	if err != nil {
		t.Fatalf("encode clips: %v", err)
	}
	job.ClipsJSON = encodedClips
	return job
}

func TestExecuteBuildsPlan(t *testing.T) {
	handler, store, downloader := newPlannerHandler(t)
	job := plannedReel(t, store, true)

	ctx := context.Background()
	if err := handler.Prepare(ctx, job); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := handler.Execute(ctx, job); err != nil {
		t.Fatalf("execute: %v", err)
	}

	plan, err := queue.DecodeAssemblyPlan(job.PlanJSON)
	if err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if plan.TotalSeconds != 12 {
		t.Fatalf("expected 12s plan, got %v", plan.TotalSeconds)
	}
	if len(plan.Segments) == 0 {
		t.Fatal("expected segments")
	}
	for _, seg := range plan.Segments {
		if _, err := os.Stat(seg.Clip.LocalFile); err != nil {
			t.Fatalf("segment references missing file: %v", err)
		}
	}
	if downloader.calls.Load() != 0 {
		t.Fatal("expected no refetches when files are present")
	}
	if job.ProgressPercent != 100 {
		t.Fatalf("expected complete progress, got %v", job.ProgressPercent)
	}
}

func TestExecuteRestoresEvictedClips(t *testing.T) {
	handler, store, downloader := newPlannerHandler(t)
	job := plannedReel(t, store, false)

	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := downloader.calls.Load(); got != 3 {
		t.Fatalf("expected 3 refetches, got %d", got)
	}
	plan, err := queue.DecodeAssemblyPlan(job.PlanJSON)
	if err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	for _, seg := range plan.Segments {
		if _, err := os.Stat(seg.Clip.LocalFile); err != nil {
			t.Fatalf("restored segment file missing: %v", err)
		}
	}
}

func TestExecuteRequiresAudioOnDisk(t *testing.T) {
	handler, store, _ := newPlannerHandler(t)
	job := plannedReel(t, store, true)
	job.AudioFile = filepath.Join(t.TempDir(), "gone.wav")

	script, err := queue.DecodeScriptAsset(job.ScriptJSON)
	if err != nil {
		t.Fatalf("decode script: %v", err)
	}
	script.AudioFile = job.AudioFile
	encoded, err := script.Encode()
	if err != nil {
		t.Fatalf("encode script: %v", err)
	}
	job.ScriptJSON = encoded

	if err := handler.Execute(context.Background(), job); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExecuteRequiresClips(t *testing.T) {
	handler, store, _ := newPlannerHandler(t)
	job := plannedReel(t, store, true)
	job.ClipsJSON = ""

	if err := handler.Execute(context.Background(), job); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
