package assembly

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"reelforge/internal/assetcache"
	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/media/ffprobe"
	"reelforge/internal/queue"
	"reelforge/internal/services"
	"reelforge/internal/testsupport"
)

type stubDownloader struct {
	calls atomic.Int64
}

func (d *stubDownloader) Download(ctx context.Context, link, dest string) error {
	d.calls.Add(1)
	return os.WriteFile(dest, []byte("fresh-clip"), 0o644)
}

type assemblyFixture struct {
	handler    *Handler
	cfg        *config.Config
	store      *queue.Store
	cache      *assetcache.Cache
	downloader *stubDownloader
	calls      []runnerCall
}

func newAssemblyFixture(t *testing.T, failSubstring string, probedSeconds float64) *assemblyFixture {
	t.Helper()
	fx := &assemblyFixture{cfg: testsupport.NewConfig(t), downloader: &stubDownloader{}}
	fx.store = testsupport.MustOpenStore(t, fx.cfg)
	cache, err := assetcache.New(fx.cfg.Cache.Dir, 0, 0, nil)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	fx.cache = cache

	renderer := NewRenderer(fx.cfg, logging.NewNop())
	renderer.WithCommandRunner(recordingRunner(&fx.calls, failSubstring))
	renderer.WithOutputProbe(func(ctx context.Context, path string) (ffprobe.Result, error) {
		return probedResult(probedSeconds), nil
	})
	fx.handler = NewHandlerWithDependencies(fx.cfg, fx.store, fx.cache, logging.NewNop(), fx.downloader, renderer)
	return fx
}

func (fx *assemblyFixture) seedJob(t *testing.T, plan queue.AssemblyPlan) *queue.Job {
	t.Helper()
	job := testsupport.NewReel(t, fx.store, "city lights timelapse", queue.ReelParams{TargetDuration: 8})
	encoded, err := plan.Encode()
	if err != nil {
		t.Fatalf("encode plan: %v", err)
	}
	job.PlanJSON = encoded
	job.AudioFile = plan.AudioFile
	job.WorkDir = t.TempDir()
	return job
}

func TestExecuteRendersAndStampsJob(t *testing.T) {
	fx := newAssemblyFixture(t, "", 8)
	plan := renderPlan(t)
	job := fx.seedJob(t, plan)

	ctx := context.Background()
	if err := fx.handler.Prepare(ctx, job); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := fx.handler.Execute(ctx, job); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if job.AssembledFile != filepath.Join(job.WorkDir, "reel.mp4") {
		t.Fatalf("unexpected assembled path: %s", job.AssembledFile)
	}
	if _, err := os.Stat(job.AssembledFile); err != nil {
		t.Fatalf("expected rendered file: %v", err)
	}
	if fx.downloader.calls.Load() != 0 {
		t.Fatal("expected no refetches when clip files are present")
	}
	if job.ProgressPercent != 100 {
		t.Fatalf("expected complete progress, got %v", job.ProgressPercent)
	}
}

func TestExecuteInvalidatesOffendingClipAndRetries(t *testing.T) {
	fx := newAssemblyFixture(t, "seg-001", 8)
	plan := renderPlan(t)

	// Move the second clip into the cache so invalidation is observable.
	cached, err := fx.cache.GetOrCreateClip(context.Background(), "pexels-2", func(ctx context.Context, dir string) (queue.FootageClip, error) {
		clip := plan.Segments[1].Clip
		clip.LocalFile = filepath.Join(dir, "clip.mp4")
		if err := os.WriteFile(clip.LocalFile, []byte("cached-clip"), 0o644); err != nil {
			return queue.FootageClip{}, err
		}
		return clip, nil
	})
	if err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	plan.Segments[1].Clip.LocalFile = cached.LocalFile
	job := fx.seedJob(t, plan)

	err = fx.handler.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrAssembly) {
		t.Fatalf("expected assembly error, got %v", err)
	}
	if !services.Retryable(err) {
		t.Fatal("segment failures must stay retryable")
	}
	if got := fx.cache.Count(); got != 0 {
		t.Fatalf("expected offending cache entry dropped, got %d entries", got)
	}

	// The retry refetches the dropped clip and renders clean.
	fx.handler.renderer.WithCommandRunner(recordingRunner(&fx.calls, ""))
	if err := fx.handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("retry execute: %v", err)
	}
	if fx.downloader.calls.Load() != 1 {
		t.Fatalf("expected one refetch on retry, got %d", fx.downloader.calls.Load())
	}
	if job.AssembledFile == "" {
		t.Fatal("expected assembled file after retry")
	}
}

func TestExecuteRequiresPlan(t *testing.T) {
	fx := newAssemblyFixture(t, "", 8)
	job := testsupport.NewReel(t, fx.store, "no plan yet", queue.ReelParams{})

	if err := fx.handler.Execute(context.Background(), job); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExecuteRequiresAudioOnDisk(t *testing.T) {
	fx := newAssemblyFixture(t, "", 8)
	plan := renderPlan(t)
	plan.AudioFile = filepath.Join(t.TempDir(), "gone.wav")
	job := fx.seedJob(t, plan)

	if err := fx.handler.Execute(context.Background(), job); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExecuteTimesOut(t *testing.T) {
	fx := newAssemblyFixture(t, "", 8)
	fx.cfg.Assembly.TimeoutSeconds = 1
	fx.handler.renderer.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		<-ctx.Done()
		return ctx.Err()
	})
	plan := renderPlan(t)
	job := fx.seedJob(t, plan)

	err := fx.handler.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout classification, got %v", err)
	}
	if !services.Retryable(err) {
		t.Fatal("timeouts must stay retryable")
	}
	if !strings.Contains(err.Error(), "timeout_seconds") {
		t.Fatalf("expected operator hint in error, got %v", err)
	}
}
