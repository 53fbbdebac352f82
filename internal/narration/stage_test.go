package narration_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"reelforge/internal/assetcache"
	"reelforge/internal/logging"
	"reelforge/internal/narration"
	"reelforge/internal/queue"
	"reelforge/internal/services"
	"reelforge/internal/services/llm"
	"reelforge/internal/services/tts"
	"reelforge/internal/testsupport"
)

type stubGenerator struct {
	calls   atomic.Int64
	briefs  []llm.ScriptBrief
	scripts []string
	err     error
}

func (g *stubGenerator) DraftScript(ctx context.Context, brief llm.ScriptBrief) (llm.ScriptDraft, error) {
	n := int(g.calls.Add(1))
	g.briefs = append(g.briefs, brief)
	if g.err != nil {
		return llm.ScriptDraft{}, g.err
	}
	script := "A calm walk across the bridge as the fog lifts."
	if len(g.scripts) > 0 {
		idx := n - 1
		if idx >= len(g.scripts) {
			idx = len(g.scripts) - 1
		}
		script = g.scripts[idx]
	}
	return llm.ScriptDraft{Narration: script}, nil
}

type stubSynth struct {
	calls   atomic.Int64
	seconds []float64
	err     error
}

func (s *stubSynth) Synthesize(ctx context.Context, req tts.Request) (tts.Result, error) {
	n := int(s.calls.Add(1))
	if s.err != nil {
		return tts.Result{}, s.err
	}
	if err := os.WriteFile(req.OutputPath, []byte("RIFFaudio"), 0o644); err != nil {
		return tts.Result{}, err
	}
	seconds := 30.0
	if len(s.seconds) > 0 {
		idx := n - 1
		if idx >= len(s.seconds) {
			idx = len(s.seconds) - 1
		}
		seconds = s.seconds[idx]
	}
	return tts.Result{AudioPath: req.OutputPath, Seconds: seconds}, nil
}

func newHandler(t *testing.T, gen *stubGenerator, synth *stubSynth) (*narration.Handler, *queue.Store, *assetcache.Cache) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	cache, err := assetcache.New(cfg.Cache.Dir, 0, 0, nil)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	handler := narration.NewHandlerWithDependencies(cfg, store, cache, logging.NewNop(), gen, synth)
	return handler, store, cache
}

func stampedReel(t *testing.T, store *queue.Store, fingerprint string) *queue.Job {
	t.Helper()
	job := testsupport.NewReel(t, store, "foggy bridge crossing", queue.ReelParams{TargetDuration: 30, Voice: "en-us"})
	job.Fingerprint = fingerprint
	return job
}

func TestExecuteProducesScriptAndAudio(t *testing.T) {
	gen := &stubGenerator{}
	synth := &stubSynth{}
	handler, store, _ := newHandler(t, gen, synth)
	job := stampedReel(t, store, strings.Repeat("a", 64))

	ctx := context.Background()
	if err := handler.Prepare(ctx, job); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := handler.Execute(ctx, job); err != nil {
		t.Fatalf("execute: %v", err)
	}

	script, err := queue.DecodeScriptAsset(job.ScriptJSON)
	if err != nil {
		t.Fatalf("decode script: %v", err)
	}
	if script.Narration == "" || script.WordCount == 0 {
		t.Fatalf("expected populated script asset, got %+v", script)
	}
	if script.AudioSeconds != 30 {
		t.Fatalf("expected 30s audio, got %v", script.AudioSeconds)
	}
	if job.AudioFile == "" {
		t.Fatal("expected audio file on job")
	}
	if _, err := os.Stat(job.AudioFile); err != nil {
		t.Fatalf("expected audio file to exist: %v", err)
	}
	if job.ProgressPercent != 100 {
		t.Fatalf("expected complete progress, got %v", job.ProgressPercent)
	}
}

func TestExecuteReusesCachedScript(t *testing.T) {
	gen := &stubGenerator{}
	synth := &stubSynth{}
	handler, store, _ := newHandler(t, gen, synth)
	fingerprint := strings.Repeat("b", 64)

	first := stampedReel(t, store, fingerprint)
	if err := handler.Execute(context.Background(), first); err != nil {
		t.Fatalf("first execute: %v", err)
	}
	second := stampedReel(t, store, fingerprint)
	if err := handler.Execute(context.Background(), second); err != nil {
		t.Fatalf("second execute: %v", err)
	}

	if got := gen.calls.Load(); got != 1 {
		t.Fatalf("expected one LLM draft across both jobs, got %d", got)
	}
	if second.AudioFile != first.AudioFile {
		t.Fatalf("expected shared cached audio, got %q vs %q", second.AudioFile, first.AudioFile)
	}
}

func TestExecuteAcceptsAudioWithinTolerance(t *testing.T) {
	gen := &stubGenerator{}
	synth := &stubSynth{seconds: []float64{34.2}}
	handler, store, _ := newHandler(t, gen, synth)
	job := stampedReel(t, store, strings.Repeat("f", 64))

	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := gen.calls.Load(); got != 1 {
		t.Fatalf("a 14%% overshoot must not trigger a redraft, got %d drafts", got)
	}
	script, err := queue.DecodeScriptAsset(job.ScriptJSON)
	if err != nil {
		t.Fatalf("decode script: %v", err)
	}
	if script.AudioSeconds != 34.2 {
		t.Fatalf("expected measured 34.2s kept on the asset, got %v", script.AudioSeconds)
	}
}

func TestExecuteRedraftsOnceWhenAudioRunsLong(t *testing.T) {
	gen := &stubGenerator{scripts: []string{
		"A long meandering narration that overruns the slot badly.",
		"A tighter cut.",
	}}
	synth := &stubSynth{seconds: []float64{40, 30}}
	handler, store, _ := newHandler(t, gen, synth)
	job := stampedReel(t, store, strings.Repeat("c", 64))

	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := gen.calls.Load(); got != 2 {
		t.Fatalf("expected a single redraft, got %d drafts", got)
	}

	adjusted := gen.briefs[1].TargetSeconds
	if adjusted <= 20 || adjusted >= 25 {
		t.Fatalf("expected adjusted target near 22.5s, got %v", adjusted)
	}
	script, err := queue.DecodeScriptAsset(job.ScriptJSON)
	if err != nil {
		t.Fatalf("decode script: %v", err)
	}
	if script.Narration != "A tighter cut." {
		t.Fatalf("expected redrafted narration, got %q", script.Narration)
	}
}

func TestExecuteFailsAfterSecondOverrun(t *testing.T) {
	gen := &stubGenerator{}
	synth := &stubSynth{seconds: []float64{45, 45}}
	handler, store, cache := newHandler(t, gen, synth)
	job := stampedReel(t, store, strings.Repeat("d", 64))

	err := handler.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrDurationMismatch) {
		t.Fatalf("expected duration mismatch, got %v", err)
	}
	if services.Retryable(err) {
		t.Fatal("duration mismatch must not be retryable")
	}
	if got := cache.Count(); got != 0 {
		t.Fatalf("failed production must not be cached, got %d entries", got)
	}
}

func TestExecutePassesThroughGeneratorFailure(t *testing.T) {
	gen := &stubGenerator{err: errors.New("llm offline")}
	synth := &stubSynth{}
	handler, store, _ := newHandler(t, gen, synth)
	job := stampedReel(t, store, strings.Repeat("e", 64))

	err := handler.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient classification, got %v", err)
	}
	if !services.Retryable(err) {
		t.Fatal("LLM outages must stay retryable")
	}
}

func TestExecuteRequiresFingerprint(t *testing.T) {
	handler, store, _ := newHandler(t, &stubGenerator{}, &stubSynth{})
	job := testsupport.NewReel(t, store, "missing fingerprint", queue.ReelParams{})

	if err := handler.Execute(context.Background(), job); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHealthCheckRequiresCredentials(t *testing.T) {
	handler, _, _ := newHandler(t, &stubGenerator{}, &stubSynth{})
	if health := handler.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected healthy handler, got %+v", health)
	}

	cfg := testsupport.NewConfig(t)
	cfg.Narration.APIKey = ""
	broken := narration.NewHandlerWithDependencies(cfg, nil, nil, logging.NewNop(), &stubGenerator{}, &stubSynth{})
	if health := broken.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy handler without api key")
	}
}
