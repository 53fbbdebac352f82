package footage

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"reelforge/internal/assetcache"
	"reelforge/internal/logging"
	"reelforge/internal/queue"
	"reelforge/internal/services"
	"reelforge/internal/services/pexels"
	"reelforge/internal/testsupport"
)

type stubSuggester struct {
	keywords []string
	err      error
}

func (s *stubSuggester) SuggestKeywords(ctx context.Context, narration string, limit int) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.keywords, nil
}

type stubProvider struct {
	videos    map[string][]pexels.Video
	queries   []string
	searchErr error
	downloads atomic.Int64
}

func (p *stubProvider) SearchVideos(ctx context.Context, query string, opts pexels.SearchOptions) (*pexels.Response, error) {
	p.queries = append(p.queries, query)
	if p.searchErr != nil {
		return nil, p.searchErr
	}
	return &pexels.Response{Videos: p.videos[query]}, nil
}

func (p *stubProvider) Download(ctx context.Context, link, dest string) error {
	p.downloads.Add(1)
	return os.WriteFile(dest, []byte("clip-bytes"), 0o644)
}

func newFootageHandler(t *testing.T, suggester KeywordSuggester, provider pexels.Searcher) (*Handler, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	cache, err := assetcache.New(cfg.Cache.Dir, 0, 0, nil)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	return NewHandlerWithDependencies(cfg, store, cache, logging.NewNop(), suggester, provider), store
}

func narratedReel(t *testing.T, store *queue.Store) *queue.Job {
	t.Helper()
	job := testsupport.NewReel(t, store, "foggy bridge crossing", queue.ReelParams{TargetDuration: 30})
	job.Fingerprint = strings.Repeat("f", 64)
	script := queue.ScriptAsset{
		Fingerprint:  job.Fingerprint,
		Narration:    "Fog rolls across the bridge while the city wakes below.",
		AudioFile:    "/tmp/narration.wav",
		WordCount:    10,
		AudioSeconds: 30,
		GeneratedAt:  time.Now().UTC(),
	}
	encoded, err := script.Encode()
	if err != nil {
		t.Fatalf("encode script: %v", err)
	}
	job.ScriptJSON = encoded
	return job
}

func TestExecuteSelectsRanksAndDownloads(t *testing.T) {
	provider := &stubProvider{videos: map[string][]pexels.Video{
		"bridge": {portraitVideo(1, 6), portraitVideo(2, 10), portraitVideo(3, 4)},
		"fog":    {portraitVideo(1, 6), portraitVideo(4, 8)},
	}}
	handler, store := newFootageHandler(t, &stubSuggester{keywords: []string{"bridge", "fog"}}, provider)
	job := narratedReel(t, store)

	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("execute: %v", err)
	}

	clips, err := queue.DecodeClips(job.ClipsJSON)
	if err != nil {
		t.Fatalf("decode clips: %v", err)
	}
	// pexels-1 matched both keywords; the rest rank by shorter duration.
	want := []string{"pexels-1", "pexels-3", "pexels-4", "pexels-2"}
	if len(clips) != len(want) {
		t.Fatalf("expected %d clips, got %d", len(want), len(clips))
	}
	for i, clip := range clips {
		if clip.SourceID != want[i] {
			t.Fatalf("clip %d: got %s, want %s", i, clip.SourceID, want[i])
		}
		if clip.LocalFile == "" {
			t.Fatalf("clip %s missing local file", clip.SourceID)
		}
		if _, err := os.Stat(clip.LocalFile); err != nil {
			t.Fatalf("clip %s file missing: %v", clip.SourceID, err)
		}
	}
	if clips[0].Score != 2 {
		t.Fatalf("expected double-keyword clip to score 2, got %v", clips[0].Score)
	}
	if job.ProgressPercent != 100 {
		t.Fatalf("expected complete progress, got %v", job.ProgressPercent)
	}
}

func TestExecuteFallsBackToTokenKeywords(t *testing.T) {
	provider := &stubProvider{videos: map[string][]pexels.Video{
		"bridge": {portraitVideo(1, 6)},
	}}
	handler, store := newFootageHandler(t, &stubSuggester{err: errors.New("llm offline")}, provider)
	job := narratedReel(t, store)

	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(provider.queries) == 0 {
		t.Fatal("expected fallback searches")
	}
	for _, q := range provider.queries {
		if q != strings.ToLower(q) {
			t.Fatalf("expected lowercased token keyword, got %q", q)
		}
	}
}

func TestExecuteNoResultsIsTerminal(t *testing.T) {
	provider := &stubProvider{videos: map[string][]pexels.Video{}}
	handler, store := newFootageHandler(t, &stubSuggester{keywords: []string{"void"}}, provider)
	job := narratedReel(t, store)

	err := handler.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if services.Retryable(err) {
		t.Fatal("empty search results must not be retryable")
	}
}

func TestExecuteProviderOutageRetryable(t *testing.T) {
	provider := &stubProvider{searchErr: errors.New("dial tcp: timeout")}
	handler, store := newFootageHandler(t, &stubSuggester{keywords: []string{"bridge"}}, provider)
	job := narratedReel(t, store)

	err := handler.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if !services.Retryable(err) {
		t.Fatal("provider outages must stay retryable")
	}
}

func TestExecuteReusesCachedClips(t *testing.T) {
	provider := &stubProvider{videos: map[string][]pexels.Video{
		"bridge": {portraitVideo(1, 6), portraitVideo(2, 8)},
	}}
	handler, store := newFootageHandler(t, &stubSuggester{keywords: []string{"bridge"}}, provider)

	first := narratedReel(t, store)
	if err := handler.Execute(context.Background(), first); err != nil {
		t.Fatalf("first execute: %v", err)
	}
	afterFirst := provider.downloads.Load()
	if afterFirst == 0 {
		t.Fatal("expected downloads on first run")
	}

	second := narratedReel(t, store)
	if err := handler.Execute(context.Background(), second); err != nil {
		t.Fatalf("second execute: %v", err)
	}
	if got := provider.downloads.Load(); got != afterFirst {
		t.Fatalf("expected cached clips to skip downloads, got %d then %d", afterFirst, got)
	}
}

func TestExecuteRequiresScript(t *testing.T) {
	handler, store := newFootageHandler(t, &stubSuggester{keywords: []string{"bridge"}}, &stubProvider{})
	job := testsupport.NewReel(t, store, "no script yet", queue.ReelParams{})

	if err := handler.Execute(context.Background(), job); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
