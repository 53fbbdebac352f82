package assetcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"reelforge/internal/queue"
	"reelforge/internal/testsupport"
)

func newTestCache(t *testing.T, maxBytes int64, ttl time.Duration) *Cache {
	t.Helper()
	cache, err := New(t.TempDir(), maxBytes, ttl, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return cache
}

func staticProducer(payload string, files map[string]string) Producer {
	return func(ctx context.Context, dir string) ([]byte, error) {
		for name, content := range files {
			if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
				return nil, err
			}
		}
		return []byte(payload), nil
	}
}

func sizedProducer(t *testing.T, payload string, blobBytes int64) Producer {
	return func(ctx context.Context, dir string) ([]byte, error) {
		testsupport.WriteFile(t, filepath.Join(dir, "f.bin"), blobBytes)
		return []byte(payload), nil
	}
}

func failingProducer(err error) Producer {
	return func(ctx context.Context, dir string) ([]byte, error) {
		return nil, err
	}
}

func TestGetOrCreateProducesOnce(t *testing.T) {
	cache := newTestCache(t, 0, 0)
	var calls atomic.Int64
	produce := func(ctx context.Context, dir string) ([]byte, error) {
		calls.Add(1)
		time.Sleep(30 * time.Millisecond)
		if err := os.WriteFile(filepath.Join(dir, "blob.bin"), []byte("payload"), 0o644); err != nil {
			return nil, err
		}
		return []byte(`{"v":1}`), nil
	}

	const workers = 8
	results := make([]Asset, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.GetOrCreate(context.Background(), "script-abc", produce)
		}(i)
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected single producer invocation, got %d", got)
	}
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d returned error: %v", i, errs[i])
		}
		if string(results[i].Payload) != `{"v":1}` {
			t.Fatalf("worker %d got payload %q", i, results[i].Payload)
		}
	}
}

func TestGetOrCreateHitSkipsProducer(t *testing.T) {
	cache := newTestCache(t, 0, 0)
	ctx := context.Background()

	if _, err := cache.GetOrCreate(ctx, "clip-1", staticProducer(`{"a":1}`, map[string]string{"clip.mp4": "bytes"})); err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}
	asset, err := cache.GetOrCreate(ctx, "clip-1", failingProducer(errors.New("should not run")))
	if err != nil {
		t.Fatalf("expected cache hit, got error: %v", err)
	}
	if string(asset.Payload) != `{"a":1}` {
		t.Fatalf("unexpected payload %q", asset.Payload)
	}
	if _, err := os.Stat(filepath.Join(asset.Dir, "clip.mp4")); err != nil {
		t.Fatalf("expected cached file to exist: %v", err)
	}
}

func TestProducerErrorNotCached(t *testing.T) {
	cache := newTestCache(t, 0, 0)
	ctx := context.Background()
	providerDown := errors.New("provider down")

	if _, err := cache.GetOrCreate(ctx, "clip-2", failingProducer(providerDown)); !errors.Is(err, providerDown) {
		t.Fatalf("expected producer error to pass through, got %v", err)
	}
	entries, err := os.ReadDir(cache.root)
	if err != nil {
		t.Fatalf("read cache root: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".build-") {
			t.Fatalf("expected build dir cleanup, found %s", entry.Name())
		}
	}

	if _, err := cache.GetOrCreate(ctx, "clip-2", staticProducer(`{"ok":true}`, nil)); err != nil {
		t.Fatalf("expected retry to produce, got error: %v", err)
	}
	if cache.Count() != 1 {
		t.Fatalf("expected 1 entry after retry, got %d", cache.Count())
	}
}

func TestTTLExpiryTreatsEntryAsAbsent(t *testing.T) {
	cache := newTestCache(t, 0, time.Hour)
	ctx := context.Background()
	base := time.Now()
	cache.now = func() time.Time { return base }

	var calls atomic.Int64
	produce := func(ctx context.Context, dir string) ([]byte, error) {
		calls.Add(1)
		return []byte(`{}`), nil
	}
	if _, err := cache.GetOrCreate(ctx, "script-x", produce); err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}
	if _, err := cache.GetOrCreate(ctx, "script-x", produce); err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected hit within ttl, got %d calls", calls.Load())
	}

	cache.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, err := cache.GetOrCreate(ctx, "script-x", produce); err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected expired entry to re-produce, got %d calls", calls.Load())
	}
}

func TestLRUEvictionOnInsert(t *testing.T) {
	cache := newTestCache(t, 100, 0)
	ctx := context.Background()
	base := time.Now()
	current := base
	cache.now = func() time.Time { return current }

	if _, err := cache.GetOrCreate(ctx, "clip-a", sizedProducer(t, `{}`, 40)); err != nil {
		t.Fatalf("produce a: %v", err)
	}
	current = base.Add(time.Minute)
	if _, err := cache.GetOrCreate(ctx, "clip-b", sizedProducer(t, `{}`, 40)); err != nil {
		t.Fatalf("produce b: %v", err)
	}
	current = base.Add(2 * time.Minute)
	if _, err := cache.GetOrCreate(ctx, "clip-a", failingProducer(errors.New("unexpected"))); err != nil {
		t.Fatalf("touch a: %v", err)
	}
	current = base.Add(3 * time.Minute)
	if _, err := cache.GetOrCreate(ctx, "clip-c", sizedProducer(t, `{}`, 40)); err != nil {
		t.Fatalf("produce c: %v", err)
	}

	if cache.Count() != 2 {
		t.Fatalf("expected eviction down to 2 entries, got %d", cache.Count())
	}
	if existsDir(filepath.Join(cache.root, "clip-b")) {
		t.Fatal("expected least-recently-used entry clip-b to be evicted")
	}
	for _, key := range []string{"clip-a", "clip-c"} {
		if !existsDir(filepath.Join(cache.root, key)) {
			t.Fatalf("expected %s to survive eviction", key)
		}
	}
}

func TestCapacityExceeded(t *testing.T) {
	cache := newTestCache(t, 10, 0)
	ctx := context.Background()

	_, err := cache.GetOrCreate(ctx, "clip-big", sizedProducer(t, `{}`, 100))
	if !errors.Is(err, ErrCapacity) {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}
	if cache.Count() != 0 {
		t.Fatalf("expected no entries after capacity failure, got %d", cache.Count())
	}
	if existsDir(filepath.Join(cache.root, "clip-big")) {
		t.Fatal("expected no entry dir after capacity failure")
	}
}

func TestInvalidateForcesReproduce(t *testing.T) {
	cache := newTestCache(t, 0, 0)
	ctx := context.Background()

	var calls atomic.Int64
	produce := func(ctx context.Context, dir string) ([]byte, error) {
		calls.Add(1)
		return []byte(`{}`), nil
	}
	if _, err := cache.GetOrCreate(ctx, "clip-9", produce); err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}
	if err := cache.Invalidate("clip-9"); err != nil {
		t.Fatalf("Invalidate returned error: %v", err)
	}
	if existsDir(filepath.Join(cache.root, "clip-9")) {
		t.Fatal("expected entry dir removed on invalidate")
	}
	if _, err := cache.GetOrCreate(ctx, "clip-9", produce); err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected re-production after invalidate, got %d calls", calls.Load())
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	first, err := New(root, 0, 0, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := first.GetOrCreate(ctx, "script-keep", staticProducer(`{"kept":true}`, map[string]string{"narration.wav": "RIFF"})); err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}

	second, err := New(root, 0, 0, nil)
	if err != nil {
		t.Fatalf("New after reopen returned error: %v", err)
	}
	asset, err := second.GetOrCreate(ctx, "script-keep", failingProducer(errors.New("should not run")))
	if err != nil {
		t.Fatalf("expected hit after reopen, got error: %v", err)
	}
	if string(asset.Payload) != `{"kept":true}` {
		t.Fatalf("unexpected payload %q", asset.Payload)
	}
}

func TestScriptAssetRoundTrip(t *testing.T) {
	cache := newTestCache(t, 0, 0)
	ctx := context.Background()
	fingerprint := Fingerprint("sunset timelapse", queue.ReelParams{TargetDuration: 30, Voice: "ava", Style: "cinematic", Orientation: "portrait"})

	script, err := cache.GetOrCreateScript(ctx, fingerprint, func(ctx context.Context, dir string) (queue.ScriptAsset, error) {
		audio := filepath.Join(dir, "narration.wav")
		if err := os.WriteFile(audio, []byte("RIFFaudio"), 0o644); err != nil {
			return queue.ScriptAsset{}, err
		}
		return queue.ScriptAsset{
			Fingerprint:  fingerprint,
			Narration:    "The sun sets faster than you think.",
			AudioFile:    audio,
			WordCount:    7,
			AudioSeconds: 3.4,
		}, nil
	})
	if err != nil {
		t.Fatalf("GetOrCreateScript returned error: %v", err)
	}
	if !filepath.IsAbs(script.AudioFile) {
		t.Fatalf("expected absolute audio path, got %q", script.AudioFile)
	}
	if !strings.Contains(script.AudioFile, ScriptKey(fingerprint)) {
		t.Fatalf("expected audio under the entry dir, got %q", script.AudioFile)
	}
	if _, err := os.Stat(script.AudioFile); err != nil {
		t.Fatalf("expected audio file to exist: %v", err)
	}

	cached, err := cache.GetOrCreateScript(ctx, fingerprint, func(ctx context.Context, dir string) (queue.ScriptAsset, error) {
		return queue.ScriptAsset{}, errors.New("should not run")
	})
	if err != nil {
		t.Fatalf("expected script cache hit, got error: %v", err)
	}
	if cached.Narration != script.Narration || cached.AudioFile != script.AudioFile {
		t.Fatalf("cache hit mismatch: %#v vs %#v", cached, script)
	}
}

func TestClipAssetRoundTrip(t *testing.T) {
	cache := newTestCache(t, 0, 0)
	ctx := context.Background()

	clip, err := cache.GetOrCreateClip(ctx, "pexels-42", func(ctx context.Context, dir string) (queue.FootageClip, error) {
		local := filepath.Join(dir, "clip.mp4")
		if err := os.WriteFile(local, []byte("mp4"), 0o644); err != nil {
			return queue.FootageClip{}, err
		}
		return queue.FootageClip{
			URL:       "https://cdn.example/42.mp4",
			Width:     720,
			Height:    1280,
			Seconds:   14,
			Score:     0.8,
			LocalFile: local,
		}, nil
	})
	if err != nil {
		t.Fatalf("GetOrCreateClip returned error: %v", err)
	}
	if clip.SourceID != "pexels-42" {
		t.Fatalf("expected source id default, got %q", clip.SourceID)
	}
	if !filepath.IsAbs(clip.LocalFile) {
		t.Fatalf("expected absolute clip path, got %q", clip.LocalFile)
	}
	if _, err := os.Stat(clip.LocalFile); err != nil {
		t.Fatalf("expected clip file to exist: %v", err)
	}
}

func TestFingerprintCanonicalizesInputs(t *testing.T) {
	params := queue.ReelParams{TargetDuration: 30, Voice: "Ava", Style: "calm", Orientation: "portrait"}
	a := Fingerprint("Sunset   Timelapse", params)
	b := Fingerprint("sunset timelapse", queue.ReelParams{TargetDuration: 30, Voice: "ava", Style: "calm", Orientation: "portrait"})
	if a != b {
		t.Fatalf("expected canonicalized fingerprints to match: %s vs %s", a, b)
	}
	c := Fingerprint("sunset timelapse", queue.ReelParams{TargetDuration: 45, Voice: "ava", Style: "calm", Orientation: "portrait"})
	if a == c {
		t.Fatal("expected duration change to alter fingerprint")
	}
	if len(a) != 64 {
		t.Fatalf("expected sha256 hex fingerprint, got length %d", len(a))
	}
}

func TestInvalidKeysRejected(t *testing.T) {
	cache := newTestCache(t, 0, 0)
	for _, key := range []string{"", "a/b", `a\b`, ".hidden"} {
		if _, err := cache.GetOrCreate(context.Background(), key, staticProducer(`{}`, nil)); err == nil {
			t.Fatalf("expected key %q to be rejected", key)
		}
	}
}

func TestClearAndStats(t *testing.T) {
	cache := newTestCache(t, 0, 0)
	ctx := context.Background()

	if _, err := cache.GetOrCreate(ctx, "clip-a", staticProducer(`{}`, map[string]string{"f": "data"})); err != nil {
		t.Fatalf("produce a: %v", err)
	}
	if _, err := cache.GetOrCreate(ctx, "clip-b", staticProducer(`{}`, map[string]string{"f": "data"})); err != nil {
		t.Fatalf("produce b: %v", err)
	}

	stats := cache.Stats()
	if stats.Entries != 2 || stats.TotalBytes <= 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if got := len(cache.List()); got != 2 {
		t.Fatalf("expected 2 summaries, got %d", got)
	}

	if err := cache.Clear(); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if cache.Count() != 0 {
		t.Fatalf("expected empty cache after clear, got %d", cache.Count())
	}
	if existsDir(filepath.Join(cache.root, "clip-a")) || existsDir(filepath.Join(cache.root, "clip-b")) {
		t.Fatal("expected entry dirs removed on clear")
	}
}
