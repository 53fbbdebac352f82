package preflight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"reelforge/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckLLM_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"message": map[string]any{
						"content": `{"ok":true}`,
					},
				},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer srv.Close()

	result := CheckLLM(context.Background(), "Narration LLM", config.LLMConfig{
		APIKey:  "good-key",
		BaseURL: srv.URL,
		Model:   "demo-model",
	})
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckLLM_MissingKey(t *testing.T) {
	result := CheckLLM(context.Background(), "Narration LLM", config.LLMConfig{})
	if result.Passed {
		t.Fatal("expected failure for missing key")
	}
	if result.Detail != "API key missing" {
		t.Fatalf("unexpected detail: %q", result.Detail)
	}
}

func TestCheckLLM_BadKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	result := CheckLLM(context.Background(), "Narration LLM", config.LLMConfig{
		APIKey:  "bad-key",
		BaseURL: srv.URL,
		Model:   "demo-model",
	})
	if result.Passed {
		t.Fatal("expected failure for bad key")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckFootageProvider_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"videos":[]}`)); err != nil {
			t.Fatalf("write response: %v", err)
		}
	}))
	defer srv.Close()

	result := CheckFootageProvider(context.Background(), "good-key", srv.URL)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckFootageProvider_BadKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	result := CheckFootageProvider(context.Background(), "bad-key", srv.URL)
	if result.Passed {
		t.Fatal("expected failure for bad key")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckFootageProvider_MissingKey(t *testing.T) {
	result := CheckFootageProvider(context.Background(), "", "https://api.pexels.com")
	if result.Passed {
		t.Fatal("expected failure for missing key")
	}
	if result.Detail != "API key missing" {
		t.Fatalf("unexpected detail: %q", result.Detail)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	stubBinaries(t, "ffmpeg", "ffprobe", "espeak-ng")

	cfg := config.Default()
	cfg.Paths.StagingDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Paths.OutputDir = t.TempDir()
	cfg.Cache.Dir = t.TempDir()

	results := RunAll(context.Background(), &cfg)
	// Four directory checks plus three binary checks; no API keys, so the
	// service checks are skipped.
	if len(results) != 7 {
		t.Fatalf("expected 7 results, got %d: %#v", len(results), results)
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
}

func TestRunAll_IncludesFootageWhenKeySet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"videos":[]}`)); err != nil {
			t.Fatalf("write response: %v", err)
		}
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Paths.StagingDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Paths.OutputDir = ""
	cfg.Cache.Dir = ""
	cfg.Footage.APIKey = "test"
	cfg.Footage.BaseURL = srv.URL

	results := RunAll(context.Background(), &cfg)
	found := false
	for _, r := range results {
		if r.Name == "Footage API" {
			found = true
			if !r.Passed {
				t.Errorf("footage check failed: %s", r.Detail)
			}
		}
	}
	if !found {
		t.Fatal("expected footage check in results")
	}
}

func TestCheckSystemDeps(t *testing.T) {
	stubBinaries(t, "ffmpeg", "ffprobe", "espeak-ng")

	cfg := config.Default()
	statuses := CheckSystemDeps(&cfg)
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	for _, status := range statuses {
		if !status.Available {
			t.Errorf("dependency %q unavailable: %s", status.Name, status.Detail)
		}
	}
}

func TestCheckSystemDeps_UnconfiguredTTS(t *testing.T) {
	stubBinaries(t, "ffmpeg", "ffprobe")

	cfg := config.Default()
	cfg.TTS.Command = ""
	statuses := CheckSystemDeps(&cfg)
	found := false
	for _, status := range statuses {
		if status.Name == "TTS engine" {
			found = true
			if status.Available {
				t.Error("expected unconfigured TTS engine to be unavailable")
			}
			if status.Detail != "command not configured" {
				t.Errorf("unexpected detail: %q", status.Detail)
			}
		}
	}
	if !found {
		t.Fatal("expected TTS engine status")
	}
}

func TestRequiredBinaryFailures(t *testing.T) {
	t.Setenv("PATH", "")

	cfg := config.Default()
	missing := RequiredBinaryFailures(&cfg)
	if len(missing) != 3 {
		t.Fatalf("expected 3 missing binaries, got %v", missing)
	}

	stubBinaries(t, "ffmpeg", "ffprobe", "espeak-ng")
	if missing := RequiredBinaryFailures(&cfg); len(missing) != 0 {
		t.Fatalf("expected no missing binaries, got %v", missing)
	}
}

func TestProbeFFmpeg(t *testing.T) {
	dir := stubBinaries(t)
	script := []byte("#!/bin/sh\necho \"ffmpeg version 6.1.1 Copyright (c) 2000-2024 the FFmpeg developers\"\n")
	if err := os.WriteFile(filepath.Join(dir, "ffmpeg"), script, 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}

	probe := ProbeFFmpeg("")
	if !probe.Detected {
		t.Fatal("expected ffmpeg to be detected")
	}
	if probe.Version != "6.1.1" {
		t.Fatalf("unexpected version: %q", probe.Version)
	}
	if probe.Detail() != "ffmpeg 6.1.1" {
		t.Fatalf("unexpected detail: %q", probe.Detail())
	}
}

func TestProbeFFmpeg_NotFound(t *testing.T) {
	t.Setenv("PATH", "")

	probe := ProbeFFmpeg("ffmpeg")
	if probe.Detected {
		t.Fatal("expected detection to fail")
	}
	if probe.Detail() != "ffmpeg not found" {
		t.Fatalf("unexpected detail: %q", probe.Detail())
	}
}

func TestCheckNarrationFromConfig_MissingKey(t *testing.T) {
	cfg := config.Default()
	result := CheckNarrationFromConfig(&cfg)
	if result.Passed {
		t.Fatal("expected failure for missing key")
	}
	if result.Detail != "Missing API key" {
		t.Fatalf("unexpected detail: %q", result.Detail)
	}
}

func TestCheckFootageFromConfig_NilConfig(t *testing.T) {
	result := CheckFootageFromConfig(nil)
	if result.Passed {
		t.Fatal("expected failure for nil config")
	}
	if result.Detail != "Unknown" {
		t.Fatalf("unexpected detail: %q", result.Detail)
	}
}

// stubBinaries creates executable stand-ins on a fresh directory prepended to
// PATH and returns that directory so tests can add more.
func stubBinaries(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	script := []byte("#!/bin/sh\nexit 0\n")
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), script, 0o755); err != nil {
			t.Fatalf("write stub %s: %v", name, err)
		}
	}
	path := dir
	if old := os.Getenv("PATH"); old != "" {
		path = dir + string(os.PathListSeparator) + old
	}
	t.Setenv("PATH", path)
	return dir
}
