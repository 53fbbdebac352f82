package pexels_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"reelforge/internal/services/pexels"
)

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := pexels.New("", "https://example.com"); err == nil {
		t.Fatal("expected error when api key missing")
	}
}

func TestSearchVideosSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "key" {
			t.Fatalf("expected raw api key in Authorization header, got %q", r.Header.Get("Authorization"))
		}
		if r.URL.Path != "/videos/search" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		query := r.URL.Query()
		if query.Get("query") != "ocean waves" {
			t.Fatalf("unexpected query %q", query.Get("query"))
		}
		if query.Get("orientation") != "portrait" || query.Get("per_page") != "3" {
			t.Fatalf("unexpected filters in %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"page": 1,
			"per_page": 3,
			"total_results": 1,
			"videos": [{
				"id": 42,
				"width": 1080,
				"height": 1920,
				"url": "https://www.pexels.com/video/42/",
				"duration": 14,
				"user": {"id": 7, "name": "Sam"},
				"video_files": [{"id": 1, "quality": "md", "width": 720, "height": 1280, "link": "https://cdn.example/42-md.mp4"}]
			}]
		}`))
	}))
	t.Cleanup(server.Close)

	client, err := pexels.New("key", server.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	resp, err := client.SearchVideos(context.Background(), "ocean waves", pexels.SearchOptions{
		Orientation: "portrait",
		PerPage:     3,
	})
	if err != nil {
		t.Fatalf("SearchVideos returned error: %v", err)
	}
	if len(resp.Videos) != 1 || resp.Videos[0].ID != 42 {
		t.Fatalf("unexpected response: %#v", resp)
	}
	if resp.Videos[0].Duration != 14 {
		t.Fatalf("unexpected duration %v", resp.Videos[0].Duration)
	}
}

func TestSearchVideosHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	t.Cleanup(server.Close)

	client, err := pexels.New("key", server.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if _, err := client.SearchVideos(context.Background(), "fail", pexels.SearchOptions{}); err == nil {
		t.Fatal("expected error when Pexels returns non-200")
	}
}

func TestSearchVideosEmptyQuery(t *testing.T) {
	client, err := pexels.New("key", "https://example.com")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.SearchVideos(context.Background(), "  ", pexels.SearchOptions{}); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestBestFilePrefersMd(t *testing.T) {
	video := pexels.Video{Files: []pexels.VideoFile{
		{Quality: "hd", Height: 2160, Link: "hd"},
		{Quality: "MD", Height: 720, Link: "md"},
	}}
	file, ok := video.BestFile()
	if !ok || file.Link != "md" {
		t.Fatalf("expected md rendition, got %#v (ok=%v)", file, ok)
	}
}

func TestBestFileFallsBackToTallestWithin1080(t *testing.T) {
	video := pexels.Video{Files: []pexels.VideoFile{
		{Quality: "uhd", Height: 2160, Link: "uhd"},
		{Quality: "sd", Height: 540, Link: "sd"},
		{Quality: "hd", Height: 1080, Link: "hd"},
	}}
	file, ok := video.BestFile()
	if !ok || file.Link != "hd" {
		t.Fatalf("expected 1080p rendition, got %#v (ok=%v)", file, ok)
	}
}

func TestBestFileFallsBackToFirstWhenAllTall(t *testing.T) {
	video := pexels.Video{Files: []pexels.VideoFile{
		{Quality: "uhd", Height: 2160, Link: "first"},
		{Quality: "uhd", Height: 1440, Link: "second"},
	}}
	file, ok := video.BestFile()
	if !ok || file.Link != "first" {
		t.Fatalf("expected first rendition fallback, got %#v (ok=%v)", file, ok)
	}
}

func TestBestFileEmpty(t *testing.T) {
	if _, ok := (pexels.Video{}).BestFile(); ok {
		t.Fatal("expected no rendition for empty file list")
	}
}

func TestDownloadWritesFile(t *testing.T) {
	payload := []byte("fake mp4 bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Fatalf("expected no Authorization header on CDN download, got %q", r.Header.Get("Authorization"))
		}
		_, _ = w.Write(payload)
	}))
	t.Cleanup(server.Close)

	client, err := pexels.New("key", "https://example.com")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "clips", "42.mp4")
	if err := client.Download(context.Background(), server.URL, dest); err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read downloaded clip: %v", err)
	}
	if string(data) != string(payload) {
		t.Fatalf("unexpected clip contents %q", data)
	}
	entries, err := os.ReadDir(filepath.Dir(dest))
	if err != nil {
		t.Fatalf("read download dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only final clip in dir, found %d entries", len(entries))
	}
}

func TestDownloadHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("denied"))
	}))
	t.Cleanup(server.Close)

	client, err := pexels.New("key", "https://example.com")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "clip.mp4")
	if err := client.Download(context.Background(), server.URL, dest); err == nil {
		t.Fatal("expected error for non-2xx download")
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatalf("expected no file on failed download, stat err=%v", statErr)
	}
}
