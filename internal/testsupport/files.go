package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path with exactly size bytes of filler, creating parent
// directories as needed. Sizes at or below zero produce a single byte. Used
// by tests that care about byte budgets rather than file contents.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	pattern := []byte("reel")
	filler := bytes.Repeat(pattern, int(size)/len(pattern)+1)[:size]
	if err := os.WriteFile(path, filler, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
