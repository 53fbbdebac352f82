package textutil

import "testing"

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"passthrough", "reel-42.mp4", "reel-42.mp4"},
		{"slashes become dashes", "a/b\\c", "a-b-c"},
		{"unsafe removed", `ab?"<>|cd`, "abcd"},
		{"colon and star", "12:30 * final", "12-30 - final"},
		{"trimmed", "  draft  ", "draft"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFileName(tt.input); got != tt.want {
				t.Fatalf("SanitizeFileName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Pexels-42", "pexels-42"},
		{"keeps digits and separators", "clip_007-b", "clip_007-b"},
		{"replaces other runes", "city at dusk!", "city_at_dusk"},
		{"trims separator runs", "__edge__", "edge"},
		{"empty input", "", "unknown"},
		{"all unsafe", "!!!", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeToken(tt.input); got != tt.want {
				t.Fatalf("SanitizeToken(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
