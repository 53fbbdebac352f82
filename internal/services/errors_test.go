package services_test

import (
	"errors"
	"strings"
	"testing"

	"reelforge/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "assembler", "mux", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"assembler", "mux", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestRetryableClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"transient", services.Wrap(services.ErrTransient, "narrator", "complete", "rate limited", nil), true},
		{"timeout", services.Wrap(services.ErrTimeout, "footage", "search", "deadline", nil), true},
		{"external tool", services.Wrap(services.ErrExternalTool, "assembler", "ffmpeg", "exit 1", nil), true},
		{"assembly", services.Wrap(services.ErrAssembly, "assembler", "concat", "bad clip", nil), true},
		{"unclassified", errors.New("mystery"), true},
		{"validation", services.Wrap(services.ErrValidation, "intake", "prepare", "empty prompt", nil), false},
		{"configuration", services.Wrap(services.ErrConfiguration, "narrator", "prepare", "no api key", nil), false},
		{"not found", services.Wrap(services.ErrNotFound, "footage", "search", "no results", nil), false},
		{"permanent", services.Wrap(services.ErrPermanent, "narrator", "complete", "content policy", nil), false},
		{"duration mismatch", services.Wrap(services.ErrDurationMismatch, "narrator", "tolerance", "49s vs 30s", nil), false},
		{"capacity", services.Wrap(services.ErrCapacity, "cache", "store", "entry too large", nil), false},
		{"nil", nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Retryable(tc.err); got != tc.retryable {
				t.Fatalf("Retryable(%v) = %v, want %v", tc.err, got, tc.retryable)
			}
		})
	}
}

func TestDetailsFromStageError(t *testing.T) {
	base := errors.New("socket closed")
	err := services.Wrap(services.ErrTransient, "footage", "download", "clip fetch failed", base).
		WithCode("429").
		WithHint("provider rate limit, wait for backoff")

	details := services.Details(err)
	if details.Kind != services.KindTransient {
		t.Fatalf("expected transient kind, got %s", details.Kind)
	}
	if details.Operation != "download" {
		t.Fatalf("expected operation download, got %q", details.Operation)
	}
	if details.Code != "429" {
		t.Fatalf("expected code 429, got %q", details.Code)
	}
	if details.Hint == "" {
		t.Fatal("expected hint to be preserved")
	}
	if details.Cause != base {
		t.Fatalf("expected cause to be preserved, got %v", details.Cause)
	}
	if !strings.Contains(details.Message, "clip fetch failed") {
		t.Fatalf("expected message to include detail, got %q", details.Message)
	}
}

func TestDetailsFromPlainError(t *testing.T) {
	err := errors.New("plain failure")
	details := services.Details(err)
	if details.Kind != services.KindUnknown {
		t.Fatalf("expected unknown kind, got %s", details.Kind)
	}
	if details.Message != "plain failure" {
		t.Fatalf("unexpected message %q", details.Message)
	}
	if details.Operation != "" || details.Code != "" {
		t.Fatal("expected empty structured fields for plain error")
	}
}

func TestDetailsNil(t *testing.T) {
	details := services.Details(nil)
	if details.Kind != "" || details.Message != "" {
		t.Fatalf("expected zero details for nil error, got %+v", details)
	}
}
