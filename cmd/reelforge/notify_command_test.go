package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNotifyTestUnconfigured(t *testing.T) {
	env := setupOfflineEnv(t)

	out, _, err := runCLI(t, env, "notify", "test")
	if err != nil {
		t.Fatalf("notify test: %v", err)
	}
	requireContains(t, out, "Notifications are not configured")
}

func TestNotifyTestSendsToNtfy(t *testing.T) {
	type received struct {
		title string
		body  string
	}
	got := make(chan received, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- received{title: r.Header.Get("Title"), body: string(body)}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	env := setupOfflineEnv(t)
	env.cfg.Notifications.NtfyTopic = server.URL
	writeTestConfig(t, env.cfg)

	out, _, err := runCLI(t, env, "notify", "test")
	if err != nil {
		t.Fatalf("notify test: %v", err)
	}
	requireContains(t, out, "Test notification sent")

	select {
	case msg := <-got:
		if msg.title != "Reelforge - Test" {
			t.Fatalf("unexpected notification title: %q", msg.title)
		}
		requireContains(t, msg.body, "Notification system test")
	default:
		t.Fatal("expected a notification request")
	}
}
