package main

import (
	"encoding/json"
	"strings"
	"testing"

	"reelforge/internal/api"
	"reelforge/internal/queue"
	"reelforge/internal/testsupport"
)

func TestShowDisplaysStoredReel(t *testing.T) {
	env := setupOfflineEnv(t)
	job := testsupport.NewReel(t, env.store, "Steam trains crossing a winter pass", queue.ReelParams{
		TargetDuration: 30,
		Voice:          "en-us",
		Orientation:    "portrait",
	})

	out, _, err := runCLI(t, env, "show", job.ID)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, job.ID)
	requireContains(t, out, "Steam trains crossing a winter pass")
	requireContains(t, out, "Pending")
	requireContains(t, out, "duration=30s voice=en-us orientation=portrait")
	requireContains(t, out, "(daemon not running; showing stored state)")
}

func TestShowUnknownReel(t *testing.T) {
	env := setupOfflineEnv(t)

	_, _, err := runCLI(t, env, "show", "missing")
	if err == nil || !strings.Contains(err.Error(), `reel "missing" not found`) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestShowJSONAgainstDaemon(t *testing.T) {
	env := setupDaemonEnv(t, nil)

	out, _, err := runCLI(t, env, "submit", "--json", "Fog rolling over coastal cliffs")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	var submitted api.SubmitResponse
	if err := json.Unmarshal([]byte(out), &submitted); err != nil {
		t.Fatalf("decode submit output %q: %v", out, err)
	}

	out, _, err = runCLI(t, env, "show", "--json", submitted.JobID)
	if err != nil {
		t.Fatalf("show --json: %v", err)
	}
	var reel api.Reel
	if err := json.Unmarshal([]byte(out), &reel); err != nil {
		t.Fatalf("decode show output %q: %v", out, err)
	}
	if reel.ID != submitted.JobID {
		t.Fatalf("expected reel %s, got %s", submitted.JobID, reel.ID)
	}
	if reel.Prompt != "Fog rolling over coastal cliffs" {
		t.Fatalf("unexpected prompt: %q", reel.Prompt)
	}
	if strings.Contains(out, "daemon not running") {
		t.Fatalf("expected daemon-backed detail, got %q", out)
	}
}
