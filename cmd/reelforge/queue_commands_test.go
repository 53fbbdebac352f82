package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"reelforge/internal/api"
	"reelforge/internal/queue"
	"reelforge/internal/testsupport"
)

func TestSubmitCancelFlowAgainstDaemon(t *testing.T) {
	env := setupDaemonEnv(t, nil)

	out, _, err := runCLI(t, env, "submit", "--json", "Sunset timelapse over a mountain lake")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	var submitted api.SubmitResponse
	if err := json.Unmarshal([]byte(out), &submitted); err != nil {
		t.Fatalf("decode submit output %q: %v", out, err)
	}
	if submitted.JobID == "" {
		t.Fatalf("submit returned no job id: %q", out)
	}

	out, _, err = runCLI(t, env, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, submitted.JobID)
	requireContains(t, out, "Sunset timelapse")
	if strings.Contains(out, "daemon not running") {
		t.Fatalf("expected daemon-backed listing, got %q", out)
	}

	// The gated intake handler holds the reel in running state.
	waitForReelStatus(t, env, submitted.JobID, queue.StatusRunning)

	out, _, err = runCLI(t, env, "cancel", submitted.JobID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	requireContains(t, out, "cancel requested (was Running)")

	refreshed, err := env.store.GetByID(context.Background(), submitted.JobID)
	if err != nil {
		t.Fatalf("GetByID after cancel: %v", err)
	}
	if refreshed == nil || !refreshed.CancelRequested {
		t.Fatal("expected cancel request to be recorded")
	}

	env.openGate()
	waitForReelStatus(t, env, submitted.JobID, queue.StatusCancelled)

	out, _, err = runCLI(t, env, "cancel", submitted.JobID)
	if err != nil {
		t.Fatalf("cancel finished reel: %v", err)
	}
	requireContains(t, out, "is already Cancelled")

	out, _, err = runCLI(t, env, "cancel", "f2b9e6f1-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("cancel unknown reel: %v", err)
	}
	requireContains(t, out, "not found")
}

func TestQueueRetryAndClearFailed(t *testing.T) {
	stages := failingStageSet()
	env := setupDaemonEnv(t, &stages)

	out, _, err := runCLI(t, env, "submit", "--json", "Night drive through neon streets")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	var submitted api.SubmitResponse
	if err := json.Unmarshal([]byte(out), &submitted); err != nil {
		t.Fatalf("decode submit output %q: %v", out, err)
	}
	waitForReelStatus(t, env, submitted.JobID, queue.StatusFailed)

	out, _, err = runCLI(t, env, "queue", "retry")
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	requireContains(t, out, "Retried 1 failed reels")

	// The permanent intake failure puts the reel back into failed state.
	waitForReelStatus(t, env, submitted.JobID, queue.StatusFailed)

	out, _, err = runCLI(t, env, "queue", "retry", submitted.JobID)
	if err != nil {
		t.Fatalf("queue retry by id: %v", err)
	}
	requireContains(t, out, "reset for retry")

	out, _, err = runCLI(t, env, "queue", "retry", "f2b9e6f1-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("queue retry unknown: %v", err)
	}
	requireContains(t, out, "not found")

	waitForReelStatus(t, env, submitted.JobID, queue.StatusFailed)

	out, _, err = runCLI(t, env, "queue", "clear", "--failed")
	if err != nil {
		t.Fatalf("queue clear --failed: %v", err)
	}
	requireContains(t, out, "Cleared 1 failed reels")

	out, _, err = runCLI(t, env, "queue", "list")
	if err != nil {
		t.Fatalf("queue list after clear: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestQueueCommandsFallBackToStore(t *testing.T) {
	env := setupOfflineEnv(t)
	job := testsupport.NewReel(t, env.store, "Sunrise over the old harbor", queue.ReelParams{})

	out, _, err := runCLI(t, env, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, job.ID)
	requireContains(t, out, "Pending")
	requireContains(t, out, "(daemon not running; showing stored state)")

	out, _, err = runCLI(t, env, "queue", "list", "--json")
	if err != nil {
		t.Fatalf("queue list --json: %v", err)
	}
	var listing api.QueueListResponse
	if err := json.Unmarshal([]byte(out), &listing); err != nil {
		t.Fatalf("decode list output %q: %v", out, err)
	}
	if len(listing.Reels) != 1 || listing.Reels[0].ID != job.ID {
		t.Fatalf("unexpected listing: %+v", listing.Reels)
	}
	if listing.Reels[0].Status != string(queue.StatusPending) {
		t.Fatalf("unexpected status: %q", listing.Reels[0].Status)
	}

	_, _, err = runCLI(t, env, "queue", "list", "--status", "bogus")
	if err == nil || !strings.Contains(err.Error(), `unknown status "bogus"`) {
		t.Fatalf("expected unknown status error, got %v", err)
	}

	_, _, err = runCLI(t, env, "queue", "clear")
	if err == nil || !strings.Contains(err.Error(), "daemon is not running") {
		t.Fatalf("expected daemon required error, got %v", err)
	}

	_, _, err = runCLI(t, env, "queue", "retry")
	if err == nil || !strings.Contains(err.Error(), "daemon is not running") {
		t.Fatalf("expected daemon required error, got %v", err)
	}

	_, _, err = runCLI(t, env, "cancel", job.ID)
	if err == nil || !strings.Contains(err.Error(), "daemon is not running") {
		t.Fatalf("expected daemon required error, got %v", err)
	}
}

func TestQueueClearFlagConflict(t *testing.T) {
	env := setupOfflineEnv(t)

	_, _, err := runCLI(t, env, "queue", "clear", "--completed", "--failed")
	if err == nil || !strings.Contains(err.Error(), "specify only one of --completed or --failed") {
		t.Fatalf("expected flag conflict error, got %v", err)
	}
}

func TestSubmitValidation(t *testing.T) {
	env := setupOfflineEnv(t)

	_, _, err := runCLI(t, env, "submit", "--orientation", "diagonal", "city at dusk")
	if err == nil || !strings.Contains(err.Error(), "orientation must be portrait or landscape") {
		t.Fatalf("expected orientation error, got %v", err)
	}

	_, _, err = runCLI(t, env, "submit", "   ")
	if err == nil || !strings.Contains(err.Error(), "prompt is required") {
		t.Fatalf("expected prompt error, got %v", err)
	}

	_, _, err = runCLI(t, env, "submit", "city at dusk")
	if err == nil || !strings.Contains(err.Error(), "refused the connection") {
		t.Fatalf("expected connection refused hint, got %v", err)
	}
}
