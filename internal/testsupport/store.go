package testsupport

import (
	"context"
	"testing"

	"reelforge/internal/config"
	"reelforge/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewReel creates a queued job for tests using the provided store.
func NewReel(t testing.TB, store *queue.Store, prompt string, params queue.ReelParams) *queue.Job {
	t.Helper()

	job, err := store.NewReel(context.Background(), prompt, params)
	if err != nil {
		t.Fatalf("store.NewReel: %v", err)
	}
	return job
}
