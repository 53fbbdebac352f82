package queueaccess

import (
	"context"
	"fmt"
	"time"

	"reelforge/internal/apiclient"
	"reelforge/internal/queue"
)

// Session represents a queue access handle and its cleanup function.
type Session struct {
	Access Access
	// ViaDaemon reports whether operations reach a live daemon. When false
	// the session is read-only database access.
	ViaDaemon bool
	close     func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback probes the daemon API first and falls back to read-only
// store access when the daemon does not answer.
func OpenWithFallback(
	ctx context.Context,
	client *apiclient.Client,
	openStore func() (*queue.Store, error),
) (Session, error) {
	if client != nil {
		probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := client.Status(probeCtx)
		cancel()
		if err == nil {
			return Session{Access: NewHTTPAccess(client), ViaDaemon: true}, nil
		}
	}

	if openStore == nil {
		return Session{}, fmt.Errorf("open queue store: no store opener configured")
	}
	store, err := openStore()
	if err != nil {
		return Session{}, fmt.Errorf("open queue store: %w", err)
	}
	return Session{
		Access: NewStoreAccess(store),
		close:  store.Close,
	}, nil
}
