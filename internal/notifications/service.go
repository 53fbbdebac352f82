package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelforge/internal/config"
)

const userAgent = "Reelforge-Go/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyReelSubmitted(ctx context.Context, title string) error
	NotifyReelCompleted(ctx context.Context, title, resultRef string) error
	NotifyReelFailed(ctx context.Context, title, reason string) error
	NotifyReelCancelled(ctx context.Context, title string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := 10 * time.Second
	if cfg.Notifications.RequestTimeout > 0 {
		timeout = time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

// payload is one ntfy publication. The message travels as the request body;
// everything else rides in headers per the ntfy publish protocol.
type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

func (p payload) apply(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if p.title != "" {
		req.Header.Set("Title", p.title)
	}
	if len(p.tags) > 0 {
		req.Header.Set("Tags", strings.Join(p.tags, ","))
	}
	if p.priority != "" && p.priority != "default" {
		req.Header.Set("Priority", p.priority)
	}
}

func (n *ntfyService) NotifyReelSubmitted(ctx context.Context, title string) error {
	return n.send(ctx, payload{
		title:   "Reelforge - Queued",
		message: fmt.Sprintf("🎬 Reel queued: %s", strings.TrimSpace(title)),
		tags:    []string{"reelforge", "reel", "queued"},
	})
}

func (n *ntfyService) NotifyReelCompleted(ctx context.Context, title, resultRef string) error {
	message := fmt.Sprintf("✅ Reel ready: %s", strings.TrimSpace(title))
	if resultRef = strings.TrimSpace(resultRef); resultRef != "" {
		message += "\nOutput: " + resultRef
	}
	return n.send(ctx, payload{
		title:    "Reelforge - Complete",
		message:  message,
		tags:     []string{"reelforge", "reel", "completed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyReelFailed(ctx context.Context, title, reason string) error {
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = "unknown"
	}
	return n.send(ctx, payload{
		title:    "Reelforge - Failed",
		message:  fmt.Sprintf("❌ Reel failed: %s\nReason: %s", strings.TrimSpace(title), reason),
		tags:     []string{"reelforge", "reel", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyReelCancelled(ctx context.Context, title string) error {
	return n.send(ctx, payload{
		title:   "Reelforge - Cancelled",
		message: fmt.Sprintf("Reel cancelled: %s", strings.TrimSpace(title)),
		tags:    []string{"reelforge", "reel", "cancelled"},
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	detail := "unknown"
	if err != nil {
		detail = strings.TrimSpace(err.Error())
	}
	message := "❌ Error"
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		message += " with " + contextLabel
	}
	return n.send(ctx, payload{
		title:    "Reelforge - Error",
		message:  message + ": " + detail,
		tags:     []string{"reelforge", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Reelforge - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"reelforge", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	data.apply(req)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyReelSubmitted(context.Context, string) error         { return nil }
func (noopService) NotifyReelCompleted(context.Context, string, string) error { return nil }
func (noopService) NotifyReelFailed(context.Context, string, string) error    { return nil }
func (noopService) NotifyReelCancelled(context.Context, string) error         { return nil }
func (noopService) NotifyError(context.Context, error, string) error          { return nil }
func (noopService) TestNotification(context.Context) error                    { return nil }
