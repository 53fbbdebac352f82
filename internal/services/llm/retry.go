package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// completeWithRetry drives send until it yields usable content or the error
// is not worth another attempt. Retryable failures back off exponentially
// unless the server mandated a delay.
func (c *Client) completeWithRetry(ctx context.Context, payload chatRequest, op string) (string, error) {
	attempts := c.retryAttempts()
	for attempt := 1; ; attempt++ {
		content, err := c.completeOnce(ctx, payload, op)
		if err == nil {
			return content, nil
		}
		serverDelay, retry := retryable(err)
		if !retry || attempt >= attempts || ctx == nil || ctx.Err() != nil {
			return "", err
		}
		delay := c.backoff(attempt)
		if serverDelay > 0 {
			delay = c.capDelay(serverDelay)
		}
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return "", sleepErr
		}
	}
}

// completeOnce sends one request and extracts its content. A response with
// choices but no payload becomes an emptyContentError carrying enough of the
// body to debug the provider.
func (c *Client) completeOnce(ctx context.Context, payload chatRequest, op string) (string, error) {
	completion, body, err := c.send(ctx, payload)
	if err != nil {
		return "", err
	}
	content, finishReason := completion.content()
	if content != "" {
		return content, nil
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%s: empty choices", op)
	}
	return "", &emptyContentError{
		Op:           op,
		FinishReason: finishReason,
		Refusal:      completion.refusal(),
		Snippet:      summarizePayloadSnippet(string(body)),
	}
}

// retryable classifies an error and reports any server-mandated delay.
// Transient provider hiccups (rate limits, 5xx, timeouts, empty content)
// retry; everything else surfaces immediately.
func retryable(err error) (time.Duration, bool) {
	var statusErr *httpStatusError
	var emptyErr *emptyContentError
	var netErr net.Error
	switch {
	case err == nil,
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return 0, false
	case errors.As(err, &statusErr):
		retriableStatus := statusErr.StatusCode == http.StatusRequestTimeout ||
			statusErr.StatusCode == http.StatusTooManyRequests ||
			statusErr.StatusCode >= http.StatusInternalServerError
		return statusErr.RetryAfter, retriableStatus
	case errors.As(err, &emptyErr):
		return 0, true
	case errors.As(err, &netErr):
		return 0, netErr.Timeout()
	default:
		return 0, false
	}
}

func (c *Client) retryAttempts() int {
	if c.retryMaxAttempts <= 0 {
		return 1
	}
	return c.retryMaxAttempts
}

// backoff doubles from the base delay per prior attempt. A zero base keeps
// retries immediate, which tests rely on.
func (c *Client) backoff(attempt int) time.Duration {
	base := c.retryBaseDelay
	if base < 0 {
		base = defaultRetryBaseDelay
	}
	if base == 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > c.maxDelay()/2 {
			return c.maxDelay()
		}
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *Client) maxDelay() time.Duration {
	if c.retryMaxDelay > 0 {
		return c.retryMaxDelay
	}
	return defaultRetryMaxDelay
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if limit := c.maxDelay(); delay > limit {
		return limit
	}
	return delay
}

// sleep waits out the delay, honoring the injected sleeper and bailing out
// when ctx ends first.
func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx == nil {
		return errors.New("llm retry: nil context")
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// summarizePayloadSnippet compresses a response body onto one line for error
// messages.
func summarizePayloadSnippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
