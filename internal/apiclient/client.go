package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"reelforge/internal/api"
	"reelforge/internal/queue"
)

// APIError carries the HTTP status and server message of a failed request.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("api request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// Client talks to the daemon HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New builds a client for the given address. A bare host:port gets an http
// scheme; the bearer token is attached to every request when non-empty.
func New(address, token string) *Client {
	return &Client{
		baseURL: normalizeBaseURL(address),
		token:   strings.TrimSpace(token),
		// The server bounds responses with its write timeout; the margin
		// here keeps long-polled log fetches from being cut off client side.
		http: &http.Client{Timeout: 45 * time.Second},
	}
}

func normalizeBaseURL(address string) string {
	address = strings.TrimSpace(address)
	if address == "" {
		return ""
	}
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	return strings.TrimRight(address, "/")
}

// BaseURL reports the normalized daemon address.
func (c *Client) BaseURL() string {
	if c == nil {
		return ""
	}
	return c.baseURL
}

// Status retrieves the daemon status snapshot.
func (c *Client) Status(ctx context.Context) (*api.DaemonStatus, error) {
	var resp api.DaemonStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Submit queues a new reel for the given prompt.
func (c *Client) Submit(ctx context.Context, prompt string, params queue.ReelParams) (*api.SubmitResponse, error) {
	var resp api.SubmitResponse
	req := api.SubmitRequest{Prompt: prompt, Params: params}
	if err := c.do(ctx, http.MethodPost, "/api/reels", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Describe returns one reel, or nil when the daemon does not know the id.
func (c *Client) Describe(ctx context.Context, id string) (*api.Reel, error) {
	var resp api.Reel
	err := c.do(ctx, http.MethodGet, "/api/reels/"+url.PathEscape(id), nil, &resp)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &resp, nil
}

// Cancel requests cancellation of a reel. A nil response means the daemon
// does not know the id.
func (c *Client) Cancel(ctx context.Context, id string) (*api.CancelResponse, error) {
	var resp api.CancelResponse
	err := c.do(ctx, http.MethodPost, "/api/reels/"+url.PathEscape(id)+"/cancel", nil, &resp)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &resp, nil
}

// QueueList returns queued reels, optionally filtered by status names.
func (c *Client) QueueList(ctx context.Context, statuses []string) ([]api.Reel, error) {
	path := "/api/queue"
	if len(statuses) > 0 {
		values := url.Values{}
		for _, status := range statuses {
			status = strings.TrimSpace(status)
			if status != "" {
				values.Add("status", status)
			}
		}
		if encoded := values.Encode(); encoded != "" {
			path += "?" + encoded
		}
	}
	var resp api.QueueListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Reels, nil
}

// QueueClear removes every reel from the queue and reports the count.
func (c *Client) QueueClear(ctx context.Context) (int64, error) {
	var resp api.ClearedResponse
	if err := c.do(ctx, http.MethodDelete, "/api/queue", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

// QueueClearCompleted removes succeeded and cancelled reels.
func (c *Client) QueueClearCompleted(ctx context.Context) (int64, error) {
	var resp api.ClearedResponse
	if err := c.do(ctx, http.MethodDelete, "/api/queue/completed", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

// QueueClearFailed removes failed reels.
func (c *Client) QueueClearFailed(ctx context.Context) (int64, error) {
	var resp api.ClearedResponse
	if err := c.do(ctx, http.MethodDelete, "/api/queue/failed", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

// QueueRetry returns failed reels to pending. With no ids every failed reel
// is retried.
func (c *Client) QueueRetry(ctx context.Context, ids []string) (int64, error) {
	var resp api.RetryResponse
	if err := c.do(ctx, http.MethodPost, "/api/queue/retry", api.RetryRequest{IDs: ids}, &resp); err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

// LogsRequest selects a window of the daemon log stream.
type LogsRequest struct {
	Since     uint64
	Limit     int
	Follow    bool
	Tail      bool
	JobID     string
	Component string
}

// Logs fetches log events from the daemon stream.
func (c *Client) Logs(ctx context.Context, req LogsRequest) (*api.LogStreamResponse, error) {
	values := url.Values{}
	if req.Since > 0 {
		values.Set("since", strconv.FormatUint(req.Since, 10))
	}
	if req.Limit > 0 {
		values.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Follow {
		values.Set("follow", "1")
	}
	if req.Tail {
		values.Set("tail", "1")
	}
	if job := strings.TrimSpace(req.JobID); job != "" {
		values.Set("job", job)
	}
	if component := strings.TrimSpace(req.Component); component != "" {
		values.Set("component", component)
	}
	path := "/api/logs"
	if encoded := values.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var resp api.LogStreamResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("api client is not configured")
	}
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &APIError{StatusCode: resp.StatusCode, Message: decodeErrorMessage(payload)}
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeErrorMessage(payload []byte) string {
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &envelope); err == nil && strings.TrimSpace(envelope.Error) != "" {
		return envelope.Error
	}
	return strings.TrimSpace(string(payload))
}

func isNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}
