package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	jsonResponseType      = "json_object"
	defaultHTTPTimeout    = 15 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryAttempts  = 5

	defaultWordsPerSecond = 2.5
	defaultTargetSeconds  = 30.0
	defaultKeywordLimit   = 5
)

// Config captures the runtime settings required to talk to the LLM.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// Client wraps an OpenRouter-compatible chat completion API.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default retry count (defaults to 5).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs an LLM client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			Referer:        strings.TrimSpace(cfg.Referer),
			Title:          strings.TrimSpace(cfg.Title),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://openrouter.ai/api/v1/chat/completions"
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// ScriptBrief describes the reel a narration script should be written for.
type ScriptBrief struct {
	Prompt        string
	Style         string
	TargetSeconds float64
	// WordsPerMinute overrides the default speaking rate when positive.
	WordsPerMinute int
}

// WordBudget estimates how many spoken words fit the target duration.
func (b ScriptBrief) WordBudget() int {
	seconds := b.TargetSeconds
	if seconds <= 0 {
		seconds = defaultTargetSeconds
	}
	wordsPerSecond := defaultWordsPerSecond
	if b.WordsPerMinute > 0 {
		wordsPerSecond = float64(b.WordsPerMinute) / 60
	}
	words := int(math.Round(seconds * wordsPerSecond))
	if words < 20 {
		words = 20
	}
	return words
}

// ScriptDraft captures the JSON payload returned by the LLM for a narration
// request.
type ScriptDraft struct {
	Narration string `json:"narration"`
	Raw       string `json:"-"`
}

// CompleteJSON issues a JSON-only chat completion request with the supplied
// prompts and returns the raw payload produced by the model.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if systemPrompt == "" {
		return "", errors.New("llm complete: system prompt required")
	}
	if userPrompt == "" {
		return "", errors.New("llm complete: user prompt required")
	}
	if c.cfg.APIKey == "" {
		return "", errors.New("llm complete: api key required")
	}
	return c.completeWithRetry(ctx, c.jsonRequest(systemPrompt, userPrompt), "llm complete")
}

// jsonRequest builds a deterministic JSON-mode chat request.
func (c *Client) jsonRequest(systemPrompt, userPrompt string) chatRequest {
	return chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": jsonResponseType},
	}
}

// DraftScript asks the model to write reel narration for the supplied brief.
func (c *Client) DraftScript(ctx context.Context, brief ScriptBrief) (ScriptDraft, error) {
	var empty ScriptDraft
	if strings.TrimSpace(brief.Prompt) == "" {
		return empty, errors.New("llm script: prompt required")
	}
	if c.cfg.APIKey == "" {
		return empty, errors.New("llm script: api key required")
	}
	content, err := c.CompleteJSON(ctx, ScriptSystemPrompt, scriptUserPrompt(brief))
	if err != nil {
		return empty, err
	}
	var parsed ScriptDraft
	if err := decodePayload(content, &parsed); err != nil {
		return empty, fmt.Errorf("llm script: parse payload: %w", err)
	}
	parsed.Raw = content
	parsed.Narration = strings.TrimSpace(parsed.Narration)
	if parsed.Narration == "" {
		return empty, errors.New("llm script: response missing narration")
	}
	return parsed, nil
}

func scriptUserPrompt(brief ScriptBrief) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", strings.TrimSpace(brief.Prompt))
	if style := strings.TrimSpace(brief.Style); style != "" {
		fmt.Fprintf(&b, "Style: %s\n", style)
	}
	seconds := brief.TargetSeconds
	if seconds <= 0 {
		seconds = defaultTargetSeconds
	}
	fmt.Fprintf(&b, "Target length: %.0f seconds of speech, about %d words.", seconds, brief.WordBudget())
	return b.String()
}

// SuggestKeywords asks the model for stock-footage search terms matching the
// narration.
func (c *Client) SuggestKeywords(ctx context.Context, narration string, limit int) ([]string, error) {
	narration = strings.TrimSpace(narration)
	if narration == "" {
		return nil, errors.New("llm keywords: narration required")
	}
	if c.cfg.APIKey == "" {
		return nil, errors.New("llm keywords: api key required")
	}
	if limit <= 0 {
		limit = defaultKeywordLimit
	}
	content, err := c.CompleteJSON(ctx, KeywordSystemPrompt, narration)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Keywords []string `json:"keywords"`
	}
	if err := decodePayload(content, &parsed); err != nil {
		// Some models return a bare array despite being asked for an object,
		// so tolerate it as a fallback.
		var list []string
		if listErr := decodePayload(content, &list); listErr != nil {
			return nil, fmt.Errorf("llm keywords: parse payload: %w", err)
		}
		parsed.Keywords = list
	}
	keywords := normalizeKeywords(parsed.Keywords, limit)
	if len(keywords) == 0 {
		return nil, errors.New("llm keywords: response missing keywords")
	}
	return keywords, nil
}

// normalizeKeywords lowercases, collapses whitespace, and dedupes search
// terms, keeping model order up to limit.
func normalizeKeywords(raw []string, limit int) []string {
	seen := make(map[string]struct{}, len(raw))
	keywords := make([]string, 0, len(raw))
	for _, keyword := range raw {
		keyword = strings.ToLower(strings.Join(strings.Fields(keyword), " "))
		if keyword == "" {
			continue
		}
		if _, ok := seen[keyword]; ok {
			continue
		}
		seen[keyword] = struct{}{}
		keywords = append(keywords, keyword)
		if len(keywords) == limit {
			break
		}
	}
	return keywords
}

// HealthCheck issues a fast ping to verify the API key and model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return errors.New("llm health: api key required")
	}
	content, err := c.completeWithRetry(ctx,
		c.jsonRequest("You must respond with JSON only.", `Respond with {"ok":true}`),
		"llm health")
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := decodePayload(content, &parsed); err != nil {
		return fmt.Errorf("llm health: parse payload: %w", err)
	}
	if !parsed.OK {
		return errors.New("llm health: unexpected response")
	}
	return nil
}
