// Package llm provides an OpenRouter chat client for reel text generation.
//
// This package is used by:
//   - Narration stage: draft the voiceover script for a submitted prompt
//   - Footage stage: turn narration into stock-footage search keywords
//
// # Request Shape
//
// The client sends a system prompt plus user content to a configured model
// and requests JSON output. Domain helpers (DraftScript, SuggestKeywords)
// parse and normalize the payload; CompleteJSON exposes the raw primitive
// for one-off callers.
//
// # Configuration
//
// Requires api_key, model, and optionally base_url, referer, title, timeout.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.CompleteJSON: send system/user prompts, receive JSON response.
// Client.DraftScript: narration script for a reel brief.
// Client.SuggestKeywords: stock-footage search terms for narration.
// Client.HealthCheck: verify API key and model availability.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors and network timeouts with
// exponential backoff (base 1s, max 10s, up to 5 attempts by default).
// Context cancellation aborts retries immediately.
//
// # Fallback
//
// If keyword suggestion fails, the footage stage extracts keywords from the
// narration text locally instead. Script drafting has no local fallback;
// failures surface as stage retries.
package llm
