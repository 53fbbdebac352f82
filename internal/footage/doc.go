// Package footage selects and fetches stock clips for a reel.
//
// The footage_pending stage extracts search keywords from the narration,
// queries the stock provider, filters candidates against duration and
// orientation constraints, ranks them, and downloads the chosen clips
// through the asset cache with bounded concurrency. Keyword extraction
// prefers the LLM and falls back to deterministic token frequency when the
// model is unavailable.
package footage
