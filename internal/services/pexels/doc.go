// Package pexels provides the minimal Pexels video API client used when
// gathering reel footage.
//
// It authenticates requests and exposes video search with orientation, size,
// and duration filters plus a streaming download helper for clip renditions.
// Responses are strongly typed so the footage stage can score them. Options
// allow tests to supply custom HTTP clients without modifying production code.
package pexels
