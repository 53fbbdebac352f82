// Package api defines wire-format types and converters for the daemon's HTTP
// API. It translates internal queue models into transport DTOs that the CLI
// and scripted consumers can render without coupling to internal types.
//
// # Key Types
//
// Reel: transport representation of a queue job with progress, artifacts, and
// timestamps.
//
// WorkflowStatus: daemon running state, queue stats, stage health, and the
// most recently processed reel.
//
// DaemonStatus: aggregated runtime information including dependency checks.
//
// # Design Notes
//
// JSON keys are snake_case to match the submit/status payload contract
// (job_id, result_ref, created_at). Internal enums (queue.Status, queue.Stage,
// queue.ProcessingLane) are exposed as lowercase strings. Timestamps use
// RFC3339 with milliseconds. Params pass through as json.RawMessage to avoid
// double-encoding the stored canonical form.
package api
