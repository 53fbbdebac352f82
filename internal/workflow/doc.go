// Package workflow advances reel jobs through the configured pipeline
// stages.
//
// The Manager polls the queue, reclaims stale work via heartbeats, and feeds
// jobs into registered stage handlers (intake, narration, footage, planner,
// assembly, upload) while capturing progress and failure metadata. Stage and
// status transitions go through the queue store's compare-and-set operations,
// so a job observed by two pollers is only ever executed by the worker that
// won the claim. The manager also aggregates queue stats, calls stage health
// checks, and publishes job notifications on completion, failure, and
// cancellation.
//
// The workflow runs two independent lanes: generate (intake, narration,
// footage, planner) and render (assembly, upload). Each lane polls for jobs
// in its stages and processes them independently, so a long ffmpeg render of
// reel A never blocks script or footage work for reel B.
//
// Add new lifecycle stages by extending StageSet, updating the queue stage
// enums, and teaching the manager how to bind them to a lane; this package is
// the authoritative home for that coordination logic.
package workflow
