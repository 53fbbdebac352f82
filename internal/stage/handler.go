package stage

import (
	"context"
	"log/slog"

	"reelforge/internal/queue"
)

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *queue.Job) error
	Execute(context.Context, *queue.Job) error
	HealthCheck(context.Context) Health
}

// LoggerAware handlers receive a job-scoped logger before Prepare runs so
// per-job log files capture their output.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}

// Health reports whether a stage's external dependencies are usable. The
// daemon aggregates these for the status API and the preflight check.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy reports a stage as ready.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy reports a stage as unusable, with the reason in Detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
