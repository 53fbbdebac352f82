package logging

import (
	"context"
	"log/slog"

	"reelforge/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldJobID is the standardized structured logging key for reel job identifiers.
	FieldJobID = "job_id"
	// FieldStage is the standardized structured logging key for workflow stage names.
	FieldStage = "stage"
	// FieldLane is the standardized structured logging key for workflow lane names.
	FieldLane = "lane"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldSessionID is the standardized structured logging key for daemon run identifiers.
	FieldSessionID = "session_id"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
	// FieldEventType categorizes log lines for downstream filtering (e.g. stage_failure).
	FieldEventType = "event_type"
	// FieldErrorHint carries the suggested next step for a logged failure.
	FieldErrorHint = "error_hint"
	// FieldErrorKind is the classified failure category (transient, validation, ...).
	FieldErrorKind = "error_kind"
	// FieldErrorOperation names the operation that produced a failure.
	FieldErrorOperation = "error_operation"
	// FieldErrorCode is the provider or tool specific error code, when one exists.
	FieldErrorCode = "error_code"
	// FieldErrorDetailPath points at a file holding oversized error detail.
	FieldErrorDetailPath = "error_detail_path"
	// FieldDecisionType labels selection decisions (clip ranking, cache reuse, ...).
	FieldDecisionType = "decision_type"
	// FieldProgressStage is the human readable sub-step reported by a running stage.
	FieldProgressStage = "progress_stage"
	// FieldProgressPercent is the numeric completion estimate for a running stage.
	FieldProgressPercent = "progress_percent"
	// FieldProgressMessage is the free-form progress line reported by a running stage.
	FieldProgressMessage = "progress_message"
	// FieldProgressETA is the estimated remaining time reported by a running stage.
	FieldProgressETA = "progress_eta"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.JobIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldJobID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if lane, ok := services.LaneFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldLane, lane))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
