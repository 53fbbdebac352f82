package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"reelforge/internal/logging"
	"reelforge/internal/queue"
	"reelforge/internal/services"
)

// resolveStageFailure decides between scheduling a retry and failing the job
// terminally. Validation, configuration, and other permanent errors skip the
// retry budget entirely; transient errors retry with exponential backoff
// until the attempt limit is spent.
func (m *Manager) resolveStageFailure(ctx context.Context, stageLogger *slog.Logger, binding stageBinding, job *queue.Job, stageErr error) {
	message := failureMessage(binding.name, stageErr)
	details := services.Details(stageErr)
	retryable := services.Retryable(stageErr)
	canRetry := retryable && job.Attempt < m.maxAttempts

	attrs := []logging.Attr{
		logging.Alert("stage_failure"),
		logging.String("error_message", message),
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String(logging.FieldErrorOperation, details.Operation),
		logging.String(logging.FieldErrorDetailPath, details.DetailPath),
		logging.String(logging.FieldErrorCode, details.Code),
		logging.String(logging.FieldErrorHint, details.Hint),
		logging.Int("attempt", job.Attempt),
		logging.Int("max_attempts", m.maxAttempts),
		logging.Bool("retryable", retryable),
	}
	if details.Cause != nil {
		attrs = append(attrs, logging.Error(details.Cause))
	} else {
		attrs = append(attrs, logging.Error(stageErr))
	}
	attrs = append(attrs, logging.String(logging.FieldEventType, "stage_failure"))
	stageLogger.Error("stage failed", logging.Args(attrs...)...)

	if canRetry {
		delay := queue.Backoff(job.Attempt, m.retryBase, m.retryCap)
		retried, err := m.store.RetryStage(ctx, job, message, delay)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				stageLogger.Debug("daemon shutting down, could not schedule retry")
			} else {
				stageLogger.Error("failed to schedule stage retry", logging.Error(err))
				m.setLastError(err)
			}
			return
		}
		if !retried {
			stageLogger.Warn("retry skipped; job moved underneath the worker")
			return
		}
		stageLogger.Info("stage retry scheduled",
			logging.String(logging.FieldEventType, "stage_retry"),
			logging.Duration("retry_delay", delay),
			logging.Int("attempt", job.Attempt),
			logging.Int("max_attempts", m.maxAttempts),
		)
		m.setLastJob(job)
		return
	}

	failed, err := m.store.MarkFailed(ctx, job, message)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			stageLogger.Debug("daemon shutting down, could not persist stage failure")
		} else {
			stageLogger.Error("failed to persist stage failure", logging.Error(err))
			m.setLastError(err)
		}
		return
	}
	if !failed {
		stageLogger.Warn("failure not recorded; job moved underneath the worker")
		return
	}
	m.setLastJob(job)
	m.notifyFailed(ctx, job, message)
}

func failureMessage(stageName string, stageErr error) string {
	if stageErr == nil {
		return stageName + " failed without error detail"
	}
	details := services.Details(stageErr)
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = strings.TrimSpace(stageErr.Error())
	}
	if message == "" {
		message = stageName + " failed"
	}
	return message
}
